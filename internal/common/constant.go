// Package common contains shared constants and sentinel errors used across
// ordersync components.
package common

// IdempotencyKeyHeaderName is the HTTP header carrying the client-generated
// local id on create requests.
const IdempotencyKeyHeaderName = "Idempotency-Key"

// AuthorizationHeaderName carries the bearer session token on outbound requests.
const AuthorizationHeaderName = "Authorization"
