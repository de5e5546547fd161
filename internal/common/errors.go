// Package common defines shared constants and sentinel errors used across
// the local store, the sync engine and the remote client. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrLocalNotFound   = errors.New("local entity not found")
	ErrMissingServerID = errors.New("entity has no server id")

	// Sync failure taxonomy.
	ErrDependencyNotReady = errors.New("dependency not ready")
	ErrTransientNetwork   = errors.New("transient network failure")
	ErrRemoteRejected     = errors.New("rejected by remote")

	// Remote-level errors.
	ErrRemoteNotFound = errors.New("remote entity not found")
	ErrUnauthorized   = errors.New("unauthorized")

	// Token errors.
	ErrInvalidToken = errors.New("invalid token")

	// Validation errors.
	ErrUnknownEntityType = errors.New("unknown entity type")
	ErrUnknownOperation  = errors.New("unknown operation")
	ErrInvalidPayload    = errors.New("invalid queued payload")
)
