package models

import (
	"encoding/json"
	"time"
)

// AuditOperation labels what an audit entry records.
type AuditOperation string

const (
	AuditCreate     AuditOperation = "CREATE"
	AuditUpdate     AuditOperation = "UPDATE"
	AuditDelete     AuditOperation = "DELETE"
	AuditUpsert     AuditOperation = "UPSERT"
	AuditSyncError  AuditOperation = "SYNC_ERROR"
	AuditRetryReset AuditOperation = "RETRY_RESET"
)

// Conflict resolution labels.
const (
	ResolutionLocalPendingKept = "local_pending_kept"
	ResolutionRetriesExhausted = "retries_exhausted"
	ResolutionManualReset      = "manual_reset"
)

// AuditEntry is an append-only record of a mutation or detected conflict.
type AuditEntry struct {
	ID                 int64           `json:"id"`
	EntityType         EntityType      `json:"entity_type"`
	EntityID           string          `json:"entity_id"`
	Operation          AuditOperation  `json:"operation"`
	OldData            json.RawMessage `json:"old_data,omitempty"`
	NewData            json.RawMessage `json:"new_data,omitempty"`
	ConflictDetected   bool            `json:"conflict_detected"`
	ConflictResolution string          `json:"conflict_resolution,omitempty"`
	UserID             string          `json:"user_id,omitempty"`
	Timestamp          time.Time       `json:"timestamp"`
}
