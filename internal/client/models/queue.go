package models

import (
	"encoding/json"
	"time"
)

// QueueEntry is one pending remote mutation. There is at most one entry per
// (EntityType, EntityLocalID).
type QueueEntry struct {
	ID            int64
	EntityType    EntityType
	EntityLocalID string
	Operation     Operation
	Payload       json.RawMessage
	Priority      Priority
	Attempts      int
	MaxAttempts   int
	LastAttempt   *time.Time
	ErrorMessage  string
	CreatedAt     time.Time
}

// Terminal reports whether the entry exhausted its retry budget.
func (e *QueueEntry) Terminal() bool {
	return e.Attempts >= e.MaxAttempts
}

// QueueCounts partitions the queue for status indicators.
type QueueCounts struct {
	Pending int
	Errors  int
}
