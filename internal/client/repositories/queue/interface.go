package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/ordersync/internal/client/models"
)

// Annihilated is returned by Add when a DELETE cancelled a never-sent CREATE.
const Annihilated int64 = -1

// Repository is the sync queue contract.
type Repository interface {
	Add(ctx context.Context, entityType models.EntityType, localID string, op models.Operation, payload json.RawMessage, priority models.Priority) (int64, error)
	Get(ctx context.Context, id int64) (*models.QueueEntry, error)
	GetByEntity(ctx context.Context, entityType models.EntityType, localID string) (*models.QueueEntry, error)
	GetPending(ctx context.Context, maxAttempts int) ([]models.QueueEntry, error)
	MarkAttempt(ctx context.Context, id int64, success bool, errorMessage string) (*models.QueueEntry, error)
	MarkDeferred(ctx context.Context, id int64, errorMessage string) (*models.QueueEntry, error)
	MarkTerminal(ctx context.Context, id int64, errorMessage string) (*models.QueueEntry, error)
	Remove(ctx context.Context, id int64) error
	RemoveByEntity(ctx context.Context, entityType models.EntityType, localID string) error
	Promote(ctx context.Context, entityType models.EntityType, localID string, priority models.Priority) error
	Rebase(ctx context.Context, entityType models.EntityType, localID string) error
	ResetAttempts(ctx context.Context, id int64) (*models.QueueEntry, error)
	GetErrors(ctx context.Context) ([]models.QueueEntry, error)
	GetCounts(ctx context.Context) (models.QueueCounts, error)
	PurgeTerminal(ctx context.Context, olderThan time.Time) (int64, error)
}
