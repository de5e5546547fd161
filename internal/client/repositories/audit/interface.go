// Package audit stores the append-only audit log of entity mutations and
// detected sync conflicts.
package audit

import (
	"context"
	"time"

	"github.com/dmitrijs2005/ordersync/internal/client/models"
)

type Repository interface {
	Record(ctx context.Context, e *models.AuditEntry) (int64, error)
	ListByEntity(ctx context.Context, entityType models.EntityType, entityID string) ([]models.AuditEntry, error)
	ListRecent(ctx context.Context, limit int) ([]models.AuditEntry, error)
	ListConflicts(ctx context.Context, limit int) ([]models.AuditEntry, error)
	LastConflict(ctx context.Context, entityType models.EntityType, entityID string) (*models.AuditEntry, error)
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]models.AuditEntry, error)
	DeleteEntity(ctx context.Context, entityType models.EntityType, entityID string) error
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Count(ctx context.Context) (int, error)
}
