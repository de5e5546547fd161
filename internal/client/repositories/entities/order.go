package entities

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/dmitrijs2005/ordersync/internal/client/models"
	"github.com/dmitrijs2005/ordersync/internal/dbx"
)

var serviceOrderSchema = schema[models.ServiceOrder, *models.ServiceOrder]{
	kind: models.EntityServiceOrder,
	columns: []string{"number", "client_local_id", "client_server_id", "status", "description",
		"total", "opened_at", "closed_at"},
	values: func(o *models.ServiceOrder) []any {
		return []any{o.Number, o.ClientLocalID, dbx.NullInt64(o.ClientServerID), o.Status, o.Description,
			o.Total, dbx.Millis(o.OpenedAt), dbx.NullMillis(o.ClosedAt)}
	},
	dests: func(o *models.ServiceOrder) []any {
		return []any{&o.Number, &o.ClientLocalID, dbx.ScanNullInt64(&o.ClientServerID), &o.Status, &o.Description,
			&o.Total, dbx.ScanMillis(&o.OpenedAt), dbx.ScanNullMillis(&o.ClosedAt)}
	},
	search: []string{"number", "description", "status"},
	normalize: func(o *models.ServiceOrder) {
		o.OpenedAt = storedTime(o.OpenedAt)
		o.ClosedAt = storedTimePtr(o.ClosedAt)
	},
	toRemote: func(o *models.ServiceOrder) any { return o.ToRemote() },
	decodeRemote: func(b []byte) (*models.ServiceOrder, error) {
		var r models.RemoteServiceOrder
		if err := json.Unmarshal(b, &r); err != nil {
			return nil, err
		}
		return r.ToLocal(), nil
	},
}

type ServiceOrderRepository struct {
	*Store[models.ServiceOrder, *models.ServiceOrder]
}

func NewServiceOrderRepository(db *sql.DB, opts Options) *ServiceOrderRepository {
	return &ServiceOrderRepository{newStore(db, serviceOrderSchema, opts)}
}

// Create opens a service order for the client with local id
// o.ClientLocalID. Status defaults to open and OpenedAt to now.
func (r *ServiceOrderRepository) Create(ctx context.Context, o models.ServiceOrder) (*models.ServiceOrder, error) {
	if o.Status == "" {
		o.Status = models.OrderOpen
	}
	if o.OpenedAt.IsZero() {
		o.OpenedAt = r.now()
	}
	priority := models.PriorityHigh
	if o.Status.Final() {
		priority = models.PriorityCritical
	}
	return r.create(ctx, &o, priority)
}

// Update applies patch. Finalizing the order (finished or cancelled) is
// queued as critical and stamps ClosedAt when the patch does not.
func (r *ServiceOrderRepository) Update(ctx context.Context, localID string, patch models.ServiceOrderPatch) (*models.ServiceOrder, error) {
	priority := models.PriorityNormal
	if patch.Finalizes() {
		priority = models.PriorityCritical
		if patch.ClosedAt == nil {
			closed := r.now()
			patch.ClosedAt = &closed
		}
	}
	return r.update(ctx, localID, patch.Apply, priority)
}

// SetStatus is the status transition shortcut of Update.
func (r *ServiceOrderRepository) SetStatus(ctx context.Context, localID string, status models.OrderStatus) (*models.ServiceOrder, error) {
	return r.Update(ctx, localID, models.ServiceOrderPatch{Status: &status})
}

func (r *ServiceOrderRepository) Delete(ctx context.Context, localID string) (bool, error) {
	return r.delete(ctx, localID, models.PriorityNormal)
}

// ListByClient returns the visible orders of a client.
func (r *ServiceOrderRepository) ListByClient(ctx context.Context, clientLocalID string) ([]*models.ServiceOrder, error) {
	return r.query(ctx, `WHERE client_local_id = ? AND sync_status != ? ORDER BY opened_at ASC, local_id ASC`,
		clientLocalID, models.StatusPendingDelete)
}
