package entities

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/dmitrijs2005/ordersync/internal/client/models"
	"github.com/dmitrijs2005/ordersync/internal/dbx"
)

var lineItemSchema = schema[models.LineItem, *models.LineItem]{
	kind:    models.EntityLineItem,
	columns: []string{"vehicle_local_id", "vehicle_server_id", "description", "quantity", "unit_price"},
	values: func(l *models.LineItem) []any {
		return []any{l.VehicleLocalID, dbx.NullInt64(l.VehicleServerID), l.Description, l.Quantity, l.UnitPrice}
	},
	dests: func(l *models.LineItem) []any {
		return []any{&l.VehicleLocalID, dbx.ScanNullInt64(&l.VehicleServerID), &l.Description, &l.Quantity, &l.UnitPrice}
	},
	search:   []string{"description"},
	toRemote: func(l *models.LineItem) any { return l.ToRemote() },
	decodeRemote: func(b []byte) (*models.LineItem, error) {
		var r models.RemoteLineItem
		if err := json.Unmarshal(b, &r); err != nil {
			return nil, err
		}
		return r.ToLocal(), nil
	},
}

type LineItemRepository struct {
	*Store[models.LineItem, *models.LineItem]
}

func NewLineItemRepository(db *sql.DB, opts Options) *LineItemRepository {
	return &LineItemRepository{newStore(db, lineItemSchema, opts)}
}

func (r *LineItemRepository) Create(ctx context.Context, l models.LineItem) (*models.LineItem, error) {
	return r.create(ctx, &l, models.PriorityHigh)
}

func (r *LineItemRepository) Update(ctx context.Context, localID string, patch models.LineItemPatch) (*models.LineItem, error) {
	return r.update(ctx, localID, patch.Apply, models.PriorityNormal)
}

func (r *LineItemRepository) Delete(ctx context.Context, localID string) (bool, error) {
	return r.delete(ctx, localID, models.PriorityNormal)
}

func (r *LineItemRepository) ListByVehicle(ctx context.Context, vehicleLocalID string) ([]*models.LineItem, error) {
	return r.query(ctx, `WHERE vehicle_local_id = ? AND sync_status != ? ORDER BY created_at ASC, local_id ASC`,
		vehicleLocalID, models.StatusPendingDelete)
}
