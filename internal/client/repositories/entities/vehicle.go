package entities

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/dmitrijs2005/ordersync/internal/client/models"
	"github.com/dmitrijs2005/ordersync/internal/dbx"
)

var vehicleSchema = schema[models.Vehicle, *models.Vehicle]{
	kind:    models.EntityVehicle,
	columns: []string{"order_local_id", "order_server_id", "plate", "brand", "model", "year", "mileage"},
	values: func(v *models.Vehicle) []any {
		return []any{v.OrderLocalID, dbx.NullInt64(v.OrderServerID), v.Plate, v.Brand, v.Model, v.Year, v.Mileage}
	},
	dests: func(v *models.Vehicle) []any {
		return []any{&v.OrderLocalID, dbx.ScanNullInt64(&v.OrderServerID), &v.Plate, &v.Brand, &v.Model, &v.Year, &v.Mileage}
	},
	search:   []string{"plate", "brand", "model"},
	toRemote: func(v *models.Vehicle) any { return v.ToRemote() },
	decodeRemote: func(b []byte) (*models.Vehicle, error) {
		var r models.RemoteVehicle
		if err := json.Unmarshal(b, &r); err != nil {
			return nil, err
		}
		return r.ToLocal(), nil
	},
}

type VehicleRepository struct {
	*Store[models.Vehicle, *models.Vehicle]
}

func NewVehicleRepository(db *sql.DB, opts Options) *VehicleRepository {
	return &VehicleRepository{newStore(db, vehicleSchema, opts)}
}

func (r *VehicleRepository) Create(ctx context.Context, v models.Vehicle) (*models.Vehicle, error) {
	return r.create(ctx, &v, models.PriorityHigh)
}

func (r *VehicleRepository) Update(ctx context.Context, localID string, patch models.VehiclePatch) (*models.Vehicle, error) {
	return r.update(ctx, localID, patch.Apply, models.PriorityNormal)
}

func (r *VehicleRepository) Delete(ctx context.Context, localID string) (bool, error) {
	return r.delete(ctx, localID, models.PriorityNormal)
}

func (r *VehicleRepository) ListByOrder(ctx context.Context, orderLocalID string) ([]*models.Vehicle, error) {
	return r.query(ctx, `WHERE order_local_id = ? AND sync_status != ? ORDER BY created_at ASC, local_id ASC`,
		orderLocalID, models.StatusPendingDelete)
}
