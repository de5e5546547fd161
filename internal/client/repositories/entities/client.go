package entities

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/dmitrijs2005/ordersync/internal/client/models"
)

var clientSchema = schema[models.Client, *models.Client]{
	kind:    models.EntityClient,
	columns: []string{"name", "phone", "email", "document", "address", "notes"},
	values: func(c *models.Client) []any {
		return []any{c.Name, c.Phone, c.Email, c.Document, c.Address, c.Notes}
	},
	dests: func(c *models.Client) []any {
		return []any{&c.Name, &c.Phone, &c.Email, &c.Document, &c.Address, &c.Notes}
	},
	search:   []string{"name", "phone", "email", "document"},
	toRemote: func(c *models.Client) any { return c.ToRemote() },
	decodeRemote: func(b []byte) (*models.Client, error) {
		var r models.RemoteClient
		if err := json.Unmarshal(b, &r); err != nil {
			return nil, err
		}
		return r.ToLocal(), nil
	},
}

type ClientRepository struct {
	*Store[models.Client, *models.Client]
}

func NewClientRepository(db *sql.DB, opts Options) *ClientRepository {
	return &ClientRepository{newStore(db, clientSchema, opts)}
}

// Create stores a new client and queues it at high priority.
func (r *ClientRepository) Create(ctx context.Context, c models.Client) (*models.Client, error) {
	return r.create(ctx, &c, models.PriorityHigh)
}

func (r *ClientRepository) Update(ctx context.Context, localID string, patch models.ClientPatch) (*models.Client, error) {
	return r.update(ctx, localID, patch.Apply, models.PriorityNormal)
}

func (r *ClientRepository) Delete(ctx context.Context, localID string) (bool, error) {
	return r.delete(ctx, localID, models.PriorityNormal)
}
