package entities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/ordersync/internal/client/models"
	"github.com/dmitrijs2005/ordersync/internal/client/repositories/queue"
	"github.com/dmitrijs2005/ordersync/internal/common"
	"github.com/dmitrijs2005/ordersync/internal/dbx"
)

// parentColumn is the column holding the parent local id of each child kind.
var parentColumn = map[models.EntityType]string{
	models.EntityServiceOrder: "client_local_id",
	models.EntityVehicle:      "order_local_id",
	models.EntityLineItem:     "vehicle_local_id",
}

func asChild(e models.Entity) (models.Child, bool) {
	c, ok := e.(models.Child)
	return c, ok
}

func parentRefs(e models.Entity) []models.ParentRef {
	if c, ok := asChild(e); ok {
		return c.ParentRefs()
	}
	return nil
}

// parentServerID returns the server id of a parent row, nil while the parent
// has not reached the remote, and ErrLocalNotFound when the row is gone.
func parentServerID(ctx context.Context, q dbx.DBTX, kind models.EntityType, localID string) (*int64, error) {
	var sid sql.NullInt64
	err := q.QueryRowContext(ctx, `SELECT server_id FROM `+kind.Table()+` WHERE local_id = ?`, localID).Scan(&sid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("parent %s %s: %w", kind, localID, common.ErrLocalNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up parent %s %s: %w", kind, localID, err)
	}
	if !sid.Valid {
		return nil, nil
	}
	return &sid.Int64, nil
}

// bindParents copies known parent server ids onto e. With strict set, a
// parent without a server id fails with ErrDependencyNotReady.
func bindParents(ctx context.Context, q dbx.DBTX, e models.Entity, strict bool) error {
	c, ok := asChild(e)
	if !ok {
		return nil
	}
	for _, ref := range c.ParentRefs() {
		if ref.ServerID != nil {
			continue
		}
		if ref.LocalID == "" {
			return fmt.Errorf("%s without %s reference: %w", e.Kind(), ref.Type, common.ErrLocalNotFound)
		}
		sid, err := parentServerID(ctx, q, ref.Type, ref.LocalID)
		if err != nil {
			return err
		}
		if sid == nil {
			if strict {
				return fmt.Errorf("%s %s not synced yet: %w", ref.Type, ref.LocalID, common.ErrDependencyNotReady)
			}
			continue
		}
		c.BindParent(ref.Type, *sid)
	}
	return nil
}

// bindLocalParents resolves the parent local ids of a remote snapshot from
// the parent server ids it carries. Parents unknown locally keep the local
// id found in fallback, if any.
func bindLocalParents(ctx context.Context, q dbx.DBTX, e models.Entity, fallback []models.ParentRef) error {
	c, ok := asChild(e)
	if !ok {
		return nil
	}
	known := map[models.EntityType]string{}
	for _, ref := range fallback {
		known[ref.Type] = ref.LocalID
	}
	for _, ref := range c.ParentRefs() {
		if ref.ServerID == nil {
			continue
		}
		var localID string
		err := q.QueryRowContext(ctx, `SELECT local_id FROM `+ref.Type.Table()+` WHERE server_id = ?`, *ref.ServerID).Scan(&localID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			localID = known[ref.Type]
		case err != nil:
			return fmt.Errorf("failed to resolve parent %s %d: %w", ref.Type, *ref.ServerID, err)
		}
		c.BindParentLocal(ref.Type, localID)
	}
	return nil
}

// promoteParents raises the queue priority of every pending ancestor of e to
// at least priority, so parents never drain after their children.
func promoteParents(ctx context.Context, q dbx.DBTX, e models.Entity, priority models.Priority) error {
	c, ok := asChild(e)
	if !ok {
		return nil
	}
	qr := queue.NewSQLiteRepository(q)
	for _, ref := range c.ParentRefs() {
		kind, localID := ref.Type, ref.LocalID
		for localID != "" {
			if err := qr.Promote(ctx, kind, localID, priority); err != nil {
				return err
			}
			col, ok := parentColumn[kind]
			if !ok {
				break
			}
			var next string
			err := q.QueryRowContext(ctx, `SELECT `+col+` FROM `+kind.Table()+` WHERE local_id = ?`, localID).Scan(&next)
			if errors.Is(err, sql.ErrNoRows) {
				break
			}
			if err != nil {
				return fmt.Errorf("failed to walk parents of %s %s: %w", kind, localID, err)
			}
			kind, localID = kind.Parents()[0], next
		}
	}
	return nil
}
