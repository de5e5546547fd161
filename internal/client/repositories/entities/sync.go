package entities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/ordersync/internal/client/models"
	"github.com/dmitrijs2005/ordersync/internal/common"
	"github.com/dmitrijs2005/ordersync/internal/dbx"
)

// Fetcher reads remote collections. It is implemented by the REST client.
type Fetcher interface {
	List(ctx context.Context, resource string) ([]json.RawMessage, error)
}

// ErrNothingToPush reports that the queue entry was coalesced away or
// acknowledged since it was listed.
var ErrNothingToPush = errors.New("queue entry no longer exists")

// Push is one queue entry turned into a remote request.
type Push struct {
	QueueID   int64
	Kind      models.EntityType
	Operation models.Operation
	LocalID   string
	// ServerID addresses UPDATE and DELETE requests.
	ServerID int64
	// Body is the wire payload of CREATE and UPDATE requests.
	Body any
	// Version is the row version the body was taken from.
	Version int64
}

// Syncable is the engine-facing half of a repository. Each entity type has
// exactly one implementation, reached through Set.
type Syncable interface {
	Kind() models.EntityType
	PreparePush(ctx context.Context, entry models.QueueEntry) (*Push, error)
	AcknowledgePush(ctx context.Context, localID string, serverID int64, pushedVersion int64) error
	AcknowledgeDelete(ctx context.Context, localID string) error
	ReleasePush(ctx context.Context, localID string) error
	MarkAsSyncError(ctx context.Context, localID string, message string) error
	ResetError(ctx context.Context, localID string) error
	ReleaseStale(ctx context.Context) (int, error)
	Pull(ctx context.Context) (int, error)
}

// PreparePush re-reads the queue entry for listed, decodes its snapshot,
// resolves parent server ids and flags the row SYNCING. Parents that have not
// reached the remote yet fail with common.ErrDependencyNotReady.
func (s *Store[T, P]) PreparePush(ctx context.Context, listed models.QueueEntry) (*Push, error) {
	push := &Push{Kind: s.schema.kind, LocalID: listed.EntityLocalID}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		entry, err := s.queue(tx).GetByEntity(ctx, s.schema.kind, listed.EntityLocalID)
		if err != nil {
			return err
		}
		if entry == nil {
			return ErrNothingToPush
		}
		push.QueueID = entry.ID
		push.Operation = entry.Operation

		row, err := s.get(ctx, tx, entry.EntityLocalID)
		if err != nil {
			return err
		}
		m := row.Meta()
		push.Version = m.Version

		if entry.Operation != models.OpCreate {
			if m.ServerID == nil {
				return fmt.Errorf("%s %s: %w", s.schema.kind, m.LocalID, common.ErrMissingServerID)
			}
			push.ServerID = *m.ServerID
		}

		switch entry.Operation {
		case models.OpCreate, models.OpUpdate:
			snap := P(new(T))
			if err := json.Unmarshal(entry.Payload, snap); err != nil {
				return fmt.Errorf("%s %s: %w: %v", s.schema.kind, m.LocalID, common.ErrInvalidPayload, err)
			}
			snap.Meta().LocalID = m.LocalID
			if err := bindParents(ctx, tx, snap, true); err != nil {
				return err
			}
			push.Body = s.schema.toRemote(snap)
			return s.setStatus(ctx, tx, m.LocalID, models.StatusSyncing, "")
		case models.OpDelete:
			return nil
		default:
			return fmt.Errorf("%s: %w", entry.Operation, common.ErrUnknownOperation)
		}
	})
	if err != nil {
		return nil, err
	}
	return push, nil
}

// AcknowledgePush records a successful CREATE or UPDATE. When the row was
// edited after pushedVersion was read, the row keeps its queue entry, now an
// UPDATE, and stays pending.
func (s *Store[T, P]) AcknowledgePush(ctx context.Context, localID string, serverID int64, pushedVersion int64) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		p, err := s.get(ctx, tx, localID)
		if err != nil {
			return err
		}
		m := p.Meta()
		if serverID != 0 {
			m.ServerID = &serverID
		}
		now := s.now()
		m.LastSyncedAt = &now

		q := s.queue(tx)
		if m.Version == pushedVersion {
			m.SyncStatus = models.StatusSynced
			m.SyncError = ""
			if err := q.RemoveByEntity(ctx, s.schema.kind, localID); err != nil {
				return err
			}
			return s.write(ctx, tx, p)
		}

		if err := q.Rebase(ctx, s.schema.kind, localID); err != nil {
			return err
		}
		entry, err := q.GetByEntity(ctx, s.schema.kind, localID)
		if err != nil {
			return err
		}
		if entry != nil {
			m.SyncStatus = entry.Operation.PendingStatus()
		} else {
			m.SyncStatus = models.StatusSynced
		}
		return s.write(ctx, tx, p)
	})
}

// AcknowledgeDelete drops the row and its queue entry once the remote
// confirmed the delete. The audit trail stays.
func (s *Store[T, P]) AcknowledgeDelete(ctx context.Context, localID string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.remove(ctx, tx, localID); err != nil {
			return err
		}
		return s.queue(tx).RemoveByEntity(ctx, s.schema.kind, localID)
	})
}

// pendingStatus derives the row status from its queue entry.
func (s *Store[T, P]) pendingStatus(ctx context.Context, tx dbx.DBTX, m *models.SyncMeta) (models.SyncStatus, error) {
	entry, err := s.queue(tx).GetByEntity(ctx, s.schema.kind, m.LocalID)
	if err != nil {
		return "", err
	}
	switch {
	case entry != nil:
		return entry.Operation.PendingStatus(), nil
	case m.ServerID == nil:
		return models.StatusPendingCreate, nil
	default:
		return models.StatusPendingUpdate, nil
	}
}

// ReleasePush returns a SYNCING row to its pending status after a failed,
// retryable push. Missing rows are ignored.
func (s *Store[T, P]) ReleasePush(ctx context.Context, localID string) error {
	return s.restore(ctx, localID, models.StatusSyncing)
}

// ReleaseStale returns rows a crashed or interrupted push left SYNCING to
// their pending status. It reports how many rows were released.
func (s *Store[T, P]) ReleaseStale(ctx context.Context) (int, error) {
	rows, err := s.GetByStatus(ctx, models.StatusSyncing)
	if err != nil {
		return 0, err
	}
	for i, p := range rows {
		if err := s.ReleasePush(ctx, p.Meta().LocalID); err != nil {
			return i, err
		}
	}
	return len(rows), nil
}

// ResetError returns an ERROR row to its pending status.
func (s *Store[T, P]) ResetError(ctx context.Context, localID string) error {
	return s.restore(ctx, localID, models.StatusError)
}

func (s *Store[T, P]) restore(ctx context.Context, localID string, from models.SyncStatus) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		p, err := s.get(ctx, tx, localID)
		if errors.Is(err, common.ErrLocalNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		m := p.Meta()
		if m.SyncStatus != from {
			return nil
		}
		status, err := s.pendingStatus(ctx, tx, m)
		if err != nil {
			return err
		}
		return s.setStatus(ctx, tx, localID, status, "")
	})
}

// Pull fetches the whole remote collection and upserts it locally.
func (s *Store[T, P]) Pull(ctx context.Context) (int, error) {
	if s.opts.Fetcher == nil {
		return 0, nil
	}
	items, err := s.opts.Fetcher.List(ctx, s.schema.kind.Resource())
	if err != nil {
		return 0, fmt.Errorf("failed to fetch %s: %w", s.schema.kind.Resource(), err)
	}
	n := 0
	for _, raw := range items {
		remote, err := s.schema.decodeRemote(raw)
		if err != nil {
			return n, fmt.Errorf("failed to decode %s: %w", s.schema.kind, err)
		}
		if _, err := s.UpsertFromServer(ctx, remote); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
