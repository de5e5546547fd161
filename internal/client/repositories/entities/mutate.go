package entities

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ordersync/internal/client/models"
	"github.com/dmitrijs2005/ordersync/internal/client/repositories/audit"
	"github.com/dmitrijs2005/ordersync/internal/common"
	"github.com/dmitrijs2005/ordersync/internal/dbx"
)

func (s *Store[T, P]) now() time.Time {
	return s.opts.Now().UTC().Truncate(time.Millisecond)
}

// create stores p as a new local row and queues its CREATE.
func (s *Store[T, P]) create(ctx context.Context, p P, priority models.Priority) (P, error) {
	now := s.now()
	m := p.Meta()
	*m = models.SyncMeta{
		LocalID:    s.opts.NewID(),
		Version:    1,
		SyncStatus: models.StatusPendingCreate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.normalize(p)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := bindParents(ctx, tx, p, false); err != nil {
			return err
		}
		if err := s.insert(ctx, tx, p); err != nil {
			return err
		}
		payload, err := snapshot(p)
		if err != nil {
			return err
		}
		if _, err := s.queue(tx).Add(ctx, s.schema.kind, m.LocalID, models.OpCreate, payload, priority); err != nil {
			return err
		}
		if err := promoteParents(ctx, tx, p, priority); err != nil {
			return err
		}
		return s.record(ctx, tx, models.AuditEntry{EntityID: m.LocalID, Operation: models.AuditCreate, NewData: payload})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// update applies a merge patch to the row and queues the newest state.
// Rows waiting for a remote delete count as gone.
func (s *Store[T, P]) update(ctx context.Context, localID string, apply func(P), priority models.Priority) (P, error) {
	var out P
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		p, err := s.get(ctx, tx, localID)
		if err != nil {
			return err
		}
		m := p.Meta()
		if m.SyncStatus == models.StatusPendingDelete {
			return fmt.Errorf("%s %s is being deleted: %w", s.schema.kind, localID, common.ErrLocalNotFound)
		}
		old, err := snapshot(p)
		if err != nil {
			return err
		}
		wasError := m.SyncStatus == models.StatusError

		apply(p)
		s.normalize(p)

		op := models.OpUpdate
		if m.ServerID == nil {
			op = models.OpCreate
		}
		m.Version++
		m.UpdatedAt = s.now()
		m.SyncStatus = op.PendingStatus()
		m.SyncError = ""

		payload, err := snapshot(p)
		if err != nil {
			return err
		}
		if err := s.enqueue(ctx, tx, localID, op, payload, priority, wasError); err != nil {
			return err
		}
		if err := promoteParents(ctx, tx, p, priority); err != nil {
			return err
		}
		if err := s.write(ctx, tx, p); err != nil {
			return err
		}
		out = p
		return s.record(ctx, tx, models.AuditEntry{EntityID: localID, Operation: models.AuditUpdate, OldData: old, NewData: payload})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// enqueue coalesces a mutation into the queue. A row coming out of ERROR
// carries new data, so its entry gets a fresh retry budget.
func (s *Store[T, P]) enqueue(ctx context.Context, tx dbx.DBTX, localID string, op models.Operation,
	payload json.RawMessage, priority models.Priority, resetAttempts bool) error {

	q := s.queue(tx)
	id, err := q.Add(ctx, s.schema.kind, localID, op, payload, priority)
	if err != nil {
		return err
	}
	if resetAttempts && id > 0 {
		if _, err := q.ResetAttempts(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// delete soft-deletes rows the remote knows about and hard-deletes the rest,
// together with their queue entry and audit trail. It reports whether a row
// was found.
func (s *Store[T, P]) delete(ctx context.Context, localID string, priority models.Priority) (bool, error) {
	found := false
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		p, err := s.get(ctx, tx, localID)
		if errors.Is(err, common.ErrLocalNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true

		m := p.Meta()
		if m.SyncStatus == models.StatusPendingDelete {
			return nil
		}

		q := s.queue(tx)
		if m.ServerID == nil {
			if err := s.remove(ctx, tx, localID); err != nil {
				return err
			}
			if err := q.RemoveByEntity(ctx, s.schema.kind, localID); err != nil {
				return err
			}
			return audit.NewSQLiteRepository(tx).DeleteEntity(ctx, s.schema.kind, localID)
		}

		old, err := snapshot(p)
		if err != nil {
			return err
		}
		wasError := m.SyncStatus == models.StatusError
		m.Version++
		m.UpdatedAt = s.now()
		m.SyncStatus = models.StatusPendingDelete
		m.SyncError = ""

		// a CREATE still queued for a row with a server id must not annihilate
		if err := q.Rebase(ctx, s.schema.kind, localID); err != nil {
			return err
		}
		payload, err := snapshot(p)
		if err != nil {
			return err
		}
		if err := s.enqueue(ctx, tx, localID, models.OpDelete, payload, priority, wasError); err != nil {
			return err
		}
		if err := s.write(ctx, tx, p); err != nil {
			return err
		}
		return s.record(ctx, tx, models.AuditEntry{EntityID: localID, Operation: models.AuditDelete, OldData: old})
	})
	return found, err
}

// businessJSON encodes p without its sync metadata, for change detection.
func businessJSON(p models.Entity) ([]byte, error) {
	m := p.Meta()
	saved := *m
	*m = models.SyncMeta{}
	defer func() { *m = saved }()
	return json.Marshal(p)
}

// UpsertFromServer reconciles a remote snapshot into the local store.
//
// Rows are matched by server id, then by the local id the remote echoes back
// for records this device created. A matched row that is not SYNCED keeps
// its local state: the remote snapshot is dropped and the conflict is
// audited as local_pending_kept, once per distinct remote snapshot.
// Unchanged snapshots only refresh last_synced_at.
func (s *Store[T, P]) UpsertFromServer(ctx context.Context, remote P) (P, error) {
	rm := remote.Meta()
	if rm.ServerID == nil {
		return nil, fmt.Errorf("upsert %s: %w", s.schema.kind, common.ErrMissingServerID)
	}
	serverID := *rm.ServerID
	s.normalize(remote)

	var out P
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		now := s.now()
		existing, err := s.getByServerID(ctx, tx, serverID)
		if err != nil {
			return err
		}

		if existing == nil && rm.LocalID != "" {
			own, err := s.get(ctx, tx, rm.LocalID)
			switch {
			case errors.Is(err, common.ErrLocalNotFound):
			case err != nil:
				return err
			case own.Meta().ServerID == nil:
				out, err = s.adopt(ctx, tx, own, serverID, remote)
				return err
			}
		}

		var fallback []models.ParentRef
		if existing != nil {
			fallback = parentRefs(existing)
		}
		if err := bindLocalParents(ctx, tx, remote, fallback); err != nil {
			return err
		}
		newData, err := snapshot(remote)
		if err != nil {
			return err
		}

		if existing == nil {
			localID := rm.LocalID
			if localID == "" {
				localID = s.opts.NewID()
			} else if _, err := s.get(ctx, tx, localID); err == nil {
				localID = s.opts.NewID()
			}
			*rm = models.SyncMeta{
				LocalID:      localID,
				ServerID:     &serverID,
				Version:      1,
				SyncStatus:   models.StatusSynced,
				LastSyncedAt: &now,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := s.insert(ctx, tx, remote); err != nil {
				return err
			}
			out = remote
			newData, err = snapshot(remote)
			if err != nil {
				return err
			}
			return s.record(ctx, tx, models.AuditEntry{EntityID: localID, Operation: models.AuditUpsert, NewData: newData})
		}

		em := existing.Meta()
		if em.SyncStatus != models.StatusSynced {
			out = existing
			last, err := audit.NewSQLiteRepository(tx).LastConflict(ctx, s.schema.kind, em.LocalID)
			if err != nil {
				return err
			}
			if last != nil && bytes.Equal(last.NewData, newData) {
				return nil
			}
			oldData, err := snapshot(existing)
			if err != nil {
				return err
			}
			return s.record(ctx, tx, models.AuditEntry{
				EntityID:           em.LocalID,
				Operation:          models.AuditUpsert,
				OldData:            oldData,
				NewData:            newData,
				ConflictDetected:   true,
				ConflictResolution: models.ResolutionLocalPendingKept,
			})
		}

		before, err := businessJSON(existing)
		if err != nil {
			return err
		}
		after, err := businessJSON(remote)
		if err != nil {
			return err
		}

		meta := *em
		meta.LastSyncedAt = &now
		if bytes.Equal(before, after) {
			*em = meta
			out = existing
			return s.write(ctx, tx, existing)
		}

		oldData, err := snapshot(existing)
		if err != nil {
			return err
		}
		meta.UpdatedAt = now
		*rm = meta
		if err := s.write(ctx, tx, remote); err != nil {
			return err
		}
		out = remote
		newData, err = snapshot(remote)
		if err != nil {
			return err
		}
		return s.record(ctx, tx, models.AuditEntry{EntityID: meta.LocalID, Operation: models.AuditUpsert, OldData: oldData, NewData: newData})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// adopt attaches serverID to a row this device created whose create was
// applied remotely without the acknowledgement reaching us. The local state
// stays authoritative and is pushed as an UPDATE.
func (s *Store[T, P]) adopt(ctx context.Context, tx dbx.DBTX, own P, serverID int64, remote P) (P, error) {
	m := own.Meta()
	m.ServerID = &serverID
	now := s.now()
	m.LastSyncedAt = &now

	q := s.queue(tx)
	if err := q.Rebase(ctx, s.schema.kind, m.LocalID); err != nil {
		return nil, err
	}
	entry, err := q.GetByEntity(ctx, s.schema.kind, m.LocalID)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		m.SyncStatus = entry.Operation.PendingStatus()
	} else {
		m.SyncStatus = models.StatusSynced
		m.SyncError = ""
	}
	if err := s.write(ctx, tx, own); err != nil {
		return nil, err
	}

	newData, err := snapshot(remote)
	if err != nil {
		return nil, err
	}
	err = s.record(ctx, tx, models.AuditEntry{EntityID: m.LocalID, Operation: models.AuditUpsert, NewData: newData})
	return own, err
}

// MarkAsSynced records a successful push: the row takes serverID (when
// non-zero), becomes SYNCED and loses its queue entry.
func (s *Store[T, P]) MarkAsSynced(ctx context.Context, localID string, serverID int64) error {
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
		m.SyncStatus = models.StatusSynced
		m.SyncError = ""
		m.LastSyncedAt = &now
		if err := s.write(ctx, tx, p); err != nil {
			return err
		}
		return s.queue(tx).RemoveByEntity(ctx, s.schema.kind, localID)
	})
}

// MarkAsSyncError flags the row ERROR. The queue entry stays where it is.
func (s *Store[T, P]) MarkAsSyncError(ctx context.Context, localID string, message string) error {
	n, err := dbx.RowsAffected(ctx, s.db,
		`UPDATE `+s.schema.kind.Table()+` SET sync_status = ?, sync_error = ? WHERE local_id = ?`,
		models.StatusError, dbx.NullString(message), localID)
	if err != nil {
		return fmt.Errorf("failed to mark %s %s as failed: %w", s.schema.kind, localID, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", s.schema.kind, localID, common.ErrLocalNotFound)
	}
	return nil
}
