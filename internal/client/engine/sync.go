package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/ordersync/internal/client/models"
	"github.com/dmitrijs2005/ordersync/internal/client/repositories/entities"
	"github.com/dmitrijs2005/ordersync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/ordersync/internal/client/repositories/queue"
	"github.com/dmitrijs2005/ordersync/internal/common"
)

// Reasons a pass did not run or stopped early.
const (
	ReasonOffline      = "offline"
	ReasonInProgress   = "already_syncing"
	ReasonUnauthorized = "unauthorized"
	ReasonCancelled    = "cancelled"
)

// ResolutionNotRetryable labels entries failed without spending retries.
const ResolutionNotRetryable = "not_retryable"

// SyncResult summarizes one pass.
type SyncResult struct {
	Skipped bool
	// Reason is set when the pass was skipped or stopped early.
	Reason string

	Processed int
	Succeeded int
	// Failed counts attempts that failed; Terminal those that exhausted
	// their entry.
	Failed   int
	Terminal int
	// Deferred counts entries waiting for a parent.
	Deferred int
}

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeSkipped
	outcomeDeferred
	outcomeFailed
	outcomeTerminal
	outcomeUnauthorized
	outcomeCancelled
)

// SyncAll runs one pass over the entries whose backoff elapsed.
func (e *Engine) SyncAll(ctx context.Context) (SyncResult, error) {
	return e.run(ctx, false)
}

// ForceSync runs a pass at once on operator request. Backoff windows are
// ignored; exhausted entries still need ResetAttempts.
func (e *Engine) ForceSync(ctx context.Context) (SyncResult, error) {
	e.logger.Info(ctx, "forced sync requested")
	return e.run(ctx, true)
}

func (e *Engine) run(ctx context.Context, force bool) (SyncResult, error) {
	if !e.online.Load() {
		return SyncResult{Skipped: true, Reason: ReasonOffline}, nil
	}
	if !e.syncing.CompareAndSwap(false, true) {
		return SyncResult{Skipped: true, Reason: ReasonInProgress}, nil
	}
	e.notify(ctx)
	defer func() {
		e.syncing.Store(false)
		e.notify(ctx)
	}()

	pending, err := e.queue.GetPending(ctx, 0)
	if err != nil {
		return SyncResult{}, err
	}
	ready := pending
	if !force {
		ready = queue.Ready(pending, e.opts.Now(), e.opts.InitialRetryDelay)
	}

	var res SyncResult
	for _, entry := range ready {
		if ctx.Err() != nil {
			res.Reason = ReasonCancelled
			break
		}
		res.Processed++
		switch e.process(ctx, entry) {
		case outcomeSucceeded:
			res.Succeeded++
		case outcomeSkipped:
			res.Processed--
		case outcomeDeferred:
			res.Deferred++
		case outcomeFailed:
			res.Failed++
		case outcomeTerminal:
			res.Failed++
			res.Terminal++
		case outcomeUnauthorized:
			res.Processed--
			res.Reason = ReasonUnauthorized
		case outcomeCancelled:
			res.Processed--
			res.Reason = ReasonCancelled
		}
		if res.Reason != "" {
			break
		}
	}

	now := e.opts.Now()
	if err := e.meta.SetTime(context.WithoutCancel(ctx), metadata.KeyLastSync, now); err != nil {
		return res, err
	}
	if res.Reason == ReasonCancelled {
		e.logger.Info(ctx, "sync pass cancelled", "succeeded", res.Succeeded, "remaining", len(ready)-res.Processed)
		return res, nil
	}
	if err := e.cleanup(ctx, now); err != nil {
		e.logger.Warn(ctx, "retention cleanup failed", "error", err)
	}

	e.logger.Info(ctx, "sync pass finished",
		"ready", len(ready), "succeeded", res.Succeeded, "failed", res.Failed,
		"terminal", res.Terminal, "deferred", res.Deferred)
	return res, nil
}

// process pushes one entry. Failures never escape: they are recorded against
// the entry and reported as an outcome.
//
// Only the remote call observes ctx. Local bookkeeping runs on a detached
// context so a result the remote already applied is never lost.
func (e *Engine) process(ctx context.Context, entry models.QueueEntry) outcome {
	log := e.logger.With("entity", entry.EntityType, "local_id", entry.EntityLocalID, "op", entry.Operation)
	local := context.WithoutCancel(ctx)

	repo, err := e.repos.For(entry.EntityType)
	if err != nil {
		return e.fail(local, nil, entry, err)
	}

	push, err := repo.PreparePush(local, entry)
	if err != nil {
		return e.fail(local, repo, entry, err)
	}
	resource := push.Kind.Resource()

	remoteFailed := func(err error) outcome {
		if ctx.Err() != nil {
			if rerr := repo.ReleasePush(local, entry.EntityLocalID); rerr != nil {
				log.Warn(local, "failed to release entity", "error", rerr)
			}
			log.Info(local, "push interrupted", "error", err)
			return outcomeCancelled
		}
		return e.fail(local, repo, entry, err)
	}

	switch push.Operation {
	case models.OpCreate:
		serverID, err := e.remote.Create(ctx, resource, push.LocalID, push.Body)
		if err != nil {
			return remoteFailed(err)
		}
		err = repo.AcknowledgePush(local, push.LocalID, serverID, push.Version)
		if errors.Is(err, common.ErrLocalNotFound) {
			// Deleted locally while the create was in flight.
			log.Info(local, "removing orphaned remote record", "server_id", serverID)
			if err := e.remote.Delete(local, resource, serverID); err != nil {
				log.Warn(local, "failed to remove orphaned remote record", "server_id", serverID, "error", err)
			}
			return outcomeSucceeded
		}
		if err != nil {
			return e.fail(local, repo, entry, err)
		}
		log.Debug(local, "created", "server_id", serverID)

	case models.OpUpdate:
		if err := e.remote.Update(ctx, resource, push.ServerID, push.Body); err != nil {
			return remoteFailed(err)
		}
		if err := repo.AcknowledgePush(local, push.LocalID, push.ServerID, push.Version); err != nil && !errors.Is(err, common.ErrLocalNotFound) {
			return e.fail(local, repo, entry, err)
		}
		log.Debug(local, "updated", "server_id", push.ServerID)

	case models.OpDelete:
		if err := e.remote.Delete(ctx, resource, push.ServerID); err != nil {
			return remoteFailed(err)
		}
		if err := repo.AcknowledgeDelete(local, push.LocalID); err != nil {
			return e.fail(local, repo, entry, err)
		}
		log.Debug(local, "deleted", "server_id", push.ServerID)
	}
	return outcomeSucceeded
}

// notRetryable are consistency failures another attempt cannot fix.
func notRetryable(err error) bool {
	return errors.Is(err, common.ErrLocalNotFound) ||
		errors.Is(err, common.ErrMissingServerID) ||
		errors.Is(err, common.ErrInvalidPayload) ||
		errors.Is(err, common.ErrUnknownEntityType) ||
		errors.Is(err, common.ErrUnknownOperation)
}

func (e *Engine) fail(ctx context.Context, repo entities.Syncable, entry models.QueueEntry, cause error) outcome {
	log := e.logger.With("entity", entry.EntityType, "local_id", entry.EntityLocalID, "op", entry.Operation)
	msg := cause.Error()

	release := func() {
		if repo == nil {
			return
		}
		if err := repo.ReleasePush(ctx, entry.EntityLocalID); err != nil {
			log.Warn(ctx, "failed to release entity", "error", err)
		}
	}

	switch {
	case errors.Is(cause, entities.ErrNothingToPush):
		return outcomeSkipped

	case errors.Is(cause, common.ErrDependencyNotReady):
		if _, err := e.queue.MarkDeferred(ctx, entry.ID, msg); err != nil {
			log.Warn(ctx, "failed to defer queue entry", "error", err)
		}
		release()
		log.Debug(ctx, "waiting for parent", "reason", msg)
		return outcomeDeferred

	case errors.Is(cause, common.ErrUnauthorized):
		release()
		log.Warn(ctx, "remote refused the session, stopping pass", "error", msg)
		return outcomeUnauthorized

	case notRetryable(cause):
		updated, err := e.queue.MarkTerminal(ctx, entry.ID, msg)
		if err != nil {
			log.Warn(ctx, "failed to exhaust queue entry", "error", err)
		}
		e.markError(ctx, repo, entry, updated, msg, ResolutionNotRetryable)
		log.Error(ctx, "sync failed permanently", "error", msg)
		return outcomeTerminal
	}

	updated, err := e.queue.MarkAttempt(ctx, entry.ID, false, msg)
	if err != nil {
		log.Warn(ctx, "failed to record attempt", "error", err)
		release()
		return outcomeFailed
	}
	if updated.Terminal() {
		e.markError(ctx, repo, entry, updated, msg, models.ResolutionRetriesExhausted)
		log.Error(ctx, "sync retries exhausted", "attempts", updated.Attempts, "error", msg)
		return outcomeTerminal
	}
	release()
	log.Warn(ctx, "sync attempt failed", "attempts", updated.Attempts, "max_attempts", updated.MaxAttempts, "error", msg)
	return outcomeFailed
}

// markError flags the entity ERROR and writes its audit entry. The flag is
// a data-quality signal, not a conflict.
func (e *Engine) markError(ctx context.Context, repo entities.Syncable, entry models.QueueEntry, updated *models.QueueEntry, msg, resolution string) {
	if repo != nil {
		if err := repo.MarkAsSyncError(ctx, entry.EntityLocalID, msg); err != nil && !errors.Is(err, common.ErrLocalNotFound) {
			e.logger.Warn(ctx, "failed to flag entity", "entity", entry.EntityType, "local_id", entry.EntityLocalID, "error", err)
		}
	}

	attempts := entry.Attempts + 1
	if updated != nil {
		attempts = updated.Attempts
	}
	data, _ := json.Marshal(map[string]any{
		"operation": entry.Operation,
		"attempts":  attempts,
		"error":     msg,
	})
	_, err := e.audit.Record(ctx, &models.AuditEntry{
		EntityType:         entry.EntityType,
		EntityID:           entry.EntityLocalID,
		Operation:          models.AuditSyncError,
		NewData:            data,
		ConflictDetected:   false,
		ConflictResolution: resolution,
		UserID:             e.opts.UserID(),
	})
	if err != nil {
		e.logger.Warn(ctx, "failed to audit sync error", "error", fmt.Errorf("%s %s: %w", entry.EntityType, entry.EntityLocalID, err))
	}
}
