package engine

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/ordersync/internal/client/models"
)

// ResetAttempts re-admits every exhausted queue entry: attempts go back to
// zero, the entity leaves ERROR and the reset is audited. When online a
// pass is triggered. It returns the number of entries reset.
func (e *Engine) ResetAttempts(ctx context.Context) (int, error) {
	exhausted, err := e.queue.GetErrors(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, entry := range exhausted {
		if _, err := e.queue.ResetAttempts(ctx, entry.ID); err != nil {
			return n, err
		}
		if repo, err := e.repos.For(entry.EntityType); err == nil {
			if err := repo.ResetError(ctx, entry.EntityLocalID); err != nil {
				return n, err
			}
		}

		data, _ := json.Marshal(map[string]any{
			"operation":      entry.Operation,
			"attempts":       entry.Attempts,
			"previous_error": entry.ErrorMessage,
		})
		if _, err := e.audit.Record(ctx, &models.AuditEntry{
			EntityType:         entry.EntityType,
			EntityID:           entry.EntityLocalID,
			Operation:          models.AuditRetryReset,
			OldData:            data,
			ConflictResolution: models.ResolutionManualReset,
			UserID:             e.opts.UserID(),
		}); err != nil {
			return n, err
		}
		n++
	}

	if n > 0 {
		e.logger.Info(ctx, "exhausted entries re-admitted", "count", n)
		e.notify(ctx)
		if e.online.Load() {
			e.trigger()
		}
	}
	return n, nil
}

// Errors lists the exhausted queue entries, newest failure first.
func (e *Engine) Errors(ctx context.Context) ([]models.QueueEntry, error) {
	return e.queue.GetErrors(ctx)
}
