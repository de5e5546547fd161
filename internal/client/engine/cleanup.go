package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ordersync/internal/client/repositories/metadata"
)

// cleanup purges exhausted queue entries and old audit entries, at most
// once per CleanupInterval. Audit entries are archived first when an
// archiver is set; a failed upload keeps them for the next run.
func (e *Engine) cleanup(ctx context.Context, now time.Time) error {
	last, err := e.meta.GetTime(ctx, metadata.KeyLastCleanup)
	if err != nil {
		return err
	}
	if last != nil && now.Sub(*last) < e.opts.CleanupInterval {
		return nil
	}

	queued, err := e.queue.PurgeTerminal(ctx, now.Add(-e.opts.QueueRetention))
	if err != nil {
		return err
	}

	cutoff := now.Add(-e.opts.AuditRetention)
	if e.opts.Archiver != nil {
		old, err := e.audit.ListOlderThan(ctx, cutoff)
		if err != nil {
			return err
		}
		key, err := e.opts.Archiver.Archive(ctx, old)
		if err != nil {
			return fmt.Errorf("failed to archive audit entries: %w", err)
		}
		if key != "" {
			e.logger.Info(ctx, "audit entries archived", "count", len(old), "key", key)
		}
	}

	audited, err := e.audit.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}

	if err := e.meta.SetTime(ctx, metadata.KeyLastCleanup, now); err != nil {
		return err
	}
	e.logger.Info(ctx, "retention cleanup finished", "queue_entries", queued, "audit_entries", audited)
	return nil
}
