// Package metadata persists small key/value facts about the local store:
// schema version, last successful sync, last retention cleanup.
package metadata

import (
	"context"
	"time"
)

// Well-known keys.
const (
	KeyDBVersion   = "db_version"
	KeyLastSync    = "last_sync"
	KeyLastCleanup = "last_cleanup"
)

type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	GetTime(ctx context.Context, key string) (*time.Time, error)
	SetTime(ctx context.Context, key string, t time.Time) error
}
