// Package models defines the locally persisted entity model of ordersync:
// business entities with their synchronization metadata, sync queue entries
// and audit entries.
package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/ordersync/internal/common"
)

// EntityType names a business entity kind.
type EntityType string

const (
	EntityClient       EntityType = "client"
	EntityServiceOrder EntityType = "service_order"
	EntityVehicle      EntityType = "vehicle"
	EntityLineItem     EntityType = "line_item"
	EntityExpense      EntityType = "expense"
)

// AllEntityTypes lists every kind, parents before children.
var AllEntityTypes = []EntityType{
	EntityClient,
	EntityServiceOrder,
	EntityVehicle,
	EntityLineItem,
	EntityExpense,
}

type entityDescriptor struct {
	table    string
	resource string
	parents  []EntityType
}

var descriptors = map[EntityType]entityDescriptor{
	EntityClient:       {table: "clientes", resource: "clientes"},
	EntityServiceOrder: {table: "ordens_servico", resource: "ordens-servico", parents: []EntityType{EntityClient}},
	EntityVehicle:      {table: "veiculos_os", resource: "veiculos", parents: []EntityType{EntityServiceOrder}},
	EntityLineItem:     {table: "pecas_os", resource: "pecas", parents: []EntityType{EntityVehicle}},
	EntityExpense:      {table: "despesas", resource: "despesas"},
}

// ParseEntityType validates s against the known kinds.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if _, ok := descriptors[t]; !ok {
		return "", fmt.Errorf("%w: %q", common.ErrUnknownEntityType, s)
	}
	return t, nil
}

// Table is the local table holding rows of this kind.
func (t EntityType) Table() string { return descriptors[t].table }

// Resource is the REST collection name of this kind.
func (t EntityType) Resource() string { return descriptors[t].resource }

// Parents returns the kinds that must reach the remote before this one.
func (t EntityType) Parents() []EntityType { return descriptors[t].parents }

// SyncStatus is the per-row synchronization state.
type SyncStatus string

const (
	StatusSynced        SyncStatus = "SYNCED"
	StatusPendingCreate SyncStatus = "PENDING_CREATE"
	StatusPendingUpdate SyncStatus = "PENDING_UPDATE"
	StatusPendingDelete SyncStatus = "PENDING_DELETE"
	StatusSyncing       SyncStatus = "SYNCING"
	StatusError         SyncStatus = "ERROR"
)

// Operation is a queued remote mutation.
type Operation string

const (
	OpCreate Operation = "CREATE"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// PendingStatus is the row status that corresponds to a queued operation.
func (o Operation) PendingStatus() SyncStatus {
	switch o {
	case OpCreate:
		return StatusPendingCreate
	case OpDelete:
		return StatusPendingDelete
	default:
		return StatusPendingUpdate
	}
}

// Priority orders queue draining; lower drains first.
type Priority int

const (
	PriorityCritical Priority = 1
	PriorityHigh     Priority = 3
	PriorityNormal   Priority = 5
	PriorityLow      Priority = 10
)

// MaxAttempts is the retry ceiling for an entry enqueued at p.
func (p Priority) MaxAttempts() int {
	switch {
	case p <= PriorityCritical:
		return 5
	case p <= PriorityHigh:
		return 4
	default:
		return 3
	}
}

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// SyncMeta is the synchronization metadata every entity row carries.
type SyncMeta struct {
	LocalID      string     `json:"local_id"`
	ServerID     *int64     `json:"server_id,omitempty"`
	Version      int64      `json:"version"`
	SyncStatus   SyncStatus `json:"sync_status"`
	SyncError    string     `json:"sync_error,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Meta lets generic code reach the metadata of any embedding entity.
func (m *SyncMeta) Meta() *SyncMeta { return m }

// Entity is implemented by every persisted business type.
type Entity interface {
	Meta() *SyncMeta
	Kind() EntityType
}

// ParentRef points at the row a child depends on.
type ParentRef struct {
	Type     EntityType
	LocalID  string
	ServerID *int64
}
