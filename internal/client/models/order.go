package models

import "time"

// OrderStatus is the business state of a service order.
type OrderStatus string

const (
	OrderOpen       OrderStatus = "open"
	OrderInProgress OrderStatus = "in_progress"
	OrderFinished   OrderStatus = "finished"
	OrderCancelled  OrderStatus = "cancelled"
)

// Final reports whether the order reached a closing state.
func (s OrderStatus) Final() bool {
	return s == OrderFinished || s == OrderCancelled
}

// ServiceOrder is a work order opened for a client.
type ServiceOrder struct {
	SyncMeta
	Number         string      `json:"number"`
	ClientLocalID  string      `json:"client_local_id"`
	ClientServerID *int64      `json:"client_server_id,omitempty"`
	Status         OrderStatus `json:"status"`
	Description    string      `json:"description"`
	Total          float64     `json:"total"`
	OpenedAt       time.Time   `json:"opened_at"`
	ClosedAt       *time.Time  `json:"closed_at,omitempty"`
}

func (*ServiceOrder) Kind() EntityType { return EntityServiceOrder }

func (o *ServiceOrder) ParentRefs() []ParentRef {
	return []ParentRef{{Type: EntityClient, LocalID: o.ClientLocalID, ServerID: o.ClientServerID}}
}

func (o *ServiceOrder) BindParent(t EntityType, serverID int64) {
	if t == EntityClient {
		o.ClientServerID = &serverID
	}
}

func (o *ServiceOrder) BindParentLocal(t EntityType, localID string) {
	if t == EntityClient {
		o.ClientLocalID = localID
	}
}

// ServiceOrderPatch is a merge patch: nil fields are left unchanged.
type ServiceOrderPatch struct {
	Number      *string
	Status      *OrderStatus
	Description *string
	Total       *float64
	ClosedAt    *time.Time
}

func (p ServiceOrderPatch) Apply(o *ServiceOrder) {
	set(&o.Number, p.Number)
	set(&o.Status, p.Status)
	set(&o.Description, p.Description)
	set(&o.Total, p.Total)
	if p.ClosedAt != nil {
		closed := *p.ClosedAt
		o.ClosedAt = &closed
	}
}

// Finalizes reports whether applying p closes the order.
func (p ServiceOrderPatch) Finalizes() bool {
	return p.Status != nil && p.Status.Final()
}
