package models

// LineItem is a part or service billed against a vehicle.
type LineItem struct {
	SyncMeta
	VehicleLocalID  string  `json:"vehicle_local_id"`
	VehicleServerID *int64  `json:"vehicle_server_id,omitempty"`
	Description     string  `json:"description"`
	Quantity        float64 `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
}

func (*LineItem) Kind() EntityType { return EntityLineItem }

func (l *LineItem) Subtotal() float64 { return l.Quantity * l.UnitPrice }

func (l *LineItem) ParentRefs() []ParentRef {
	return []ParentRef{{Type: EntityVehicle, LocalID: l.VehicleLocalID, ServerID: l.VehicleServerID}}
}

func (l *LineItem) BindParent(t EntityType, serverID int64) {
	if t == EntityVehicle {
		l.VehicleServerID = &serverID
	}
}

func (l *LineItem) BindParentLocal(t EntityType, localID string) {
	if t == EntityVehicle {
		l.VehicleLocalID = localID
	}
}

type LineItemPatch struct {
	Description *string
	Quantity    *float64
	UnitPrice   *float64
}

func (p LineItemPatch) Apply(l *LineItem) {
	set(&l.Description, p.Description)
	set(&l.Quantity, p.Quantity)
	set(&l.UnitPrice, p.UnitPrice)
}
