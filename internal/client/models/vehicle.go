package models

// Vehicle is a vehicle checked in under a service order.
type Vehicle struct {
	SyncMeta
	OrderLocalID  string `json:"order_local_id"`
	OrderServerID *int64 `json:"order_server_id,omitempty"`
	Plate         string `json:"plate"`
	Brand         string `json:"brand"`
	Model         string `json:"model"`
	Year          int    `json:"year"`
	Mileage       int    `json:"mileage"`
}

func (*Vehicle) Kind() EntityType { return EntityVehicle }

func (v *Vehicle) ParentRefs() []ParentRef {
	return []ParentRef{{Type: EntityServiceOrder, LocalID: v.OrderLocalID, ServerID: v.OrderServerID}}
}

func (v *Vehicle) BindParent(t EntityType, serverID int64) {
	if t == EntityServiceOrder {
		v.OrderServerID = &serverID
	}
}

func (v *Vehicle) BindParentLocal(t EntityType, localID string) {
	if t == EntityServiceOrder {
		v.OrderLocalID = localID
	}
}

type VehiclePatch struct {
	Plate   *string
	Brand   *string
	Model   *string
	Year    *int
	Mileage *int
}

func (p VehiclePatch) Apply(v *Vehicle) {
	set(&v.Plate, p.Plate)
	set(&v.Brand, p.Brand)
	set(&v.Model, p.Model)
	set(&v.Year, p.Year)
	set(&v.Mileage, p.Mileage)
}
