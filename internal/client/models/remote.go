package models

import "time"

// The Remote* types are the REST wire shapes. Parents are referenced by
// server id; LocalID travels on create as the idempotency token.

type RemoteClient struct {
	ID       int64  `json:"id,omitempty"`
	LocalID  string `json:"localId,omitempty"`
	Name     string `json:"nome"`
	Phone    string `json:"telefone"`
	Email    string `json:"email"`
	Document string `json:"documento"`
	Address  string `json:"endereco"`
	Notes    string `json:"observacoes"`
}

func (c *Client) ToRemote() RemoteClient {
	return RemoteClient{
		LocalID:  c.LocalID,
		Name:     c.Name,
		Phone:    c.Phone,
		Email:    c.Email,
		Document: c.Document,
		Address:  c.Address,
		Notes:    c.Notes,
	}
}

func (r RemoteClient) ToLocal() *Client {
	return &Client{
		SyncMeta: SyncMeta{LocalID: r.LocalID, ServerID: serverID(r.ID)},
		Name:     r.Name,
		Phone:    r.Phone,
		Email:    r.Email,
		Document: r.Document,
		Address:  r.Address,
		Notes:    r.Notes,
	}
}

type RemoteServiceOrder struct {
	ID          int64       `json:"id,omitempty"`
	LocalID     string      `json:"localId,omitempty"`
	Number      string      `json:"numero"`
	ClientID    int64       `json:"clienteId"`
	Status      OrderStatus `json:"status"`
	Description string      `json:"descricao"`
	Total       float64     `json:"valorTotal"`
	OpenedAt    time.Time   `json:"dataAbertura"`
	ClosedAt    *time.Time  `json:"dataFechamento,omitempty"`
}

func (o *ServiceOrder) ToRemote() RemoteServiceOrder {
	return RemoteServiceOrder{
		LocalID:     o.LocalID,
		Number:      o.Number,
		ClientID:    deref(o.ClientServerID),
		Status:      o.Status,
		Description: o.Description,
		Total:       o.Total,
		OpenedAt:    o.OpenedAt,
		ClosedAt:    o.ClosedAt,
	}
}

func (r RemoteServiceOrder) ToLocal() *ServiceOrder {
	return &ServiceOrder{
		SyncMeta:       SyncMeta{LocalID: r.LocalID, ServerID: serverID(r.ID)},
		Number:         r.Number,
		ClientServerID: serverID(r.ClientID),
		Status:         r.Status,
		Description:    r.Description,
		Total:          r.Total,
		OpenedAt:       r.OpenedAt,
		ClosedAt:       r.ClosedAt,
	}
}

type RemoteVehicle struct {
	ID      int64  `json:"id,omitempty"`
	LocalID string `json:"localId,omitempty"`
	OrderID int64  `json:"ordemServicoId"`
	Plate   string `json:"placa"`
	Brand   string `json:"marca"`
	Model   string `json:"modelo"`
	Year    int    `json:"ano"`
	Mileage int    `json:"quilometragem"`
}

func (v *Vehicle) ToRemote() RemoteVehicle {
	return RemoteVehicle{
		LocalID: v.LocalID,
		OrderID: deref(v.OrderServerID),
		Plate:   v.Plate,
		Brand:   v.Brand,
		Model:   v.Model,
		Year:    v.Year,
		Mileage: v.Mileage,
	}
}

func (r RemoteVehicle) ToLocal() *Vehicle {
	return &Vehicle{
		SyncMeta:      SyncMeta{LocalID: r.LocalID, ServerID: serverID(r.ID)},
		OrderServerID: serverID(r.OrderID),
		Plate:         r.Plate,
		Brand:         r.Brand,
		Model:         r.Model,
		Year:          r.Year,
		Mileage:       r.Mileage,
	}
}

type RemoteLineItem struct {
	ID          int64   `json:"id,omitempty"`
	LocalID     string  `json:"localId,omitempty"`
	VehicleID   int64   `json:"veiculoId"`
	Description string  `json:"descricao"`
	Quantity    float64 `json:"quantidade"`
	UnitPrice   float64 `json:"valorUnitario"`
}

func (l *LineItem) ToRemote() RemoteLineItem {
	return RemoteLineItem{
		LocalID:     l.LocalID,
		VehicleID:   deref(l.VehicleServerID),
		Description: l.Description,
		Quantity:    l.Quantity,
		UnitPrice:   l.UnitPrice,
	}
}

func (r RemoteLineItem) ToLocal() *LineItem {
	return &LineItem{
		SyncMeta:        SyncMeta{LocalID: r.LocalID, ServerID: serverID(r.ID)},
		VehicleServerID: serverID(r.VehicleID),
		Description:     r.Description,
		Quantity:        r.Quantity,
		UnitPrice:       r.UnitPrice,
	}
}

type RemoteExpense struct {
	ID          int64     `json:"id,omitempty"`
	LocalID     string    `json:"localId,omitempty"`
	Description string    `json:"descricao"`
	Category    string    `json:"categoria"`
	Amount      float64   `json:"valor"`
	SpentAt     time.Time `json:"data"`
}

func (e *Expense) ToRemote() RemoteExpense {
	return RemoteExpense{
		LocalID:     e.LocalID,
		Description: e.Description,
		Category:    e.Category,
		Amount:      e.Amount,
		SpentAt:     e.SpentAt,
	}
}

func (r RemoteExpense) ToLocal() *Expense {
	return &Expense{
		SyncMeta:    SyncMeta{LocalID: r.LocalID, ServerID: serverID(r.ID)},
		Description: r.Description,
		Category:    r.Category,
		Amount:      r.Amount,
		SpentAt:     r.SpentAt,
	}
}

func serverID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
