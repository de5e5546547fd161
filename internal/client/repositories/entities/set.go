package entities

import (
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/ordersync/internal/client/models"
	"github.com/dmitrijs2005/ordersync/internal/common"
)

// Set holds one repository per entity type.
type Set struct {
	Clients   *ClientRepository
	Orders    *ServiceOrderRepository
	Vehicles  *VehicleRepository
	LineItems *LineItemRepository
	Expenses  *ExpenseRepository

	byKind map[models.EntityType]Syncable
}

// NewSet panics if a kind in models.AllEntityTypes has no repository.
func NewSet(db *sql.DB, opts Options) *Set {
	s := &Set{
		Clients:   NewClientRepository(db, opts),
		Orders:    NewServiceOrderRepository(db, opts),
		Vehicles:  NewVehicleRepository(db, opts),
		LineItems: NewLineItemRepository(db, opts),
		Expenses:  NewExpenseRepository(db, opts),
	}
	s.byKind = make(map[models.EntityType]Syncable, len(models.AllEntityTypes))
	for _, r := range s.All() {
		s.byKind[r.Kind()] = r
	}
	for _, t := range models.AllEntityTypes {
		if _, ok := s.byKind[t]; !ok {
			panic(fmt.Sprintf("entities: no repository for %q", t))
		}
	}
	return s
}

// All returns the repositories parents first.
func (s *Set) All() []Syncable {
	return []Syncable{s.Clients, s.Orders, s.Vehicles, s.LineItems, s.Expenses}
}

// For returns the repository of kind t.
func (s *Set) For(t models.EntityType) (Syncable, error) {
	if r, ok := s.byKind[t]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: %q", common.ErrUnknownEntityType, t)
}
