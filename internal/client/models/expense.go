package models

import "time"

// Expense is a workshop cost entry. Expenses have no parents.
type Expense struct {
	SyncMeta
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Amount      float64   `json:"amount"`
	SpentAt     time.Time `json:"spent_at"`
}

func (*Expense) Kind() EntityType { return EntityExpense }

type ExpensePatch struct {
	Description *string
	Category    *string
	Amount      *float64
	SpentAt     *time.Time
}

func (p ExpensePatch) Apply(e *Expense) {
	set(&e.Description, p.Description)
	set(&e.Category, p.Category)
	set(&e.Amount, p.Amount)
	set(&e.SpentAt, p.SpentAt)
}
