package entities

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/ordersync/internal/client/models"
	"github.com/dmitrijs2005/ordersync/internal/dbx"
)

var expenseSchema = schema[models.Expense, *models.Expense]{
	kind:    models.EntityExpense,
	columns: []string{"description", "category", "amount", "spent_at"},
	values: func(e *models.Expense) []any {
		return []any{e.Description, e.Category, e.Amount, dbx.Millis(e.SpentAt)}
	},
	dests: func(e *models.Expense) []any {
		return []any{&e.Description, &e.Category, &e.Amount, dbx.ScanMillis(&e.SpentAt)}
	},
	search:    []string{"description", "category"},
	normalize: func(e *models.Expense) { e.SpentAt = storedTime(e.SpentAt) },
	toRemote:  func(e *models.Expense) any { return e.ToRemote() },
	decodeRemote: func(b []byte) (*models.Expense, error) {
		var r models.RemoteExpense
		if err := json.Unmarshal(b, &r); err != nil {
			return nil, err
		}
		return r.ToLocal(), nil
	},
}

// ExpenseRepository queues every mutation as critical: expenses are money.
type ExpenseRepository struct {
	*Store[models.Expense, *models.Expense]
}

func NewExpenseRepository(db *sql.DB, opts Options) *ExpenseRepository {
	return &ExpenseRepository{newStore(db, expenseSchema, opts)}
}

// Create stores an expense; SpentAt defaults to now.
func (r *ExpenseRepository) Create(ctx context.Context, e models.Expense) (*models.Expense, error) {
	if e.SpentAt.IsZero() {
		e.SpentAt = r.now()
	}
	return r.create(ctx, &e, models.PriorityCritical)
}

func (r *ExpenseRepository) Update(ctx context.Context, localID string, patch models.ExpensePatch) (*models.Expense, error) {
	return r.update(ctx, localID, patch.Apply, models.PriorityCritical)
}

func (r *ExpenseRepository) Delete(ctx context.Context, localID string) (bool, error) {
	return r.delete(ctx, localID, models.PriorityCritical)
}

// Total sums the visible expenses spent in [from, to).
func (r *ExpenseRepository) Total(ctx context.Context, from, to time.Time) (float64, error) {
	var total float64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM despesas
		WHERE sync_status != ? AND spent_at >= ? AND spent_at < ?
	`, models.StatusPendingDelete, dbx.Millis(from), dbx.Millis(to)).Scan(&total)
	return total, err
}
