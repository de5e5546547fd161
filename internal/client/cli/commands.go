package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/ordersync/internal/client/engine"
	"github.com/dmitrijs2005/ordersync/internal/client/models"
	"github.com/dmitrijs2005/ordersync/internal/common"
)

func (a *App) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func serverID(m *models.SyncMeta) string {
	if m.ServerID == nil {
		return "-"
	}
	return fmt.Sprint(*m.ServerID)
}

func rowStatus(m *models.SyncMeta) string {
	if m.SyncStatus == models.StatusError && m.SyncError != "" {
		return fmt.Sprintf("%s (%s)", m.SyncStatus, m.SyncError)
	}
	return string(m.SyncStatus)
}

// kindAliases are the short names the prompts offer.
var kindAliases = map[string]models.EntityType{
	"order": models.EntityServiceOrder,
	"item":  models.EntityLineItem,
}

func parseKind(s string) (models.EntityType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if k, ok := kindAliases[s]; ok {
		return k, nil
	}
	return models.ParseEntityType(s)
}

// resolve accepts a full local id or an unambiguous prefix of one, the way
// listings print them.
func resolve[P models.Entity](ctx context.Context, list func(context.Context) ([]P, error), input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("id is required")
	}
	rows, err := list(ctx)
	if err != nil {
		return "", err
	}
	var match string
	for _, r := range rows {
		id := r.Meta().LocalID
		if id == input {
			return id, nil
		}
		if strings.HasPrefix(id, input) {
			if match != "" {
				return "", fmt.Errorf("id %q is ambiguous", input)
			}
			match = id
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %q", common.ErrLocalNotFound, input)
	}
	return match, nil
}

func (a *App) AddClient(ctx context.Context) error {
	name, err := GetRequiredText(a.reader, "Name", a.out)
	if err != nil {
		return err
	}
	phone, err := GetSimpleText(a.reader, "Phone", a.out)
	if err != nil {
		return err
	}
	email, err := GetSimpleText(a.reader, "E-mail", a.out)
	if err != nil {
		return err
	}
	document, err := GetSimpleText(a.reader, "Document", a.out)
	if err != nil {
		return err
	}
	address, err := GetSimpleText(a.reader, "Address", a.out)
	if err != nil {
		return err
	}
	notes, err := GetMultiline(a.reader, "Notes", a.out)
	if err != nil {
		return err
	}

	c, err := a.repos.Clients.Create(ctx, models.Client{
		Name:     name,
		Phone:    phone,
		Email:    email,
		Document: document,
		Address:  address,
		Notes:    notes,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Client %s saved (%s)\n", short(c.LocalID), c.SyncStatus)
	return nil
}

func (a *App) ListClients(ctx context.Context) error {
	clients, err := a.repos.Clients.List(ctx)
	if err != nil {
		return err
	}
	a.printClients(clients)
	return nil
}

func (a *App) printClients(clients []*models.Client) {
	if len(clients) == 0 {
		fmt.Fprintln(a.out, "No clients.")
		return
	}
	w := a.table()
	fmt.Fprintln(w, "ID\tSERVER\tNAME\tPHONE\tSTATUS")
	for _, c := range clients {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", short(c.LocalID), serverID(&c.SyncMeta), c.Name, c.Phone, rowStatus(&c.SyncMeta))
	}
	_ = w.Flush()
}

func (a *App) AddOrder(ctx context.Context) error {
	input, err := GetRequiredText(a.reader, "Client ID", a.out)
	if err != nil {
		return err
	}
	clientID, err := resolve(ctx, a.repos.Clients.GetAll, input)
	if err != nil {
		return err
	}
	number, err := GetSimpleText(a.reader, "Order number", a.out)
	if err != nil {
		return err
	}
	description, err := GetSimpleText(a.reader, "Description", a.out)
	if err != nil {
		return err
	}

	o, err := a.repos.Orders.Create(ctx, models.ServiceOrder{
		ClientLocalID: clientID,
		Number:        number,
		Description:   description,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Order %s opened (%s)\n", short(o.LocalID), o.SyncStatus)
	return nil
}

// ListOrders lists the orders of one client, or all orders when no client
// id is given.
func (a *App) ListOrders(ctx context.Context) error {
	input, err := GetSimpleText(a.reader, "Client ID (empty for all)", a.out)
	if err != nil {
		return err
	}

	var orders []*models.ServiceOrder
	if input == "" {
		orders, err = a.repos.Orders.List(ctx)
	} else {
		var clientID string
		clientID, err = resolve(ctx, a.repos.Clients.GetAll, input)
		if err != nil {
			return err
		}
		orders, err = a.repos.Orders.ListByClient(ctx, clientID)
	}
	if err != nil {
		return err
	}
	a.printOrders(orders)
	return nil
}

func (a *App) printOrders(orders []*models.ServiceOrder) {
	if len(orders) == 0 {
		fmt.Fprintln(a.out, "No orders.")
		return
	}
	w := a.table()
	fmt.Fprintln(w, "ID\tSERVER\tNUMBER\tCLIENT\tSTATUS\tOPENED\tSYNC")
	for _, o := range orders {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", short(o.LocalID), serverID(&o.SyncMeta), o.Number,
			short(o.ClientLocalID), o.Status, o.OpenedAt.Local().Format(DateLayout), rowStatus(&o.SyncMeta))
	}
	_ = w.Flush()
}

func (a *App) SetOrderStatus(ctx context.Context) error {
	input, err := GetRequiredText(a.reader, "Order ID", a.out)
	if err != nil {
		return err
	}
	orderID, err := resolve(ctx, a.repos.Orders.GetAll, input)
	if err != nil {
		return err
	}
	raw, err := GetRequiredText(a.reader, "Status (open, in_progress, finished, cancelled)", a.out)
	if err != nil {
		return err
	}

	status := models.OrderStatus(raw)
	switch status {
	case models.OrderOpen, models.OrderInProgress, models.OrderFinished, models.OrderCancelled:
	default:
		return fmt.Errorf("unknown order status %q", raw)
	}

	o, err := a.repos.Orders.SetStatus(ctx, orderID, status)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Order %s is now %s\n", short(o.LocalID), o.Status)
	return nil
}

func (a *App) AddVehicle(ctx context.Context) error {
	input, err := GetRequiredText(a.reader, "Order ID", a.out)
	if err != nil {
		return err
	}
	orderID, err := resolve(ctx, a.repos.Orders.GetAll, input)
	if err != nil {
		return err
	}
	plate, err := GetRequiredText(a.reader, "Plate", a.out)
	if err != nil {
		return err
	}
	brand, err := GetSimpleText(a.reader, "Brand", a.out)
	if err != nil {
		return err
	}
	model, err := GetSimpleText(a.reader, "Model", a.out)
	if err != nil {
		return err
	}
	year, err := GetInt(a.reader, "Year", a.out)
	if err != nil {
		return err
	}
	mileage, err := GetInt(a.reader, "Mileage", a.out)
	if err != nil {
		return err
	}

	v, err := a.repos.Vehicles.Create(ctx, models.Vehicle{
		OrderLocalID: orderID,
		Plate:        strings.ToUpper(plate),
		Brand:        brand,
		Model:        model,
		Year:         year,
		Mileage:      mileage,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Vehicle %s added (%s)\n", short(v.LocalID), v.SyncStatus)
	return nil
}

// ListVehicles prints the vehicles of an order with their line items.
func (a *App) ListVehicles(ctx context.Context) error {
	input, err := GetRequiredText(a.reader, "Order ID", a.out)
	if err != nil {
		return err
	}
	orderID, err := resolve(ctx, a.repos.Orders.GetAll, input)
	if err != nil {
		return err
	}
	vehicles, err := a.repos.Vehicles.ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if len(vehicles) == 0 {
		fmt.Fprintln(a.out, "No vehicles.")
		return nil
	}

	var total float64
	w := a.table()
	for _, v := range vehicles {
		fmt.Fprintf(w, "%s\t%s %s %s\t%d\t%s\n", short(v.LocalID), v.Plate, v.Brand, v.Model, v.Year, rowStatus(&v.SyncMeta))
		items, err := a.repos.LineItems.ListByVehicle(ctx, v.LocalID)
		if err != nil {
			return err
		}
		for _, it := range items {
			fmt.Fprintf(w, "  %s\t%s\t%g x %.2f\t%.2f\n", short(it.LocalID), it.Description, it.Quantity, it.UnitPrice, it.Subtotal())
			total += it.Subtotal()
		}
	}
	fmt.Fprintf(w, "\tTotal\t\t%.2f\n", total)
	return w.Flush()
}

func (a *App) AddLineItem(ctx context.Context) error {
	input, err := GetRequiredText(a.reader, "Vehicle ID", a.out)
	if err != nil {
		return err
	}
	vehicleID, err := resolve(ctx, a.repos.Vehicles.GetAll, input)
	if err != nil {
		return err
	}
	description, err := GetRequiredText(a.reader, "Description", a.out)
	if err != nil {
		return err
	}
	quantity, err := GetFloat(a.reader, "Quantity", a.out)
	if err != nil {
		return err
	}
	if quantity == 0 {
		quantity = 1
	}
	price, err := GetFloat(a.reader, "Unit price", a.out)
	if err != nil {
		return err
	}

	it, err := a.repos.LineItems.Create(ctx, models.LineItem{
		VehicleLocalID: vehicleID,
		Description:    description,
		Quantity:       quantity,
		UnitPrice:      price,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Item %s added, subtotal %.2f\n", short(it.LocalID), it.Subtotal())
	return nil
}

func (a *App) AddExpense(ctx context.Context) error {
	description, err := GetRequiredText(a.reader, "Description", a.out)
	if err != nil {
		return err
	}
	category, err := GetSimpleText(a.reader, "Category", a.out)
	if err != nil {
		return err
	}
	amount, err := GetFloat(a.reader, "Amount", a.out)
	if err != nil {
		return err
	}
	spentAt, err := GetDate(a.reader, "Date (YYYY-MM-DD or e.g. 'yesterday', empty for today)", a.out, a.now())
	if err != nil {
		return err
	}

	e, err := a.repos.Expenses.Create(ctx, models.Expense{
		Description: description,
		Category:    category,
		Amount:      amount,
		SpentAt:     spentAt,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Expense %s saved (%s)\n", short(e.LocalID), e.SyncStatus)
	return nil
}

// ListExpenses prints all expenses followed by the current month's total.
func (a *App) ListExpenses(ctx context.Context) error {
	expenses, err := a.repos.Expenses.List(ctx)
	if err != nil {
		return err
	}
	if len(expenses) == 0 {
		fmt.Fprintln(a.out, "No expenses.")
		return nil
	}

	w := a.table()
	fmt.Fprintln(w, "ID\tDATE\tCATEGORY\tDESCRIPTION\tAMOUNT\tSYNC")
	for _, e := range expenses {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\n", short(e.LocalID), e.SpentAt.Local().Format(DateLayout),
			e.Category, e.Description, e.Amount, rowStatus(&e.SyncMeta))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	now := a.now().Local()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.Local)
	total, err := a.repos.Expenses.Total(ctx, from, from.AddDate(0, 1, 0))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Total for %s: %.2f\n", from.Format("2006-01"), total)
	return nil
}

func (a *App) Search(ctx context.Context) error {
	term, err := GetSimpleText(a.reader, "Search for", a.out)
	if err != nil {
		return err
	}
	clients, err := a.repos.Clients.Search(ctx, term)
	if err != nil {
		return err
	}
	orders, err := a.repos.Orders.Search(ctx, term)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Clients:")
	a.printClients(clients)
	fmt.Fprintln(a.out, "Orders:")
	a.printOrders(orders)
	return nil
}

// Delete removes a record of any kind. Synced rows are hidden until the
// remote confirms the delete.
func (a *App) Delete(ctx context.Context) error {
	raw, err := GetRequiredText(a.reader, "Kind (client, order, vehicle, item, expense)", a.out)
	if err != nil {
		return err
	}
	input, err := GetRequiredText(a.reader, "ID", a.out)
	if err != nil {
		return err
	}

	kind, err := parseKind(raw)
	if err != nil {
		return err
	}

	var (
		id  string
		del func(context.Context, string) (bool, error)
	)
	switch kind {
	case models.EntityClient:
		id, err = resolve(ctx, a.repos.Clients.GetAll, input)
		del = a.repos.Clients.Delete
	case models.EntityServiceOrder:
		id, err = resolve(ctx, a.repos.Orders.GetAll, input)
		del = a.repos.Orders.Delete
	case models.EntityVehicle:
		id, err = resolve(ctx, a.repos.Vehicles.GetAll, input)
		del = a.repos.Vehicles.Delete
	case models.EntityLineItem:
		id, err = resolve(ctx, a.repos.LineItems.GetAll, input)
		del = a.repos.LineItems.Delete
	case models.EntityExpense:
		id, err = resolve(ctx, a.repos.Expenses.GetAll, input)
		del = a.repos.Expenses.Delete
	}
	if err != nil {
		return err
	}

	ok, err := del(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(a.out, "Nothing to delete.")
		return nil
	}
	fmt.Fprintf(a.out, "Deleted %s %s\n", raw, short(id))
	return nil
}

// Sync pushes every pending change now, ignoring retry backoff.
func (a *App) Sync(ctx context.Context) error {
	res, err := a.engine.ForceSync(ctx)
	if err != nil {
		return err
	}
	if res.Skipped {
		switch res.Reason {
		case engine.ReasonOffline:
			fmt.Fprintln(a.out, "Offline: changes stay queued until the backend is reachable.")
		case engine.ReasonInProgress:
			fmt.Fprintln(a.out, "A sync is already running.")
		default:
			fmt.Fprintf(a.out, "Sync skipped: %s\n", res.Reason)
		}
		return nil
	}
	fmt.Fprintf(a.out, "Processed %d: %d synced, %d failed, %d deferred, %d gave up\n",
		res.Processed, res.Succeeded, res.Failed, res.Deferred, res.Terminal)
	if res.Reason == engine.ReasonUnauthorized {
		fmt.Fprintln(a.out, "The backend rejected the session token; run 'token' to set a new one.")
	}
	return nil
}

func (a *App) Status(ctx context.Context) error {
	st, err := a.engine.Status(ctx)
	if err != nil {
		return err
	}
	last := "never"
	if st.LastSyncTime != nil {
		last = st.LastSyncTime.Local().Format(time.DateTime)
	}
	w := a.table()
	fmt.Fprintf(w, "Connectivity\t%s\n", a.monitor.State())
	fmt.Fprintf(w, "Syncing\t%t\n", st.IsSyncing)
	fmt.Fprintf(w, "Pending\t%d\n", st.PendingCount)
	fmt.Fprintf(w, "Failed\t%d\n", st.ErrorCount)
	fmt.Fprintf(w, "Last sync\t%s\n", last)
	if uid := a.session.UserID(); uid != "" {
		fmt.Fprintf(w, "User\t%s\n", uid)
	}
	return w.Flush()
}

// Errors lists queue entries that exhausted their retries.
func (a *App) Errors(ctx context.Context) error {
	entries, err := a.engine.Errors(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No failed entries.")
		return nil
	}
	w := a.table()
	fmt.Fprintln(w, "QUEUE\tKIND\tID\tOPERATION\tATTEMPTS\tERROR")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d/%d\t%s\n", e.ID, e.EntityType, short(e.EntityLocalID),
			e.Operation, e.Attempts, e.MaxAttempts, e.ErrorMessage)
	}
	return w.Flush()
}

// Reset re-admits failed entries so the next pass retries them.
func (a *App) Reset(ctx context.Context) error {
	n, err := a.engine.ResetAttempts(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d entries re-queued\n", n)
	return nil
}

// SetToken replaces the session token. An empty answer signs out.
func (a *App) SetToken(ctx context.Context) error {
	token, err := GetSecret("API token", a.out)
	if err != nil {
		return err
	}
	if token == "" {
		a.session.Clear()
		fmt.Fprintln(a.out, "Session cleared.")
		return nil
	}
	if err := a.session.SetToken(token); err != nil {
		if errors.Is(err, common.ErrInvalidToken) {
			return fmt.Errorf("token rejected: %w", err)
		}
		return err
	}
	a.logger.Info(ctx, "session token updated", "user_id", a.session.UserID())
	fmt.Fprintf(a.out, "Signed in as %s\n", a.session.UserID())
	if a.engine.IsOnline() {
		return a.Sync(ctx)
	}
	return nil
}
