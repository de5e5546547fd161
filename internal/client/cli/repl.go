package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	hasSession() bool
	AddClient(ctx context.Context) error
	ListClients(ctx context.Context) error
	AddOrder(ctx context.Context) error
	ListOrders(ctx context.Context) error
	SetOrderStatus(ctx context.Context) error
	AddVehicle(ctx context.Context) error
	ListVehicles(ctx context.Context) error
	AddLineItem(ctx context.Context) error
	AddExpense(ctx context.Context) error
	ListExpenses(ctx context.Context) error
	Search(ctx context.Context) error
	Delete(ctx context.Context) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
	Errors(ctx context.Context) error
	Reset(ctx context.Context) error
	SetToken(ctx context.Context) error
}

const helpText = `Available commands:
  addclient, clients          add / list clients
  addorder, orders            add / list service orders
  orderstatus                 move an order to open|in_progress|finished|cancelled
  addvehicle, vehicles        add a vehicle to an order / list an order's vehicles and items
  additem                     add a line item to a vehicle
  addexpense, expenses        add / list expenses
  search                      search clients and orders
  delete                      delete a record
  sync                        push pending changes now
  status                      show sync status
  errors, reset               list / re-admit entries that ran out of retries
  token                       set the API session token
  exit                        leave the program`

// commandTable maps console command names to their handlers.
func commandTable(a execIface) map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"addclient":   a.AddClient,
		"clients":     a.ListClients,
		"addorder":    a.AddOrder,
		"orders":      a.ListOrders,
		"orderstatus": a.SetOrderStatus,
		"addvehicle":  a.AddVehicle,
		"vehicles":    a.ListVehicles,
		"additem":     a.AddLineItem,
		"addexpense":  a.AddExpense,
		"expenses":    a.ListExpenses,
		"search":      a.Search,
		"delete":      a.Delete,
		"sync":        a.Sync,
		"status":      a.Status,
		"errors":      a.Errors,
		"reset":       a.Reset,
		"token":       a.SetToken,
	}
}

// runREPL starts a simple read–eval–print loop for the ordersync console.
//
// It reads a line from reader, takes the first token as the command and
// dispatches to methods on a. The same reader feeds the commands' own
// prompts. The loop exits on EOF or when the user types "exit" or "quit".
//
// Errors returned by command handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	commands := commandTable(a)

	for {
		printlnFn(fmt.Sprintf("os> %s > ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || strings.TrimSpace(line) == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		switch cmd {
		case "help":
			printlnFn(helpText)
			if !a.hasSession() {
				printlnFn("No session token: changes are kept locally until you run 'token'.")
			}

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			fn, ok := commands[cmd]
			if !ok {
				printlnFn("Unknown command:", cmd)
				continue
			}
			if err := fn(ctx); err != nil {
				printlnFn("error:", err)
			}
		}
	}
}
