// Package netstate tracks whether the remote is reachable. The monitor holds
// the last known State, notifies subscribers on transitions and can poll a
// Prober on an interval.
package netstate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/dmitrijs2005/ordersync/internal/common"
	"github.com/dmitrijs2005/ordersync/internal/logging"
)

// State is one connectivity observation.
type State struct {
	IsConnected         bool
	IsInternetReachable bool
}

// Online is true only when both the link and the remote are up.
func (s State) Online() bool {
	return s.IsConnected && s.IsInternetReachable
}

func (s State) String() string {
	switch {
	case s.Online():
		return "online"
	case s.IsConnected:
		return "connected, remote unreachable"
	default:
		return "offline"
	}
}

// Prober takes one observation.
type Prober interface {
	Probe(ctx context.Context) State
}

type Monitor struct {
	mu     sync.Mutex
	state  State
	subs   map[int]func(State)
	nextID int
	logger logging.Logger
}

func NewMonitor(initial State, logger logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Monitor{state: initial, subs: make(map[int]func(State)), logger: logger}
}

// State returns the last observation.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) Online() bool {
	return m.State().Online()
}

// Set records s and, when it differs from the previous state, calls every
// subscriber with it. Subscribers run on the caller's goroutine.
func (m *Monitor) Set(s State) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	if prev == s {
		m.mu.Unlock()
		return
	}
	subs := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	m.logger.Info(context.Background(), "connectivity changed", "from", prev.String(), "to", s.String())
	for _, fn := range subs {
		fn(s)
	}
}

// Subscribe registers fn for transitions and returns its unsubscribe func.
func (m *Monitor) Subscribe(fn func(State)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Run probes immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration, p Prober) {
	m.Set(p.Probe(ctx))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Set(p.Probe(ctx))
		}
	}
}

// HealthChecker is the remote health endpoint.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HTTPProber dials the remote host and then asks its health endpoint. A
// failed dial means no link; a health request that fails at the transport
// level means the remote is unreachable. Any HTTP answer, even an error
// status, proves reachability.
type HTTPProber struct {
	baseURL string
	health  HealthChecker
	timeout time.Duration
	dialer  net.Dialer
}

func NewHTTPProber(baseURL string, health HealthChecker, timeout time.Duration) (*HTTPProber, error) {
	if _, err := hostPort(baseURL); err != nil {
		return nil, err
	}
	return &HTTPProber{baseURL: baseURL, health: health, timeout: timeout}, nil
}

func hostPort(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", raw, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("invalid server url %q: no host", raw)
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

func (p *HTTPProber) Probe(ctx context.Context) State {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	addr, _ := hostPort(p.baseURL)
	conn, err := p.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return State{}
	}
	_ = conn.Close()

	err = p.health.Health(ctx)
	if err != nil && (errors.Is(err, common.ErrTransientNetwork) || ctx.Err() != nil) {
		return State{IsConnected: true}
	}
	return State{IsConnected: true, IsInternetReachable: true}
}
