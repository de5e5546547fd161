package netstate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/ordersync/internal/client/api"
)

func TestState_Online(t *testing.T) {
	assert.True(t, State{IsConnected: true, IsInternetReachable: true}.Online())
	assert.False(t, State{IsConnected: true}.Online())
	assert.False(t, State{IsInternetReachable: true}.Online())
	assert.False(t, State{}.Online())
}

func TestMonitor_NotifiesOnTransitionOnly(t *testing.T) {
	m := NewMonitor(State{}, nil)
	var got []State
	unsubscribe := m.Subscribe(func(s State) { got = append(got, s) })

	online := State{IsConnected: true, IsInternetReachable: true}
	m.Set(online)
	m.Set(online)
	m.Set(State{IsConnected: true})
	assert.Equal(t, []State{online, {IsConnected: true}}, got)
	assert.False(t, m.Online())

	unsubscribe()
	m.Set(online)
	assert.Len(t, got, 2)
	assert.True(t, m.Online())
}

type scriptedProber struct {
	mu     sync.Mutex
	states []State
	calls  int
}

func (p *scriptedProber) Probe(context.Context) State {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.states[min(p.calls, len(p.states)-1)]
	p.calls++
	return s
}

func TestMonitor_RunProbesUntilCancelled(t *testing.T) {
	online := State{IsConnected: true, IsInternetReachable: true}
	p := &scriptedProber{states: []State{online, {}, online}}
	m := NewMonitor(State{}, nil)

	var mu sync.Mutex
	var seen []bool
	m.Subscribe(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s.Online())
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, 5*time.Millisecond, p)
		close(done)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 3
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false, true}, seen[:3])
}

func TestHTTPProber(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	t.Cleanup(srv.Close)

	p, err := NewHTTPProber(srv.URL, api.New(srv.URL), time.Second)
	require.NoError(t, err)
	assert.Equal(t, State{IsConnected: true, IsInternetReachable: true}, p.Probe(context.Background()))

	status.Store(http.StatusUnauthorized)
	assert.True(t, p.Probe(context.Background()).Online(), "an error status still proves reachability")

	status.Store(http.StatusServiceUnavailable)
	assert.Equal(t, State{IsConnected: true}, p.Probe(context.Background()))
}

func TestHTTPProber_NoListener(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p, err := NewHTTPProber(url, api.New(url), time.Second)
	require.NoError(t, err)
	assert.Equal(t, State{}, p.Probe(context.Background()))
}

func TestNewHTTPProber_BadURL(t *testing.T) {
	_, err := NewHTTPProber("://nope", nil, time.Second)
	require.Error(t, err)
}
