package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/ordersync/internal/common"
)

type recorded struct {
	method string
	path   string
	header http.Header
	body   string
}

type recorder struct {
	mu    sync.Mutex
	calls []recorded
}

func (r *recorder) get(i int) recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[i]
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func newServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.calls = append(rec.calls, recorded{method: r.Method, path: r.URL.Path, header: r.Header.Clone(), body: string(b)})
		n := len(rec.calls)
		rec.mu.Unlock()
		handler(w, r.WithContext(withCall(r.Context(), n)))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/", WithToken(func() string { return "tok" })), rec
}

type callKey struct{}

func withCall(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, callKey{}, n)
}

// callNumber is the 1-based index of the request being handled.
func callNumber(r *http.Request) int {
	n, _ := r.Context().Value(callKey{}).(int)
	return n
}

func TestCreate_SendsIdempotencyKeyAndReturnsID(t *testing.T) {
	c, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 500, "nome": "Ana"}`))
	})

	id, err := c.Create(context.Background(), "clientes", "local-1", map[string]string{"nome": "Ana", "localId": "local-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(500), id)

	require.Equal(t, 1, calls.len())
	call := calls.get(0)
	assert.Equal(t, http.MethodPost, call.method)
	assert.Equal(t, "/api/clientes", call.path)
	assert.Equal(t, "local-1", call.header.Get(common.IdempotencyKeyHeaderName))
	assert.Equal(t, "Bearer tok", call.header.Get(common.AuthorizationHeaderName))
	assert.Equal(t, "application/json", call.header.Get("Content-Type"))
	assert.JSONEq(t, `{"nome":"Ana","localId":"local-1"}`, call.body)
}

func TestCreate_AcceptsDataEnvelope(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"id": 9}}`))
	})

	id, err := c.Create(context.Background(), "despesas", "x", struct{}{})
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
}

func TestCreate_ResponseWithoutID(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := c.Create(context.Background(), "despesas", "x", struct{}{})
	require.ErrorIs(t, err, common.ErrRemoteRejected)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		code      int
		transient bool
		rejected  bool
		extra     error
	}{
		{http.StatusInternalServerError, true, false, nil},
		{http.StatusBadGateway, true, false, nil},
		{http.StatusTooManyRequests, true, false, nil},
		{http.StatusRequestTimeout, true, false, nil},
		{http.StatusBadRequest, false, true, nil},
		{http.StatusConflict, false, true, nil},
		{http.StatusUnprocessableEntity, false, true, nil},
		{http.StatusUnauthorized, false, true, common.ErrUnauthorized},
		{http.StatusNotFound, false, true, common.ErrRemoteNotFound},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.code)
			})

			err := c.Update(context.Background(), "clientes", 5, map[string]string{})
			require.Error(t, err)
			assert.Equal(t, tt.transient, errors.Is(err, common.ErrTransientNetwork))
			assert.Equal(t, tt.rejected, errors.Is(err, common.ErrRemoteRejected))
			if tt.extra != nil {
				assert.ErrorIs(t, err, tt.extra)
			}

			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.code, se.Code)
			assert.Contains(t, se.Error(), "nope")
		})
	}
}

func TestTransportFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := New(url).Update(context.Background(), "clientes", 1, struct{}{})
	require.ErrorIs(t, err, common.ErrTransientNetwork)
}

func TestTimeoutIsTransient(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(block) })

	c := New(srv.URL, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	err := c.Health(context.Background())
	require.ErrorIs(t, err, common.ErrTransientNetwork)
}

func TestUpdate_PutsToItemPath(t *testing.T) {
	c, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.Update(context.Background(), "ordens-servico", 42, map[string]string{"status": "finished"}))
	call := calls.get(0)
	assert.Equal(t, http.MethodPut, call.method)
	assert.Equal(t, "/api/ordens-servico/42", call.path)
	assert.Empty(t, call.header.Get(common.IdempotencyKeyHeaderName))
}

func TestDelete_NotFoundCountsAsDeleted(t *testing.T) {
	c, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	require.NoError(t, c.Delete(context.Background(), "veiculos", 3))
	assert.Equal(t, http.MethodDelete, calls.get(0).method)
	assert.Equal(t, "/api/veiculos/3", calls.get(0).path)
}

func TestList_ArrayAndEnvelope(t *testing.T) {
	bodies := []string{`[{"id":1},{"id":2}]`, `{"data":[{"id":3}]}`}
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(bodies[callNumber(r)-1]))
	})

	items, err := c.List(context.Background(), "pecas")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = c.List(context.Background(), "pecas")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.JSONEq(t, `{"id":3}`, string(items[0]))
}

func TestNoTokenNoHeader(t *testing.T) {
	c, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
	c.token = func() string { return "" }

	require.NoError(t, c.Health(context.Background()))
	assert.Empty(t, calls.get(0).header.Get(common.AuthorizationHeaderName))
	assert.Equal(t, "/api/health", calls.get(0).path)
}
