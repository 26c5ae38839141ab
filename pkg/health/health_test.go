package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func passing(context.Context) error { return nil }

func failing(msg string) Check {
	return func(context.Context) error { return errors.New(msg) }
}

func get(t *testing.T, handler http.HandlerFunc) (int, statusBody) {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body statusBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func pollN(h *Health, name string, n int) {
	for _, p := range h.probes {
		if p.name == name {
			for range n {
				p.poll(context.Background())
			}
		}
	}
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		polls      int
		wantCode   int
		wantChecks map[string]string
	}{
		{name: "healthy before first poll", polls: 0, wantCode: http.StatusOK},
		{name: "below failure threshold", polls: 2, wantCode: http.StatusOK},
		{
			name:       "at failure threshold",
			polls:      3,
			wantCode:   http.StatusServiceUnavailable,
			wantChecks: map[string]string{"db": "connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			h.Add(Liveness, "ok", passing)
			h.Add(Liveness, "db", failing("connection refused"))
			pollN(h, "db", tt.polls)

			code, body := get(t, h.LiveEndpoint)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantChecks, body.Checks)
		})
	}
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.Add(Readiness, "postgres", failing("timeout"), WithThresholds(1, 2))
	h.Add(Liveness, "goroutines", failing("leak"), WithThresholds(1, 1))
	pollN(h, "goroutines", 1)

	code, body := get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]string{"_readiness": "service is not ready"}, body.Checks,
		"liveness failures do not affect readiness")

	h.SetReady(true)
	code, body = get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.True(t, h.Ready())

	pollN(h, "postgres", 1)
	code, body = get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "timeout", body.Checks["postgres"])
	assert.False(t, h.Ready())

	h.SetReady(false)
	_, body = get(t, h.ReadyEndpoint)
	assert.Len(t, body.Checks, 2)
}

func TestProbeRecovery(t *testing.T) {
	var (
		mu  sync.Mutex
		err = errors.New("down")
	)
	h := New()
	h.Add(Readiness, "flaky", func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		return err
	}, WithThresholds(1, 2))
	h.SetReady(true)
	p := h.probes[0]

	p.poll(context.Background())
	assert.False(t, h.Ready())
	assert.Equal(t, "down", p.failure())

	mu.Lock()
	err = nil
	mu.Unlock()

	p.poll(context.Background())
	assert.False(t, h.Ready(), "one success is below the success threshold")
	p.poll(context.Background())
	assert.True(t, h.Ready())
}

func TestProbeTimeout(t *testing.T) {
	h := New()
	h.Add(Liveness, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithTimeout(10*time.Millisecond), WithThresholds(1, 1))

	pollN(h, "slow", 1)
	code, body := get(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks["slow"], "deadline exceeded")
}

func TestStartStop(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	h := New()
	h.Add(Liveness, "counter", func(context.Context) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})

	h.Start(context.Background(), 5*time.Millisecond)
	h.Start(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 3
	}, time.Second, time.Millisecond)

	h.Stop()
	mu.Lock()
	after := calls
	mu.Unlock()
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, after, calls, "no polls after Stop")
	mu.Unlock()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.Add(Readiness, "ok", passing)
	h.Add(Liveness, "ok", passing)
	h.SetReady(true)
	h.Start(context.Background(), time.Millisecond)
	defer h.Stop()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				_ = h.Ready()
				w := httptest.NewRecorder()
				h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()
}

func TestPing(t *testing.T) {
	require.NoError(t, Ping(PingerFunc(passing))(context.Background()))
	require.ErrorContains(t, Ping(PingerFunc(failing("refused")))(context.Background()), "refused")
}

func TestGoroutineCount(t *testing.T) {
	require.NoError(t, GoroutineCount(1_000_000)(context.Background()))
	require.Error(t, GoroutineCount(0)(context.Background()))
}
