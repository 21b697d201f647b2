package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ZentaChain/zentalk-gateway/pkg/gateway"
	"github.com/ZentaChain/zentalk-gateway/pkg/rpc"
	"github.com/ZentaChain/zentalk-gateway/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGateway gateway.Stats

func (f fakeGateway) Stats() gateway.Stats { return gateway.Stats(f) }

type fakeDispatcher rpc.Stats

func (f fakeDispatcher) Stats() rpc.Stats { return rpc.Stats(f) }

type fakeStorage struct {
	stats map[string]int64
	err   error
}

func (f fakeStorage) Stats() (map[string]int64, error) { return f.stats, f.err }

func get(t *testing.T, s *Server, path string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w.Code
}

func TestHealth(t *testing.T) {
	s := NewServer(DefaultConfig(), Sources{}, zap.NewNop())
	for _, path := range []string{"/health", "/api/v1/health"} {
		var resp HealthResponse
		assert.Equal(t, http.StatusOK, get(t, s, path, &resp))
		assert.Equal(t, "ok", resp.Status)
	}
}

func TestStats(t *testing.T) {
	tests := []struct {
		name       string
		src        Sources
		wantStatus int
		check      func(t *testing.T, resp StatsResponse)
	}{
		{
			name: "all sources",
			src: Sources{
				Gateway:    fakeGateway{Connections: 3, Sessions: 5},
				Dispatcher: fakeDispatcher{Total: 10, Timeouts: 1},
				Storage:    fakeStorage{stats: map[string]int64{"auth_keys": 4}},
			},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, resp StatsResponse) {
				require.NotNil(t, resp.Gateway)
				assert.Equal(t, int64(3), resp.Gateway.Connections)
				assert.Equal(t, 5, resp.Gateway.Sessions)
				require.NotNil(t, resp.RPC)
				assert.Equal(t, int64(1), resp.RPC.Timeouts)
				assert.Equal(t, int64(4), resp.Storage["auth_keys"])
			},
		},
		{
			name:       "worker without gateway",
			src:        Sources{Dispatcher: fakeDispatcher{Total: 1}},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, resp StatsResponse) {
				assert.Nil(t, resp.Gateway)
				assert.Nil(t, resp.Storage)
				assert.Equal(t, int64(1), resp.RPC.Total)
			},
		},
		{
			name:       "storage failure",
			src:        Sources{Storage: fakeStorage{err: errors.New("disk gone")}},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(DefaultConfig(), tt.src, zap.NewNop())
			var resp StatsResponse
			assert.Equal(t, tt.wantStatus, get(t, s, "/api/v1/stats", &resp))
			if tt.check != nil {
				tt.check(t, resp)
			}
		})
	}
}

func TestSessions(t *testing.T) {
	m := session.NewManager(160)
	m.Attach(session.Key{AuthKeyID: 1, SessionID: 2}, "conn-a", nil)
	m.Attach(session.Key{AuthKeyID: 1, SessionID: 3}, "conn-a", nil)

	s := NewServer(DefaultConfig(), Sources{Sessions: m}, zap.NewNop())
	var resp SessionsResponse
	require.Equal(t, http.StatusOK, get(t, s, "/api/v1/sessions", &resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Sessions, 2)
	assert.Equal(t, "conn-a", resp.Sessions[0].ConnID)
	assert.Equal(t, int32(160), resp.Sessions[0].Layer)

	empty := NewServer(DefaultConfig(), Sources{}, zap.NewNop())
	resp = SessionsResponse{}
	require.Equal(t, http.StatusOK, get(t, empty, "/api/v1/sessions", &resp))
	assert.Zero(t, resp.Count)
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 2
	s := NewServer(cfg, Sources{}, zap.NewNop())
	defer s.limiter.Stop()

	assert.Equal(t, http.StatusOK, get(t, s, "/health", nil))
	assert.Equal(t, http.StatusOK, get(t, s, "/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, get(t, s, "/health", nil))
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()
	now := time.Now()
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))

	now = now.Add(2 * time.Minute)
	assert.True(t, rl.Allow("10.0.0.1"))
}
