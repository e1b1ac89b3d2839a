package signal

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dkeye/callrelay/internal/app"
	"github.com/dkeye/callrelay/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginChecker(t *testing.T) {
	allowed := []string{"http://localhost:5173", "https://App.Example.com"}

	tests := []struct {
		name     string
		allowed  []string
		allowAll bool
		host     string
		origin   string
		want     bool
	}{
		{name: "no origin header", allowed: allowed, host: "relay:8080", want: true},
		{name: "listed", allowed: allowed, host: "relay:8080", origin: "http://localhost:5173", want: true},
		{name: "listed case-insensitive", allowed: allowed, host: "relay:8080", origin: "https://app.example.com", want: true},
		{name: "not listed", allowed: allowed, host: "relay:8080", origin: "https://evil.example.com"},
		{name: "port differs", allowed: allowed, host: "relay:8080", origin: "http://localhost:3000"},
		{name: "malformed", allowed: allowed, host: "relay:8080", origin: "localhost:5173"},
		{name: "wildcard", allowed: []string{"*"}, host: "relay:8080", origin: "https://evil.example.com", want: true},
		{name: "same host by default", host: "relay:8080", origin: "https://relay:8080", want: true},
		{name: "other host by default", host: "relay:8080", origin: "https://evil.example.com"},
		{name: "allow all", allowAll: true, host: "relay:8080", origin: "https://evil.example.com", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, originChecker(tt.allowed, tt.allowAll)(r))
		})
	}
}

func dialWithOrigin(t *testing.T, mode string, allowed []string, origin string) (*http.Response, error) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.Mode = mode
	cfg.AllowedOrigins = allowed
	ctl := NewSignalWSController(app.NewRelay(), cfg, nil)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		ctl.HandleSignal(c.Request.Context(), c, domain.Identity(c.Query("userId")))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?userId=alice"
	ws, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {origin}})
	if err == nil {
		t.Cleanup(func() { _ = ws.Close() })
	}
	return resp, err
}

func TestHandleSignal_RejectsForeignOrigin(t *testing.T) {
	resp, err := dialWithOrigin(t, "release", []string{"http://localhost:5173"}, "https://evil.example.com")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandleSignal_AcceptsListedOrigin(t *testing.T) {
	_, err := dialWithOrigin(t, "release", []string{"http://localhost:5173"}, "http://localhost:5173")
	assert.NoError(t, err)
}

func TestHandleSignal_DebugModeAllowsAnyOrigin(t *testing.T) {
	_, err := dialWithOrigin(t, "debug", nil, "https://evil.example.com")
	assert.NoError(t, err)

	resp, err := dialWithOrigin(t, "release", nil, "https://evil.example.com")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
