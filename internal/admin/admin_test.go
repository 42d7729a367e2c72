package admin_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adabank/internal/admin"
	"adabank/internal/events"
)

type fakeHealth struct {
	depth    int32
	accounts int
	tellers  int
}

func (f fakeHealth) QueueDepth() int32   { return f.depth }
func (f fakeHealth) ActiveAccounts() int { return f.accounts }
func (f fakeHealth) TellerCount() int    { return f.tellers }

func TestHealthz(t *testing.T) {
	router := admin.NewRouter("AdaBank", fakeHealth{depth: 3, accounts: 12, tellers: 2}, events.NewBroker())

	req := httptest.NewRequest("GET", "/healthz", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "AdaBank", body["bank"])
	assert.Equal(t, float64(3), body["queue_depth"])
	assert.Equal(t, float64(12), body["active_accounts"])
	assert.Equal(t, float64(2), body["active_tellers"])
}

func TestMetricsEndpoint(t *testing.T) {
	router := admin.NewRouter("AdaBank", fakeHealth{}, events.NewBroker())

	req := httptest.NewRequest("GET", "/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "go_goroutines")
}
