package duelhttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tradeduel/internal/decision"
	"tradeduel/internal/market"
	"tradeduel/internal/simulation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chartStub struct{ html string }

func (c chartStub) RenderChart() ([]byte, error) { return []byte(c.html), nil }

func newTestServer(t *testing.T) (*Server, *simulation.Driver) {
	t.Helper()
	series := []market.Candle{
		{Timestamp: 1, Open: 100, High: 101, Low: 99, Close: 100, SMA20: 90},
		{Timestamp: 2, Open: 100, High: 111, Low: 99, Close: 110, SMA20: 95},
		{Timestamp: 3, Open: 110, High: 121, Low: 109, Close: 120, SMA20: 100},
	}
	proto := decision.NewProtocol(nil)
	drv, err := simulation.NewDriver(simulation.Config{Interval: time.Second}, series, proto)
	require.NoError(t, err)
	srv, err := NewServer(ServerConfig{
		Simulator: drv,
		Decider:   proto,
		Metrics:   http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("steps_total 1")) }),
		Chart:     chartStub{html: "<html>chart</html>"},
	})
	require.NoError(t, err)
	return srv, drv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewServerRequiresSomething(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	require.Error(t, err)
}

func TestHealthAndState(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.Equal(t, ":3000", srv.Addr())

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st simulation.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 0, st.Index)
	assert.Equal(t, 3, st.Total)
	assert.Len(t, st.Agents, 2)
	assert.False(t, st.Running)
	assert.EqualValues(t, 1000, st.IntervalMS)
}

func TestMessagesAndCandlesFollowTicks(t *testing.T) {
	srv, drv := newTestServer(t)
	_, err := drv.Tick(t.Context())
	require.NoError(t, err)

	rec := do(t, srv, http.MethodGet, "/api/candles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var candles []market.Candle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &candles))
	assert.Len(t, candles, 2)

	rec = do(t, srv, http.MethodGet, "/api/messages?since=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []simulation.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "modelB", msgs[0].Agent)

	rec = do(t, srv, http.MethodGet, "/api/messages?since=-2", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestControls(t *testing.T) {
	srv, drv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/control/play", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, drv.Running())

	rec = do(t, srv, http.MethodPost, "/api/control/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, drv.Running())
	assert.Contains(t, rec.Body.String(), `"running":false`)

	rec = do(t, srv, http.MethodPost, "/api/control/speed", `{"interval_ms":5000}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5*time.Second, drv.Interval())

	rec = do(t, srv, http.MethodPost, "/api/control/speed", `{"interval_ms":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 5*time.Second, drv.Interval())

	rec = do(t, srv, http.MethodPost, "/api/control/speed", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, err := drv.Tick(t.Context())
	require.NoError(t, err)
	rec = do(t, srv, http.MethodPost, "/api/control/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, drv.Snapshot().Index)
	assert.Empty(t, drv.Messages(0))
}

func TestTradeRejectsMissingFields(t *testing.T) {
	srv, _ := newTestServer(t)
	cases := map[string]string{
		"no model":     `{"currentCandle":{"close":100},"portfolio":{"cash":1000,"shares":0}}`,
		"no candle":    `{"model":"x","portfolio":{"cash":1000,"shares":0}}`,
		"no portfolio": `{"model":"x","currentCandle":{"close":100}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/trade", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "Missing required fields")
		})
	}
}

func TestTradeFallsBackWithoutModel(t *testing.T) {
	srv, _ := newTestServer(t)
	body := `{"model":"openai/gpt-4o","currentCandle":{"timestamp":1,"close":110,"sma20":100},` +
		`"previousCandles":[],"portfolio":{"cash":2000,"shares":0,"value":2000},"previousMessages":[]}`
	rec := do(t, srv, http.MethodPost, "/api/trade", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var out decision.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, decision.ActionBuy, out.Action)
	assert.Equal(t, 10, out.Amount)
	assert.Equal(t, 110.0, out.Price)
	assert.Equal(t, decision.SourceFallback, out.Source)
}

func TestMetricsAndChart(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "steps_total")

	rec = do(t, srv, http.MethodGet, "/chart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, "<html>chart</html>", rec.Body.String())
}

func TestTail(t *testing.T) {
	assert.Equal(t, []int{3, 4}, tail([]int{1, 2, 3, 4}, 2))
	assert.Equal(t, []int{1}, tail([]int{1}, 2))
	assert.Empty(t, tail([]int(nil), 2))
}
