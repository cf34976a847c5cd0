package promclient

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ExposesServiceMetrics(t *testing.T) {
	SnapshotsTotal.WithLabelValues("binance").Inc()
	MergedPublishedTotal.Inc()
	ActiveSubscribers.Set(2)

	srv := httptest.NewServer(Handler(NewRegistry()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	for _, name := range []string{
		`orderbook_snapshots_total{exchange="binance"}`,
		"orderbook_merged_published_total",
		"orderbook_active_subscribers 2",
		"go_goroutines",
	} {
		assert.Contains(t, string(body), name)
	}
}

func TestNewRegistry_Repeatable(t *testing.T) {
	assert.NotPanics(t, func() {
		NewRegistry()
		NewRegistry()
	})
}
