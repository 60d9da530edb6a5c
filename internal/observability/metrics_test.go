package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordOutcomeIncrements(t *testing.T) {
	before := testutil.ToFloat64(recordsCounter.WithLabelValues("health_stats", "inserted"))
	RecordOutcome("health_stats", "inserted")
	require.Equal(t, before+1, testutil.ToFloat64(recordsCounter.WithLabelValues("health_stats", "inserted")))
}

func TestRecordPublishLabelsResult(t *testing.T) {
	before := testutil.ToFloat64(publishCounter.WithLabelValues("stats", "dropped"))
	RecordPublish("stats", false)
	require.Equal(t, before+1, testutil.ToFloat64(publishCounter.WithLabelValues("stats", "dropped")))
}

func TestPushSendsToGateway(t *testing.T) {
	var path, body string
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer gateway.Close()

	RecordRun("backfill", time.Now().Add(-time.Second), true)
	require.NoError(t, Push(context.Background(), gateway.URL, "backfill"))

	require.Equal(t, "/metrics/job/backfill", path)
	require.True(t, strings.Contains(body, "healthsync_run_duration_seconds"), "pushed body should carry run metrics")
}
