package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCanonicalPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "/", canonicalPath("/"))
	require.Equal(t, "/healthz", canonicalPath("/healthz"))
	require.Equal(t, "/api/stocks", canonicalPath("/api/stocks"))
	require.Equal(t, "/api/stocks/:id", canonicalPath("/api/stocks/AAPL"))
	require.Equal(t, "/api/forex/batch", canonicalPath("/api/forex/batch"))
}

func TestRecorders(t *testing.T) {
	RecordCacheLookup("bonds", "item", true)
	RecordCacheLookup("bonds", "item", false)
	require.Equal(t, 1.0, testutil.ToFloat64(cacheLookups.WithLabelValues("bonds", "item", "hit")))

	before := testutil.ToFloat64(rateLimited.WithLabelValues("forex"))
	RecordRateLimited("forex")
	require.Equal(t, before+1, testutil.ToFloat64(rateLimited.WithLabelValues("forex")))

	RecordProviderFetch("", "ok", time.Millisecond)
	require.Equal(t, 1.0, testutil.ToFloat64(providerFetches.WithLabelValues("unknown", "ok")))
}

func TestInstrumentHandler(t *testing.T) {
	h := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/bonds/XYZ", nil))
	require.Equal(t, http.StatusTeapot, rr.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/bonds/:id", "418")))

	rr = httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "marketquotes_http_requests_total")
}
