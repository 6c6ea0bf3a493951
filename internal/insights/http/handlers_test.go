package insightshttp_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/referrush/csdash/internal/backend"
	"github.com/referrush/csdash/internal/backend/twin"
	"github.com/referrush/csdash/internal/insights"
	insightshttp "github.com/referrush/csdash/internal/insights/http"
	"github.com/referrush/csdash/internal/shared"
	"github.com/referrush/csdash/internal/view"
)

func newRouter(t *testing.T) (http.Handler, *twin.Store) {
	t.Helper()
	store := twin.New()
	require.NoError(t, store.LoadDefault())
	tr := chi.NewRouter()
	twin.NewHandler(store).Routes(tr)
	srv := httptest.NewServer(tr)
	t.Cleanup(srv.Close)

	client := backend.NewClient(srv.URL, time.Second, nil)
	engine, err := view.NewEngine()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := insightshttp.NewHandler(logger, insights.NewService(client, nil, logger), client, engine, shared.NewCSRFManager("secret"))
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r, store
}

func get(r http.Handler, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestSuccessPage(t *testing.T) {
	r, _ := newRouter(t)
	rr := get(r, "/analytics/success")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Success Metrics")
	assert.Contains(t, body, "<svg")
	assert.Contains(t, body, "Touchpoint adoption")

	aurora := strings.Index(body, ">Aurora Apparel</a>")
	brightside := strings.Index(body, ">Brightside Coffee</a>")
	require.Positive(t, aurora)
	require.Positive(t, brightside)
	assert.Less(t, aurora, brightside, "breakdown sorted by rate descending")
	assert.Contains(t, body, "Great")
	assert.Contains(t, body, "Poor")
}

func TestSuccessPageBackendFailure(t *testing.T) {
	r, store := newRouter(t)
	store.FailNext(twin.OpSuccessMetrics, "Failed to fetch success metrics")
	rr := get(r, "/analytics/success")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Failed to fetch success metrics")
	assert.NotContains(t, rr.Body.String(), "<svg")
}

func TestSuccessJSON(t *testing.T) {
	r, store := newRouter(t)
	rr := get(r, "/analytics/success.json")
	require.Equal(t, http.StatusOK, rr.Code)
	var report insights.SuccessReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, 3, report.TotalCustomers)
	assert.Len(t, report.Breakdown, 3)

	store.FailNext(twin.OpSuccessMetrics, "metrics offline")
	rr = get(r, "/analytics/success.json")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "metrics offline")
}

func TestSuccessCSV(t *testing.T) {
	r, _ := newRouter(t)
	rr := get(r, "/analytics/success/export.csv")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "attachment; filename=success-metrics.csv", rr.Header().Get("Content-Disposition"))
	assert.Contains(t, rr.Body.String(), "customer,cust_aurora,Aurora Apparel,89,Great")
}

func TestBusinessPage(t *testing.T) {
	r, _ := newRouter(t)
	rr := get(r, "/analytics")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Business Analytics")
	assert.Contains(t, body, "Excellent")
	assert.Contains(t, body, "4.8x")
	assert.Contains(t, body, "₹4,56,000")
	assert.Contains(t, body, "96% of a 5x target")
	assert.GreaterOrEqual(t, strings.Count(body, "<svg"), 4)
}

func TestCustomerAnalytics(t *testing.T) {
	r, _ := newRouter(t)
	rr := get(r, "/customers/cust_cobalt/analytics")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Analytics for Cobalt Cycles")
	assert.Contains(t, body, "Touchpoint success rate")

	assert.Equal(t, http.StatusNotFound, get(r, "/customers/ghost/analytics").Code)
}

func TestCustomerAnalyticsWithoutMetrics(t *testing.T) {
	r, store := newRouter(t)
	store.FailNext(twin.OpSuccessMetrics, "down")
	rr := get(r, "/customers/cust_cobalt/analytics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "Touchpoint success rate")
	assert.Contains(t, rr.Body.String(), "Analytics for Cobalt Cycles")
}
