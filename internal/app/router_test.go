package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/referrush/csdash/internal/audit"
	audithttp "github.com/referrush/csdash/internal/audit/http"
	"github.com/referrush/csdash/internal/backend"
	"github.com/referrush/csdash/internal/backend/twin"
	"github.com/referrush/csdash/internal/customers"
	"github.com/referrush/csdash/internal/observability"
	"github.com/referrush/csdash/internal/shared"
	"github.com/referrush/csdash/internal/view"
)

var csrfMeta = regexp.MustCompile(`<meta name="csrf-token" content="([^"]+)">`)

func newTestServer(t *testing.T) (*httptest.Server, *twin.Store, *observability.Metrics) {
	t.Helper()
	store := twin.New()
	require.NoError(t, store.LoadDefault())
	api := chi.NewRouter()
	twin.NewHandler(store).Routes(api)
	backendSrv := httptest.NewServer(api)
	t.Cleanup(backendSrv.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second, RequestsPerMinute: 1000}
	metrics := observability.NewMetrics()
	client := backend.NewClient(backendSrv.URL, time.Second, metrics)
	engine, err := view.NewEngine()
	require.NoError(t, err)
	csrf := shared.NewCSRFManager("csrf-secret")

	router := NewRouter(RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   shared.NewSessionManager(rdb, "csdash_session", "session-secret", time.Hour, false),
		CSRFManager:      csrf,
		CustomersHandler: customers.NewHandler(logger, customers.NewService(client, nil, nil, logger), engine, csrf),
		AuditHandler:     audithttp.NewHandler(logger, audit.NewService(nil), engine, csrf),
		Metrics:          metrics,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, store, metrics
}

func newBrowser(t *testing.T) *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func fetchToken(t *testing.T, c *http.Client, base string) string {
	t.Helper()
	resp, err := c.Get(base + "/customers")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	m := csrfMeta.FindSubmatch(body)
	require.NotNil(t, m, "csrf meta tag missing")
	return string(m[1])
}

func TestRosterThroughFullStack(t *testing.T) {
	srv, _, _ := newTestServer(t)
	c := newBrowser(t)

	resp, err := c.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Aurora Apparel")
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "style-src 'self' 'unsafe-inline'")
	assert.NotEmpty(t, resp.Cookies())
}

func TestActivityPageWithoutAuditTrail(t *testing.T) {
	srv, _, _ := newTestServer(t)
	c := newBrowser(t)

	resp, err := c.Get(srv.URL + "/audit")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "The audit trail is not enabled.")

	export, err := c.Get(srv.URL + "/audit/export.csv")
	require.NoError(t, err)
	export.Body.Close()
	assert.Equal(t, http.StatusNotFound, export.StatusCode)
}

func TestPostWithoutTokenIsForbidden(t *testing.T) {
	srv, store, _ := newTestServer(t)
	c := newBrowser(t)
	_ = fetchToken(t, c, srv.URL)

	resp, err := c.PostForm(srv.URL+"/customers/cust_aurora/notes", url.Values{"note": {"hi"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, store.Requests(twin.OpSaveNote))
}

func TestNoteSaveWithTokenSetsFlash(t *testing.T) {
	srv, store, _ := newTestServer(t)
	c := newBrowser(t)
	token := fetchToken(t, c, srv.URL)

	resp, err := c.PostForm(srv.URL+"/customers/cust_aurora/notes", url.Values{
		"note":               {"Call back on Friday"},
		shared.CSRFFormField: {token},
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, 1, store.Requests(twin.OpSaveNote))

	resp, err = c.Get(srv.URL + resp.Header.Get("Location"))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Note for Aurora Apparel saved successfully")
}

func TestToggleWithHeaderToken(t *testing.T) {
	srv, store, _ := newTestServer(t)
	c := newBrowser(t)
	token := fetchToken(t, c, srv.URL)

	form := url.Values{"path": {"extension"}, "value": {"false"}}
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/customers/cust_aurora/touchpoints", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(shared.CSRFHeader, token)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"ok":true,"checked":false}`, string(body))
	aurora, ok := store.Customer("cust_aurora")
	require.True(t, ok)
	assert.False(t, aurora.Touchpoints.Extension)
}

func TestHealthMetricsAndStatic(t *testing.T) {
	srv, _, _ := newTestServer(t)
	c := newBrowser(t)

	resp, err := c.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	_ = fetchToken(t, c, srv.URL)
	resp, err = c.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `csdash_backend_requests_total{op="list_customers",outcome="ok"}`)
	assert.Contains(t, string(body), `csdash_http_requests_total{code="200",route="/customers"}`)

	resp, err = c.Get(srv.URL + "/static/css/app.css")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "public, max-age=3600", resp.Header.Get("Cache-Control"))
	assert.Empty(t, resp.Cookies())
}
