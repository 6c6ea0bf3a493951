package nudges_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/referrush/csdash/internal/backend"
	"github.com/referrush/csdash/internal/backend/twin"
	"github.com/referrush/csdash/internal/nudges"
	"github.com/referrush/csdash/internal/shared"
	"github.com/referrush/csdash/internal/view"
)

type fixture struct {
	router http.Handler
	store  *twin.Store
	client *backend.Client
}

func newFixture(t *testing.T, limit nudges.SendLimit) fixture {
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
	svc := nudges.NewService(client, nil, nil, logger)
	h := nudges.NewHandler(logger, svc, engine, shared.NewCSRFManager("test-secret"), limit)

	r := chi.NewRouter()
	h.MountRoutes(r)
	return fixture{router: r, store: store, client: client}
}

func (f fixture) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestComposerPageListsContacts(t *testing.T) {
	f := newFixture(t, nudges.SendLimit{})
	rr := f.do(t, http.MethodGet, "/customers/cust_aurora/nudge", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Aurora Apparel")
	assert.Contains(t, body, "maya@aurora.example")
	assert.Contains(t, body, "Referral Welcome Popup")
	assert.Contains(t, body, `value="maya@aurora.example"`)

	rr = f.do(t, http.MethodGet, "/customers/cust_aurora/nudge?channel=whatsapp", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `name="recipients" value="&#43;14155550101"`)

	rr = f.do(t, http.MethodGet, "/customers/nobody/nudge", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSendWithoutRecipientsIsRejectedLocally(t *testing.T) {
	f := newFixture(t, nudges.SendLimit{})
	rr := f.do(t, http.MethodPost, "/customers/cust_aurora/nudge", url.Values{
		"touchpoint": {"extension"},
		"channel":    {"email"},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Select at least one contact")
	assert.Zero(t, f.store.Requests(twin.OpSendNudge))
}

func TestSendNudgeSucceeds(t *testing.T) {
	f := newFixture(t, nudges.SendLimit{})
	rr := f.do(t, http.MethodPost, "/customers/cust_brightside/nudge", url.Values{
		"touchpoint": {"emailFollowUps"},
		"channel":    {"email"},
		"recipients": {"jonas@brightside.example"},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Nudge sent successfully")
	assert.Equal(t, 1, f.store.Requests(twin.OpSendNudge))

	logs, err := f.client.ListNudgeLogs(context.Background(), "cust_brightside")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "emailFollowUps", logs[0].Touchpoint)
}

func TestSendNudgeShowsBackendError(t *testing.T) {
	f := newFixture(t, nudges.SendLimit{})
	f.store.FailNext(twin.OpSendNudge, "Channel quota exceeded")
	rr := f.do(t, http.MethodPost, "/customers/cust_aurora/nudge", url.Values{
		"touchpoint": {"referralForm"},
		"channel":    {"email"},
		"recipients": {"ops@aurora.example"},
	})
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "Channel quota exceeded")
}

func TestSendRejectsForeignRecipient(t *testing.T) {
	f := newFixture(t, nudges.SendLimit{})
	rr := f.do(t, http.MethodPost, "/customers/cust_aurora/nudge", url.Values{
		"touchpoint": {"referralForm"},
		"channel":    {"email"},
		"recipients": {"intruder@evil.example"},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Zero(t, f.store.Requests(twin.OpSendNudge))
}

func TestSendIsRateLimited(t *testing.T) {
	f := newFixture(t, nudges.SendLimit{Requests: 1, Window: time.Minute})
	form := url.Values{"touchpoint": {"extension"}, "channel": {"email"}, "recipients": {"priya@cobalt.example"}}
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/customers/cust_cobalt/nudge", form).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodPost, "/customers/cust_cobalt/nudge", form).Code)
	assert.Equal(t, 1, f.store.Requests(twin.OpSendNudge))
}

func TestAddAndDeleteContact(t *testing.T) {
	f := newFixture(t, nudges.SendLimit{})
	before, _ := f.store.Customer("cust_brightside")

	rr := f.do(t, http.MethodPost, "/customers/cust_brightside/contacts", url.Values{"kind": {"phone"}, "value": {"+91 98000 00999"}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Added &#43;91 98000 00999")
	c, _ := f.store.Customer("cust_brightside")
	assert.Equal(t, []string{"+91 98000 00999"}, c.PointOfContact.Phone)

	rr = f.do(t, http.MethodPost, "/customers/cust_brightside/contacts/delete", url.Values{"kind": {"phone"}, "value": {"+91 98000 00999"}})
	require.Equal(t, http.StatusOK, rr.Code)
	after, _ := f.store.Customer("cust_brightside")
	assert.ElementsMatch(t, before.PointOfContact.Phone, after.PointOfContact.Phone)
	assert.ElementsMatch(t, before.PointOfContact.Email, after.PointOfContact.Email)
}

func TestAddInvalidContact(t *testing.T) {
	f := newFixture(t, nudges.SendLimit{})
	rr := f.do(t, http.MethodPost, "/customers/cust_brightside/contacts", url.Values{"kind": {"email"}, "value": {"nope"}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Enter a valid email address or phone number.")
	assert.Zero(t, f.store.Requests(twin.OpAddContact))
}

func TestLogsPageFiltersAndCounts(t *testing.T) {
	f := newFixture(t, nudges.SendLimit{})
	rr := f.do(t, http.MethodGet, "/customers/cust_aurora/nudge-logs?filter=failed", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "mailbox unavailable")
	assert.Contains(t, body, "Showing 1 of 3 log entries")
	assert.NotContains(t, body, "Referral Welcome Popup</td>")

	rr = f.do(t, http.MethodGet, "/customers/cust_aurora/nudge-logs?q=popup", nil)
	assert.Contains(t, rr.Body.String(), "Showing 1 of 3 log entries")
}

func TestLogsPageShowsFetchError(t *testing.T) {
	f := newFixture(t, nudges.SendLimit{})
	f.store.FailNext(twin.OpListNudgeLogs, "Failed to fetch nudge logs")
	rr := f.do(t, http.MethodGet, "/customers/cust_aurora/nudge-logs", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Failed to fetch nudge logs")
}

func TestLogsExportCSV(t *testing.T) {
	f := newFixture(t, nudges.SendLimit{})
	rr := f.do(t, http.MethodGet, "/customers/cust_aurora/nudge-logs/export.csv?filter=success", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[1], "WhatsApp Follow-Ups")
}
