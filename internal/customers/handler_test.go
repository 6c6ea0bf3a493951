package customers_test

import (
	"encoding/json"
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
	"github.com/referrush/csdash/internal/customers"
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

	engine, err := view.NewEngine()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := backend.NewClient(srv.URL, time.Second, nil)
	h := customers.NewHandler(logger, customers.NewService(client, nil, nil, logger), engine, shared.NewCSRFManager("secret"))
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r, store
}

func post(r http.Handler, target string, form url.Values, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func get(r http.Handler, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestRosterRendersRows(t *testing.T) {
	r, _ := newRouter(t)
	rr := get(r, "/customers")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	for _, name := range []string{"Aurora Apparel", "Brightside Coffee", "Cobalt Cycles"} {
		assert.Contains(t, body, name)
	}
	assert.Contains(t, body, "₹200 cashback")
	assert.Contains(t, body, "All Customers")
	assert.Contains(t, body, "New Customers")
	assert.Contains(t, body, "3/5", "aurora whatsapp follow-ups")
	assert.Contains(t, body, "10%", "brightside has one touchpoint on")
	assert.Contains(t, body, "4.2x")

	assert.Equal(t, http.StatusOK, get(r, "/").Code)
}

func TestRosterFetchFailureShowsEmptyTable(t *testing.T) {
	r, store := newRouter(t)
	store.FailNext(twin.OpListCustomers, "Failed to fetch customers")
	rr := get(r, "/customers")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Failed to fetch customers")
	assert.Contains(t, body, "No customers to show.")
	assert.Equal(t, 1, store.Requests(twin.OpListCustomers), "no retry")
}

func TestToggleJSONConfirms(t *testing.T) {
	r, store := newRouter(t)
	rr := post(r, "/customers/cust_brightside/touchpoints", url.Values{"path": {"sms"}, "value": {"true"}}, "application/json")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Checked bool   `json:"checked"`
		OK      bool   `json:"ok"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.True(t, resp.Checked)
	c, _ := store.Customer("cust_brightside")
	assert.True(t, c.Touchpoints.SMS)
}

func TestToggleJSONRevertsOnFailure(t *testing.T) {
	r, store := newRouter(t)
	store.FailNext(twin.OpUpdateTouchpoint, "Update rejected")
	rr := post(r, "/customers/cust_aurora/touchpoints", url.Values{"path": {"referralWelcomePopup"}, "value": {"false"}}, "application/json")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Checked bool   `json:"checked"`
		OK      bool   `json:"ok"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.True(t, resp.Checked, "previous value restored")
	assert.Equal(t, "Update rejected", resp.Error)

	c, _ := store.Customer("cust_aurora")
	assert.True(t, c.Touchpoints.ReferralWelcomePopup)
	assert.True(t, c.Touchpoints.Extension, "other controls untouched")
}

func TestToggleRejectsUnknownPath(t *testing.T) {
	r, store := newRouter(t)
	rr := post(r, "/customers/cust_aurora/touchpoints", url.Values{"path": {"offer.discount"}, "value": {"true"}}, "application/json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/problem+json")
	assert.Zero(t, store.Requests(twin.OpUpdateTouchpoint))

	rr = post(r, "/customers/cust_aurora/touchpoints", url.Values{"path": {"sms"}, "value": {"maybe"}}, "application/json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestToggleFormRedirects(t *testing.T) {
	r, store := newRouter(t)
	rr := post(r, "/customers/cust_cobalt/touchpoints", url.Values{"path": {"abandonedCart.email"}, "value": {"on"}}, "")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/customers", rr.Header().Get("Location"))
	c, _ := store.Customer("cust_cobalt")
	assert.True(t, c.Touchpoints.AbandonedCart.Email)
}

func TestNotePage(t *testing.T) {
	r, _ := newRouter(t)
	rr := get(r, "/customers/cust_aurora/notes")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Notes for Aurora Apparel")

	assert.Equal(t, http.StatusNotFound, get(r, "/customers/ghost/notes").Code)
}

func TestSaveNoteRedirectsOnSuccess(t *testing.T) {
	r, store := newRouter(t)
	rr := post(r, "/customers/cust_cobalt/notes", url.Values{"note": {"Renewal call booked"}}, "")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	c, _ := store.Customer("cust_cobalt")
	assert.Equal(t, "Renewal call booked", c.Note)
}

func TestSaveNoteFailureKeepsDraft(t *testing.T) {
	r, store := newRouter(t)
	before, _ := store.Customer("cust_cobalt")
	store.FailNext(twin.OpSaveNote, "database offline")

	rr := post(r, "/customers/cust_cobalt/notes", url.Values{"note": {"Draft that must survive"}}, "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Failed to save note. Please try again.")
	assert.Contains(t, body, "Draft that must survive")

	after, _ := store.Customer("cust_cobalt")
	assert.Equal(t, before.Note, after.Note)
}

func TestSaveNoteTooLong(t *testing.T) {
	r, store := newRouter(t)
	rr := post(r, "/customers/cust_cobalt/notes", url.Values{"note": {strings.Repeat("x", 4001)}}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Zero(t, store.Requests(twin.OpSaveNote))
}
