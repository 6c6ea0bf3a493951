package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/referrush/csdash/internal/backend"
	"github.com/referrush/csdash/internal/backend/twin"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveBackendCall(op, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, op+":"+outcome)
}

func newTwinClient(t *testing.T) (*backend.Client, *twin.Store, *recordingObserver) {
	t.Helper()
	store := twin.New()
	require.NoError(t, store.LoadDefault())
	r := chi.NewRouter()
	twin.NewHandler(store).Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	obs := &recordingObserver{}
	return backend.NewClient(srv.URL+"/", time.Second, obs), store, obs
}

func rawServer(t *testing.T, status int, body string, capture func(*http.Request, []byte)) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if capture != nil {
			capture(r, raw)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return backend.NewClient(srv.URL, time.Second, nil)
}

func TestListCustomersDecodesEnvelope(t *testing.T) {
	client, _, obs := newTwinClient(t)

	customers, err := client.ListCustomers(context.Background())
	require.NoError(t, err)
	require.Len(t, customers, 3)
	assert.Equal(t, "cust_aurora", customers[0].ID)
	assert.Equal(t, []string{"maya@aurora.example", "ops@aurora.example"}, customers[0].PointOfContact.Email)
	assert.True(t, customers[0].Touchpoints.WhatsApp.FollowUps.Enabled)
	assert.Equal(t, 3, customers[0].Touchpoints.WhatsApp.FollowUps.NudgeCount)
	require.NotNil(t, customers[0].Touchpoints.WhatsApp.FollowUps.LastNudgeDate)
	assert.Equal(t, []string{"list_customers:ok"}, obs.calls)
}

func TestListCustomersMissingDataYieldsEmptyList(t *testing.T) {
	client := rawServer(t, http.StatusOK, `{"success":true}`, nil)

	customers, err := client.ListCustomers(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, customers)
	assert.Empty(t, customers)
}

func TestMissingSuccessIsFailure(t *testing.T) {
	client := rawServer(t, http.StatusOK, `{"data":[]}`, nil)

	_, err := client.ListCustomers(context.Background())
	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Failed to fetch customers", apiErr.Message)
}

func TestBackendErrorMessageIsSurfaced(t *testing.T) {
	client, store, obs := newTwinClient(t)
	store.FailNext(twin.OpSaveNote, "Note too long")

	err := client.SaveNote(context.Background(), "cust_aurora", "x")
	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Note too long", apiErr.Message)
	assert.Equal(t, "Note too long", backend.UserMessage(err))
	assert.Equal(t, []string{"save_note:api_error"}, obs.calls)
}

func TestNonJSONErrorUsesFallback(t *testing.T) {
	client := rawServer(t, http.StatusBadGateway, "<html>bad gateway</html>", nil)

	err := client.UpdateTouchpoint(context.Background(), "c1", "sms", true)
	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "Failed to update touchpoint", apiErr.Message)
}

func TestMalformedSuccessBody(t *testing.T) {
	client := rawServer(t, http.StatusOK, "not json", nil)

	_, err := client.ListNudgeLogs(context.Background(), "c1")
	assert.ErrorIs(t, err, backend.ErrMalformedResponse)
}

func TestSuccessMetricsWithoutDataIsMalformed(t *testing.T) {
	client := rawServer(t, http.StatusOK, `{"success":true}`, nil)

	_, err := client.SuccessMetrics(context.Background())
	assert.ErrorIs(t, err, backend.ErrMalformedResponse)
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	obs := &recordingObserver{}
	client := backend.NewClient(url, time.Second, obs)

	_, err := client.ListCustomers(context.Background())
	var transportErr *backend.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "list_customers", transportErr.Op)
	assert.Equal(t, "The backend could not be reached. Please try again.", backend.UserMessage(err))
	assert.Equal(t, []string{"list_customers:transport_error"}, obs.calls)
}

func TestUpdateTouchpointSendsDottedField(t *testing.T) {
	var method, path string
	var body map[string]bool
	client := rawServer(t, http.StatusOK, `{"success":true}`, func(r *http.Request, raw []byte) {
		method, path = r.Method, r.URL.Path
		_ = json.Unmarshal(raw, &body)
	})

	require.NoError(t, client.UpdateTouchpoint(context.Background(), "cust 1", "whatsapp.followUps.enabled", false))
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/customers/cust 1", path)
	assert.Equal(t, map[string]bool{"touchpoints.whatsapp.followUps.enabled": false}, body)
}

func TestSendNudgePath(t *testing.T) {
	var path string
	var body map[string][]string
	client := rawServer(t, http.StatusOK, `{"success":true}`, func(r *http.Request, raw []byte) {
		path = r.URL.Path
		_ = json.Unmarshal(raw, &body)
	})

	require.NoError(t, client.SendNudge(context.Background(), "c1", "emailFollowUps", "email", []string{"a@x.io"}))
	assert.Equal(t, "/nudge/c1/emailFollowUps/email", path)
	assert.Equal(t, []string{"a@x.io"}, body["recipients"])
}

func TestAddContactReturnsServerID(t *testing.T) {
	client, store, _ := newTwinClient(t)

	id, err := client.AddContact(context.Background(), "cust_brightside", backend.ContactPhone, "+4930123456")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	c, ok := store.Customer("cust_brightside")
	require.True(t, ok)
	assert.Equal(t, []string{"+4930123456"}, c.PointOfContact.Phone)
}

func TestAddContactWithoutIDInResponse(t *testing.T) {
	client := rawServer(t, http.StatusOK, `{"success":true,"data":{}}`, nil)

	id, err := client.AddContact(context.Background(), "c1", backend.ContactEmail, "a@x.io")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestDeleteContactBodyKeys(t *testing.T) {
	cases := []struct {
		kind backend.ContactKind
		key  string
	}{
		{backend.ContactEmail, "emails"},
		{backend.ContactPhone, "phones"},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			var method, path string
			var body map[string][]string
			client := rawServer(t, http.StatusOK, `{"success":true}`, func(r *http.Request, raw []byte) {
				method, path = r.Method, r.URL.Path
				_ = json.Unmarshal(raw, &body)
			})

			require.NoError(t, client.DeleteContact(context.Background(), "c1", tc.kind, "v"))
			assert.Equal(t, http.MethodDelete, method)
			assert.Equal(t, "/customers/c1/contact/"+string(tc.kind), path)
			assert.Equal(t, map[string][]string{tc.key: {"v"}}, body)
		})
	}
}

func TestInvalidArgumentsShortCircuit(t *testing.T) {
	called := false
	client := rawServer(t, http.StatusOK, `{"success":true}`, func(*http.Request, []byte) { called = true })

	_, err := client.AddContact(context.Background(), "c1", backend.ContactKind("fax"), "1")
	assert.True(t, errors.Is(err, backend.ErrInvalidArgument))
	err = client.SaveNote(context.Background(), " ", "note")
	assert.True(t, errors.Is(err, backend.ErrInvalidArgument))
	assert.False(t, called)
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	var header string
	client := rawServer(t, http.StatusOK, `{"success":true,"data":[]}`, func(r *http.Request, _ []byte) {
		header = r.Header.Get("X-Request-ID")
	})

	_, err := client.ListNudgeLogs(context.Background(), "c1")
	require.NoError(t, err)
	assert.NotEmpty(t, header)
}
