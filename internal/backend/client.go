// Package backend is the typed client of the referral REST backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 8 << 20
)

// Call outcomes reported to the Observer.
const (
	OutcomeOK        = "ok"
	OutcomeAPIError  = "api_error"
	OutcomeTransport = "transport_error"
	OutcomeMalformed = "malformed"
)

// Observer receives one notification per backend call.
type Observer interface {
	ObserveBackendCall(op, outcome string, elapsed time.Duration)
}

// Client wraps interactions with the referral backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	observer   Observer
}

// NewClient constructs a new client. A non-positive timeout falls back to ten seconds.
func NewClient(baseURL string, timeout time.Duration, observer Observer) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		observer:   observer,
	}
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ListCustomers fetches every customer.
func (c *Client) ListCustomers(ctx context.Context) ([]Customer, error) {
	var customers []Customer
	if err := c.do(ctx, "list_customers", http.MethodGet, "/customers", nil, &customers, "Failed to fetch customers"); err != nil {
		return nil, err
	}
	if customers == nil {
		customers = []Customer{}
	}
	return customers, nil
}

// SaveNote replaces the free-text note of a customer.
func (c *Client) SaveNote(ctx context.Context, customerID, note string) error {
	if strings.TrimSpace(customerID) == "" {
		return fmt.Errorf("%w: customer id required", ErrInvalidArgument)
	}
	body := map[string]string{"customerId": customerID, "note": note}
	return c.do(ctx, "save_note", http.MethodPost, "/customers/notes", body, nil, "Failed to save note")
}

// UpdateTouchpoint sets one dotted touchpoint field, e.g. "whatsapp.whitelabeled".
func (c *Client) UpdateTouchpoint(ctx context.Context, customerID, path string, value bool) error {
	if strings.TrimSpace(customerID) == "" || strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: customer id and touchpoint path required", ErrInvalidArgument)
	}
	body := map[string]bool{"touchpoints." + path: value}
	return c.do(ctx, "update_touchpoint", http.MethodPut, "/customers/"+url.PathEscape(customerID), body, nil, "Failed to update touchpoint")
}

// SendNudge triggers a manual nudge to the given recipients.
func (c *Client) SendNudge(ctx context.Context, customerID, touchpoint, channel string, recipients []string) error {
	if strings.TrimSpace(customerID) == "" || touchpoint == "" || channel == "" {
		return fmt.Errorf("%w: customer, touchpoint and channel required", ErrInvalidArgument)
	}
	path := fmt.Sprintf("/nudge/%s/%s/%s", url.PathEscape(customerID), url.PathEscape(touchpoint), url.PathEscape(channel))
	body := map[string][]string{"recipients": recipients}
	return c.do(ctx, "send_nudge", http.MethodPost, path, body, nil, "Failed to send nudge")
}

// ListNudgeLogs fetches the delivery log of a customer.
func (c *Client) ListNudgeLogs(ctx context.Context, customerID string) ([]NudgeLog, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, fmt.Errorf("%w: customer id required", ErrInvalidArgument)
	}
	var logs []NudgeLog
	if err := c.do(ctx, "list_nudge_logs", http.MethodGet, "/nudge/logs/"+url.PathEscape(customerID), nil, &logs, "Failed to fetch nudge logs"); err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []NudgeLog{}
	}
	return logs, nil
}

// SuccessMetrics fetches the aggregate success report.
func (c *Client) SuccessMetrics(ctx context.Context) (Metrics, error) {
	var metrics *Metrics
	if err := c.do(ctx, "success_metrics", http.MethodGet, "/metrics/success", nil, &metrics, "Failed to fetch metrics"); err != nil {
		return Metrics{}, err
	}
	if metrics == nil {
		return Metrics{}, fmt.Errorf("%w: success_metrics: data missing", ErrMalformedResponse)
	}
	return *metrics, nil
}

// AddContact registers a new email or phone contact and returns the id issued by the backend.
// The id is empty when the backend does not issue one.
func (c *Client) AddContact(ctx context.Context, customerID string, kind ContactKind, value string) (string, error) {
	if strings.TrimSpace(customerID) == "" || strings.TrimSpace(value) == "" || !kind.Valid() {
		return "", fmt.Errorf("%w: customer id, contact kind and value required", ErrInvalidArgument)
	}
	body := map[string]string{string(kind): value}
	var out struct {
		ContactID string `json:"contactId"`
	}
	path := fmt.Sprintf("/customers/%s/contact/%s", url.PathEscape(customerID), kind)
	if err := c.do(ctx, "add_contact", http.MethodPost, path, body, &out, fmt.Sprintf("Failed to add %s contact", kind)); err != nil {
		return "", err
	}
	return out.ContactID, nil
}

// DeleteContact removes an email or phone contact by value.
func (c *Client) DeleteContact(ctx context.Context, customerID string, kind ContactKind, value string) error {
	if strings.TrimSpace(customerID) == "" || strings.TrimSpace(value) == "" || !kind.Valid() {
		return fmt.Errorf("%w: customer id, contact kind and value required", ErrInvalidArgument)
	}
	key := "emails"
	if kind == ContactPhone {
		key = "phones"
	}
	body := map[string][]string{key: {value}}
	path := fmt.Sprintf("/customers/%s/contact/%s", url.PathEscape(customerID), kind)
	return c.do(ctx, "delete_contact", http.MethodDelete, path, body, nil, fmt.Sprintf("Failed to delete %s", kind))
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any, fallback string) error {
	start := time.Now()
	err := c.roundTrip(ctx, op, method, path, body, out, fallback)
	c.observe(op, outcomeOf(err), time.Since(start))
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, body, out any, fallback string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: encode %s: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("backend: build %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", requestID(ctx))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{Op: op, Status: resp.StatusCode, Message: fallback}
		}
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, op, err)
	}
	if env.Success == nil || !*env.Success {
		msg := strings.TrimSpace(env.Error)
		if msg == "" {
			msg = fallback
		}
		return &APIError{Op: op, Status: resp.StatusCode, Message: msg}
	}
	if out == nil || len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, op, err)
	}
	return nil
}

func (c *Client) observe(op, outcome string, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveBackendCall(op, outcome, elapsed)
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return OutcomeOK
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return OutcomeAPIError
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return OutcomeTransport
	}
	return OutcomeMalformed
}

func requestID(ctx context.Context) string {
	if id := middleware.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}
