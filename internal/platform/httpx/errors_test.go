package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/referrush/csdash/internal/backend"
	"github.com/referrush/csdash/internal/shared"
)

func TestRespondError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"not found", fmt.Errorf("customer x: %w", shared.ErrNotFound), http.StatusNotFound, "customer x: not found"},
		{"validation", fmt.Errorf("note: %w", ErrValidation), http.StatusBadRequest, "note: validation failed"},
		{"invalid argument", backend.ErrInvalidArgument, http.StatusBadRequest, "backend: invalid argument"},
		{"api", &backend.APIError{Op: "saveNote", Status: 200, Message: "Note rejected"}, http.StatusBadGateway, "Note rejected"},
		{"transport", &backend.TransportError{Op: "saveNote", Err: errors.New("dial tcp")}, http.StatusServiceUnavailable, "The backend could not be reached. Please try again."},
		{"malformed", backend.ErrMalformedResponse, http.StatusBadGateway, "The backend returned an unexpected response."},
		{"other", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RespondError(rr, tc.err)
			assert.Equal(t, tc.status, rr.Code)
			assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
			var p ProblemDetail
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
			assert.Equal(t, tc.status, p.Status)
			assert.Equal(t, tc.detail, p.Detail)
		})
	}
}

func TestJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	JSON(rr, http.StatusCreated, map[string]bool{"ok": true})
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())
}
