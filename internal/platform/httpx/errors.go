package httpx

import (
	"errors"
	"net/http"

	"github.com/referrush/csdash/internal/backend"
	"github.com/referrush/csdash/internal/shared"
)

// ErrValidation marks request input that failed validation.
var ErrValidation = errors.New("validation failed")

// RespondError maps domain and backend errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var apiErr *backend.APIError
	var transportErr *backend.TransportError
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, backend.ErrInvalidArgument):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.As(err, &apiErr):
		Problem(w, http.StatusBadGateway, "Backend Error", backend.UserMessage(err))
	case errors.As(err, &transportErr):
		Problem(w, http.StatusServiceUnavailable, "Backend Unavailable", backend.UserMessage(err))
	case errors.Is(err, backend.ErrMalformedResponse):
		Problem(w, http.StatusBadGateway, "Backend Error", backend.UserMessage(err))
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
