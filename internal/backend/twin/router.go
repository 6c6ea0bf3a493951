package twin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/referrush/csdash/internal/backend"
)

var errCustomerNotFound = errors.New("customer not found")

// Operation names accepted by FailNext and Requests.
const (
	OpListCustomers    = "list_customers"
	OpSaveNote         = "save_note"
	OpUpdateTouchpoint = "update_touchpoint"
	OpSendNudge        = "send_nudge"
	OpListNudgeLogs    = "list_nudge_logs"
	OpSuccessMetrics   = "success_metrics"
	OpAddContact       = "add_contact"
	OpDeleteContact    = "delete_contact"
)

// Handler serves the referral backend REST contract from a Store.
type Handler struct {
	store *Store
}

// NewHandler creates a new twin handler.
func NewHandler(s *Store) *Handler {
	return &Handler{store: s}
}

// Routes mounts the backend routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/customers", h.listCustomers)
	r.Post("/customers/notes", h.saveNote)
	r.Put("/customers/{id}", h.updateCustomer)
	r.Post("/customers/{id}/contact/{kind}", h.addContact)
	r.Delete("/customers/{id}/contact/{kind}", h.deleteContact)
	r.Post("/nudge/{customerId}/{touchpoint}/{channel}", h.sendNudge)
	r.Get("/nudge/logs/{customerId}", h.listNudgeLogs)
	r.Get("/metrics/success", h.successMetrics)
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	if h.injected(w, OpListCustomers) {
		return
	}
	ok(w, h.store.Customers())
}

func (h *Handler) saveNote(w http.ResponseWriter, r *http.Request) {
	if h.injected(w, OpSaveNote) {
		return
	}
	var req struct {
		CustomerID string `json:"customerId"`
		Note       string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.store.saveNote(req.CustomerID, req.Note); err != nil {
		failFor(w, err)
		return
	}
	ok(w, nil)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	if h.injected(w, OpUpdateTouchpoint) {
		return
	}
	var req map[string]bool
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id := chi.URLParam(r, "id")
	for key, value := range req {
		path, found := strings.CutPrefix(key, "touchpoints.")
		if !found {
			fail(w, http.StatusBadRequest, "only touchpoints can be updated")
			return
		}
		if err := h.store.setTouchpoint(id, path, value); err != nil {
			failFor(w, err)
			return
		}
	}
	ok(w, nil)
}

func (h *Handler) sendNudge(w http.ResponseWriter, r *http.Request) {
	if h.injected(w, OpSendNudge) {
		return
	}
	var req struct {
		Recipients []string `json:"recipients"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Recipients) == 0 {
		fail(w, http.StatusBadRequest, "No recipients provided")
		return
	}
	entry, err := h.store.recordNudge(chi.URLParam(r, "customerId"), chi.URLParam(r, "touchpoint"), chi.URLParam(r, "channel"), req.Recipients)
	if err != nil {
		failFor(w, err)
		return
	}
	ok(w, entry)
}

func (h *Handler) listNudgeLogs(w http.ResponseWriter, r *http.Request) {
	if h.injected(w, OpListNudgeLogs) {
		return
	}
	ok(w, h.store.nudgeLogs(chi.URLParam(r, "customerId")))
}

func (h *Handler) successMetrics(w http.ResponseWriter, r *http.Request) {
	if h.injected(w, OpSuccessMetrics) {
		return
	}
	ok(w, h.store.metrics())
}

func (h *Handler) addContact(w http.ResponseWriter, r *http.Request) {
	if h.injected(w, OpAddContact) {
		return
	}
	kind := backend.ContactKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		fail(w, http.StatusNotFound, "unknown contact kind")
		return
	}
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	value := strings.TrimSpace(req[string(kind)])
	if value == "" {
		fail(w, http.StatusBadRequest, string(kind)+" is required")
		return
	}
	contactID, err := h.store.addContact(chi.URLParam(r, "id"), kind, value)
	if err != nil {
		failFor(w, err)
		return
	}
	ok(w, map[string]string{"contactId": contactID})
}

func (h *Handler) deleteContact(w http.ResponseWriter, r *http.Request) {
	if h.injected(w, OpDeleteContact) {
		return
	}
	kind := backend.ContactKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		fail(w, http.StatusNotFound, "unknown contact kind")
		return
	}
	var req struct {
		Emails []string `json:"emails"`
		Phones []string `json:"phones"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	values := req.Emails
	if kind == backend.ContactPhone {
		values = req.Phones
	}
	if err := h.store.deleteContacts(chi.URLParam(r, "id"), kind, values); err != nil {
		failFor(w, err)
		return
	}
	ok(w, nil)
}

// injected answers with a pending FailNext failure for op.
func (h *Handler) injected(w http.ResponseWriter, op string) bool {
	msg, found := h.store.track(op)
	if !found {
		return false
	}
	fail(w, http.StatusOK, msg)
	return true
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

func failFor(w http.ResponseWriter, err error) {
	if errors.Is(err, errCustomerNotFound) {
		fail(w, http.StatusNotFound, "Customer not found")
		return
	}
	fail(w, http.StatusBadRequest, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
