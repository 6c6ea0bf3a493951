package customers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/referrush/csdash/internal/backend"
	"github.com/referrush/csdash/internal/platform/httpx"
	"github.com/referrush/csdash/internal/shared"
	"github.com/referrush/csdash/internal/view"
)

const (
	maxFollowUps   = 5
	roiPlaceholder = "4.2x"
	maxNoteLength  = 4000
)

// Handler wires HTTP endpoints for the roster, touchpoints and notes.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	validator *validator.Validate
}

// NewHandler constructs the roster handler.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	v := validator.New()
	_ = v.RegisterValidation("touchpoint", func(fl validator.FieldLevel) bool {
		return ValidPath(fl.Field().String())
	})
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, validator: v}
}

// MountRoutes registers roster routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showRoster)
	r.Get("/customers", h.showRoster)
	r.Post("/customers/{id}/touchpoints", h.handleToggle)
	r.Get("/customers/{id}/notes", h.showNote)
	r.Post("/customers/{id}/notes", h.handleNote)
}

type switchView struct {
	Path    string
	Label   string
	Checked bool
}

type rosterRow struct {
	ID                string
	Name              string
	Discount          string
	Cashback          float64
	AllCustomers      bool
	Switches          []switchView
	Extras            []switchView
	WhatsAppFollowUps string
	EmailFollowUps    string
	HasNote           bool
	ROI               string
	Percentage        int
}

type rosterPageData struct {
	Rows    []rosterRow
	Columns []TouchpointDef
	Error   string
}

type toggleForm struct {
	Path  string `validate:"required,touchpoint"`
	Value bool
}

type noteForm struct {
	Note string `validate:"max=4000"`
}

type notePageData struct {
	Customer  backend.Customer
	Draft     string
	Error     string
	MaxLength int
}

type toggleResponse struct {
	Checked bool   `json:"checked"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) showRoster(w http.ResponseWriter, r *http.Request) {
	data := rosterPageData{Columns: columnDefs()}
	roster, err := h.service.Roster(r.Context())
	if err != nil {
		h.logger.Error("fetch customers", slog.Any("error", err))
		data.Error = backend.UserMessage(err)
	} else {
		data.Rows = buildRows(roster)
	}
	h.render(w, r, http.StatusOK, "pages/customers.html", "Customers", data)
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	wantsJSON := strings.Contains(r.Header.Get("Accept"), "application/json")
	if err := r.ParseForm(); err != nil {
		h.toggleFailure(w, r, wantsJSON, http.StatusBadRequest, "invalid form")
		return
	}
	customerID := chi.URLParam(r, "id")
	value, err := parseSwitchValue(r.PostFormValue("value"))
	if err != nil {
		h.toggleFailure(w, r, wantsJSON, http.StatusBadRequest, "value must be a boolean")
		return
	}
	form := toggleForm{Path: r.PostFormValue("path"), Value: value}
	if err := h.validator.Struct(form); err != nil {
		h.toggleFailure(w, r, wantsJSON, http.StatusBadRequest, fmt.Sprintf("unknown touchpoint %q", form.Path))
		return
	}

	result := h.service.Toggle(r.Context(), customerID, form.Path, form.Value)
	if wantsJSON {
		resp := toggleResponse{Checked: result.Checked, OK: result.Err == nil}
		if result.Err != nil {
			resp.Error = backend.UserMessage(result.Err)
		}
		httpx.JSON(w, http.StatusOK, resp)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if result.Err != nil {
			sess.AddFlash(shared.FlashMessage{Kind: shared.FlashError, Message: backend.UserMessage(result.Err)})
		} else {
			state := "off"
			if result.Checked {
				state = "on"
			}
			sess.AddFlash(shared.FlashMessage{Kind: shared.FlashSuccess, Message: fmt.Sprintf("%s turned %s", LabelFor(form.Path), state)})
		}
	}
	http.Redirect(w, r, "/customers", http.StatusSeeOther)
}

func (h *Handler) toggleFailure(w http.ResponseWriter, r *http.Request, wantsJSON bool, status int, detail string) {
	if wantsJSON {
		httpx.Problem(w, status, "Invalid Toggle", detail)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: shared.FlashError, Message: detail})
	}
	http.Redirect(w, r, "/customers", http.StatusSeeOther)
}

func (h *Handler) showNote(w http.ResponseWriter, r *http.Request) {
	customer, ok, err := h.findCustomer(r, chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Error("fetch customer for note", slog.Any("error", err))
		h.render(w, r, http.StatusBadGateway, "pages/customer_note.html", "Notes", notePageData{Error: backend.UserMessage(err), MaxLength: maxNoteLength})
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	h.render(w, r, http.StatusOK, "pages/customer_note.html", "Notes for "+customer.Name, notePageData{Customer: customer, Draft: customer.Note, MaxLength: maxNoteLength})
}

func (h *Handler) handleNote(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	customerID := chi.URLParam(r, "id")
	form := noteForm{Note: r.PostFormValue("note")}

	roster, err := h.service.Roster(r.Context())
	if err != nil {
		h.logger.Error("fetch customer for note", slog.Any("error", err))
		h.render(w, r, http.StatusBadGateway, "pages/customer_note.html", "Notes", notePageData{
			Customer:  backend.Customer{ID: customerID},
			Draft:     form.Note,
			Error:     "Failed to save note. Please try again.",
			MaxLength: maxNoteLength,
		})
		return
	}
	customer, ok := roster.Find(customerID)
	if !ok {
		http.NotFound(w, r)
		return
	}

	data := notePageData{Customer: customer, Draft: form.Note, MaxLength: maxNoteLength}
	if err := h.validator.Struct(form); err != nil {
		data.Error = fmt.Sprintf("Notes are limited to %d characters.", maxNoteLength)
		h.render(w, r, http.StatusBadRequest, "pages/customer_note.html", "Notes for "+customer.Name, data)
		return
	}
	if err := h.service.SaveNote(r.Context(), roster, customerID, form.Note); err != nil {
		data.Error = "Failed to save note. Please try again."
		h.render(w, r, http.StatusBadGateway, "pages/customer_note.html", "Notes for "+customer.Name, data)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: shared.FlashSuccess, Message: fmt.Sprintf("Note for %s saved successfully", customer.Name)})
	}
	http.Redirect(w, r, "/customers", http.StatusSeeOther)
}

func (h *Handler) findCustomer(r *http.Request, id string) (backend.Customer, bool, error) {
	roster, err := h.service.Roster(r.Context())
	if err != nil {
		return backend.Customer{}, false, err
	}
	c, ok := roster.Find(id)
	return c, ok, nil
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, page, viewData); err != nil {
		h.logger.Error("render "+page, slog.Any("error", err))
	}
}

func buildRows(roster *Roster) []rosterRow {
	rows := make([]rosterRow, 0, roster.Len())
	for _, c := range roster.Customers() {
		row := rosterRow{
			ID:                c.ID,
			Name:              c.Name,
			Discount:          c.Offer.Discount,
			Cashback:          c.Offer.Cashback,
			AllCustomers:      c.Offer.AllCustomersCanUseCode,
			WhatsAppFollowUps: fmt.Sprintf("%d/%d", c.Touchpoints.WhatsApp.FollowUps.NudgeCount, maxFollowUps),
			EmailFollowUps:    fmt.Sprintf("%d/%d", c.Touchpoints.Email.FollowUps.NudgeCount, maxFollowUps),
			HasNote:           strings.TrimSpace(c.Note) != "",
			ROI:               roiPlaceholder,
			Percentage:        TouchpointPercentage(c),
		}
		for _, def := range touchpointDefs {
			checked, _ := TouchpointValue(c, def.Path)
			sv := switchView{Path: def.Path, Label: def.Label, Checked: checked}
			if def.Column {
				row.Switches = append(row.Switches, sv)
			} else {
				row.Extras = append(row.Extras, sv)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func columnDefs() []TouchpointDef {
	var cols []TouchpointDef
	for _, def := range touchpointDefs {
		if def.Column {
			cols = append(cols, def)
		}
	}
	return cols
}

var errNotBool = errors.New("not a boolean")

func parseSwitchValue(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on":
		return true, nil
	case "off", "":
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errNotBool
	}
	return v, nil
}
