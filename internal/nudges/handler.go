package nudges

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/referrush/csdash/internal/backend"
	"github.com/referrush/csdash/internal/shared"
	"github.com/referrush/csdash/internal/view"
)

// SendLimit bounds nudge sends per session.
type SendLimit struct {
	Requests int
	Window   time.Duration
}

// Handler serves the nudge composer and the nudge log pages.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	limit     SendLimit
	now       func() time.Time
}

// NewHandler constructs the nudge handler. A zero limit defaults to 10 sends a minute.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, limit SendLimit) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if limit.Requests <= 0 || limit.Window <= 0 {
		limit = SendLimit{Requests: 10, Window: time.Minute}
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, limit: limit, now: time.Now}
}

// MountRoutes registers nudge routes.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(h.limit.Requests, h.limit.Window,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Too many nudges. Please wait a moment.", http.StatusTooManyRequests)
		}),
	)

	r.Get("/customers/{id}/nudge", h.showComposer)
	r.With(limiter).Post("/customers/{id}/nudge", h.handleSend)
	r.Post("/customers/{id}/contacts", h.handleAddContact)
	r.Post("/customers/{id}/contacts/delete", h.handleDeleteContact)
	r.Get("/customers/{id}/nudge-logs", h.showLogs)
	r.Get("/customers/{id}/nudge-logs/export.csv", h.exportLogs)
}

func rateLimitKey(r *http.Request) (string, error) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil && sess.ID != "" {
		return "session:" + sess.ID, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

type feedback struct {
	Kind    string
	Message string
}

type contactView struct {
	ID       string
	Kind     string
	Value    string
	Selected bool
}

type channelOption struct {
	Value    string
	Label    string
	Selected bool
}

type nudgePageData struct {
	Customer   backend.Customer
	Catalog    []Touchpoint
	Touchpoint string
	Channels   []channelOption
	Channel    string
	Recipients []contactView
	Emails     []contactView
	Phones     []contactView
	Feedback   *feedback
	Error      string
}

type sendForm struct {
	Touchpoint string `validate:"required,touchpoint"`
	Channel    string `validate:"required,channel"`
}

func (h *Handler) showComposer(w http.ResponseWriter, r *http.Request) {
	comp, customer, ok := h.loadComposer(w, r)
	if !ok {
		return
	}
	h.applySelection(comp, r.URL.Query().Get("touchpoint"), r.URL.Query().Get("channel"), nil)
	h.renderComposer(w, r, http.StatusOK, comp, customer, nil)
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	comp, customer, ok := h.loadComposer(w, r)
	if !ok {
		return
	}
	form := sendForm{Touchpoint: r.PostFormValue("touchpoint"), Channel: r.PostFormValue("channel")}
	if err := validate.Struct(form); err != nil {
		h.applySelection(comp, form.Touchpoint, form.Channel, nil)
		h.renderComposer(w, r, http.StatusBadRequest, comp, customer, &feedback{Kind: shared.FlashError, Message: "Choose a touchpoint and a channel."})
		return
	}
	if err := h.applySelection(comp, form.Touchpoint, form.Channel, r.PostForm["recipients"]); err != nil {
		h.renderComposer(w, r, http.StatusBadRequest, comp, customer, &feedback{Kind: shared.FlashError, Message: "One of the selected contacts is not on this customer's list."})
		return
	}

	if err := h.service.Send(r.Context(), comp); err != nil {
		status := http.StatusBadGateway
		msg := backend.UserMessage(err)
		if errors.Is(err, ErrNoRecipients) {
			status = http.StatusBadRequest
			msg = "Select at least one contact to nudge."
		} else if msg == "" {
			msg = "Error sending nudge"
		}
		h.renderComposer(w, r, status, comp, customer, &feedback{Kind: shared.FlashError, Message: msg})
		return
	}
	h.renderComposer(w, r, http.StatusOK, comp, customer, &feedback{Kind: shared.FlashSuccess, Message: "Nudge sent successfully"})
}

func (h *Handler) handleAddContact(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	comp, customer, ok := h.loadComposer(w, r)
	if !ok {
		return
	}
	h.applySelection(comp, r.PostFormValue("touchpoint"), r.PostFormValue("channel"), nil)
	kind := backend.ContactKind(r.PostFormValue("kind"))
	ct, err := h.service.AddContact(r.Context(), comp, kind, r.PostFormValue("value"))
	if err != nil {
		h.renderComposer(w, r, contactStatus(err), comp, customer, &feedback{Kind: shared.FlashError, Message: contactMessage(err, "add")})
		return
	}
	h.renderComposer(w, r, http.StatusOK, comp, customer, &feedback{Kind: shared.FlashSuccess, Message: fmt.Sprintf("Added %s", ct.Value)})
}

func (h *Handler) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	comp, customer, ok := h.loadComposer(w, r)
	if !ok {
		return
	}
	h.applySelection(comp, r.PostFormValue("touchpoint"), r.PostFormValue("channel"), nil)
	kind := backend.ContactKind(r.PostFormValue("kind"))
	value := strings.TrimSpace(r.PostFormValue("value"))
	if err := h.service.DeleteContact(r.Context(), comp, kind, value); err != nil {
		h.renderComposer(w, r, contactStatus(err), comp, customer, &feedback{Kind: shared.FlashError, Message: contactMessage(err, "delete")})
		return
	}
	h.renderComposer(w, r, http.StatusOK, comp, customer, &feedback{Kind: shared.FlashSuccess, Message: fmt.Sprintf("Removed %s", value)})
}

func contactStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidContact), errors.Is(err, ErrDuplicateContact), errors.Is(err, backend.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrContactNotFound):
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

func contactMessage(err error, verb string) string {
	switch {
	case errors.Is(err, ErrInvalidContact), errors.Is(err, backend.ErrInvalidArgument):
		return "Enter a valid email address or phone number."
	case errors.Is(err, ErrDuplicateContact):
		return "That contact is already on the list."
	case errors.Is(err, ErrContactNotFound):
		return "That contact is not on the list."
	}
	if msg := backend.UserMessage(err); msg != "" {
		return msg
	}
	return fmt.Sprintf("Failed to %s contact.", verb)
}

// applySelection copies request choices onto comp, ignoring unknown
// touchpoints and channels so the defaults stay in place.
func (h *Handler) applySelection(comp *Composer, touchpoint, channel string, recipients []string) error {
	if touchpoint != "" {
		_ = comp.SetTouchpoint(touchpoint)
	}
	if channel != "" {
		_ = comp.SetChannel(Channel(channel))
	}
	if len(recipients) == 0 {
		return nil
	}
	return comp.Select(recipients...)
}

func (h *Handler) loadComposer(w http.ResponseWriter, r *http.Request) (*Composer, backend.Customer, bool) {
	comp, customer, err := h.service.Composer(r.Context(), chi.URLParam(r, "id"))
	if err == nil {
		return comp, customer, true
	}
	if errors.Is(err, shared.ErrNotFound) {
		http.NotFound(w, r)
		return nil, backend.Customer{}, false
	}
	h.logger.Error("load customer for nudge", slog.Any("error", err))
	h.render(w, r, http.StatusBadGateway, "pages/nudge.html", "Send Nudge", nudgePageData{Error: backend.UserMessage(err)})
	return nil, backend.Customer{}, false
}

func (h *Handler) renderComposer(w http.ResponseWriter, r *http.Request, status int, comp *Composer, customer backend.Customer, fb *feedback) {
	data := nudgePageData{
		Customer:   customer,
		Catalog:    Catalog(),
		Touchpoint: comp.Touchpoint(),
		Channel:    string(comp.Channel()),
		Feedback:   fb,
	}
	for _, ch := range Channels() {
		data.Channels = append(data.Channels, channelOption{Value: string(ch), Label: ch.Label(), Selected: ch == comp.Channel()})
	}
	for _, ct := range comp.Contacts() {
		cv := contactView{ID: ct.ID, Kind: string(ct.Kind), Value: ct.Value, Selected: comp.IsSelected(ct)}
		if ct.Kind == backend.ContactEmail {
			data.Emails = append(data.Emails, cv)
		} else {
			data.Phones = append(data.Phones, cv)
		}
		if ct.Kind == comp.Channel().ContactKind() {
			data.Recipients = append(data.Recipients, cv)
		}
	}
	h.render(w, r, status, "pages/nudge.html", "Send Nudge to "+customer.Name, data)
}

type logRow struct {
	ID         string
	Touchpoint string
	Channel    string
	SentAt     time.Time
	Ago        string
	Success    bool
	Error      string
}

type logsPageData struct {
	Customer backend.Customer
	Rows     []logRow
	Stats    LogStats
	Shown    int
	Filter   string
	Search   string
	Filters  []StatusFilter
	Error    string
}

func queryFromRequest(r *http.Request) LogQuery {
	return LogQuery{Status: ParseStatusFilter(r.URL.Query().Get("filter")), Search: r.URL.Query().Get("q")}
}

func (h *Handler) showLogs(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")
	q := queryFromRequest(r)
	data := logsPageData{
		Customer: backend.Customer{ID: customerID},
		Filter:   string(q.Status),
		Search:   q.Search,
		Filters:  []StatusFilter{FilterAll, FilterSuccess, FilterFailed},
	}
	if c, err := h.service.Customer(r.Context(), customerID); err == nil {
		data.Customer = c
	} else if !errors.Is(err, shared.ErrNotFound) {
		h.logger.Warn("load customer for logs", slog.Any("error", err))
	}

	all, filtered, err := h.service.Logs(r.Context(), customerID, q)
	if err != nil {
		h.logger.Error("fetch nudge logs", slog.String("customer_id", customerID), slog.Any("error", err))
		data.Error = backend.UserMessage(err)
		h.render(w, r, http.StatusOK, "pages/nudge_logs.html", "Nudge Logs", data)
		return
	}
	now := h.now()
	data.Stats = Stats(all)
	data.Shown = len(filtered)
	for _, l := range filtered {
		data.Rows = append(data.Rows, logRow{
			ID:         l.ID,
			Touchpoint: TouchpointLabel(l.Touchpoint),
			Channel:    l.Channel,
			SentAt:     l.SentAt,
			Ago:        RelativeTime(now, l.SentAt),
			Success:    l.Success,
			Error:      l.ErrorMessage,
		})
	}
	title := "Nudge Logs"
	if data.Customer.Name != "" {
		title += " for " + data.Customer.Name
	}
	h.render(w, r, http.StatusOK, "pages/nudge_logs.html", title, data)
}

func (h *Handler) exportLogs(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")
	_, filtered, err := h.service.Logs(r.Context(), customerID, queryFromRequest(r))
	if err != nil {
		h.logger.Error("export nudge logs", slog.String("customer_id", customerID), slog.Any("error", err))
		http.Error(w, backend.UserMessage(err), http.StatusBadGateway)
		return
	}
	var buf bytes.Buffer
	if err := WriteLogsCSV(&buf, filtered); err != nil {
		h.logger.Error("write nudge log csv", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=nudge-logs-%s.csv", customerID))
	_, _ = w.Write(buf.Bytes())
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
