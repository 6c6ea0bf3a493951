package audithttp

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/referrush/csdash/internal/audit"
	"github.com/referrush/csdash/internal/shared"
	"github.com/referrush/csdash/internal/view"
)

const (
	defaultDateRange = 7 * 24 * time.Hour
	maxDateRange     = 90 * 24 * time.Hour
	dateLayout       = "2006-01-02"
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Enabled() bool
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error)
}

// Handler serves the activity timeline.
type Handler struct {
	logger    *slog.Logger
	service   TimelineService
	templates *view.Engine
	csrf      *shared.CSRFManager
	now       func() time.Time
}

// NewHandler creates the audit handler.
func NewHandler(logger *slog.Logger, service TimelineService, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		csrf:      csrf,
		now:       time.Now,
	}
}

type filterView struct {
	From       string
	To         string
	Action     string
	CustomerID string
}

type timelinePageData struct {
	Enabled bool
	Filters filterView
	Actions []audit.ActionOption
	Rows    []audit.TimelineRow
	Paging  audit.PagingInfo
	PrevURL string
	NextURL string
	Export  string
	Error   string
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	data := timelinePageData{Enabled: h.service.Enabled(), Actions: audit.Actions()}
	filters, fv, err := h.parseFilters(r)
	data.Filters = fv
	if err != nil {
		data.Error = err.Error()
		h.render(w, r, http.StatusBadRequest, data)
		return
	}
	if !data.Enabled {
		h.render(w, r, http.StatusOK, data)
		return
	}

	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("load audit timeline", slog.Any("error", err))
		data.Error = userMessage(err)
		h.render(w, r, http.StatusOK, data)
		return
	}
	data.Rows = result.Rows
	data.Paging = result.Paging
	if result.Paging.PrevPage > 0 {
		data.PrevURL = pageURL(r.URL.Query(), result.Paging.PrevPage)
	}
	if result.Paging.NextPage > 0 {
		data.NextURL = pageURL(r.URL.Query(), result.Paging.NextPage)
	}
	export := r.URL.Query()
	export.Del("page")
	data.Export = "/audit/export.csv"
	if enc := export.Encode(); enc != "" {
		data.Export += "?" + enc
	}
	h.render(w, r, http.StatusOK, data)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, _, err := h.parseFilters(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		if errors.Is(err, audit.ErrDisabled) {
			http.Error(w, userMessage(err), http.StatusNotFound)
			return
		}
		h.logger.Error("export audit timeline", slog.Any("error", err))
		http.Error(w, userMessage(err), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := audit.WriteCSV(&buf, rows); err != nil {
		h.logger.Error("encode audit csv", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"activity.csv\"")
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

type filterError string

func (e filterError) Error() string { return string(e) }

func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, filterView, error) {
	q := r.URL.Query()
	now := h.now().UTC()
	fv := filterView{
		From:       strings.TrimSpace(q.Get("from")),
		To:         strings.TrimSpace(q.Get("to")),
		Action:     strings.TrimSpace(q.Get("action")),
		CustomerID: strings.TrimSpace(q.Get("customer")),
	}
	if fv.To == "" {
		fv.To = now.Format(dateLayout)
	}
	toDay, err := time.Parse(dateLayout, fv.To)
	if err != nil {
		return audit.TimelineFilters{}, fv, filterError("The end date must look like 2024-04-30.")
	}
	if fv.From == "" {
		fv.From = toDay.Add(-defaultDateRange).Format(dateLayout)
	}
	fromDay, err := time.Parse(dateLayout, fv.From)
	if err != nil {
		return audit.TimelineFilters{}, fv, filterError("The start date must look like 2024-04-01.")
	}
	if fromDay.After(toDay) {
		return audit.TimelineFilters{}, fv, filterError("The start date must be before the end date.")
	}
	if toDay.Sub(fromDay) > maxDateRange {
		return audit.TimelineFilters{}, fv, filterError("Pick a range of at most 90 days.")
	}
	if fv.Action != "" && !audit.ValidAction(fv.Action) {
		return audit.TimelineFilters{}, fv, filterError("Unknown action filter.")
	}

	page := 1
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.TimelineFilters{}, fv, filterError("Invalid page.")
		}
		page = parsed
	}

	return audit.TimelineFilters{
		From:       fromDay,
		To:         toDay.Add(24 * time.Hour),
		Action:     fv.Action,
		CustomerID: fv.CustomerID,
		Page:       page,
	}, fv, nil
}

func pageURL(q url.Values, page int) string {
	next := url.Values{}
	for k, v := range q {
		next[k] = v
	}
	next.Set("page", strconv.Itoa(page))
	return "/audit?" + next.Encode()
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, audit.ErrDisabled):
		return "The audit trail is not enabled."
	case errors.Is(err, shared.ErrAuditUnavailable):
		return "The audit trail has not been created yet."
	default:
		return "Activity could not be loaded. Please try again."
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data timelinePageData) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Activity",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, "pages/audit.html", viewData); err != nil {
		h.logger.Error("render audit timeline", slog.Any("error", err))
	}
}
