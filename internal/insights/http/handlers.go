package insightshttp

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/referrush/csdash/internal/backend"
	"github.com/referrush/csdash/internal/insights"
	insightssvg "github.com/referrush/csdash/internal/insights/svg"
	"github.com/referrush/csdash/internal/platform/httpx"
	"github.com/referrush/csdash/internal/shared"
	"github.com/referrush/csdash/internal/view"
)

const (
	chartWidth     = 720
	chartHeight    = 240
	requestTimeout = 5 * time.Second
)

// ReportService loads the success report.
type ReportService interface {
	Report(ctx context.Context) (insights.SuccessReport, error)
}

// CustomerLookup lists customers for the per-customer page header.
type CustomerLookup interface {
	ListCustomers(ctx context.Context) ([]backend.Customer, error)
}

// Handler serves the analytics views.
type Handler struct {
	logger    *slog.Logger
	service   ReportService
	customers CustomerLookup
	templates *view.Engine
	csrf      *shared.CSRFManager
	snapshot  func() insights.BusinessSnapshot
}

// NewHandler builds the analytics handler.
func NewHandler(logger *slog.Logger, service ReportService, customers CustomerLookup, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		customers: customers,
		templates: templates,
		csrf:      csrf,
		snapshot:  insights.SampleSnapshot,
	}
}

type successPageData struct {
	Report insights.SuccessReport
	Chart  template.HTML
	Ready  bool
	Error  string
}

func (h *Handler) handleSuccess(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	data := successPageData{}
	report, err := h.service.Report(ctx)
	if err != nil {
		h.logger.Error("load success metrics", slog.Any("error", err))
		data.Error = backend.UserMessage(err)
		h.render(w, r, "pages/analytics_success.html", "Success Metrics", data)
		return
	}
	data.Report = report
	data.Ready = true
	data.Chart, err = adoptionChart(report)
	if err != nil {
		h.logger.Warn("render adoption chart", slog.Any("error", err))
	}
	h.render(w, r, "pages/analytics_success.html", "Success Metrics", data)
}

func adoptionChart(report insights.SuccessReport) (template.HTML, error) {
	groups := make([]insightssvg.Group, 0, len(report.Rates))
	for _, rate := range report.Rates {
		groups = append(groups, insightssvg.Group{Label: rate.Label, Values: []float64{rate.Percent}})
	}
	return insightssvg.Bars(chartWidth+240, chartHeight+40, groups, insightssvg.BarOpts{
		Title:       "Touchpoint adoption",
		Description: "Share of customers with each touchpoint enabled",
		Series:      []insightssvg.Series{{Label: "Adoption"}},
		Max:         100,
		Format:      insightssvg.PercentTick,
	})
}

func (h *Handler) handleSuccessJSON(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	report, err := h.service.Report(ctx)
	if err != nil {
		h.logger.Error("load success metrics", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleSuccessCSV(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	report, err := h.service.Report(ctx)
	if err != nil {
		h.logger.Error("export success metrics", slog.Any("error", err))
		http.Error(w, backend.UserMessage(err), http.StatusBadGateway)
		return
	}
	var buf bytes.Buffer
	if err := insights.WriteSuccessCSV(&buf, report); err != nil {
		h.logger.Error("write success csv", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=success-metrics.csv")
	_, _ = w.Write(buf.Bytes())
}

type merchantRow struct {
	insights.Merchant
	Share float64
}

type businessPageData struct {
	Customer        *backend.Customer
	Success         *insights.BreakdownRow
	Snapshot        insights.BusinessSnapshot
	Tier            insights.ROITier
	GaugePercent    int
	Gauge           template.HTML
	RevenueChart    template.HTML
	ROIChart        template.HTML
	CommissionChart template.HTML
	Merchants       []merchantRow
	Error           string
}

func (h *Handler) handleBusiness(w http.ResponseWriter, r *http.Request) {
	data, err := h.buildBusiness(h.snapshot())
	if err != nil {
		h.logger.Error("build business analytics", slog.Any("error", err))
		data.Error = "Charts could not be rendered."
	}
	h.render(w, r, "pages/analytics.html", "Business Analytics", data)
}

func (h *Handler) handleCustomerAnalytics(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var (
		customer backend.Customer
		found    bool
		report   insights.SuccessReport
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := h.customers.ListCustomers(gctx)
		if err != nil {
			return err
		}
		for _, c := range list {
			if c.ID == customerID {
				customer, found = c, true
				break
			}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		report, err = h.service.Report(gctx)
		if err != nil {
			h.logger.Warn("load success metrics for customer", slog.Any("error", err))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		h.logger.Error("load customer analytics", slog.String("customer_id", customerID), slog.Any("error", err))
		h.render(w, r, "pages/analytics.html", "Analytics", businessPageData{Error: backend.UserMessage(err)})
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}

	data, err := h.buildBusiness(h.snapshot())
	if err != nil {
		h.logger.Error("build business analytics", slog.Any("error", err))
		data.Error = "Charts could not be rendered."
	}
	data.Customer = &customer
	if row, ok := report.Find(customerID); ok {
		data.Success = &row
	}
	h.render(w, r, "pages/analytics.html", "Analytics for "+customer.Name, data)
}

// buildBusiness renders the snapshot charts concurrently.
func (h *Handler) buildBusiness(s insights.BusinessSnapshot) (businessPageData, error) {
	progress := insights.GaugeProgress(s.ROI)
	data := businessPageData{
		Snapshot:     s,
		Tier:         insights.TierForROI(s.ROI),
		GaugePercent: int(math.Round(progress * 100)),
		Gauge: insightssvg.Gauge(insightssvg.DefaultGauge, progress, insightssvg.GaugeOpts{
			Title:   "Return on investment",
			Label:   fmt.Sprintf("%.1fx", s.ROI),
			Caption: "ROI",
		}),
	}
	for _, m := range s.Merchants {
		data.Merchants = append(data.Merchants, merchantRow{Merchant: m, Share: s.ShareOfSales(m)})
	}

	var g errgroup.Group
	g.Go(func() error {
		groups := make([]insightssvg.Group, 0, len(s.RevenueTrend))
		for _, p := range s.RevenueTrend {
			groups = append(groups, insightssvg.Group{Label: p.Month, Values: []float64{p.Subscriptions, p.Commissions}})
		}
		var err error
		data.RevenueChart, err = insightssvg.Bars(chartWidth, chartHeight, groups, insightssvg.BarOpts{
			Title:       "Revenue trend",
			Description: "Monthly revenue from subscriptions and commissions",
			Series:      []insightssvg.Series{{Label: "Subscriptions"}, {Label: "Commissions"}},
		})
		return err
	})
	g.Go(func() error {
		points := make([]insightssvg.Point, 0, len(s.ROITrend))
		for _, p := range s.ROITrend {
			points = append(points, insightssvg.Point{Label: p.Month, Value: p.ROI})
		}
		var err error
		data.ROIChart, err = insightssvg.Line(chartWidth, chartHeight, points, insightssvg.LineOpts{
			Title:       "ROI trend",
			Description: "Return on investment by month",
			ShowDots:    true,
			Format:      insightssvg.MultipleTick,
		})
		return err
	})
	g.Go(func() error {
		points := make([]insightssvg.Point, 0, len(s.Commissions))
		for _, c := range s.Commissions {
			points = append(points, insightssvg.Point{Label: c.Month, Value: c.Commission})
		}
		var err error
		data.CommissionChart, err = insightssvg.Line(chartWidth, chartHeight, points, insightssvg.LineOpts{
			Title:       "Commission history",
			Description: "Commission earned on referral sales",
			StrokeColor: "#10b981",
			FillColor:   "rgba(16,185,129,0.15)",
		})
		return err
	})
	return data, g.Wait()
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, page, title string, data any) {
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
	if err := h.templates.Render(w, page, viewData); err != nil {
		h.logger.Error("render "+page, slog.Any("error", err))
	}
}
