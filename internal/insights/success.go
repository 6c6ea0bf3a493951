// Package insights prepares the analytics views: the success metrics report
// computed by the referral backend and the business analytics snapshot.
package insights

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/referrush/csdash/internal/backend"
)

// Tier buckets a success rate.
type Tier string

const (
	TierGreat   Tier = "Great"
	TierAverage Tier = "Average"
	TierPoor    Tier = "Poor"
)

// TierFor classifies a 0-100 success rate.
func TierFor(rate float64) Tier {
	switch {
	case rate >= 75:
		return TierGreat
	case rate >= 50:
		return TierAverage
	}
	return TierPoor
}

// Class is the CSS class used to colour the tier.
func (t Tier) Class() string {
	switch t {
	case TierGreat:
		return "tier-great"
	case TierAverage:
		return "tier-average"
	}
	return "tier-poor"
}

// Clamp bounds a percentage to 0-100. NaN becomes 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// RateRow is the adoption of one touchpoint across customers.
type RateRow struct {
	Key     string
	Label   string
	Percent float64
}

// BreakdownRow is one customer's success rate.
type BreakdownRow struct {
	CustomerID string
	Name       string
	Rate       float64
	Tier       Tier
}

// SuccessReport is the renderable form of backend.Metrics.
type SuccessReport struct {
	TotalCustomers int
	Overall        float64
	OverallTier    Tier
	Rates          []RateRow
	Breakdown      []BreakdownRow
}

// BuildSuccessReport clamps every percentage and orders the breakdown by
// success rate, highest first. Ties keep the backend order.
func BuildSuccessReport(m backend.Metrics) SuccessReport {
	r := m.CustomerSuccessRate
	report := SuccessReport{
		TotalCustomers: m.TotalCustomers,
		Overall:        Clamp(r.Overall),
		Rates: []RateRow{
			{Key: "referralWelcomePopup", Label: "Referral Welcome Popup", Percent: Clamp(r.ReferralWelcomePopup)},
			{Key: "extension", Label: "Extension", Percent: Clamp(r.Extension)},
			{Key: "referralForm", Label: "Referral Form", Percent: Clamp(r.ReferralForm)},
			{Key: "whatsappWhitelabeled", Label: "WhatsApp White Labeling", Percent: Clamp(r.WhatsAppWhitelabeled)},
			{Key: "whatsappFollowUps", Label: "WhatsApp Follow-Ups", Percent: Clamp(r.WhatsAppFollowUps)},
			{Key: "emailWhitelabeled", Label: "Email White Labeling", Percent: Clamp(r.EmailWhitelabeled)},
			{Key: "emailFollowUps", Label: "Email Follow-Ups", Percent: Clamp(r.EmailFollowUps)},
			{Key: "qualityOffer", Label: "Quality Offer", Percent: Clamp(r.QualityOffer)},
			{Key: "allCustomersCanUseCode", Label: "All Customers Can Use Code", Percent: Clamp(r.AllCustomersCanUseCode)},
		},
	}
	report.OverallTier = TierFor(report.Overall)
	for _, b := range m.SuccessBreakdown {
		rate := Clamp(b.SuccessRate)
		report.Breakdown = append(report.Breakdown, BreakdownRow{
			CustomerID: b.CustomerID,
			Name:       b.CustomerName,
			Rate:       rate,
			Tier:       TierFor(rate),
		})
	}
	sort.SliceStable(report.Breakdown, func(i, j int) bool {
		return report.Breakdown[i].Rate > report.Breakdown[j].Rate
	})
	return report
}

// Find returns the breakdown row of one customer.
func (r SuccessReport) Find(customerID string) (BreakdownRow, bool) {
	for _, b := range r.Breakdown {
		if b.CustomerID == customerID {
			return b, true
		}
	}
	return BreakdownRow{}, false
}

// MetricsSource fetches the success metrics from the backend.
type MetricsSource interface {
	SuccessMetrics(ctx context.Context) (backend.Metrics, error)
}

// Service coordinates success metrics reads with the cache layer.
type Service struct {
	source MetricsSource
	cache  *Cache
	logger *slog.Logger
}

// NewService wires a MetricsSource with a Cache helper. cache may be nil.
func NewService(source MetricsSource, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, cache: cache, logger: logger}
}

// Metrics returns the success metrics, from cache when possible.
func (s *Service) Metrics(ctx context.Context) (backend.Metrics, error) {
	key, err := s.cache.BuildKey(ctx, "metrics", "success")
	if err != nil {
		s.logger.Warn("metrics cache unavailable", slog.Any("error", err))
		return s.source.SuccessMetrics(ctx)
	}
	return Fetch(ctx, s.cache, key, s.source.SuccessMetrics)
}

// Report loads and prepares the success report.
func (s *Service) Report(ctx context.Context) (SuccessReport, error) {
	m, err := s.Metrics(ctx)
	if err != nil {
		return SuccessReport{}, err
	}
	return BuildSuccessReport(m), nil
}

// Warm fetches fresh metrics from the backend and stores them under the
// current cache version.
func (s *Service) Warm(ctx context.Context) error {
	m, err := s.source.SuccessMetrics(ctx)
	if err != nil {
		return err
	}
	key, err := s.cache.BuildKey(ctx, "metrics", "success")
	if err != nil {
		return err
	}
	return Store(ctx, s.cache, key, m)
}
