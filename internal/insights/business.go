package insights

import "math"

// TrialStatus is the state of a merchant's free trial.
type TrialStatus string

const (
	TrialActive     TrialStatus = "Active"
	TrialExpired    TrialStatus = "Expired"
	TrialNotStarted TrialStatus = "Not Started"
)

// CostBreakdown splits what the merchant pays for the programme.
type CostBreakdown struct {
	Subscription float64
	Commission   float64
	WhatsApp     float64
	Payouts      float64
}

// RevenuePoint is one month of platform revenue by source.
type RevenuePoint struct {
	Month         string
	Subscriptions float64
	Commissions   float64
}

// ROIPoint is one month of return on investment.
type ROIPoint struct {
	Month string
	ROI   float64
}

// SubscriptionChange is a plan change in the subscription history.
type SubscriptionChange struct {
	Date   string
	Plan   string
	Amount float64
}

// CommissionMonth is referral sales and the commission earned on them.
type CommissionMonth struct {
	Month      string
	Sales      float64
	Commission float64
}

// Merchant is a storefront contributing referral sales.
type Merchant struct {
	Name      string
	Sales     float64
	Customers int
	Orders    int
	Growth    float64
	ROI       float64
}

// BusinessSnapshot is the business analytics dataset.
type BusinessSnapshot struct {
	TrialStatus              TrialStatus
	Plan                     string
	SubscriptionMonthly      float64
	CommissionPercent        float64
	MonthsUsing              int
	TotalRevenue             float64
	RevenueFromSubscriptions float64
	RevenueFromCommissions   float64
	SalesGenerated           float64
	PercentOfTotalSales      float64
	TotalCosts               float64
	Costs                    CostBreakdown
	ROI                      float64
	RevenueTrend             []RevenuePoint
	ROITrend                 []ROIPoint
	Subscriptions            []SubscriptionChange
	Commissions              []CommissionMonth
	Merchants                []Merchant
}

// SampleSnapshot returns the static business dataset. The referral backend
// exposes no business analytics endpoint, so every customer sees the same data.
func SampleSnapshot() BusinessSnapshot {
	return BusinessSnapshot{
		TrialStatus:              TrialActive,
		Plan:                     "Premium",
		SubscriptionMonthly:      2999,
		CommissionPercent:        15,
		MonthsUsing:              8,
		TotalRevenue:             456000,
		RevenueFromSubscriptions: 135000,
		RevenueFromCommissions:   321000,
		SalesGenerated:           2140000,
		PercentOfTotalSales:      32,
		TotalCosts:               89000,
		Costs: CostBreakdown{
			Subscription: 24000,
			Commission:   65000,
			WhatsApp:     12000,
			Payouts:      8000,
		},
		ROI: 4.8,
		RevenueTrend: []RevenuePoint{
			{Month: "Jan", Subscriptions: 16000, Commissions: 32000},
			{Month: "Feb", Subscriptions: 15000, Commissions: 34000},
			{Month: "Mar", Subscriptions: 16500, Commissions: 38000},
			{Month: "Apr", Subscriptions: 16000, Commissions: 42000},
			{Month: "May", Subscriptions: 17500, Commissions: 45000},
			{Month: "Jun", Subscriptions: 18000, Commissions: 50000},
		},
		ROITrend: []ROIPoint{
			{Month: "Nov", ROI: 3.2},
			{Month: "Dec", ROI: 3.5},
			{Month: "Jan", ROI: 3.8},
			{Month: "Feb", ROI: 4.1},
			{Month: "Mar", ROI: 4.5},
			{Month: "Apr", ROI: 4.8},
		},
		Subscriptions: []SubscriptionChange{
			{Date: "Apr 2023", Plan: "Basic", Amount: 999},
			{Date: "Jul 2023", Plan: "Standard", Amount: 1999},
			{Date: "Oct 2023", Plan: "Premium", Amount: 2999},
			{Date: "Jan 2024", Plan: "Premium", Amount: 2999},
			{Date: "Apr 2024", Plan: "Premium", Amount: 2999},
		},
		Commissions: []CommissionMonth{
			{Month: "Nov 2023", Sales: 180000, Commission: 27000},
			{Month: "Dec 2023", Sales: 220000, Commission: 33000},
			{Month: "Jan 2024", Sales: 310000, Commission: 46500},
			{Month: "Feb 2024", Sales: 425000, Commission: 63750},
			{Month: "Mar 2024", Sales: 495000, Commission: 74250},
			{Month: "Apr 2024", Sales: 510000, Commission: 76500},
		},
		Merchants: []Merchant{
			{Name: "Fashion Store", Sales: 540000, Customers: 1240, Orders: 2850, Growth: 18.5, ROI: 5.2},
			{Name: "Electronics Hub", Sales: 420000, Customers: 980, Orders: 1950, Growth: 15.2, ROI: 4.8},
			{Name: "Home Decor", Sales: 380000, Customers: 820, Orders: 1680, Growth: 12.8, ROI: 4.5},
			{Name: "Sports Gear", Sales: 320000, Customers: 720, Orders: 1480, Growth: 10.5, ROI: 3.7},
		},
	}
}

// ShareOfSales is the merchant's share of the referral sales generated, in percent.
func (s BusinessSnapshot) ShareOfSales(m Merchant) float64 {
	if s.SalesGenerated <= 0 {
		return 0
	}
	return Clamp(m.Sales * 100 / s.SalesGenerated)
}

// ROITier grades a return on investment.
type ROITier struct {
	Name    string
	Class   string
	Message string
}

// TierForROI grades roi: 4 and above is excellent, 2 and above good.
func TierForROI(roi float64) ROITier {
	switch {
	case roi >= 4:
		return ROITier{Name: "Excellent", Class: "tier-excellent", Message: "Excellent return on investment. Your campaign is performing exceptionally well."}
	case roi >= 2:
		return ROITier{Name: "Good", Class: "tier-good", Message: "Good return on investment. Your campaign is generating positive returns."}
	}
	return ROITier{Name: "Average", Class: "tier-average", Message: "Average return on investment. Consider optimizing your campaign for better results."}
}

// GaugeProgress maps roi onto a 0-1 gauge where 5x fills it.
func GaugeProgress(roi float64) float64 {
	if math.IsNaN(roi) || roi <= 0 {
		return 0
	}
	return math.Min(roi/5, 1)
}
