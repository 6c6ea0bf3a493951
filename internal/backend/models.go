package backend

import "time"

// Customer mirrors the customer document served by the referral backend.
type Customer struct {
	ID             string         `json:"_id"`
	Name           string         `json:"name"`
	Note           string         `json:"note"`
	PointOfContact PointOfContact `json:"pointOfContact"`
	Offer          Offer          `json:"offer"`
	Touchpoints    Touchpoints    `json:"touchpoints"`
}

// PointOfContact lists the reachable contact channels of a customer.
type PointOfContact struct {
	Name  string   `json:"name"`
	Email []string `json:"email"`
	Phone []string `json:"phone"`
}

// Offer describes the referral offer a merchant runs.
type Offer struct {
	Discount               string  `json:"discount"`
	Cashback               float64 `json:"cashback"`
	AllCustomersCanUseCode bool    `json:"allCustomersCanUseCode"`
}

// Touchpoints is the fixed set of feature flags of a customer.
type Touchpoints struct {
	ReferralWelcomePopup bool              `json:"referralWelcomePopup"`
	Extension            bool              `json:"extension"`
	ReferralForm         bool              `json:"referralForm"`
	WhatsApp             ChannelTouchpoint `json:"whatsapp"`
	Email                ChannelTouchpoint `json:"email"`
	SMS                  bool              `json:"sms"`
	AbandonedCart        AbandonedCart     `json:"abandonedCart"`
}

// ChannelTouchpoint groups white-labeling and follow-up settings of one channel.
type ChannelTouchpoint struct {
	Whitelabeled bool      `json:"whitelabeled"`
	FollowUps    FollowUps `json:"followUps"`
}

// FollowUps is an automated reminder sequence.
type FollowUps struct {
	Enabled       bool       `json:"enabled"`
	FollowUpDays  []int      `json:"followUpDays"`
	NudgeCount    int        `json:"nudgeCount"`
	LastNudgeDate *time.Time `json:"lastNudgeDate,omitempty"`
}

// AbandonedCart toggles abandoned cart recovery per channel.
type AbandonedCart struct {
	Email    bool `json:"email"`
	WhatsApp bool `json:"whatsapp"`
}

// NudgeLog is an immutable delivery record of a nudge.
type NudgeLog struct {
	ID           string    `json:"_id"`
	Touchpoint   string    `json:"touchpoint"`
	Channel      string    `json:"channel"`
	SentAt       time.Time `json:"sentAt"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// Metrics is the aggregate success report computed by the backend.
type Metrics struct {
	TotalCustomers      int               `json:"totalCustomers"`
	CustomerSuccessRate SuccessRates      `json:"customerSuccessRate"`
	SuccessBreakdown    []CustomerSuccess `json:"successBreakdown"`
}

// SuccessRates holds adoption percentages per touchpoint.
type SuccessRates struct {
	ReferralWelcomePopup   float64 `json:"referralWelcomePopup"`
	Extension              float64 `json:"extension"`
	ReferralForm           float64 `json:"referralForm"`
	WhatsAppWhitelabeled   float64 `json:"whatsappWhitelabeled"`
	WhatsAppFollowUps      float64 `json:"whatsappFollowUps"`
	EmailWhitelabeled      float64 `json:"emailWhitelabeled"`
	EmailFollowUps         float64 `json:"emailFollowUps"`
	QualityOffer           float64 `json:"qualityOffer"`
	AllCustomersCanUseCode float64 `json:"allCustomersCanUseCode"`
	Overall                float64 `json:"overall"`
}

// CustomerSuccess is one row of the per-customer breakdown.
type CustomerSuccess struct {
	CustomerID   string  `json:"customerId"`
	CustomerName string  `json:"customerName"`
	SuccessRate  float64 `json:"successRate"`
}

// ContactKind selects the contact endpoint family.
type ContactKind string

const (
	ContactEmail ContactKind = "email"
	ContactPhone ContactKind = "phone"
)

// Valid reports whether the kind is one the backend understands.
func (k ContactKind) Valid() bool {
	return k == ContactEmail || k == ContactPhone
}
