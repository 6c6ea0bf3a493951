// Package customers renders the customer roster and owns the touchpoint and note
// write paths of the dashboard.
package customers

import (
	"errors"
	"fmt"
	"math"

	"github.com/referrush/csdash/internal/backend"
)

// ErrUnknownTouchpoint is returned for dotted paths outside the toggle whitelist.
var ErrUnknownTouchpoint = errors.New("customers: unknown touchpoint")

// Toggleable touchpoint paths as understood by the backend.
const (
	PathReferralWelcomePopup  = "referralWelcomePopup"
	PathExtension             = "extension"
	PathReferralForm          = "referralForm"
	PathWhatsAppWhitelabeled  = "whatsapp.whitelabeled"
	PathWhatsAppFollowUps     = "whatsapp.followUps.enabled"
	PathEmailWhitelabeled     = "email.whitelabeled"
	PathEmailFollowUps        = "email.followUps.enabled"
	PathSMS                   = "sms"
	PathAbandonedCartEmail    = "abandonedCart.email"
	PathAbandonedCartWhatsApp = "abandonedCart.whatsapp"
)

// TouchpointDef describes one toggleable flag.
type TouchpointDef struct {
	Path  string
	Label string
	// Column marks flags that get their own roster column.
	Column bool
}

var touchpointDefs = []TouchpointDef{
	{Path: PathReferralWelcomePopup, Label: "Pop-Up", Column: true},
	{Path: PathExtension, Label: "Extension", Column: true},
	{Path: PathReferralForm, Label: "Form", Column: true},
	{Path: PathWhatsAppWhitelabeled, Label: "WhatsApp WL", Column: true},
	{Path: PathWhatsAppFollowUps, Label: "WhatsApp Follow-Ups"},
	{Path: PathEmailWhitelabeled, Label: "Email WL", Column: true},
	{Path: PathEmailFollowUps, Label: "Email Follow-Ups"},
	{Path: PathSMS, Label: "SMS", Column: true},
	{Path: PathAbandonedCartEmail, Label: "Abandoned Cart Email"},
	{Path: PathAbandonedCartWhatsApp, Label: "Abandoned Cart WhatsApp"},
}

// Touchpoints returns the whitelist in display order.
func Touchpoints() []TouchpointDef {
	out := make([]TouchpointDef, len(touchpointDefs))
	copy(out, touchpointDefs)
	return out
}

// ValidPath reports whether path is in the toggle whitelist.
func ValidPath(path string) bool {
	for _, def := range touchpointDefs {
		if def.Path == path {
			return true
		}
	}
	return false
}

// LabelFor returns the display label of path.
func LabelFor(path string) string {
	for _, def := range touchpointDefs {
		if def.Path == path {
			return def.Label
		}
	}
	return path
}

func field(tp *backend.Touchpoints, path string) (*bool, error) {
	switch path {
	case PathReferralWelcomePopup:
		return &tp.ReferralWelcomePopup, nil
	case PathExtension:
		return &tp.Extension, nil
	case PathReferralForm:
		return &tp.ReferralForm, nil
	case PathWhatsAppWhitelabeled:
		return &tp.WhatsApp.Whitelabeled, nil
	case PathWhatsAppFollowUps:
		return &tp.WhatsApp.FollowUps.Enabled, nil
	case PathEmailWhitelabeled:
		return &tp.Email.Whitelabeled, nil
	case PathEmailFollowUps:
		return &tp.Email.FollowUps.Enabled, nil
	case PathSMS:
		return &tp.SMS, nil
	case PathAbandonedCartEmail:
		return &tp.AbandonedCart.Email, nil
	case PathAbandonedCartWhatsApp:
		return &tp.AbandonedCart.WhatsApp, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTouchpoint, path)
}

// TouchpointValue reads the flag at path.
func TouchpointValue(c backend.Customer, path string) (bool, error) {
	ptr, err := field(&c.Touchpoints, path)
	if err != nil {
		return false, err
	}
	return *ptr, nil
}

// SetTouchpoint writes the flag at path.
func SetTouchpoint(c *backend.Customer, path string, value bool) error {
	ptr, err := field(&c.Touchpoints, path)
	if err != nil {
		return err
	}
	*ptr = value
	return nil
}

// TouchpointPercentage is the share of the ten toggleable flags that are on,
// rounded to the nearest integer.
func TouchpointPercentage(c backend.Customer) int {
	on := 0
	for _, def := range touchpointDefs {
		if v, _ := TouchpointValue(c, def.Path); v {
			on++
		}
	}
	return int(math.Round(float64(on) * 100 / float64(len(touchpointDefs))))
}
