// Package nudges composes manual nudges to a customer's contacts and presents
// the delivery log of past nudges.
package nudges

import (
	"errors"

	"github.com/referrush/csdash/internal/backend"
)

var (
	// ErrUnknownTouchpoint is returned for touchpoint keys outside the catalog.
	ErrUnknownTouchpoint = errors.New("nudges: unknown touchpoint")
	// ErrUnknownChannel is returned for channels other than email and whatsapp.
	ErrUnknownChannel = errors.New("nudges: unknown channel")
)

// Touchpoint is a nudgeable touchpoint with its display name.
type Touchpoint struct {
	Key   string
	Label string
}

var catalog = []Touchpoint{
	{Key: "referralWelcomePopup", Label: "Referral Welcome Popup"},
	{Key: "extension", Label: "Extension"},
	{Key: "referralForm", Label: "Referral Form"},
	{Key: "whatsappWhitelabeling", Label: "WhatsApp White Labeling"},
	{Key: "whatsappFollowUps", Label: "WhatsApp Follow-Ups"},
	{Key: "emailWhitelabeling", Label: "Email White Labeling"},
	{Key: "emailFollowUps", Label: "Email Follow-Ups"},
	{Key: "abandonedCart", Label: "Abandoned Cart"},
}

// DefaultTouchpoint is preselected when the composer opens.
const DefaultTouchpoint = "referralWelcomePopup"

// Catalog returns the nudgeable touchpoints in display order.
func Catalog() []Touchpoint {
	out := make([]Touchpoint, len(catalog))
	copy(out, catalog)
	return out
}

// ValidTouchpoint reports whether key is in the catalog.
func ValidTouchpoint(key string) bool {
	for _, tp := range catalog {
		if tp.Key == key {
			return true
		}
	}
	return false
}

// TouchpointLabel returns the display name for key, or key itself when the
// log refers to a touchpoint the catalog no longer lists.
func TouchpointLabel(key string) string {
	for _, tp := range catalog {
		if tp.Key == key {
			return tp.Label
		}
	}
	return key
}

// Channel is an outbound delivery channel.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// Channels returns the channels in display order.
func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelWhatsApp}
}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelWhatsApp
}

// Label is the display name of the channel.
func (c Channel) Label() string {
	switch c {
	case ChannelEmail:
		return "Email"
	case ChannelWhatsApp:
		return "WhatsApp"
	}
	return string(c)
}

// ContactKind maps the channel to the contact kind it addresses.
func (c Channel) ContactKind() backend.ContactKind {
	if c == ChannelWhatsApp {
		return backend.ContactPhone
	}
	return backend.ContactEmail
}
