package nudges

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/referrush/csdash/internal/backend"
)

var (
	// ErrNoRecipients is returned when a send is attempted with nothing selected.
	ErrNoRecipients = errors.New("nudges: select at least one contact")
	// ErrUnknownRecipient is returned when a selected value is not a contact of the channel.
	ErrUnknownRecipient = errors.New("nudges: recipient is not a known contact")
	// ErrDuplicateContact is returned when adding a contact that already exists.
	ErrDuplicateContact = errors.New("nudges: contact already exists")
	// ErrContactNotFound is returned when deleting a contact that is not listed.
	ErrContactNotFound = errors.New("nudges: contact not found")
)

// Contact is one reachable address of a customer. ID is set only when the
// backend returned one for a contact added from the dashboard; contacts read
// from the customer record are identified by kind and value.
type Contact struct {
	ID    string
	Kind  backend.ContactKind
	Value string
}

// ContactStore adds and removes customer contacts.
type ContactStore interface {
	AddContact(ctx context.Context, customerID string, kind backend.ContactKind, value string) (string, error)
	DeleteContact(ctx context.Context, customerID string, kind backend.ContactKind, value string) error
}

// Sender issues a nudge to a set of recipients.
type Sender interface {
	SendNudge(ctx context.Context, customerID, touchpoint, channel string, recipients []string) error
}

// Composer holds the state of a nudge being put together for one customer.
type Composer struct {
	customerID string
	touchpoint string
	channel    Channel
	contacts   []Contact
	selected   map[Contact]bool
}

// NewComposer starts a composer from the customer's point of contact with the
// default touchpoint and the email channel selected.
func NewComposer(c backend.Customer) *Composer {
	comp := &Composer{
		customerID: c.ID,
		touchpoint: DefaultTouchpoint,
		channel:    ChannelEmail,
		selected:   make(map[Contact]bool),
	}
	comp.seed(backend.ContactEmail, c.PointOfContact.Email)
	comp.seed(backend.ContactPhone, c.PointOfContact.Phone)
	return comp
}

func (c *Composer) seed(kind backend.ContactKind, values []string) {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || c.indexOf(kind, v) >= 0 {
			continue
		}
		c.contacts = append(c.contacts, Contact{Kind: kind, Value: v})
	}
}

// CustomerID is the customer the nudge is addressed to.
func (c *Composer) CustomerID() string { return c.customerID }

// Touchpoint is the selected touchpoint key.
func (c *Composer) Touchpoint() string { return c.touchpoint }

// Channel is the selected channel.
func (c *Composer) Channel() Channel { return c.channel }

// SetTouchpoint selects a catalog touchpoint.
func (c *Composer) SetTouchpoint(key string) error {
	if !ValidTouchpoint(key) {
		return fmt.Errorf("%w: %q", ErrUnknownTouchpoint, key)
	}
	c.touchpoint = key
	return nil
}

// SetChannel selects the delivery channel. Selections made for the other
// channel are kept but no longer count as recipients.
func (c *Composer) SetChannel(ch Channel) error {
	if !ch.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
	}
	c.channel = ch
	return nil
}

// Contacts returns every contact in list order.
func (c *Composer) Contacts() []Contact {
	out := make([]Contact, len(c.contacts))
	copy(out, c.contacts)
	return out
}

// ContactsFor returns the contacts of one kind.
func (c *Composer) ContactsFor(kind backend.ContactKind) []Contact {
	var out []Contact
	for _, ct := range c.contacts {
		if ct.Kind == kind {
			out = append(out, ct)
		}
	}
	return out
}

// Select marks values as recipients for the current channel.
func (c *Composer) Select(values ...string) error {
	kind := c.channel.ContactKind()
	for _, v := range values {
		i := c.indexOf(kind, strings.TrimSpace(v))
		if i < 0 {
			return fmt.Errorf("%w: %q", ErrUnknownRecipient, v)
		}
		c.selected[c.key(i)] = true
	}
	return nil
}

// Deselect removes values from the recipients.
func (c *Composer) Deselect(values ...string) {
	kind := c.channel.ContactKind()
	for _, v := range values {
		if i := c.indexOf(kind, strings.TrimSpace(v)); i >= 0 {
			delete(c.selected, c.key(i))
		}
	}
}

// IsSelected reports whether the contact is currently a recipient.
func (c *Composer) IsSelected(ct Contact) bool {
	return ct.Kind == c.channel.ContactKind() && c.selected[Contact{Kind: ct.Kind, Value: ct.Value}]
}

// Recipients returns the selected values of the current channel in list order.
func (c *Composer) Recipients() []string {
	var out []string
	for _, ct := range c.ContactsFor(c.channel.ContactKind()) {
		if c.selected[Contact{Kind: ct.Kind, Value: ct.Value}] {
			out = append(out, ct.Value)
		}
	}
	return out
}

// AddContact validates value, registers it with the backend and appends it to
// the list once the backend has accepted it.
func (c *Composer) AddContact(ctx context.Context, store ContactStore, kind backend.ContactKind, value string) (Contact, error) {
	value, err := NormalizeContact(kind, value)
	if err != nil {
		return Contact{}, err
	}
	if c.indexOf(kind, value) >= 0 {
		return Contact{}, fmt.Errorf("%w: %s", ErrDuplicateContact, value)
	}
	id, err := store.AddContact(ctx, c.customerID, kind, value)
	if err != nil {
		return Contact{}, err
	}
	ct := Contact{ID: id, Kind: kind, Value: value}
	c.contacts = append(c.contacts, ct)
	return ct, nil
}

// DeleteContact removes a contact through the backend and then from the list.
func (c *Composer) DeleteContact(ctx context.Context, store ContactStore, kind backend.ContactKind, value string) error {
	value = strings.TrimSpace(value)
	i := c.indexOf(kind, value)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrContactNotFound, value)
	}
	if err := store.DeleteContact(ctx, c.customerID, kind, value); err != nil {
		return err
	}
	delete(c.selected, c.key(i))
	c.contacts = append(c.contacts[:i], c.contacts[i+1:]...)
	return nil
}

// Send issues the nudge to the selected recipients as one request.
func (c *Composer) Send(ctx context.Context, sender Sender) error {
	recipients := c.Recipients()
	if len(recipients) == 0 {
		return ErrNoRecipients
	}
	return sender.SendNudge(ctx, c.customerID, c.touchpoint, string(c.channel), recipients)
}

func (c *Composer) indexOf(kind backend.ContactKind, value string) int {
	for i, ct := range c.contacts {
		if ct.Kind == kind && ct.Value == value {
			return i
		}
	}
	return -1
}

func (c *Composer) key(i int) Contact {
	return Contact{Kind: c.contacts[i].Kind, Value: c.contacts[i].Value}
}
