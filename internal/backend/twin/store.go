// Package twin is an in-memory stand-in for the referral backend. It speaks the same REST
// contract as the real service and is used for local development and handler tests.
package twin

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/referrush/csdash/internal/backend"
)

// Store holds all twin state in memory.
type Store struct {
	mu        sync.RWMutex
	customers []backend.Customer
	logs      map[string][]backend.NudgeLog
	failures  map[string]string
	requests  map[string]int
	nextID    int
	now       func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		logs:     make(map[string][]backend.NudgeLog),
		failures: make(map[string]string),
		requests: make(map[string]int),
		now:      time.Now,
	}
}

// Seed is the fixture format accepted by LoadSeedFile. Field names follow the
// backend's JSON documents so fixtures can be pasted from real responses.
type Seed struct {
	Customers []backend.Customer            `json:"customers"`
	Logs      map[string][]backend.NudgeLog `json:"logs"`
}

// LoadSeedFile replaces the state with the YAML fixture at path.
func (s *Store) LoadSeedFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("twin: read seed: %w", err)
	}
	seed, err := ParseSeed(raw)
	if err != nil {
		return err
	}
	s.Load(seed)
	return nil
}

// ParseSeed decodes a YAML fixture.
func ParseSeed(raw []byte) (Seed, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Seed{}, fmt.Errorf("twin: parse seed: %w", err)
	}
	// Timestamps cross the JSON bridge in RFC 3339 form.
	bridged, err := json.Marshal(doc)
	if err != nil {
		return Seed{}, fmt.Errorf("twin: bridge seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(bridged, &seed); err != nil {
		return Seed{}, fmt.Errorf("twin: decode seed: %w", err)
	}
	return seed, nil
}

// Load replaces the state with the given seed.
func (s *Store) Load(seed Seed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers = slices.Clone(seed.Customers)
	s.logs = make(map[string][]backend.NudgeLog, len(seed.Logs))
	for id, entries := range seed.Logs {
		s.logs[id] = slices.Clone(entries)
	}
}

// FailNext makes the next call of op answer with success=false and the given message.
func (s *Store) FailNext(op, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = message
}

// Requests returns how many times op has been called.
func (s *Store) Requests(op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requests[op]
}

// Customers returns a copy of all customers.
func (s *Store) Customers() []backend.Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.customers)
}

// Customer returns one customer by id.
func (s *Store) Customer(id string) (backend.Customer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return backend.Customer{}, false
	}
	return s.customers[idx], true
}

// track counts the call and reports a pending injected failure.
func (s *Store) track(op string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[op]++
	msg, ok := s.failures[op]
	if ok {
		delete(s.failures, op)
	}
	return msg, ok
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.customers, func(c backend.Customer) bool { return c.ID == id })
}

func (s *Store) saveNote(id, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return errCustomerNotFound
	}
	s.customers[idx].Note = note
	return nil
}

func (s *Store) setTouchpoint(id, path string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return errCustomerNotFound
	}
	tp := &s.customers[idx].Touchpoints
	switch path {
	case "referralWelcomePopup":
		tp.ReferralWelcomePopup = value
	case "extension":
		tp.Extension = value
	case "referralForm":
		tp.ReferralForm = value
	case "whatsapp.whitelabeled":
		tp.WhatsApp.Whitelabeled = value
	case "whatsapp.followUps.enabled":
		tp.WhatsApp.FollowUps.Enabled = value
	case "email.whitelabeled":
		tp.Email.Whitelabeled = value
	case "email.followUps.enabled":
		tp.Email.FollowUps.Enabled = value
	case "sms":
		tp.SMS = value
	case "abandonedCart.email":
		tp.AbandonedCart.Email = value
	case "abandonedCart.whatsapp":
		tp.AbandonedCart.WhatsApp = value
	default:
		return fmt.Errorf("unknown touchpoint %q", path)
	}
	return nil
}

func (s *Store) recordNudge(id, touchpoint, channel string, recipients []string) (backend.NudgeLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return backend.NudgeLog{}, errCustomerNotFound
	}
	s.nextID++
	now := s.now().UTC()
	entry := backend.NudgeLog{
		ID:         "log_" + strconv.Itoa(s.nextID),
		Touchpoint: touchpoint,
		Channel:    channel,
		SentAt:     now,
		Success:    len(recipients) > 0,
	}
	if !entry.Success {
		entry.ErrorMessage = "no recipients"
	}
	s.logs[id] = append(s.logs[id], entry)

	var follow *backend.FollowUps
	switch channel {
	case "whatsapp":
		follow = &s.customers[idx].Touchpoints.WhatsApp.FollowUps
	case "email":
		follow = &s.customers[idx].Touchpoints.Email.FollowUps
	}
	if follow != nil && entry.Success {
		follow.NudgeCount++
		follow.LastNudgeDate = &now
	}
	return entry, nil
}

func (s *Store) nudgeLogs(id string) []backend.NudgeLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.logs[id])
}

func (s *Store) addContact(id string, kind backend.ContactKind, value string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return "", errCustomerNotFound
	}
	poc := &s.customers[idx].PointOfContact
	list := &poc.Email
	if kind == backend.ContactPhone {
		list = &poc.Phone
	}
	if slices.Contains(*list, value) {
		return "", fmt.Errorf("%s %s already exists", kind, value)
	}
	*list = append(*list, value)
	s.nextID++
	return fmt.Sprintf("%s_%d", kind, s.nextID), nil
}

func (s *Store) deleteContacts(id string, kind backend.ContactKind, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return errCustomerNotFound
	}
	poc := &s.customers[idx].PointOfContact
	list := &poc.Email
	if kind == backend.ContactPhone {
		list = &poc.Phone
	}
	*list = slices.DeleteFunc(*list, func(v string) bool { return slices.Contains(values, v) })
	return nil
}

// metrics derives the success report from the current customers.
func (s *Store) metrics() backend.Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := len(s.customers)
	out := backend.Metrics{TotalCustomers: total, SuccessBreakdown: []backend.CustomerSuccess{}}
	if total == 0 {
		return out
	}
	var counts [9]int
	for _, c := range s.customers {
		flags := successFlags(c)
		on := 0
		for i, f := range flags {
			if f {
				counts[i]++
				on++
			}
		}
		out.SuccessBreakdown = append(out.SuccessBreakdown, backend.CustomerSuccess{
			CustomerID:   c.ID,
			CustomerName: c.Name,
			SuccessRate:  math.Round(float64(on) / float64(len(flags)) * 100),
		})
	}
	pct := func(n int) float64 { return math.Round(float64(n) / float64(total) * 100) }
	rates := backend.SuccessRates{
		ReferralWelcomePopup:   pct(counts[0]),
		Extension:              pct(counts[1]),
		ReferralForm:           pct(counts[2]),
		WhatsAppWhitelabeled:   pct(counts[3]),
		WhatsAppFollowUps:      pct(counts[4]),
		EmailWhitelabeled:      pct(counts[5]),
		EmailFollowUps:         pct(counts[6]),
		QualityOffer:           pct(counts[7]),
		AllCustomersCanUseCode: pct(counts[8]),
	}
	sum := 0
	for _, n := range counts {
		sum += n
	}
	rates.Overall = math.Round(float64(sum) / float64(total*len(counts)) * 100)
	out.CustomerSuccessRate = rates
	sort.SliceStable(out.SuccessBreakdown, func(i, j int) bool {
		return out.SuccessBreakdown[i].CustomerName < out.SuccessBreakdown[j].CustomerName
	})
	return out
}

func successFlags(c backend.Customer) [9]bool {
	tp := c.Touchpoints
	return [9]bool{
		tp.ReferralWelcomePopup,
		tp.Extension,
		tp.ReferralForm,
		tp.WhatsApp.Whitelabeled,
		tp.WhatsApp.FollowUps.Enabled,
		tp.Email.Whitelabeled,
		tp.Email.FollowUps.Enabled,
		c.Offer.Discount != "" || c.Offer.Cashback > 0,
		c.Offer.AllCustomersCanUseCode,
	}
}
