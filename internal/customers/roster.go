package customers

import "github.com/referrush/csdash/internal/backend"

// Roster is the customer list fetched for one page load.
type Roster struct {
	customers []backend.Customer
	index     map[string]int
}

// NewRoster indexes the given customers by id.
func NewRoster(list []backend.Customer) *Roster {
	r := &Roster{
		customers: make([]backend.Customer, len(list)),
		index:     make(map[string]int, len(list)),
	}
	copy(r.customers, list)
	for i, c := range r.customers {
		r.index[c.ID] = i
	}
	return r
}

// Customers returns the customers in backend order.
func (r *Roster) Customers() []backend.Customer {
	if r == nil {
		return nil
	}
	return r.customers
}

// Len returns the number of customers.
func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.customers)
}

// Find looks up a customer by id.
func (r *Roster) Find(id string) (backend.Customer, bool) {
	if r == nil {
		return backend.Customer{}, false
	}
	i, ok := r.index[id]
	if !ok {
		return backend.Customer{}, false
	}
	return r.customers[i], true
}

// ApplyNote replaces the note of the customer. It reports false for unknown ids.
func (r *Roster) ApplyNote(id, note string) bool {
	if r == nil {
		return false
	}
	i, ok := r.index[id]
	if !ok {
		return false
	}
	r.customers[i].Note = note
	return true
}

// ApplyTouchpoint stores a confirmed touchpoint value.
func (r *Roster) ApplyTouchpoint(id, path string, value bool) error {
	if r == nil {
		return nil
	}
	i, ok := r.index[id]
	if !ok {
		return nil
	}
	return SetTouchpoint(&r.customers[i], path, value)
}
