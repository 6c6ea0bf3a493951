// Package audit reads the operator audit trail written by the dashboard's
// write paths and renders it as an activity timeline.
package audit

import (
	"time"

	"github.com/referrush/csdash/internal/shared"
)

// TimelineFilters narrows the activity timeline.
type TimelineFilters struct {
	From       time.Time
	To         time.Time
	Action     string
	CustomerID string
	Page       int
	PageSize   int
}

// TimelineRow is one operator action ready for display.
type TimelineRow struct {
	At         time.Time
	Actor      string
	Action     string
	CustomerID string
	Summary    string
}

// PagingInfo holds simple pagination metadata.
type PagingInfo struct {
	Page     int
	HasNext  bool
	PageSize int
	PrevPage int
	NextPage int
}

// Result wraps a timeline page.
type Result struct {
	Rows   []TimelineRow
	Paging PagingInfo
}

// ActionOption is one entry of the action filter.
type ActionOption struct {
	Key   string
	Label string
}

// Actions lists the recorded actions in display order.
func Actions() []ActionOption {
	return []ActionOption{
		{Key: shared.AuditTouchpointUpdate, Label: "Touchpoint changes"},
		{Key: shared.AuditNoteSave, Label: "Notes"},
		{Key: shared.AuditNudgeSend, Label: "Nudges"},
		{Key: shared.AuditContactAdd, Label: "Contacts added"},
		{Key: shared.AuditContactDelete, Label: "Contacts removed"},
	}
}

// ValidAction reports whether key is a recorded action.
func ValidAction(key string) bool {
	for _, a := range Actions() {
		if a.Key == key {
			return true
		}
	}
	return false
}
