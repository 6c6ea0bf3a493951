package nudges

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/referrush/csdash/internal/backend"
)

// StatusFilter narrows logs by delivery outcome.
type StatusFilter string

const (
	FilterAll     StatusFilter = "all"
	FilterSuccess StatusFilter = "success"
	FilterFailed  StatusFilter = "failed"
)

// ParseStatusFilter maps query input to a filter, defaulting to all.
func ParseStatusFilter(raw string) StatusFilter {
	switch StatusFilter(strings.ToLower(strings.TrimSpace(raw))) {
	case FilterSuccess:
		return FilterSuccess
	case FilterFailed:
		return FilterFailed
	}
	return FilterAll
}

// LogQuery is the filter and search applied to a log list.
type LogQuery struct {
	Status StatusFilter
	Search string
}

// Match reports whether log passes both the status filter and the search.
func (q LogQuery) Match(log backend.NudgeLog) bool {
	switch q.Status {
	case FilterSuccess:
		if !log.Success {
			return false
		}
	case FilterFailed:
		if log.Success {
			return false
		}
	}
	term := strings.ToLower(strings.TrimSpace(q.Search))
	if term == "" {
		return true
	}
	for _, field := range []string{TouchpointLabel(log.Touchpoint), log.Touchpoint, log.Channel} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// Apply returns the logs matching q, preserving order.
func (q LogQuery) Apply(logs []backend.NudgeLog) []backend.NudgeLog {
	out := make([]backend.NudgeLog, 0, len(logs))
	for _, l := range logs {
		if q.Match(l) {
			out = append(out, l)
		}
	}
	return out
}

// LogStats summarises a log list.
type LogStats struct {
	Total       int
	Successful  int
	Failed      int
	SuccessRate int
}

// Stats counts outcomes; the rate is a rounded percentage and 0 for no logs.
func Stats(logs []backend.NudgeLog) LogStats {
	s := LogStats{Total: len(logs)}
	for _, l := range logs {
		if l.Success {
			s.Successful++
		} else {
			s.Failed++
		}
	}
	if s.Total > 0 {
		s.SuccessRate = int(math.Round(float64(s.Successful) * 100 / float64(s.Total)))
	}
	return s
}

// RelativeTime renders the age of t against now in the coarsest whole unit.
func RelativeTime(now, t time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d/time.Second))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	}
	return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
}
