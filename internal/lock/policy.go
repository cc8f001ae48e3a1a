package lock

import (
	"time"

	"github.com/akquise-tool/internal/record"
)

// DefaultWindow is how long a freshly created dataset blocks other agents
// from creating a competing one for the same address and house numbers.
const DefaultWindow = 30 * 24 * time.Hour

// Decision reasons, used for logging, auditing and metrics labels.
const (
	ReasonNoRecentVisit = "no_recent_visit"
	ReasonCreatorExempt = "creator_exempt"
	ReasonRecentVisit   = "recent_visit"
)

// Decision is the outcome of a creation lock check. When creation is
// blocked, Blocking carries the most recent dataset of another agent so
// callers can surface who visited the address and when.
type Decision struct {
	Allowed  bool            `json:"allowed"`
	Reason   string          `json:"reason"`
	Blocking *record.Dataset `json:"blocking,omitempty"`
}

// Evaluate decides whether a new dataset may be created, given the datasets
// already matching the queried address and house numbers. A match created
// within the window by another agent blocks creation; the requesting agent's
// own datasets never block them. A record exactly window old no longer
// blocks. Creation times in the future still count as in-window, so clock
// skew between devices cannot disable the lock.
func Evaluate(matches []record.Dataset, identity string, now time.Time, window time.Duration) Decision {
	if window <= 0 {
		window = DefaultWindow
	}
	cutoff := now.Add(-window)

	sawOwn := false
	var blocking *record.Dataset
	for i := range matches {
		m := matches[i]
		if !m.CreatedAt.After(cutoff) {
			continue
		}
		if m.CreatedBy == identity {
			sawOwn = true
			continue
		}
		if blocking == nil || m.CreatedAt.After(blocking.CreatedAt) {
			blocking = &m
		}
	}

	if blocking != nil {
		return Decision{Allowed: false, Reason: ReasonRecentVisit, Blocking: blocking}
	}
	if sawOwn {
		return Decision{Allowed: true, Reason: ReasonCreatorExempt}
	}
	return Decision{Allowed: true, Reason: ReasonNoRecentVisit}
}
