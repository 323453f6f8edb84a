package audit

import (
	"context"
	"errors"
	"time"
)

// ErrDateRangeExceeded mirrors the teacher's query-window guard,
// repurposed for the hard result cap spec §4.8 imposes rather than a
// fixed day-range ceiling enforced here — query windows themselves are
// unbounded; only the result count is capped.
var ErrDateRangeExceeded = errors.New("query range produced more than the maximum allowed records")

// MaxQueryLimit is the hard cap spec §4.8 imposes on a single audit
// query, regardless of requested Limit.
const MaxQueryLimit = 1000

// Filter specifies query parameters for an audit query. AgentID is
// always supplied by the caller from the authenticated identity, never
// trusted from a request payload (spec §4.8) — enforcing that belongs
// to the service layer, not this store.
type Filter struct {
	AgentID    string
	Decision   Decision
	ActionType ActionType
	// From/To bound a half-open timestamp range [From, To).
	From time.Time
	To   time.Time
	Limit int
}

// Store is the append-only persistence contract for audit entries.
type Store interface {
	// Append writes one or more entries. Implementations MUST preserve
	// the caller's ordering for entries belonging to the same
	// (agentId, mandateId) per spec §5's ordering guarantee.
	Append(ctx context.Context, entries ...Entry) error

	// Query returns entries matching filter, ordered by timestamp
	// descending, capped at MaxQueryLimit even if filter.Limit is
	// larger or zero.
	Query(ctx context.Context, filter Filter) ([]Entry, error)

	// Close releases any resources (file handles, pooled connections).
	Close() error
}
