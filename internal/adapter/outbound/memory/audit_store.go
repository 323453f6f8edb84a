package memory

import (
	"context"
	"sync"

	"github.com/mandate-authority/mandate-authority/internal/domain/audit"
)

// AuditStore is an in-memory, append-only audit.Store backed by a
// bounded ring buffer, grounded on the teacher's MemoryAuditStore
// (same ring-buffer-plus-mutex shape), rewritten against spec's
// agent-scoped Entry and half-open timestamp range query.
type AuditStore struct {
	mu     sync.Mutex
	recent []audit.Entry
	cap    int
}

const defaultAuditCap = 100000

func NewAuditStore(capacity ...int) *AuditStore {
	c := defaultAuditCap
	if len(capacity) > 0 && capacity[0] > 0 {
		c = capacity[0]
	}
	return &AuditStore{recent: make([]audit.Entry, 0, c), cap: c}
}

func (s *AuditStore) Append(ctx context.Context, entries ...audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if len(s.recent) >= s.cap {
			copy(s.recent, s.recent[1:])
			s.recent[len(s.recent)-1] = e
		} else {
			s.recent = append(s.recent, e)
		}
	}
	return nil
}

func (s *AuditStore) Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 || limit > audit.MaxQueryLimit {
		limit = audit.MaxQueryLimit
	}

	var out []audit.Entry
	for i := len(s.recent) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.recent[i]
		if filter.AgentID != "" && e.AgentID != filter.AgentID {
			continue
		}
		if filter.Decision != "" && e.Decision != filter.Decision {
			continue
		}
		if filter.ActionType != "" && e.ActionType != filter.ActionType {
			continue
		}
		if !filter.From.IsZero() && e.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !e.Timestamp.Before(filter.To) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *AuditStore) Close() error { return nil }

var _ audit.Store = (*AuditStore)(nil)
