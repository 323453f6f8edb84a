// Package service contains application services.
package service

import (
	"sync"
	"sync/atomic"
)

// StatsService tracks runtime enforcement statistics using lock-free
// atomic counters. pkg/mandate's Runtime feeds it via
// enforce.StatsRecorder (see WithStats); inbound/http.Server exposes a
// snapshot on GET /stats (see WithStatsService) for any process that
// wires the same instance into both. Grounded on the teacher's
// StatsService (same lock-free-counters-plus-mutexed-breakdown-maps
// shape), generalised from protocol/framework counters to the
// enforcement outcomes and block-reason codes this system actually
// produces.
type StatsService struct {
	allowed     atomic.Int64
	blocked     atomic.Int64
	rateLimited atomic.Int64
	errors      atomic.Int64

	// Block-reason and per-agent breakdowns (mutex-protected maps).
	mu                sync.Mutex
	blockReasonCounts map[string]int64
	agentCounts       map[string]int64
}

// NewStatsService creates a new StatsService with all counters initialized to zero.
func NewStatsService() *StatsService {
	return &StatsService{
		blockReasonCounts: make(map[string]int64),
		agentCounts:       make(map[string]int64),
	}
}

// RecordAllow increments the allowed counter.
func (s *StatsService) RecordAllow() {
	s.allowed.Add(1)
}

// RecordBlock increments the blocked counter.
func (s *StatsService) RecordBlock() {
	s.blocked.Add(1)
}

// RecordRateLimited increments the rate-limited counter.
func (s *StatsService) RecordRateLimited() {
	s.rateLimited.Add(1)
}

// RecordError increments the error counter.
func (s *StatsService) RecordError() {
	s.errors.Add(1)
}

// RecordBlockReason increments the counter for the given engine block
// code (e.g. "TOTAL_BUDGET", "TOOL_DENIED").
func (s *StatsService) RecordBlockReason(code string) {
	if code == "" {
		return
	}
	s.mu.Lock()
	s.blockReasonCounts[code]++
	s.mu.Unlock()
}

// RecordAgent increments the per-agent action counter.
func (s *StatsService) RecordAgent(agentID string) {
	if agentID == "" {
		return
	}
	s.mu.Lock()
	s.agentCounts[agentID]++
	s.mu.Unlock()
}

// Stats holds a snapshot of all counters at a point in time.
type Stats struct {
	Allowed           int64            `json:"allowed"`
	Blocked           int64            `json:"blocked"`
	RateLimited       int64            `json:"rate_limited"`
	Errors            int64            `json:"errors"`
	BlockReasonCounts map[string]int64 `json:"block_reason_counts"`
	AgentCounts       map[string]int64 `json:"agent_counts"`
}

// GetStats returns a snapshot of all counters.
// The snapshot is consistent per-counter but not atomically across all counters.
func (s *StatsService) GetStats() Stats {
	s.mu.Lock()
	brc := make(map[string]int64, len(s.blockReasonCounts))
	for k, v := range s.blockReasonCounts {
		brc[k] = v
	}
	ac := make(map[string]int64, len(s.agentCounts))
	for k, v := range s.agentCounts {
		ac[k] = v
	}
	s.mu.Unlock()

	return Stats{
		Allowed:           s.allowed.Load(),
		Blocked:           s.blocked.Load(),
		RateLimited:       s.rateLimited.Load(),
		Errors:            s.errors.Load(),
		BlockReasonCounts: brc,
		AgentCounts:       ac,
	}
}

// Reset sets all counters to zero.
func (s *StatsService) Reset() {
	s.allowed.Store(0)
	s.blocked.Store(0)
	s.rateLimited.Store(0)
	s.errors.Store(0)

	s.mu.Lock()
	s.blockReasonCounts = make(map[string]int64)
	s.agentCounts = make(map[string]int64)
	s.mu.Unlock()
}
