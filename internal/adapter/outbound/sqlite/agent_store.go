package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mandate-authority/mandate-authority/internal/domain/agent"
)

// AgentStore is a sqlite-backed agent.Store. Grounded on
// memory.AgentStore for the exact Store contract semantics (the
// sentinel errors it returns, which fields Update leaves immutable);
// the SQL itself follows the teacher's Kocoro-lab/Shannon-style
// prepared-statement-per-call shape rather than an ORM.
type AgentStore struct {
	db *DB
}

func NewAgentStore(db *DB) *AgentStore {
	return &AgentStore{db: db}
}

func (s *AgentStore) Create(ctx context.Context, a *agent.Agent) error {
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.conn.ExecContext(ctx,
		`INSERT INTO agents (agent_id, api_key_hash, display_name, principal, environment, status, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.AgentID, a.APIKeyHash, a.DisplayName, a.Principal, string(a.Environment), string(a.Status), string(meta),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if isUniqueConstraint(err) {
		return agent.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

func (s *AgentStore) Get(ctx context.Context, agentID string) (*agent.Agent, error) {
	row := s.db.conn.QueryRowContext(ctx,
		`SELECT agent_id, api_key_hash, display_name, principal, environment, status, metadata, created_at, updated_at
		 FROM agents WHERE agent_id = ?`, agentID)
	return scanAgent(row)
}

func (s *AgentStore) GetByAPIKeyHash(ctx context.Context, keyHash string) (*agent.Agent, error) {
	row := s.db.conn.QueryRowContext(ctx,
		`SELECT agent_id, api_key_hash, display_name, principal, environment, status, metadata, created_at, updated_at
		 FROM agents WHERE api_key_hash = ?`, keyHash)
	a, err := scanAgent(row)
	if errors.Is(err, agent.ErrNotFound) {
		return nil, agent.ErrKeyNotFound
	}
	return a, err
}

func (s *AgentStore) List(ctx context.Context) ([]*agent.Agent, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT agent_id, api_key_hash, display_name, principal, environment, status, metadata, created_at, updated_at
		 FROM agents ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var out []*agent.Agent
	for rows.Next() {
		a, err := scanAgentRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *AgentStore) Update(ctx context.Context, a *agent.Agent) error {
	now := time.Now().UTC()
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE agents SET display_name = ?, status = ?, metadata = ?, updated_at = ? WHERE agent_id = ?`,
		a.DisplayName, string(a.Status), string(meta), now.Format(time.RFC3339Nano), a.AgentID,
	)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	if n == 0 {
		return agent.ErrNotFound
	}
	a.UpdatedAt = now
	return nil
}

func (s *AgentStore) SetStatus(ctx context.Context, agentID string, status agent.Status) error {
	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE agents SET status = ?, updated_at = ? WHERE agent_id = ?`,
		string(status), time.Now().UTC().Format(time.RFC3339Nano), agentID,
	)
	if err != nil {
		return fmt.Errorf("set agent status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set agent status: %w", err)
	}
	if n == 0 {
		return agent.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row *sql.Row) (*agent.Agent, error) {
	return scanAgentRow(row)
}

func scanAgentRows(rows *sql.Rows) (*agent.Agent, error) {
	return scanAgentRow(rows)
}

func scanAgentRow(row rowScanner) (*agent.Agent, error) {
	var (
		a           agent.Agent
		environment string
		status      string
		metadata    string
		createdAt   string
		updatedAt   string
	)
	err := row.Scan(&a.AgentID, &a.APIKeyHash, &a.DisplayName, &a.Principal, &environment, &status, &metadata, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, agent.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan agent: %w", err)
	}
	a.Environment = agent.Environment(environment)
	a.Status = agent.Status(status)
	if err := json.Unmarshal([]byte(metadata), &a.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if a.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &a, nil
}

func isUniqueConstraint(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed: UNIQUE")
}

var _ agent.Store = (*AgentStore)(nil)
