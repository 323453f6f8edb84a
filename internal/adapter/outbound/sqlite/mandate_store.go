package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mandate-authority/mandate-authority/internal/domain/mandate"
	"github.com/mandate-authority/mandate-authority/internal/domain/policy"
)

// MandateStore is a sqlite-backed mandate.Store. Mandates never
// mutate after Create (spec §3), so this is insert-and-read-only,
// same as memory.MandateStore; expiry is still checked at read time
// rather than via a background reaper, matching spec §4.4.
type MandateStore struct {
	db *DB
}

func NewMandateStore(db *DB) *MandateStore {
	return &MandateStore{db: db}
}

func (s *MandateStore) Create(ctx context.Context, m *mandate.Mandate) error {
	contextJSON, err := json.Marshal(m.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	authorityJSON, err := json.Marshal(m.Authority)
	if err != nil {
		return fmt.Errorf("marshal authority: %w", err)
	}
	matchedRulesJSON, err := json.Marshal(m.MatchedRules)
	if err != nil {
		return fmt.Errorf("marshal matched rules: %w", err)
	}
	appliedPoliciesJSON, err := json.Marshal(m.AppliedPolicies)
	if err != nil {
		return fmt.Errorf("marshal applied policies: %w", err)
	}
	_, err = s.db.conn.ExecContext(ctx,
		`INSERT INTO mandates (mandate_id, agent_id, context, authority, matched_rules, applied_policies, issued_at, expires_at, schema_version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.MandateID, m.AgentID, string(contextJSON), string(authorityJSON), string(matchedRulesJSON), string(appliedPoliciesJSON),
		m.IssuedAt.Format(time.RFC3339Nano), m.ExpiresAt.Format(time.RFC3339Nano), m.SchemaVersion,
	)
	if err != nil {
		return fmt.Errorf("insert mandate: %w", err)
	}
	return nil
}

func (s *MandateStore) Get(ctx context.Context, mandateID string, now time.Time) (*mandate.Mandate, error) {
	row := s.db.conn.QueryRowContext(ctx,
		`SELECT mandate_id, agent_id, context, authority, matched_rules, applied_policies, issued_at, expires_at, schema_version
		 FROM mandates WHERE mandate_id = ?`, mandateID)
	m, err := scanMandate(row)
	if err != nil {
		return nil, err
	}
	if m.IsExpired(now) {
		return nil, mandate.ErrNotFound
	}
	return m, nil
}

func (s *MandateStore) FindByAgentAndContext(ctx context.Context, agentID string, context map[string]string, now time.Time) (*mandate.Mandate, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT mandate_id, agent_id, context, authority, matched_rules, applied_policies, issued_at, expires_at, schema_version
		 FROM mandates WHERE agent_id = ? ORDER BY issued_at DESC`, agentID)
	if err != nil {
		return nil, fmt.Errorf("find mandates by agent: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMandateRows(rows)
		if err != nil {
			return nil, err
		}
		if m.IsExpired(now) {
			continue
		}
		if contextEqual(m.Context, context) {
			return m, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nil, mandate.ErrNotFound
}

func contextEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func scanMandate(row *sql.Row) (*mandate.Mandate, error) {
	return scanMandateRow(row)
}

func scanMandateRows(rows *sql.Rows) (*mandate.Mandate, error) {
	return scanMandateRow(rows)
}

func scanMandateRow(row rowScanner) (*mandate.Mandate, error) {
	var (
		m               mandate.Mandate
		context         string
		authority       string
		matchedRules    string
		appliedPolicies string
		issuedAt        string
		expiresAt       string
	)
	err := row.Scan(&m.MandateID, &m.AgentID, &context, &authority, &matchedRules, &appliedPolicies, &issuedAt, &expiresAt, &m.SchemaVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, mandate.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan mandate: %w", err)
	}
	if err := json.Unmarshal([]byte(context), &m.Context); err != nil {
		return nil, fmt.Errorf("unmarshal context: %w", err)
	}
	var authorityVal policy.Authority
	if err := json.Unmarshal([]byte(authority), &authorityVal); err != nil {
		return nil, fmt.Errorf("unmarshal authority: %w", err)
	}
	m.Authority = authorityVal
	if err := json.Unmarshal([]byte(matchedRules), &m.MatchedRules); err != nil {
		return nil, fmt.Errorf("unmarshal matched rules: %w", err)
	}
	if err := json.Unmarshal([]byte(appliedPolicies), &m.AppliedPolicies); err != nil {
		return nil, fmt.Errorf("unmarshal applied policies: %w", err)
	}
	if m.IssuedAt, err = time.Parse(time.RFC3339Nano, issuedAt); err != nil {
		return nil, fmt.Errorf("parse issued_at: %w", err)
	}
	if m.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	return &m, nil
}

var _ mandate.Store = (*MandateStore)(nil)
