package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mandate-authority/mandate-authority/internal/domain/policy"
)

// RuleStore is a sqlite-backed policy.RuleStore, with the same
// BEGIN-IMMEDIATE-transaction row-lock-on-latest-version discipline as
// PolicyStore. seq assigns each ruleID its first-ever insert order, so
// ListActive can reproduce memory.RuleStore's stable insertion-order
// tiebreak (spec §4.2 step 6) via ORDER BY seq instead of an in-memory
// slice.
type RuleStore struct {
	db *DB
}

func NewRuleStore(db *DB) *RuleStore {
	return &RuleStore{db: db}
}

func (s *RuleStore) Create(ctx context.Context, ruleID string, r policy.Rule) (*policy.Rule, error) {
	tx, err := s.db.conn.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM rule_versions WHERE rule_id = ?`, ruleID).Scan(&existing); err != nil {
		return nil, fmt.Errorf("check existing rule: %w", err)
	}
	if existing > 0 {
		return nil, policy.ErrVersionConflict
	}

	var nextSeq int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM rule_versions`).Scan(&nextSeq); err != nil {
		return nil, fmt.Errorf("assign rule sequence: %w", err)
	}

	conditionsJSON, err := json.Marshal(r.Conditions)
	if err != nil {
		return nil, fmt.Errorf("marshal conditions: %w", err)
	}
	agentIDsJSON, err := json.Marshal(r.AgentIDs)
	if err != nil {
		return nil, fmt.Errorf("marshal agent ids: %w", err)
	}
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rule_versions (rule_id, version, conditions, match_mode, agent_ids, policy_id, active, created_at, seq)
		 VALUES (?, 1, ?, ?, ?, ?, 1, ?, ?)`,
		ruleID, string(conditionsJSON), string(r.MatchMode), string(agentIDsJSON), r.PolicyID, now.Format(time.RFC3339Nano), nextSeq,
	); err != nil {
		return nil, fmt.Errorf("insert rule version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	r.RuleID = ruleID
	r.Version = 1
	r.Active = true
	r.CreatedAt = now
	return &r, nil
}

func (s *RuleStore) Update(ctx context.Context, ruleID string, r policy.Rule) (*policy.Rule, error) {
	tx, err := s.db.conn.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var latestVersion, seq int
	err = tx.QueryRowContext(ctx,
		`SELECT version, seq FROM rule_versions WHERE rule_id = ? ORDER BY version DESC LIMIT 1`, ruleID,
	).Scan(&latestVersion, &seq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, policy.ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find latest rule version: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE rule_versions SET active = 0 WHERE rule_id = ? AND version = ?`, ruleID, latestVersion,
	); err != nil {
		return nil, fmt.Errorf("deactivate rule version: %w", err)
	}

	conditionsJSON, err := json.Marshal(r.Conditions)
	if err != nil {
		return nil, fmt.Errorf("marshal conditions: %w", err)
	}
	agentIDsJSON, err := json.Marshal(r.AgentIDs)
	if err != nil {
		return nil, fmt.Errorf("marshal agent ids: %w", err)
	}
	now := time.Now().UTC()
	nextVersion := latestVersion + 1
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rule_versions (rule_id, version, conditions, match_mode, agent_ids, policy_id, active, created_at, seq)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		ruleID, nextVersion, string(conditionsJSON), string(r.MatchMode), string(agentIDsJSON), r.PolicyID, now.Format(time.RFC3339Nano), seq,
	); err != nil {
		return nil, fmt.Errorf("insert rule version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	r.RuleID = ruleID
	r.Version = nextVersion
	r.Active = true
	r.CreatedAt = now
	return &r, nil
}

func (s *RuleStore) GetLatestActive(ctx context.Context, ruleID string) (*policy.Rule, error) {
	row := s.db.conn.QueryRowContext(ctx,
		`SELECT rule_id, version, conditions, match_mode, agent_ids, policy_id, active, created_at FROM rule_versions
		 WHERE rule_id = ? ORDER BY version DESC LIMIT 1`, ruleID)
	r, err := scanRule(row)
	if err != nil {
		return nil, err
	}
	if !r.Active {
		return nil, policy.ErrRuleNotFound
	}
	return r, nil
}

func (s *RuleStore) ListActive(ctx context.Context) ([]*policy.Rule, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT rv.rule_id, rv.version, rv.conditions, rv.match_mode, rv.agent_ids, rv.policy_id, rv.active, rv.created_at
		FROM rule_versions rv
		INNER JOIN (
			SELECT rule_id, MAX(version) AS max_version FROM rule_versions GROUP BY rule_id
		) latest ON rv.rule_id = latest.rule_id AND rv.version = latest.max_version
		WHERE rv.active = 1
		ORDER BY rv.seq`)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	defer rows.Close()

	var out []*policy.Rule
	for rows.Next() {
		r, err := scanRuleRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *RuleStore) List(ctx context.Context) ([]*policy.Rule, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT rv.rule_id, rv.version, rv.conditions, rv.match_mode, rv.agent_ids, rv.policy_id, rv.active, rv.created_at
		FROM rule_versions rv
		INNER JOIN (
			SELECT rule_id, MAX(version) AS max_version FROM rule_versions GROUP BY rule_id
		) latest ON rv.rule_id = latest.rule_id AND rv.version = latest.max_version
		ORDER BY rv.seq`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []*policy.Rule
	for rows.Next() {
		r, err := scanRuleRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *RuleStore) Delete(ctx context.Context, ruleID string) error {
	res, err := s.db.conn.ExecContext(ctx, `
		UPDATE rule_versions SET active = 0
		WHERE rule_id = ? AND version = (SELECT MAX(version) FROM rule_versions WHERE rule_id = ?)`,
		ruleID, ruleID)
	if err != nil {
		return fmt.Errorf("deactivate rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate rule: %w", err)
	}
	if n == 0 {
		return policy.ErrRuleNotFound
	}
	return nil
}

func scanRule(row *sql.Row) (*policy.Rule, error) {
	return scanRuleRow(row)
}

func scanRuleRows(rows *sql.Rows) (*policy.Rule, error) {
	return scanRuleRow(rows)
}

func scanRuleRow(row rowScanner) (*policy.Rule, error) {
	var (
		r          policy.Rule
		conditions string
		matchMode  string
		agentIDs   string
		active     int
		createdAt  string
	)
	err := row.Scan(&r.RuleID, &r.Version, &conditions, &matchMode, &agentIDs, &r.PolicyID, &active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, policy.ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan rule: %w", err)
	}
	if err := json.Unmarshal([]byte(conditions), &r.Conditions); err != nil {
		return nil, fmt.Errorf("unmarshal conditions: %w", err)
	}
	if err := json.Unmarshal([]byte(agentIDs), &r.AgentIDs); err != nil {
		return nil, fmt.Errorf("unmarshal agent ids: %w", err)
	}
	r.MatchMode = policy.MatchMode(matchMode)
	r.Active = active != 0
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &r, nil
}

var _ policy.RuleStore = (*RuleStore)(nil)
