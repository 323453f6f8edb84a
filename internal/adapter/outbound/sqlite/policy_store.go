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

// PolicyStore is a sqlite-backed policy.PolicyStore. Every version is
// retained (P7/P8). Update runs inside a BEGIN IMMEDIATE transaction,
// sqlite's write-lock-up-front mode, so the read of the current latest
// version and the insert of the next one are atomic against a
// concurrent Update racing for the same policyID (I1) — the real
// analogue of the single mutex memory.PolicyStore uses to the same
// end.
type PolicyStore struct {
	db *DB
}

func NewPolicyStore(db *DB) *PolicyStore {
	return &PolicyStore{db: db}
}

func (s *PolicyStore) Create(ctx context.Context, policyID string, authority policy.Authority, name string) (*policy.Policy, error) {
	tx, err := s.db.conn.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM policy_versions WHERE policy_id = ?`, policyID).Scan(&existing); err != nil {
		return nil, fmt.Errorf("check existing policy: %w", err)
	}
	if existing > 0 {
		return nil, policy.ErrVersionConflict
	}

	authorityJSON, err := json.Marshal(authority)
	if err != nil {
		return nil, fmt.Errorf("marshal authority: %w", err)
	}
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO policy_versions (policy_id, version, name, authority, active, created_at) VALUES (?, 1, ?, ?, 1, ?)`,
		policyID, name, string(authorityJSON), now.Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("insert policy version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &policy.Policy{PolicyID: policyID, Version: 1, Name: name, Authority: authority.Clone(), Active: true, CreatedAt: now}, nil
}

func (s *PolicyStore) Update(ctx context.Context, policyID string, authority policy.Authority, name string) (*policy.Policy, error) {
	tx, err := s.db.conn.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var latestVersion int
	err = tx.QueryRowContext(ctx,
		`SELECT version FROM policy_versions WHERE policy_id = ? ORDER BY version DESC LIMIT 1`, policyID,
	).Scan(&latestVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, policy.ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find latest policy version: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE policy_versions SET active = 0 WHERE policy_id = ? AND version = ?`, policyID, latestVersion,
	); err != nil {
		return nil, fmt.Errorf("deactivate policy version: %w", err)
	}

	authorityJSON, err := json.Marshal(authority)
	if err != nil {
		return nil, fmt.Errorf("marshal authority: %w", err)
	}
	now := time.Now().UTC()
	nextVersion := latestVersion + 1
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO policy_versions (policy_id, version, name, authority, active, created_at) VALUES (?, ?, ?, ?, 1, ?)`,
		policyID, nextVersion, name, string(authorityJSON), now.Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("insert policy version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &policy.Policy{PolicyID: policyID, Version: nextVersion, Name: name, Authority: authority.Clone(), Active: true, CreatedAt: now}, nil
}

func (s *PolicyStore) GetLatestActive(ctx context.Context, policyID string) (*policy.Policy, error) {
	row := s.db.conn.QueryRowContext(ctx,
		`SELECT policy_id, version, name, authority, active, created_at FROM policy_versions
		 WHERE policy_id = ? ORDER BY version DESC LIMIT 1`, policyID)
	p, err := scanPolicy(row)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, policy.ErrPolicyNotFound
	}
	return p, nil
}

func (s *PolicyStore) GetVersion(ctx context.Context, policyID string, version int) (*policy.Policy, error) {
	row := s.db.conn.QueryRowContext(ctx,
		`SELECT policy_id, version, name, authority, active, created_at FROM policy_versions
		 WHERE policy_id = ? AND version = ?`, policyID, version)
	return scanPolicy(row)
}

func (s *PolicyStore) List(ctx context.Context, activeOnly bool) ([]*policy.Policy, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT pv.policy_id, pv.version, pv.name, pv.authority, pv.active, pv.created_at
		FROM policy_versions pv
		INNER JOIN (
			SELECT policy_id, MAX(version) AS max_version FROM policy_versions GROUP BY policy_id
		) latest ON pv.policy_id = latest.policy_id AND pv.version = latest.max_version
		ORDER BY pv.created_at`)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	var out []*policy.Policy
	for rows.Next() {
		p, err := scanPolicyRows(rows)
		if err != nil {
			return nil, err
		}
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PolicyStore) Delete(ctx context.Context, policyID string, version int) error {
	var res sql.Result
	var err error
	if version == 0 {
		res, err = s.db.conn.ExecContext(ctx, `
			UPDATE policy_versions SET active = 0
			WHERE policy_id = ? AND version = (SELECT MAX(version) FROM policy_versions WHERE policy_id = ?)`,
			policyID, policyID)
	} else {
		res, err = s.db.conn.ExecContext(ctx,
			`UPDATE policy_versions SET active = 0 WHERE policy_id = ? AND version = ?`, policyID, version)
	}
	if err != nil {
		return fmt.Errorf("deactivate policy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate policy: %w", err)
	}
	if n == 0 {
		return policy.ErrPolicyNotFound
	}
	return nil
}

func scanPolicy(row *sql.Row) (*policy.Policy, error) {
	return scanPolicyRow(row)
}

func scanPolicyRows(rows *sql.Rows) (*policy.Policy, error) {
	return scanPolicyRow(rows)
}

func scanPolicyRow(row rowScanner) (*policy.Policy, error) {
	var (
		p         policy.Policy
		authority string
		active    int
		createdAt string
	)
	err := row.Scan(&p.PolicyID, &p.Version, &p.Name, &authority, &active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, policy.ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan policy: %w", err)
	}
	if err := json.Unmarshal([]byte(authority), &p.Authority); err != nil {
		return nil, fmt.Errorf("unmarshal authority: %w", err)
	}
	p.Active = active != 0
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &p, nil
}

var _ policy.PolicyStore = (*PolicyStore)(nil)
