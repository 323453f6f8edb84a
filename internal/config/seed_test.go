package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSeedFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	return path
}

func TestLoadSeed_Valid(t *testing.T) {
	t.Parallel()

	path := writeSeedFile(t, `
agents:
  - display_name: payments-bot
    principal: team-payments
    environment: production
policies:
  - name: default-budget
    max_cost_total: 100
rules:
  - policy_name: default-budget
    match_mode: AND
    conditions:
      - field: repo
        operator: "=="
        value: payments
`)

	seed, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if len(seed.Agents) != 1 || seed.Agents[0].DisplayName != "payments-bot" {
		t.Errorf("unexpected agents: %+v", seed.Agents)
	}
	if len(seed.Policies) != 1 || seed.Policies[0].MaxCostTotal == nil || *seed.Policies[0].MaxCostTotal != 100 {
		t.Errorf("unexpected policies: %+v", seed.Policies)
	}
	if len(seed.Rules) != 1 || seed.Rules[0].PolicyName != "default-budget" {
		t.Errorf("unexpected rules: %+v", seed.Rules)
	}
}

func TestLoadSeed_UnknownPolicyReference(t *testing.T) {
	t.Parallel()

	path := writeSeedFile(t, `
policies:
  - name: default-budget
rules:
  - policy_name: nonexistent-policy
    match_mode: AND
    conditions:
      - field: repo
        operator: "=="
        value: payments
`)

	_, err := LoadSeed(path)
	if err == nil {
		t.Fatal("LoadSeed: expected an error for an unknown policy_name reference")
	}
}

func TestLoadSeed_InvalidMatchMode(t *testing.T) {
	t.Parallel()

	path := writeSeedFile(t, `
policies:
  - name: default-budget
rules:
  - policy_name: default-budget
    match_mode: XOR
    conditions:
      - field: repo
        operator: "=="
        value: payments
`)

	_, err := LoadSeed(path)
	if err == nil {
		t.Fatal("LoadSeed: expected an error for an invalid match_mode")
	}
}

func TestLoadSeed_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("LoadSeed: expected an error for a missing file")
	}
}
