package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Seed describes agents/policies/rules to bootstrap a fresh deployment
// with, loaded from a YAML file named by Config.SeedFile. Grounded on
// the teacher's config.PolicyConfig/RuleConfig + SetDevDefaults
// convention of shipping a working default policy without a round trip
// to the admin CRUD endpoints; rewritten against this service's
// versioned authority/condition model instead of the teacher's RBAC
// rule list.
type Seed struct {
	Agents   []AgentSeed   `yaml:"agents" validate:"omitempty,dive"`
	Policies []PolicySeed  `yaml:"policies" validate:"omitempty,dive"`
	Rules    []RuleSeed    `yaml:"rules" validate:"omitempty,dive"`
}

// AgentSeed describes an agent to pre-register.
type AgentSeed struct {
	DisplayName string            `yaml:"display_name" validate:"required"`
	Principal   string            `yaml:"principal" validate:"required"`
	Environment string            `yaml:"environment" validate:"required,oneof=development staging production"`
	Metadata    map[string]string `yaml:"metadata"`
}

// PolicySeed describes a policy's starting authority. Numeric fields
// are pointers, mirroring policy.Authority, so "absent from the seed
// file" stays distinguishable from "zero".
type PolicySeed struct {
	Name             string   `yaml:"name" validate:"required"`
	MaxCostTotal     *float64 `yaml:"max_cost_total"`
	MaxCostPerCall   *float64 `yaml:"max_cost_per_call"`
	MaxCognitionCost *float64 `yaml:"max_cognition_cost"`
	MaxExecutionCost *float64 `yaml:"max_execution_cost"`
	AllowedTools     []string `yaml:"allowed_tools"`
	DeniedTools      []string `yaml:"denied_tools"`
}

// RuleSeed describes a rule pointing at a PolicySeed by name.
type RuleSeed struct {
	PolicyName string          `yaml:"policy_name" validate:"required"`
	Conditions []ConditionSeed `yaml:"conditions" validate:"required,min=1,dive"`
	MatchMode  string          `yaml:"match_mode" validate:"required,oneof=AND OR"`
	AgentIDs   []string        `yaml:"agent_ids"`
}

// ConditionSeed mirrors policy.Condition in YAML form.
type ConditionSeed struct {
	Field    string `yaml:"field" validate:"required"`
	Operator string `yaml:"operator" validate:"required"`
	Value    string `yaml:"value"`
}

// LoadSeed reads and validates a seed file. Callers (the seed CLI
// command) translate the result into PolicyAdminService/RuleAdminService/
// AgentService calls, resolving RuleSeed.PolicyName to the minted
// PolicyID of the matching PolicySeed.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(&seed); err != nil {
		return nil, formatValidationErrors(err)
	}

	policyNames := make(map[string]struct{}, len(seed.Policies))
	for _, p := range seed.Policies {
		policyNames[p.Name] = struct{}{}
	}
	for i, r := range seed.Rules {
		if _, ok := policyNames[r.PolicyName]; !ok {
			return nil, fmt.Errorf("rules[%d]: references unknown policy_name: %s", i, r.PolicyName)
		}
	}

	return &seed, nil
}
