package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mandate-authority/mandate-authority/internal/config"
	"github.com/mandate-authority/mandate-authority/internal/domain/agent"
	"github.com/mandate-authority/mandate-authority/internal/domain/policy"
	"github.com/mandate-authority/mandate-authority/internal/service"
)

var seedCmd = &cobra.Command{
	Use:   "seed [file]",
	Short: "Load a YAML agent/policy/rule seed file",
	Long: `Bootstrap a fresh deployment from a YAML seed file: register the
listed agents, create the listed policies, and create the listed
rules, resolving each rule's policy_name to the policy created for it.

The seed file path defaults to Config.SeedFile (set via config file or
the MANDATE_AUTHORITY_SEED_FILE environment variable); pass it
explicitly as an argument to override.

Agent API keys are minted fresh and printed once, exactly as they
would be for a POST /agents call, since this command talks to the same
stores a running server would use.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.SetDevDefaults()

	path := cfg.SeedFile
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no seed file given: pass one as an argument or set seed_file in config")
	}

	seed, err := config.LoadSeed(path)
	if err != nil {
		return fmt.Errorf("failed to load seed file: %w", err)
	}

	agents, policies, rules, closeStores, err := openSeedStores(cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	policyIDs := make(map[string]string, len(seed.Policies))
	for _, p := range seed.Policies {
		created, err := policies.Create(ctx, p.Name, policy.Authority{
			MaxCostTotal:     p.MaxCostTotal,
			MaxCostPerCall:   p.MaxCostPerCall,
			MaxCognitionCost: p.MaxCognitionCost,
			MaxExecutionCost: p.MaxExecutionCost,
			AllowedTools:     p.AllowedTools,
			DeniedTools:      p.DeniedTools,
		})
		if err != nil {
			return fmt.Errorf("create policy %q: %w", p.Name, err)
		}
		policyIDs[p.Name] = created.PolicyID
		fmt.Printf("policy created: %s (%s)\n", created.PolicyID, p.Name)
	}

	for _, a := range seed.Agents {
		env := agent.Environment(a.Environment)
		registered, err := agents.Register(ctx, a.DisplayName, a.Principal, env, a.Metadata)
		if err != nil {
			return fmt.Errorf("register agent %q: %w", a.DisplayName, err)
		}
		fmt.Printf("agent registered: %s (%s)\n  api key: %s\n", registered.Agent.AgentID, a.DisplayName, registered.APIKey)
	}

	for i, r := range seed.Rules {
		policyID, ok := policyIDs[r.PolicyName]
		if !ok {
			return fmt.Errorf("rules[%d]: policy %q was not created in this run", i, r.PolicyName)
		}
		conditions := make([]policy.Condition, len(r.Conditions))
		for j, c := range r.Conditions {
			conditions[j] = policy.Condition{
				Field:    c.Field,
				Operator: policy.Operator(c.Operator),
				Value:    c.Value,
			}
		}
		created, err := rules.Create(ctx, policy.Rule{
			Conditions: conditions,
			MatchMode:  policy.MatchMode(r.MatchMode),
			AgentIDs:   r.AgentIDs,
			PolicyID:   policyID,
			Active:     true,
		})
		if err != nil {
			return fmt.Errorf("create rule for policy %q: %w", r.PolicyName, err)
		}
		fmt.Printf("rule created: %s (policy %s)\n", created.RuleID, r.PolicyName)
	}

	return nil
}

// openSeedStores wires the same store backends serve would use,
// scoped to just the three admin services the seed command needs.
func openSeedStores(cfg *config.Config) (*service.AgentService, *service.PolicyAdminService, *service.RuleAdminService, func(), error) {
	stores, err := newPersistenceStores(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return service.NewAgentService(stores.agents), service.NewPolicyAdminService(stores.policies), service.NewRuleAdminService(stores.rules), stores.close, nil
}
