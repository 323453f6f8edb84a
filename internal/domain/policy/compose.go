package policy

import "github.com/mandate-authority/mandate-authority/internal/apierr"

// failClosedAuthority is returned when Compose is given zero policies.
func failClosedAuthority() Authority {
	zero := 0.0
	return Authority{
		MaxCostTotal:   &zero,
		MaxCostPerCall: &zero,
		AllowedTools:   []string{},
		DeniedTools:    []string{"*"},
	}
}

func minPtr(a, b *float64) *float64 {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *a < *b:
		return a
	default:
		return b
	}
}

func minInt64Ptr(a, b *int64) *int64 {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *a < *b:
		return a
	default:
		return b
	}
}

// intersectStrings returns the intersection of every non-nil slice in
// lists. A nil slice in the input means "this policy didn't define the
// field" and is skipped entirely, per spec §4.3: "if some policies
// define it and some don't, the INTERSECTION is over those that do."
func intersectStrings(lists [][]string) []string {
	defining := make([][]string, 0, len(lists))
	for _, l := range lists {
		if l != nil {
			defining = append(defining, l)
		}
	}
	if len(defining) == 0 {
		return nil
	}
	set := make(map[string]int, len(defining[0]))
	for _, s := range defining[0] {
		set[s]++
	}
	for _, l := range defining[1:] {
		present := make(map[string]bool, len(l))
		for _, s := range l {
			present[s] = true
		}
		for k := range set {
			if !present[k] {
				delete(set, k)
			}
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// unionStrings returns the set union of every slice in lists.
func unionStrings(lists [][]string) []string {
	set := map[string]bool{}
	for _, l := range lists {
		for _, s := range l {
			set[s] = true
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func composeRateLimit(rls []*RateLimit) *RateLimit {
	var out *RateLimit
	for _, rl := range rls {
		if rl == nil {
			continue
		}
		if out == nil {
			v := *rl
			out = &v
			continue
		}
		if rl.MaxCalls < out.MaxCalls {
			out.MaxCalls = rl.MaxCalls
		}
		if rl.WindowMs < out.WindowMs {
			out.WindowMs = rl.WindowMs
		}
	}
	return out
}

func composeToolPolicies(auths []Authority) map[string]ToolAuthority {
	names := map[string]bool{}
	for _, a := range auths {
		for name := range a.ToolPolicies {
			names[name] = true
		}
	}
	if len(names) == 0 {
		return nil
	}
	out := make(map[string]ToolAuthority, len(names))
	for name := range names {
		allowed := true
		var cost *float64
		var rls []*RateLimit
		defined := false
		for _, a := range auths {
			tp, ok := a.ToolPolicies[name]
			if !ok {
				continue
			}
			defined = true
			if !tp.Allowed {
				allowed = false
			}
			if tp.Cost != 0 {
				v := tp.Cost
				cost = minPtr(cost, &v)
			}
			rls = append(rls, tp.RateLimit)
		}
		if !defined {
			continue
		}
		ta := ToolAuthority{Allowed: allowed, RateLimit: composeRateLimit(rls)}
		if cost != nil {
			ta.Cost = *cost
		}
		out[name] = ta
	}
	return out
}

func composeExecutionLimits(auths []Authority) *ExecutionLimits {
	var maxTokens, maxDuration *int64
	maxConcurrent := 0
	defined := false
	for _, a := range auths {
		if a.ExecutionLimits == nil {
			continue
		}
		defined = true
		el := a.ExecutionLimits
		if el.MaxTokens != 0 {
			v := el.MaxTokens
			maxTokens = minInt64Ptr(maxTokens, &v)
		}
		if el.MaxDurationMs != 0 {
			v := el.MaxDurationMs
			maxDuration = minInt64Ptr(maxDuration, &v)
		}
		if maxConcurrent == 0 || (el.MaxConcurrentCalls > 0 && el.MaxConcurrentCalls < maxConcurrent) {
			if el.MaxConcurrentCalls > 0 {
				maxConcurrent = el.MaxConcurrentCalls
			}
		}
	}
	if !defined {
		return nil
	}
	out := &ExecutionLimits{MaxConcurrentCalls: maxConcurrent}
	if maxTokens != nil {
		out.MaxTokens = *maxTokens
	}
	if maxDuration != nil {
		out.MaxDurationMs = *maxDuration
	}
	return out
}

func composeModelConfig(auths []Authority) *ModelConfig {
	var lists [][]string
	defined := false
	for _, a := range auths {
		if a.ModelConfig == nil {
			continue
		}
		defined = true
		lists = append(lists, a.ModelConfig.AllowedModels)
	}
	if !defined {
		return nil
	}
	return &ModelConfig{AllowedModels: intersectStrings(lists)}
}

// Compose merges N authority templates into one effective authority
// per spec §4.3: MIN on numeric budgets, INTERSECTION on allowedTools,
// UNION on deniedTools, then a deny-wins filter as the final step.
// Composition is pure and fails only on an invalid glob pattern.
func Compose(policies []Authority) (Authority, error) {
	if len(policies) == 0 {
		return failClosedAuthority(), nil
	}

	var maxCostTotal, maxCostPerCall, maxCognitionCost, maxExecutionCost *float64
	var rateLimits []*RateLimit
	var allowedLists, deniedLists [][]string

	for _, p := range policies {
		maxCostTotal = minPtr(maxCostTotal, p.MaxCostTotal)
		maxCostPerCall = minPtr(maxCostPerCall, p.MaxCostPerCall)
		maxCognitionCost = minPtr(maxCognitionCost, p.MaxCognitionCost)
		maxExecutionCost = minPtr(maxExecutionCost, p.MaxExecutionCost)
		rateLimits = append(rateLimits, p.RateLimit)
		allowedLists = append(allowedLists, p.AllowedTools)
		if p.DeniedTools != nil {
			deniedLists = append(deniedLists, p.DeniedTools)
		}
	}

	out := Authority{
		MaxCostTotal:     maxCostTotal,
		MaxCostPerCall:   maxCostPerCall,
		MaxCognitionCost: maxCognitionCost,
		MaxExecutionCost: maxExecutionCost,
		RateLimit:        composeRateLimit(rateLimits),
		AllowedTools:     intersectStrings(allowedLists),
		DeniedTools:      unionStrings(deniedLists),
		ToolPolicies:     composeToolPolicies(policies),
		ExecutionLimits:  composeExecutionLimits(policies),
		ModelConfig:      composeModelConfig(policies),
	}

	// Deny-wins filter: remove from AllowedTools anything matching a
	// DeniedTools pattern. Applied even to a single-policy pass-through.
	if out.AllowedTools != nil {
		filtered := make([]string, 0, len(out.AllowedTools))
		for _, tool := range out.AllowedTools {
			matched, err := GlobMatchAny(out.DeniedTools, tool)
			if err != nil {
				return Authority{}, apierr.New(apierr.KindInvalidPattern, err.Error())
			}
			if !matched {
				filtered = append(filtered, tool)
			}
		}
		out.AllowedTools = filtered
	}
	// Validate every denied pattern even when AllowedTools is empty, so
	// an admin-authored bad pattern surfaces at composition time rather
	// than silently never matching at enforcement time.
	for _, p := range out.DeniedTools {
		if err := ValidateGlobPattern(p); err != nil {
			return Authority{}, apierr.New(apierr.KindInvalidPattern, err.Error())
		}
	}

	return out, nil
}
