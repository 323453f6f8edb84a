package policy

import (
	"strconv"
	"strings"
)

// CELEvaluator is the optional escape hatch for Condition{Operator:
// "cel"}. Implementations live in the outbound cel adapter so this
// package stays free of the cel-go dependency; RuleEvaluator is wired
// with nil when CEL support isn't configured, in which case any "cel"
// condition is treated as non-matching (fail-closed).
type CELEvaluator interface {
	Evaluate(expression string, context map[string]string) (bool, error)
}

// matchCondition evaluates a single condition against ctx. A missing
// context field, an unknown operator, or a numeric parse failure all
// evaluate to false (fail-closed), per spec §4.2.
func matchCondition(c Condition, ctx map[string]string, cel CELEvaluator) bool {
	if c.Operator == OpCEL {
		if cel == nil {
			return false
		}
		ok, err := cel.Evaluate(c.Value, ctx)
		if err != nil {
			return false
		}
		return ok
	}

	actual, ok := ctx[c.Field]
	if !ok {
		return false
	}

	switch c.Operator {
	case OpEquals:
		return actual == c.Value
	case OpNotEquals:
		return actual != c.Value
	case OpIn:
		for _, v := range strings.Split(c.Value, ",") {
			if actual == strings.TrimSpace(v) {
				return true
			}
		}
		return false
	case OpContains:
		return strings.Contains(actual, c.Value)
	case OpGreaterThan, OpLessThan, OpGreaterEq, OpLessEq:
		af, aerr := strconv.ParseFloat(actual, 64)
		bf, berr := strconv.ParseFloat(c.Value, 64)
		if aerr != nil || berr != nil {
			return false
		}
		switch c.Operator {
		case OpGreaterThan:
			return af > bf
		case OpLessThan:
			return af < bf
		case OpGreaterEq:
			return af >= bf
		case OpLessEq:
			return af <= bf
		}
	}
	return false
}

// matchConditions evaluates every condition in conditions under mode.
// An empty condition list is vacuously true under AND (all zero
// conditions hold) and vacuously false under OR — there is nothing to
// match — so a rule author must supply at least one condition under OR
// to ever match; this mirrors ordinary boolean quantification.
func matchConditions(conditions []Condition, mode MatchMode, ctx map[string]string, cel CELEvaluator) bool {
	if mode == MatchAny {
		for _, c := range conditions {
			if matchCondition(c, ctx, cel) {
				return true
			}
		}
		return false
	}
	for _, c := range conditions {
		if !matchCondition(c, ctx, cel) {
			return false
		}
	}
	return true
}
