// Package sanitize validates and normalises the key-value context
// supplied with a mandate issuance request (spec component C2). It is
// grounded on the teacher's former validation.Sanitizer: a stateless,
// regex-backed validator that fails closed on any adversarial shape
// rather than attempting to repair it.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mandate-authority/mandate-authority/internal/apierr"
)

// MaxValueLength is the maximum length of any context value.
const MaxValueLength = 1000

// forbiddenChars mirrors the downstream string-compare/audit-log paths
// that consume context values verbatim: these characters can break
// naive log/HTML consumers of the audit trail, so they are rejected at
// the edge instead of escaped.
const forbiddenChars = `<>'";` + "`"

// keyPattern matches the required context key shape.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Sanitizer validates context maps before they reach rule evaluation.
type Sanitizer struct{}

// New returns a Sanitizer. It is stateless; all state lives in the
// package-level compiled pattern.
func New() *Sanitizer {
	return &Sanitizer{}
}

// Sanitize validates ctx in place semantics: keys must match
// ^[A-Za-z0-9_-]+$; values must be ≤ MaxValueLength chars and must not
// contain any of <>'"; `. On success it returns a fresh copy of ctx (so
// callers cannot observe later caller-side mutation); on failure it
// returns an *apierr.Error with Kind INVALID_CONTEXT.
func (s *Sanitizer) Sanitize(ctx map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(ctx))
	for k, v := range ctx {
		if !keyPattern.MatchString(k) {
			return nil, apierr.New(apierr.KindInvalidContext, fmt.Sprintf("invalid context key %q", k))
		}
		if len(v) > MaxValueLength {
			return nil, apierr.New(apierr.KindInvalidContext, fmt.Sprintf("context value for %q exceeds max length", k))
		}
		if strings.ContainsAny(v, forbiddenChars) {
			return nil, apierr.New(apierr.KindInvalidContext, fmt.Sprintf("context value for %q contains a forbidden character", k))
		}
		out[k] = v
	}
	return out, nil
}
