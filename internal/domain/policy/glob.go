package policy

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// MaxPatternLength is the longest glob pattern the composer/engine will
// accept. Grounded on spec §4.3's bounded-glob requirement to avoid
// regex catastrophic backtracking: patterns are restricted to a fixed,
// single-metacharacter alphabet and compiled once per pattern.
const MaxPatternLength = 100

// globAlphabet matches every character a valid glob pattern may
// contain. '*' is the only metacharacter; everything else is a literal.
var globAlphabet = regexp.MustCompile(`^[A-Za-z0-9*_.-]*$`)

var (
	globCacheMu sync.Mutex
	globCache   = map[string]*regexp.Regexp{}
)

// ValidateGlobPattern reports whether p is an acceptable glob pattern:
// non-empty, within MaxPatternLength, and drawn entirely from the
// bounded alphabet.
func ValidateGlobPattern(p string) error {
	if p == "" {
		return fmt.Errorf("empty glob pattern")
	}
	if len(p) > MaxPatternLength {
		return fmt.Errorf("glob pattern exceeds max length %d", MaxPatternLength)
	}
	if !globAlphabet.MatchString(p) {
		return fmt.Errorf("glob pattern %q contains characters outside [A-Za-z0-9*_.-]", p)
	}
	return nil
}

// compileGlob turns a validated pattern into an anchored regexp,
// escaping every character except '*' (translated to ".*"). Compiled
// patterns are cached since the same small set of patterns is matched
// repeatedly across calls.
func compileGlob(p string) (*regexp.Regexp, error) {
	globCacheMu.Lock()
	if re, ok := globCache[p]; ok {
		globCacheMu.Unlock()
		return re, nil
	}
	globCacheMu.Unlock()

	if err := ValidateGlobPattern(p); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("^")
	for _, r := range p {
		if r == '*' {
			b.WriteString(".*")
		} else {
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("compile glob %q: %w", p, err)
	}

	globCacheMu.Lock()
	globCache[p] = re
	globCacheMu.Unlock()
	return re, nil
}

// GlobMatch reports whether name matches pattern under the bounded
// glob grammar. An invalid pattern is reported via the returned error;
// callers on the fail-closed paths (deny-wins, tool scope) must treat
// an error as "does not match" only after surfacing INVALID_PATTERN to
// the caller — composition deliberately fails loudly on this, per
// spec §4.3.
func GlobMatch(pattern, name string) (bool, error) {
	re, err := compileGlob(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(name), nil
}

// GlobMatchAny reports whether name matches any pattern in patterns.
func GlobMatchAny(patterns []string, name string) (bool, error) {
	for _, p := range patterns {
		ok, err := GlobMatch(p, name)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
