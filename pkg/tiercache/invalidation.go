package tiercache

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// InvalidationRule maps a write pattern to the key patterns that must be
// removed from the memory and session tiers when a matching key is set.
type InvalidationRule struct {
	Source  string
	Targets []string
}

type compiledRule struct {
	source  *regexp.Regexp
	rawSrc  string
	targets []*regexp.Regexp
	rawTgts []string
}

// invalidationEngine holds compiled rules, evaluated in registration order
// on every successful set.
type invalidationEngine struct {
	mu    sync.RWMutex
	rules []compiledRule
}

func newInvalidationEngine() *invalidationEngine {
	return &invalidationEngine{}
}

// compilePattern turns a dot-segmented key pattern with a single wildcard
// segment into an anchored regular expression. The wildcard matches the rest
// of the key from its segment onward: "user.*" matches "user.123" and
// "user.123.settings".
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: empty invalidation pattern", ErrInvalidConfig)
	}
	if strings.Count(pattern, "*") > 1 {
		return nil, fmt.Errorf("%w: pattern %q has more than one wildcard", ErrInvalidConfig, pattern)
	}

	segments := strings.Split(pattern, ".")
	parts := make([]string, len(segments))
	for i, seg := range segments {
		if seg == "*" {
			parts[i] = ".*"
			continue
		}
		if strings.Contains(seg, "*") {
			return nil, fmt.Errorf("%w: wildcard must be its own segment in %q", ErrInvalidConfig, pattern)
		}
		parts[i] = regexp.QuoteMeta(seg)
	}
	return regexp.Compile("^" + strings.Join(parts, `\.`) + "$")
}

// addRule compiles and registers a rule.
func (e *invalidationEngine) addRule(source string, targets ...string) error {
	if len(targets) == 0 {
		return fmt.Errorf("%w: invalidation rule for %q has no targets", ErrInvalidConfig, source)
	}

	src, err := compilePattern(source)
	if err != nil {
		return err
	}
	compiled := compiledRule{source: src, rawSrc: source}
	for _, t := range targets {
		tgt, err := compilePattern(t)
		if err != nil {
			return err
		}
		compiled.targets = append(compiled.targets, tgt)
		compiled.rawTgts = append(compiled.rawTgts, t)
	}

	e.mu.Lock()
	e.rules = append(e.rules, compiled)
	e.mu.Unlock()
	return nil
}

// cascade returns the target expressions triggered by writing key, in
// registration order. A target pattern triggered by several rules appears
// once, so one pass never invalidates the same pattern twice.
func (e *invalidationEngine) cascade(key string) []*regexp.Regexp {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []*regexp.Regexp
	seen := make(map[string]struct{})
	for _, rule := range e.rules {
		if !rule.source.MatchString(key) {
			continue
		}
		for i, tgt := range rule.targets {
			if _, dup := seen[rule.rawTgts[i]]; dup {
				continue
			}
			seen[rule.rawTgts[i]] = struct{}{}
			out = append(out, tgt)
		}
	}
	return out
}

// rulesSnapshot returns the registered rules for inspection.
func (e *invalidationEngine) rulesSnapshot() []InvalidationRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]InvalidationRule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, InvalidationRule{
			Source:  r.rawSrc,
			Targets: append([]string(nil), r.rawTgts...),
		})
	}
	return out
}
