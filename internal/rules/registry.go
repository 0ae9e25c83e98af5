package rules

import (
	"fmt"
	"strings"
)

var registry = buildRegistry()

func buildRegistry() []Check {
	checks := repoChecks()
	for _, b := range Branches {
		for _, c := range BranchChecks {
			checks = append(checks, branchCheck(b, c))
		}
	}

	seen := make(map[string]struct{}, len(checks))
	for _, c := range checks {
		if _, exists := seen[c.Key]; exists {
			panic(fmt.Sprintf("check %s already registered", c.Key))
		}
		seen[c.Key] = struct{}{}
	}
	return checks
}

// Checks returns the fixed check registry in report order.
func Checks() []Check {
	out := make([]Check, len(registry))
	copy(out, registry)
	return out
}

// Keys returns the registry keys in report order.
func Keys() []string {
	keys := make([]string, len(registry))
	for i, c := range registry {
		keys[i] = c.Key
	}
	return keys
}

// Lookup returns the check registered under key.
func Lookup(key string) (Check, bool) {
	key = strings.TrimSpace(key)
	for _, c := range registry {
		if c.Key == key {
			return c, true
		}
	}
	return Check{}, false
}

// Resolve selects checks by a comma-separated list of keys. An empty
// selector returns the whole registry.
func Resolve(selector string) ([]Check, error) {
	if strings.TrimSpace(selector) == "" {
		return Checks(), nil
	}

	var selected []Check
	for _, key := range strings.Split(selector, ",") {
		c, ok := Lookup(key)
		if !ok {
			return nil, fmt.Errorf("check not found: %s", strings.TrimSpace(key))
		}
		selected = append(selected, c)
	}
	return selected, nil
}
