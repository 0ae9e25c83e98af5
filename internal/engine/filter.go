package engine

import (
	"path"
	"strings"

	"pipelinehealth/internal/config"
)

// filterCandidates applies the include and exclude name patterns. Archived
// repositories are dropped later, once their metadata is complete.
func filterCandidates(cands []*candidate, cfg *config.Config) []*candidate {
	if cfg == nil {
		panic("engine.filterCandidates: cfg must not be nil")
	}

	includePatterns := cfg.Targeting.Include
	excludePatterns := cfg.Targeting.Exclude
	if len(includePatterns) == 0 && len(excludePatterns) == 0 {
		return cands
	}

	var filtered []*candidate
	for _, c := range cands {
		fullName := cfg.Targeting.Org + "/" + c.name

		// If Include is set, must match at least one
		if len(includePatterns) > 0 && !matchesAnyPattern(includePatterns, fullName, c.name) {
			continue
		}

		// If Exclude is set, must not match any
		if len(excludePatterns) > 0 && matchesAnyPattern(excludePatterns, fullName, c.name) {
			continue
		}

		filtered = append(filtered, c)
	}
	return filtered
}

func matchesAnyPattern(patterns []string, fullName, repoName string) bool {
	for _, p := range patterns {
		if matchPattern(p, fullName, repoName) {
			return true
		}
	}
	return false
}

func matchPattern(pattern, fullName, repoName string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false
	}
	// If the pattern includes an owner component (contains '/'), match against full name.
	// Otherwise match against repo name only so patterns like "test-*" work within the org.
	if strings.Contains(pattern, "/") {
		matched, _ := path.Match(pattern, fullName)
		return matched
	}
	matched, _ := path.Match(pattern, repoName)
	return matched
}
