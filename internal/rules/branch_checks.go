package rules

import (
	"fmt"
	"slices"

	"pipelinehealth/internal/data/models"
)

// BranchCheck names one of the per-branch protection checks.
type BranchCheck string

const (
	BranchStrictUpdates      BranchCheck = "strict_updates"
	BranchRequiredCI         BranchCheck = "required_ci"
	BranchStaleReviews       BranchCheck = "stale_reviews"
	BranchCodeOwnerReviews   BranchCheck = "code_owner_reviews"
	BranchRequiredNumReviews BranchCheck = "required_num_reviews"
	BranchEnforceAdmins      BranchCheck = "enforce_admins"
)

// BranchChecks lists the per-branch checks in report order.
var BranchChecks = []BranchCheck{
	BranchStrictUpdates,
	BranchRequiredCI,
	BranchStaleReviews,
	BranchCodeOwnerReviews,
	BranchRequiredNumReviews,
	BranchEnforceAdmins,
}

// BranchCheckKey returns the registry key of check c on branch b.
func BranchCheckKey(b Branch, c BranchCheck) string {
	return fmt.Sprintf("branch_%s_%s", b, c)
}

// Branch-level checks never yield Unknown: a missing protection document or a
// missing substructure fails every check that reads it.

func evalBranch(b Branch, c BranchCheck, in *evalInput) Verdict {
	p := in.subject.Protection[b]
	if p == nil {
		return Fail
	}
	switch c {
	case BranchStrictUpdates:
		if p.RequiredStatusChecks == nil {
			return Fail
		}
		return VerdictOf(!p.RequiredStatusChecks.Strict)
	case BranchRequiredCI:
		if p.RequiredStatusChecks == nil {
			return Fail
		}
		return VerdictOf(containsAll(p.RequiredStatusChecks.Contexts, in.ciContexts))
	case BranchStaleReviews:
		if p.RequiredPullRequestReviews == nil {
			return Fail
		}
		return VerdictOf(!p.RequiredPullRequestReviews.DismissStaleReviews)
	case BranchCodeOwnerReviews:
		if p.RequiredPullRequestReviews == nil {
			return Fail
		}
		return VerdictOf(!p.RequiredPullRequestReviews.RequireCodeOwnerReviews)
	case BranchRequiredNumReviews:
		return checkReviewCount(p, b.RequiredReviews())
	case BranchEnforceAdmins:
		if p.EnforceAdmins == nil {
			return Fail
		}
		return VerdictOf(!p.EnforceAdmins.Enabled)
	default:
		return Fail
	}
}

func checkReviewCount(p *models.BranchProtection, required int) Verdict {
	if p.RequiredPullRequestReviews == nil {
		return Fail
	}
	return VerdictOf(p.RequiredPullRequestReviews.RequiredApprovingReviewCount == required)
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}

func reviewsLabel(n int) string {
	if n == 1 {
		return "1 review"
	}
	return fmt.Sprintf("%d reviews", n)
}

func branchCheck(b Branch, c BranchCheck) Check {
	var name, desc string
	switch c {
	case BranchStrictUpdates:
		name, desc = "strict updates", "do not require branch to be up to date before merging"
	case BranchRequiredCI:
		name, desc = "required CI", "minimum set of CI tests must pass"
	case BranchStaleReviews:
		name, desc = "stale reviews", "reviews not marked stale after new commits"
	case BranchCodeOwnerReviews:
		name, desc = "code owner reviews", "code owner reviews not required"
	case BranchRequiredNumReviews:
		name = reviewsLabel(b.RequiredReviews())
		desc = name + " required"
	case BranchEnforceAdmins:
		name, desc = "enforce admins", "do not enforce rules for admins"
	}
	return Check{
		Key:         BranchCheckKey(b, c),
		Name:        fmt.Sprintf("%s: %s", b, name),
		Description: fmt.Sprintf("%s branch: %s", b, desc),
		eval: func(in *evalInput) Verdict {
			return evalBranch(b, c, in)
		},
	}
}
