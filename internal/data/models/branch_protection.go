package models

import "encoding/json"

// BranchProtection is a classic branch protection document for one branch.
// A nil substructure means the corresponding rule is not configured.
type BranchProtection struct {
	RequiredStatusChecks       *RequiredStatusChecks       `json:"required_status_checks,omitempty"`
	RequiredPullRequestReviews *RequiredPullRequestReviews `json:"required_pull_request_reviews,omitempty"`
	EnforceAdmins              *EnforceAdmins              `json:"enforce_admins,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type RequiredStatusChecks struct {
	Strict   bool     `json:"strict"`
	Contexts []string `json:"contexts"`
}

type RequiredPullRequestReviews struct {
	DismissStaleReviews          bool `json:"dismiss_stale_reviews"`
	RequireCodeOwnerReviews      bool `json:"require_code_owner_reviews"`
	RequiredApprovingReviewCount int  `json:"required_approving_review_count"`
}

type EnforceAdmins struct {
	Enabled bool `json:"enabled"`
}
