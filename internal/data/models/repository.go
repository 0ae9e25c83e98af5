package models

import "encoding/json"

// Repository is the subset of GitHub repository metadata the audit reads.
//
// Optional fields are pointers (or a nil slice for Topics) so a field that was
// never returned can be told apart from one that was returned with a zero value.
// The JSON shape matches the GitHub REST API, which lets the same struct decode
// API responses and cache documents. Cache documents are the REST payloads
// themselves, so every other field of the response survives in the cache.
type Repository struct {
	Name             string   `json:"name"`
	Description      *string  `json:"description,omitempty"`
	Homepage         *string  `json:"homepage,omitempty"`
	HasWiki          *bool    `json:"has_wiki,omitempty"`
	HasIssues        *bool    `json:"has_issues,omitempty"`
	AllowMergeCommit *bool    `json:"allow_merge_commit,omitempty"`
	AllowRebaseMerge *bool    `json:"allow_rebase_merge,omitempty"`
	AllowSquashMerge *bool    `json:"allow_squash_merge,omitempty"`
	DefaultBranch    *string  `json:"default_branch,omitempty"`
	Topics           []string `json:"topics"`
	Archived         *bool    `json:"archived,omitempty"`

	// Raw is the REST payload the fields were decoded from, when known.
	Raw json.RawMessage `json:"-"`
}

// IsArchived reports whether the repository is flagged as archived.
func (r *Repository) IsArchived() bool {
	if r == nil || r.Archived == nil {
		return false
	}
	return *r.Archived
}

// HasMergeSettings reports whether the merge-strategy flags were returned.
// Team repository listings omit them, so a listing record without them needs
// a full repository fetch.
func (r *Repository) HasMergeSettings() bool {
	if r == nil {
		return false
	}
	return r.AllowMergeCommit != nil
}
