package rules

import (
	"pipelinehealth/internal/classify"
	"pipelinehealth/internal/data/models"
)

// Branch names a protected branch the audit inspects.
type Branch string

const (
	BranchMaster Branch = "master"
	BranchDev    Branch = "dev"
)

// Branches lists the audited branches in report order.
var Branches = []Branch{BranchMaster, BranchDev}

// RequiredReviews is the number of approving reviews the branch must require.
func (b Branch) RequiredReviews() int {
	if b == BranchMaster {
		return 2
	}
	return 1
}

// Subject is everything known about one repository going into evaluation.
//
// Repo may be nil when no metadata is available; Teams holds one entry per
// team listing the repository appeared in; Protection holds one entry per
// branch whose protection document was retrieved.
type Subject struct {
	Name       string
	Class      classify.Class
	Repo       *models.Repository
	Teams      map[string]models.TeamPermission
	Protection map[Branch]*models.BranchProtection
}

// Settings are the organization-level inputs shared by every check.
type Settings struct {
	Classes classify.Settings

	// CIContexts is the set of status check contexts every protected branch
	// must require.
	CIContexts []string

	// PushTeam must grant push and AdminTeam must grant admin on every
	// repository. Empty values fall back to TeamAll and TeamCore.
	PushTeam  string
	AdminTeam string
}

func DefaultSettings() Settings {
	return Settings{
		Classes:    classify.DefaultSettings(),
		CIContexts: []string{"continuous-integration/travis-ci"},
		PushTeam:   TeamAll,
		AdminTeam:  TeamCore,
	}
}

type evalInput struct {
	subject    *Subject
	policy     classify.Policy
	ciContexts []string
	pushTeam   string
	adminTeam  string
}

// Check is one entry of the check registry.
type Check struct {
	Key         string
	Name        string
	Description string
	// PipelineDescription overrides Description for pipeline tables.
	PipelineDescription string

	eval func(in *evalInput) Verdict
}

// DescriptionFor returns the tooltip text shown for the check in a table of
// the given class.
func (c Check) DescriptionFor(class classify.Class) string {
	if class == classify.ClassPipeline && c.PipelineDescription != "" {
		return c.PipelineDescription
	}
	return c.Description
}
