package rules

import "slices"

const (
	KeyWikis         = "repo_wikis"
	KeyIssues        = "repo_issues"
	KeyMergeCommits  = "repo_merge_commits"
	KeyMergeRebase   = "repo_merge_rebase"
	KeyMergeSquash   = "repo_merge_squash"
	KeyDefaultBranch = "repo_default_branch"
	KeyKeywords      = "repo_keywords"
	KeyDescription   = "repo_description"
	KeyRepoURL       = "repo_url"
	KeyTeamAll       = "team_all"
	KeyTeamCore      = "team_core"
)

// Default slugs of the teams behind team_all (push) and team_core (admin).
const (
	TeamAll  = "all"
	TeamCore = "core"
)

// DefaultBranchName is the branch every repository must use as default.
const DefaultBranchName = "master"

// Repository-level checks yield Unknown whenever the field they read is
// absent from the metadata.

// flagIs passes when the flag is present and equals want.
func flagIs(get func(in *evalInput) *bool, want bool) func(in *evalInput) Verdict {
	return func(in *evalInput) Verdict {
		if in.subject.Repo == nil {
			return Unknown
		}
		v := get(in)
		if v == nil {
			return Unknown
		}
		return VerdictOf(*v == want)
	}
}

func checkDefaultBranch(in *evalInput) Verdict {
	repo := in.subject.Repo
	if repo == nil || repo.DefaultBranch == nil {
		return Unknown
	}
	return VerdictOf(*repo.DefaultBranch == DefaultBranchName)
}

func checkKeywords(in *evalInput) Verdict {
	repo := in.subject.Repo
	if repo == nil || repo.Topics == nil {
		return Unknown
	}
	for _, topic := range in.policy.RequiredTopics {
		if !slices.Contains(repo.Topics, topic) {
			return Fail
		}
	}
	return Pass
}

func checkDescription(in *evalInput) Verdict {
	repo := in.subject.Repo
	if repo == nil || repo.Description == nil {
		return Unknown
	}
	return VerdictOf(*repo.Description != "")
}

func checkRepoURL(in *evalInput) Verdict {
	repo := in.subject.Repo
	if repo == nil || repo.Homepage == nil {
		return Unknown
	}
	return VerdictOf(*repo.Homepage == in.policy.WebURL)
}

func checkTeamAll(in *evalInput) Verdict {
	perm, ok := in.subject.Teams[in.pushTeam]
	if !ok {
		return Unknown
	}
	return VerdictOf(perm.Push)
}

func checkTeamCore(in *evalInput) Verdict {
	perm, ok := in.subject.Teams[in.adminTeam]
	if !ok {
		return Unknown
	}
	return VerdictOf(perm.Admin)
}

func repoChecks() []Check {
	return []Check{
		{
			Key:         KeyWikis,
			Name:        "Wikis",
			Description: "Disable wikis",
			eval:        flagIs(func(in *evalInput) *bool { return in.subject.Repo.HasWiki }, false),
		},
		{
			Key:         KeyIssues,
			Name:        "Issues",
			Description: "Enable issues",
			eval:        flagIs(func(in *evalInput) *bool { return in.subject.Repo.HasIssues }, true),
		},
		{
			Key:         KeyMergeCommits,
			Name:        "Merge commits",
			Description: "Allow merge commits",
			eval:        flagIs(func(in *evalInput) *bool { return in.subject.Repo.AllowMergeCommit }, true),
		},
		{
			Key:         KeyMergeRebase,
			Name:        "Rebase merging",
			Description: "Allow rebase merging",
			eval:        flagIs(func(in *evalInput) *bool { return in.subject.Repo.AllowRebaseMerge }, true),
		},
		{
			Key:         KeyMergeSquash,
			Name:        "Squash merges",
			Description: "Do not allow squash merges",
			eval:        flagIs(func(in *evalInput) *bool { return in.subject.Repo.AllowSquashMerge }, false),
		},
		{
			Key:         KeyDefaultBranch,
			Name:        "Default branch",
			Description: "master as default branch",
			eval:        checkDefaultBranch,
		},
		{
			Key:         KeyKeywords,
			Name:        "Keywords",
			Description: "Minimum keywords set",
			eval:        checkKeywords,
		},
		{
			Key:         KeyDescription,
			Name:        "Description",
			Description: "Description must be set",
			eval:        checkDescription,
		},
		{
			Key:                 KeyRepoURL,
			Name:                "Repo URL",
			Description:         "URL should be set to https://nf-co.re/",
			PipelineDescription: "URL should be set to https://nf-co.re/[PIPELINE-NAME]",
			eval:                checkRepoURL,
		},
		{
			Key:         KeyTeamAll,
			Name:        "Team all",
			Description: "Write access for nf-core/all",
			eval:        checkTeamAll,
		},
		{
			Key:         KeyTeamCore,
			Name:        "Team core",
			Description: "Admin access for nf-core/core",
			eval:        checkTeamCore,
		},
	}
}
