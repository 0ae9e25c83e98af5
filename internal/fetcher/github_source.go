package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/google/go-github/v81/github"

	"pipelinehealth/internal/data/models"
	gh "pipelinehealth/internal/github"
)

var nextLinkPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// GitHubSource reads metadata for one organization from the GitHub REST API.
type GitHubSource struct {
	client *gh.Client
	org    string
	budget *Budget
}

func NewGitHubSource(client *gh.Client, org string, budget *Budget) *GitHubSource {
	if budget == nil {
		budget = NewBudget()
	}
	return &GitHubSource{client: client, org: org, budget: budget}
}

func (s *GitHubSource) Repository(ctx context.Context, name string) (*models.Repository, error) {
	u := fmt.Sprintf("repos/%s/%s", url.PathEscape(s.org), url.PathEscape(name))

	var repo models.Repository
	raw, _, err := s.getDocument(ctx, u, &repo)
	if err != nil {
		return nil, err
	}
	repo.Raw = raw
	return &repo, nil
}

// BranchProtection decodes the raw protection document so that absent
// substructures stay nil.
func (s *GitHubSource) BranchProtection(ctx context.Context, repo, branch string) (*models.BranchProtection, error) {
	u := fmt.Sprintf("repos/%s/%s/branches/%s/protection",
		url.PathEscape(s.org), url.PathEscape(repo), url.PathEscape(branch))

	var p models.BranchProtection
	raw, resp, err := s.getDocument(ctx, u, &p)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, ErrBranchNotProtected
		}
		return nil, err
	}
	p.Raw = raw
	return &p, nil
}

func (s *GitHubSource) Team(ctx context.Context, slug string) (*models.Team, error) {
	u := fmt.Sprintf("orgs/%s/teams/%s", url.PathEscape(s.org), url.PathEscape(slug))

	var team models.Team
	raw, _, err := s.getDocument(ctx, u, &team)
	if err != nil {
		return nil, err
	}
	team.Raw = raw
	return &team, nil
}

// TeamRepositoriesPage lists one page of the team's repositories, including
// the team's permissions on each.
func (s *GitHubSource) TeamRepositoriesPage(ctx context.Context, team *models.Team, pageURL string) ([]models.TeamRepository, string, error) {
	if pageURL == "" {
		pageURL = fmt.Sprintf("orgs/%s/teams/%s/repos?per_page=100",
			url.PathEscape(s.org), url.PathEscape(team.Slug))
	}

	var records []json.RawMessage
	resp, err := s.get(ctx, pageURL, &records)
	if err != nil {
		return nil, "", err
	}
	repos := make([]models.TeamRepository, 0, len(records))
	for i, raw := range records {
		var rec models.TeamRepository
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, "", fmt.Errorf("decode team %s listing entry %d: %w", team.Slug, i, err)
		}
		rec.Raw = raw
		repos = append(repos, rec)
	}
	return repos, NextLink(resp.Header), nil
}

// getDocument fetches u, decodes it into v and returns the payload as received.
func (s *GitHubSource) getDocument(ctx context.Context, u string, v any) (json.RawMessage, *github.Response, error) {
	var raw json.RawMessage
	resp, err := s.get(ctx, u, &raw)
	if err != nil {
		return nil, resp, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, resp, fmt.Errorf("decode %s: %w", u, err)
	}
	return raw, resp, nil
}

func (s *GitHubSource) get(ctx context.Context, u string, v any) (*github.Response, error) {
	if err := s.budget.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	req, err := s.client.Client.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Client.Do(ctx, req, v)
	s.budget.Observe(resp)
	return resp, err
}

// NextLink extracts the rel="next" target from a Link header, or returns "".
func NextLink(h http.Header) string {
	for _, link := range h.Values("Link") {
		if m := nextLinkPattern.FindStringSubmatch(link); m != nil {
			return m[1]
		}
	}
	return ""
}
