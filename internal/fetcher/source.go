// Package fetcher retrieves the GitHub metadata an audit needs, serving it
// from an on-disk cache when possible.
package fetcher

import (
	"context"
	"errors"

	"pipelinehealth/internal/data/models"
)

// ErrBranchNotProtected reports that a branch has no protection rule, or does
// not exist.
var ErrBranchNotProtected = errors.New("branch not protected")

// Source performs the remote reads behind a Store.
type Source interface {
	Repository(ctx context.Context, name string) (*models.Repository, error)
	BranchProtection(ctx context.Context, repo, branch string) (*models.BranchProtection, error)
	Team(ctx context.Context, slug string) (*models.Team, error)

	// TeamRepositoriesPage fetches one page of a team's repository listing.
	// An empty pageURL requests the first page. The returned next URL is
	// empty on the last page.
	TeamRepositoriesPage(ctx context.Context, team *models.Team, pageURL string) (repos []models.TeamRepository, next string, err error)
}
