package engine

import (
	"context"

	"go.uber.org/zap"

	"pipelinehealth/internal/data/models"
	"pipelinehealth/internal/manifest"
	"pipelinehealth/internal/rules"
)

// candidate is one repository on its way to evaluation. Each completion
// worker owns exactly one candidate.
type candidate struct {
	name  string
	repo  *models.Repository
	teams map[string]models.TeamPermission

	// err is the repository metadata failure, if any.
	err        error
	protection map[rules.Branch]*models.BranchProtection
}

// accumulator collects candidates by name, preserving first-seen order.
type accumulator struct {
	order  []*candidate
	byName map[string]*candidate
}

func newAccumulator() *accumulator {
	return &accumulator{byName: map[string]*candidate{}}
}

func (a *accumulator) get(name string) *candidate {
	c, ok := a.byName[name]
	if !ok {
		c = &candidate{name: name, teams: map[string]models.TeamPermission{}}
		a.byName[name] = c
		a.order = append(a.order, c)
	}
	return c
}

// addTeamRecord upserts one team listing record. Permissions of repeated
// records for the same team are merged; listing metadata replaces earlier
// metadata only when it is more complete.
func (a *accumulator) addTeamRecord(team string, rec models.TeamRepository) {
	if rec.Name == "" {
		return
	}
	c := a.get(rec.Name)

	repo := rec.Repository
	if c.repo == nil || (!c.repo.HasMergeSettings() && repo.HasMergeSettings()) {
		c.repo = &repo
	}

	if rec.Permissions == nil {
		return
	}
	perm := c.teams[team]
	perm.Push = perm.Push || rec.Permissions.Push
	perm.Admin = perm.Admin || rec.Permissions.Admin
	c.teams[team] = perm
}

// addPipelines instantiates registry pipelines no team listing returned.
// They carry no team data.
func (a *accumulator) addPipelines(m *manifest.Manifest) int {
	added := 0
	for _, name := range m.Names() {
		if _, ok := a.byName[name]; ok {
			continue
		}
		a.get(name)
		added++
	}
	return added
}

// dropArchived removes every candidate the registry marks archived.
func (a *accumulator) dropArchived(archived map[string]bool) []*candidate {
	out := make([]*candidate, 0, len(a.order))
	for _, c := range a.order {
		if archived[c.name] {
			continue
		}
		out = append(out, c)
	}
	return out
}

// collectTeams walks the team listings in order and accumulates every
// repository they return.
func (e *Engine) collectTeams(ctx context.Context, teams []string) (*accumulator, error) {
	acc := newAccumulator()
	for _, slug := range teams {
		team, err := e.Store.Team(ctx, slug)
		if err != nil {
			return nil, err
		}
		records, err := e.Store.TeamRepositories(ctx, team)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			acc.addTeamRecord(slug, rec)
		}
		e.Logger.Info("collected team repositories",
			zap.String("team", slug),
			zap.Int("repos", len(records)),
		)
	}
	if len(acc.order) == 0 && len(teams) > 0 {
		e.Logger.Warn("team listings returned no repositories", zap.Strings("teams", teams))
	}
	return acc, nil
}
