package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"pipelinehealth/internal/data/models"
)

// maxTeamPages bounds pagination against a server that keeps returning the
// same next link.
const maxTeamPages = 1000

// Store is the metadata store: every read is answered from the cache when a
// document exists and refresh is off, otherwise from the Source, whose answer
// is then cached.
type Store struct {
	source  Source
	cache   *Cache
	refresh bool
	logger  *zap.Logger
}

type StoreOption func(*Store)

// WithRefresh ignores existing cache documents and overwrites them.
func WithRefresh(refresh bool) StoreOption {
	return func(s *Store) { s.refresh = refresh }
}

func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewStore(source Source, cache *Cache, opts ...StoreOption) *Store {
	s := &Store{
		source: source,
		cache:  cache,
		logger: zap.NewNop(),
	}
	for _, apply := range opts {
		if apply != nil {
			apply(s)
		}
	}
	if s.cache == nil {
		s.cache = NewCache("")
	}
	return s
}

// cached runs fetch unless a document for key can be served from the cache.
func cached[T any](s *Store, key string, fetch func() (T, error)) (T, error) {
	var v T
	if !s.refresh {
		ok, err := s.cache.Load(key, &v)
		if err != nil {
			s.logger.Warn("ignoring unreadable cache document", zap.String("key", key), zap.Error(err))
		} else if ok {
			s.logger.Debug("cache hit", zap.String("key", key))
			return v, nil
		}
	}

	v, err := fetch()
	if err != nil {
		return v, err
	}
	s.persist(key, v)
	return v, nil
}

func (s *Store) persist(key string, v any) {
	if err := s.cache.Save(key, snapshot(v)); err != nil {
		s.logger.Warn("could not write cache document", zap.String("key", key), zap.Error(err))
	}
}

// Repository returns the repository's metadata. Errors are returned to the
// caller; nothing is cached for a failed fetch.
func (s *Store) Repository(ctx context.Context, name string) (*models.Repository, error) {
	if name == "" {
		return nil, fmt.Errorf("repository: empty name")
	}
	return cached(s, repoKey(name), func() (*models.Repository, error) {
		repo, err := s.source.Repository(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("fetch repository %s: %w", name, err)
		}
		return repo, nil
	})
}

// BranchProtection returns the branch's protection document, or nil when the
// branch is unprotected, missing, or could not be read. An unprotected branch
// is cached as a null document; other failures are logged and not cached.
func (s *Store) BranchProtection(ctx context.Context, name, branch string) (*models.BranchProtection, error) {
	key := branchKey(name, branch)
	var p *models.BranchProtection
	if !s.refresh {
		ok, err := s.cache.Load(key, &p)
		if err != nil {
			s.logger.Warn("ignoring unreadable cache document", zap.String("key", key), zap.Error(err))
		} else if ok {
			return p, nil
		}
	}

	p, err := s.source.BranchProtection(ctx, name, branch)
	switch {
	case err == nil:
		s.persist(key, p)
		return p, nil
	case errors.Is(err, ErrBranchNotProtected):
		s.persist(key, nil)
		return nil, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		s.logger.Warn("branch protection unavailable",
			zap.String("repo", name),
			zap.String("branch", branch),
			zap.Error(err),
		)
		return nil, nil
	}
}

func (s *Store) Team(ctx context.Context, slug string) (*models.Team, error) {
	return cached(s, teamKey(slug), func() (*models.Team, error) {
		team, err := s.source.Team(ctx, slug)
		if err != nil {
			return nil, fmt.Errorf("fetch team %s: %w", slug, err)
		}
		return team, nil
	})
}

// TeamRepositories returns every repository the team has access to, following
// the listing's next links until the last page.
func (s *Store) TeamRepositories(ctx context.Context, team *models.Team) ([]models.TeamRepository, error) {
	if team == nil {
		return nil, fmt.Errorf("team repositories: nil team")
	}
	return cached(s, teamReposKey(team.Slug), func() ([]models.TeamRepository, error) {
		var all []models.TeamRepository
		next := ""
		for page := 1; ; page++ {
			if page > maxTeamPages {
				return nil, fmt.Errorf("team %s: more than %d pages", team.Slug, maxTeamPages)
			}
			repos, nextURL, err := s.source.TeamRepositoriesPage(ctx, team, next)
			if err != nil {
				return nil, fmt.Errorf("list repositories of team %s (page %d): %w", team.Slug, page, err)
			}
			all = append(all, repos...)
			s.logger.Debug("team repositories page",
				zap.String("team", team.Slug),
				zap.Int("page", page),
				zap.Int("count", len(repos)),
			)
			if nextURL == "" {
				break
			}
			next = nextURL
		}
		if all == nil {
			all = []models.TeamRepository{}
		}
		return all, nil
	})
}

// snapshot returns the REST payloads v was decoded from, so cache documents
// keep every field of the response. Values built without a payload are
// cached as encoded.
func snapshot(v any) any {
	switch d := v.(type) {
	case *models.Repository:
		if d != nil && len(d.Raw) > 0 {
			return d.Raw
		}
	case *models.BranchProtection:
		if d != nil && len(d.Raw) > 0 {
			return d.Raw
		}
	case *models.Team:
		if d != nil && len(d.Raw) > 0 {
			return d.Raw
		}
	case []models.TeamRepository:
		docs := make([]json.RawMessage, 0, len(d))
		for _, rec := range d {
			if len(rec.Raw) == 0 {
				return v
			}
			docs = append(docs, rec.Raw)
		}
		return docs
	}
	return v
}
