// Package engine runs one audit: it gathers the organization's repositories
// from team listings and the pipeline registry, completes their metadata,
// evaluates them and hands the resulting report to the output sinks.
package engine

import (
	"context"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pipelinehealth/internal/classify"
	"pipelinehealth/internal/config"
	"pipelinehealth/internal/data/models"
	"pipelinehealth/internal/manifest"
	"pipelinehealth/internal/output"
	"pipelinehealth/internal/report"
	"pipelinehealth/internal/rules"
)

// Metadata is the read side of the metadata store.
type Metadata interface {
	Repository(ctx context.Context, name string) (*models.Repository, error)
	BranchProtection(ctx context.Context, name, branch string) (*models.BranchProtection, error)
	Team(ctx context.Context, slug string) (*models.Team, error)
	TeamRepositories(ctx context.Context, team *models.Team) ([]models.TeamRepository, error)
}

func exitCodeForRun(fatal, partial, failures bool) int {
	// Exit code contract:
	// 0 = clean run, no failing checks
	// 1 = failing checks detected
	// 2 = partial failure (some repositories could not be fetched)
	// 3 = fatal error (audit did not complete)
	if fatal {
		return 3
	}
	if partial {
		return 2
	}
	if failures {
		return 1
	}
	return 0
}

type Engine struct {
	Store  Metadata
	Logger *zap.Logger

	// Stdout receives console output; os.Stdout when nil.
	Stdout io.Writer

	now func() time.Time
}

func NewEngine(store Metadata, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		Store:  store,
		Logger: logger,
		now:    time.Now,
	}
}

func (e *Engine) setupOutputManager(cfg *config.Config) (*output.Manager, error) {
	outMgr := output.NewManager()

	// Console Sink
	if !cfg.Output.NoConsole {
		w := e.Stdout
		if w == nil {
			w = os.Stdout
		}
		cs, err := output.NewConsoleSink(w, cfg.Output.ConsoleFormat, cfg.Output.OnlyFailing)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(cs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// File Sink
	if cfg.Output.Out != "" {
		fs, err := output.NewFileSink(cfg.Output.Out, cfg.Output.OutFormat)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(fs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// Markdown report
	if cfg.Output.Report != "" {
		rs, err := output.NewFileSink(cfg.Output.Report, output.FormatMarkdown)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(rs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	return outMgr, nil
}

func rulesSettings(cfg *config.Config) rules.Settings {
	return rules.Settings{
		Classes: classify.Settings{
			WebURL:         cfg.Policy.WebURL,
			CoreTopics:     cfg.Policy.CoreTopics,
			PipelineTopics: cfg.Policy.PipelineTopics,
		},
		CIContexts: cfg.Policy.CIContexts,
		PushTeam:   cfg.Policy.PushTeam,
		AdminTeam:  cfg.Policy.AdminTeam,
	}
}

// complete fills in repository metadata and branch protection for every
// candidate, at most cfg.Runtime.Concurrency at a time. A repository
// metadata failure is recorded on the candidate unless fail-fast is set, in
// which case it aborts the whole phase.
func (e *Engine) complete(ctx context.Context, cands []*candidate, cfg *config.Config) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Runtime.Concurrency)
	for _, c := range cands {
		g.Go(func() error {
			return e.completeOne(gctx, c, cfg.Runtime.FailFast)
		})
	}
	return g.Wait()
}

func (e *Engine) completeOne(ctx context.Context, c *candidate, failFast bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Team listings already carry most repository metadata; only fetch the
	// full record when the merge settings are missing from it.
	if !c.repo.HasMergeSettings() {
		repo, err := e.Store.Repository(ctx, c.name)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if failFast {
				return err
			}
			c.err = err
			return nil
		}
		c.repo = repo
	}

	if c.repo.IsArchived() {
		return nil
	}

	c.protection = make(map[rules.Branch]*models.BranchProtection, len(rules.Branches))
	for _, b := range rules.Branches {
		p, err := e.Store.BranchProtection(ctx, c.name, string(b))
		if err != nil {
			return err
		}
		if p != nil {
			c.protection[b] = p
		}
	}
	return nil
}

// Run executes one audit and returns the process exit code.
func (e *Engine) Run(ctx context.Context, cfg *config.Config, registry *manifest.Manifest) int {
	ctx, cancel := context.WithTimeout(ctx, cfg.Runtime.Timeout)
	defer cancel()
	verbose := cfg.Runtime.Verbose

	acc, err := e.collectTeams(ctx, cfg.Targeting.Teams)
	if err != nil {
		e.Logger.Error("could not list team repositories", zap.String("error", presentFetchError(err, verbose)))
		return exitCodeForRun(true, false, false)
	}
	orphans := acc.addPipelines(registry)
	cands := filterCandidates(acc.dropArchived(registry.Archived()), cfg)
	e.Logger.Info("found repositories",
		zap.Int("repos", len(cands)),
		zap.Int("pipelines_without_team", orphans),
	)

	outMgr, err := e.setupOutputManager(cfg)
	if err != nil {
		e.Logger.Error("could not create output sinks", zap.Error(err))
		return exitCodeForRun(true, false, false)
	}
	defer func() {
		if err := outMgr.Close(); err != nil {
			e.Logger.Error("could not close output sinks", zap.Error(err))
		}
	}()

	e.emit(outMgr, output.Event{Type: output.EventRunStarted, Repos: len(cands)})

	if err := e.complete(ctx, cands, cfg); err != nil {
		e.Logger.Error("audit aborted", zap.String("error", presentFetchError(err, verbose)))
		code := exitCodeForRun(true, false, false)
		e.emit(outMgr, output.Event{Type: output.EventRunFinished, Message: "aborted", ExitCode: code})
		return code
	}

	pipelines := classify.NewPipelineSet(registry.Names()...)
	settings := rulesSettings(cfg)
	partial := false
	evaluations := make([]rules.Evaluation, 0, len(cands))
	for _, c := range cands {
		if c.err != nil {
			partial = true
			msg := presentFetchError(c.err, verbose)
			e.Logger.Error("skipping repository", zap.String("repo", c.name), zap.String("error", msg))
			e.emit(outMgr, output.Event{Type: output.EventRepoSkipped, Repo: c.name, Message: msg})
			continue
		}

		class := classify.ClassifyName(pipelines, c.name)
		if c.repo.IsArchived() {
			e.Logger.Debug("skipping archived repository", zap.String("repo", c.name), zap.Stringer("class", class))
			continue
		}

		ev := rules.Evaluate(&rules.Subject{
			Name:       c.name,
			Class:      class,
			Repo:       c.repo,
			Teams:      c.teams,
			Protection: c.protection,
		}, settings)
		evaluations = append(evaluations, ev)
		e.emit(outMgr, output.EvaluatedEvent(ev))
	}

	rep := report.Build(evaluations, report.Settings{
		Organization: cfg.Targeting.Org,
		GeneratedAt:  e.now().UTC(),
	})
	if err := outMgr.Report(rep); err != nil {
		e.Logger.Error("could not write report", zap.Error(err))
		code := exitCodeForRun(true, partial, rep.HasFailures())
		e.emit(outMgr, output.Event{Type: output.EventRunFinished, ExitCode: code})
		return code
	}

	code := exitCodeForRun(false, partial, rep.HasFailures())
	e.Logger.Info("audit finished",
		zap.Int("pipelines", len(rep.Pipelines.Rows)),
		zap.Int("core_repos", len(rep.CoreRepos.Rows)),
		zap.Int("exit_code", code),
	)
	e.emit(outMgr, output.Event{Type: output.EventRunFinished, ExitCode: code})
	return code
}

func (e *Engine) emit(outMgr *output.Manager, ev output.Event) {
	if err := outMgr.Event(ev); err != nil {
		e.Logger.Warn("could not write event", zap.String("type", ev.Type), zap.Error(err))
	}
}
