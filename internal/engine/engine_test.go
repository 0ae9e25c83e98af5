package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"pipelinehealth/internal/config"
	"pipelinehealth/internal/data/models"
	"pipelinehealth/internal/fetcher"
	"pipelinehealth/internal/manifest"
	"pipelinehealth/internal/output"
	"pipelinehealth/internal/report"
	"pipelinehealth/internal/rules"
)

func ptr[T any](v T) *T { return &v }

type fakeStore struct {
	mu    sync.Mutex
	calls map[string]int

	teams      map[string][]models.TeamRepository
	teamErr    error
	repos      map[string]*models.Repository
	repoErr    map[string]error
	protection map[string]*models.BranchProtection
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		calls:      map[string]int{},
		teams:      map[string][]models.TeamRepository{},
		repos:      map[string]*models.Repository{},
		repoErr:    map[string]error{},
		protection: map[string]*models.BranchProtection{},
	}
}

func (f *fakeStore) count(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
}

func (f *fakeStore) Calls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeStore) Repository(_ context.Context, name string) (*models.Repository, error) {
	f.count("repo:" + name)
	if err := f.repoErr[name]; err != nil {
		return nil, err
	}
	r, ok := f.repos[name]
	if !ok {
		return nil, errors.New("404 Not Found")
	}
	return r, nil
}

func (f *fakeStore) BranchProtection(_ context.Context, name, branch string) (*models.BranchProtection, error) {
	f.count("branch:" + name + "/" + branch)
	return f.protection[name+"/"+branch], nil
}

func (f *fakeStore) Team(_ context.Context, slug string) (*models.Team, error) {
	f.count("team:" + slug)
	if f.teamErr != nil {
		return nil, f.teamErr
	}
	return &models.Team{Slug: slug, Name: slug}, nil
}

func (f *fakeStore) TeamRepositories(_ context.Context, team *models.Team) ([]models.TeamRepository, error) {
	f.count("team_repos:" + team.Slug)
	return f.teams[team.Slug], nil
}

// compliantRepo returns metadata passing every repository check for the class
// implied by pipeline.
func compliantRepo(name string, pipeline bool) *models.Repository {
	r := &models.Repository{
		Name:             name,
		Description:      ptr("description"),
		Homepage:         ptr("https://nf-co.re"),
		HasWiki:          ptr(false),
		HasIssues:        ptr(true),
		AllowMergeCommit: ptr(true),
		AllowRebaseMerge: ptr(true),
		AllowSquashMerge: ptr(false),
		DefaultBranch:    ptr("master"),
		Topics:           []string{"nf-core"},
		Archived:         ptr(false),
	}
	if pipeline {
		r.Homepage = ptr("https://nf-co.re/" + name)
		r.Topics = []string{"nf-core", "nextflow", "workflow", "pipeline"}
	}
	return r
}

func compliantProtection(reviews int) *models.BranchProtection {
	return &models.BranchProtection{
		RequiredStatusChecks:       &models.RequiredStatusChecks{Contexts: []string{"continuous-integration/travis-ci"}},
		RequiredPullRequestReviews: &models.RequiredPullRequestReviews{RequiredApprovingReviewCount: reviews},
		EnforceAdmins:              &models.EnforceAdmins{},
	}
}

// listing strips the merge settings the way team listings do.
func listing(r *models.Repository, push, admin bool) models.TeamRepository {
	rec := models.TeamRepository{Repository: *r, Permissions: &models.TeamPermission{Push: push, Admin: admin}}
	rec.AllowMergeCommit, rec.AllowRebaseMerge, rec.AllowSquashMerge = nil, nil, nil
	return rec
}

// compliantOrg builds a store where every repository passes every check.
func compliantOrg(names map[string]bool) *fakeStore {
	f := newFakeStore()
	for name, pipeline := range names {
		r := compliantRepo(name, pipeline)
		f.repos[name] = r
		f.teams["all"] = append(f.teams["all"], listing(r, true, false))
		f.teams["core"] = append(f.teams["core"], listing(r, true, true))
		f.protection[name+"/master"] = compliantProtection(2)
		f.protection[name+"/dev"] = compliantProtection(1)
	}
	for _, slug := range []string{"all", "core"} {
		slices.SortFunc(f.teams[slug], func(a, b models.TeamRepository) int { return strings.Compare(a.Name, b.Name) })
	}
	return f
}

func testConfig() *config.Config {
	cfg := config.New()
	cfg.Output.ConsoleFormat = output.FormatNDJSON
	cfg.Runtime.Timeout = time.Minute
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

type runResult struct {
	code   int
	events []output.Event
	report *report.Report
}

func runEngine(t *testing.T, store Metadata, cfg *config.Config, registry *manifest.Manifest) runResult {
	t.Helper()
	var buf bytes.Buffer
	eng := NewEngine(store, nil)
	eng.Stdout = &buf
	eng.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	res := runResult{code: eng.Run(context.Background(), cfg, registry)}

	sc := bufio.NewScanner(&buf)
	sc.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for sc.Scan() {
		var ev output.Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("invalid ndjson line %q: %v", sc.Text(), err)
		}
		if ev.Type == output.EventReport {
			res.report = ev.Report
		}
		res.events = append(res.events, ev)
	}
	return res
}

func rowNames(rows []rules.Evaluation) []string {
	var names []string
	for _, r := range rows {
		names = append(names, r.Name)
	}
	return names
}

func findRow(t *testing.T, rep *report.Report, name string) rules.Evaluation {
	t.Helper()
	for _, tbl := range rep.Tables() {
		for _, row := range tbl.Rows {
			if row.Name == name {
				return row
			}
		}
	}
	t.Fatalf("row %s not found", name)
	return rules.Evaluation{}
}

func TestRun_CleanAudit(t *testing.T) {
	store := compliantOrg(map[string]bool{"rnaseq": true, "sarek": true, "tools": false})
	registry := &manifest.Manifest{Pipelines: []manifest.Pipeline{{Name: "rnaseq"}, {Name: "sarek"}}}

	res := runEngine(t, store, testConfig(), registry)
	if res.code != 0 {
		t.Fatalf("expected exit code 0, got %d", res.code)
	}
	if res.report == nil {
		t.Fatal("expected report event")
	}
	if got := rowNames(res.report.Pipelines.Rows); !slices.Equal(got, []string{"rnaseq", "sarek"}) {
		t.Errorf("pipelines = %v", got)
	}
	if got := rowNames(res.report.CoreRepos.Rows); !slices.Equal(got, []string{"tools"}) {
		t.Errorf("core repos = %v", got)
	}
	if res.events[0].Type != output.EventRunStarted || res.events[0].Repos != 3 {
		t.Errorf("unexpected first event %+v", res.events[0])
	}
	if last := res.events[len(res.events)-1]; last.Type != output.EventRunFinished || last.ExitCode != 0 {
		t.Errorf("unexpected last event %+v", last)
	}
}

func TestRun_FailingCheckExitsOne(t *testing.T) {
	store := compliantOrg(map[string]bool{"tools": false})
	store.repos["tools"].HasWiki = ptr(true)

	res := runEngine(t, store, testConfig(), &manifest.Manifest{})
	if res.code != 1 {
		t.Fatalf("expected exit code 1, got %d", res.code)
	}
	if v, _ := findRow(t, res.report, "tools").Verdict(rules.KeyWikis); v != rules.Fail {
		t.Errorf("expected wikis to fail, got %s", v)
	}
}

func TestRun_UnknownVerdictsDoNotFail(t *testing.T) {
	store := compliantOrg(map[string]bool{"tools": false})
	store.repos["tools"].Description = nil

	res := runEngine(t, store, testConfig(), &manifest.Manifest{})
	if res.code != 0 {
		t.Fatalf("expected exit code 0, got %d", res.code)
	}
	if v, _ := findRow(t, res.report, "tools").Verdict(rules.KeyDescription); v != rules.Unknown {
		t.Errorf("expected unknown description, got %s", v)
	}
}

func TestRun_PipelineWithoutTeamListing(t *testing.T) {
	store := compliantOrg(map[string]bool{"tools": false})
	store.repos["orphan"] = compliantRepo("orphan", true)
	store.protection["orphan/master"] = compliantProtection(2)
	registry := &manifest.Manifest{Pipelines: []manifest.Pipeline{{Name: "orphan"}}}

	res := runEngine(t, store, testConfig(), registry)
	if got := rowNames(res.report.Pipelines.Rows); !slices.Equal(got, []string{"orphan"}) {
		t.Fatalf("pipelines = %v", got)
	}
	row := findRow(t, res.report, "orphan")
	for _, key := range []string{rules.KeyTeamAll, rules.KeyTeamCore} {
		if v, _ := row.Verdict(key); v != rules.Unknown {
			t.Errorf("%s: expected unknown, got %s", key, v)
		}
	}
	if v, _ := row.Verdict(rules.KeyRepoURL); v != rules.Pass {
		t.Errorf("repo_url: expected pass, got %s", v)
	}
	// dev is not protected at all.
	if v, _ := row.Verdict(rules.BranchCheckKey(rules.BranchDev, rules.BranchRequiredCI)); v != rules.Fail {
		t.Errorf("dev required CI: expected fail, got %s", v)
	}
	if res.code != 1 {
		t.Errorf("expected exit code 1, got %d", res.code)
	}
}

func TestRun_RenamedPipelineKeepsRegistryClass(t *testing.T) {
	store := compliantOrg(map[string]bool{"tools": false})
	// GitHub follows the rename redirect and reports the new name.
	renamed := compliantRepo("newname", true)
	renamed.Homepage = ptr("https://nf-co.re/oldname")
	store.repos["oldname"] = renamed
	store.protection["oldname/master"] = compliantProtection(2)
	store.protection["oldname/dev"] = compliantProtection(1)
	registry := &manifest.Manifest{Pipelines: []manifest.Pipeline{{Name: "oldname"}}}

	res := runEngine(t, store, testConfig(), registry)
	if got := rowNames(res.report.Pipelines.Rows); !slices.Equal(got, []string{"oldname"}) {
		t.Fatalf("pipelines = %v", got)
	}
	if got := rowNames(res.report.CoreRepos.Rows); !slices.Equal(got, []string{"tools"}) {
		t.Errorf("core repos = %v", got)
	}
	row := findRow(t, res.report, "oldname")
	if row.Class != "pipeline" {
		t.Errorf("expected class pipeline, got %s", row.Class)
	}
	for _, key := range []string{rules.KeyRepoURL, rules.KeyKeywords} {
		if v, _ := row.Verdict(key); v != rules.Pass {
			t.Errorf("%s: expected pass, got %s", key, v)
		}
	}
}

func TestRun_ConfiguredTeams(t *testing.T) {
	store := compliantOrg(map[string]bool{"tools": false})
	store.teams["contributors"], store.teams["maintainers"] = store.teams["all"], store.teams["core"]
	delete(store.teams, "all")
	delete(store.teams, "core")

	cfg := testConfig()
	cfg.Targeting.Teams = []string{"contributors", "maintainers"}
	cfg.Policy.PushTeam = "contributors"
	cfg.Policy.AdminTeam = "maintainers"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	res := runEngine(t, store, cfg, &manifest.Manifest{})
	if res.code != 0 {
		t.Fatalf("expected exit code 0, got %d", res.code)
	}
	row := findRow(t, res.report, "tools")
	for _, key := range []string{rules.KeyTeamAll, rules.KeyTeamCore} {
		if v, _ := row.Verdict(key); v != rules.Pass {
			t.Errorf("%s: expected pass, got %s", key, v)
		}
	}
}

func TestRun_ArchivedRepositoriesExcluded(t *testing.T) {
	store := compliantOrg(map[string]bool{"rnaseq": true, "old-pipeline": true, "old-tool": false, "tools": false})
	store.repos["old-tool"].Archived = ptr(true)
	for i := range store.teams["all"] {
		if store.teams["all"][i].Name == "old-tool" {
			store.teams["all"][i].Archived = ptr(true)
		}
	}
	registry := &manifest.Manifest{Pipelines: []manifest.Pipeline{
		{Name: "rnaseq"},
		{Name: "old-pipeline", Archived: true},
		{Name: "retired", Archived: true},
	}}

	res := runEngine(t, store, testConfig(), registry)
	if got := rowNames(res.report.Pipelines.Rows); !slices.Equal(got, []string{"rnaseq"}) {
		t.Errorf("pipelines = %v", got)
	}
	if got := rowNames(res.report.CoreRepos.Rows); !slices.Equal(got, []string{"tools"}) {
		t.Errorf("core repos = %v", got)
	}
	if store.Calls("repo:retired") != 0 || store.Calls("repo:old-pipeline") != 0 {
		t.Error("archived registry pipelines must not be fetched")
	}
	if store.Calls("branch:old-tool/master") != 0 {
		t.Error("archived repositories must not have branches fetched")
	}
}

func TestRun_TeamPermissionsMerged(t *testing.T) {
	store := compliantOrg(map[string]bool{"tools": false})
	// A second "core" record without admin must not downgrade the first.
	store.teams["core"] = append(store.teams["core"], listing(store.repos["tools"], true, false))
	// "all" lacks push.
	store.teams["all"][0].Permissions = &models.TeamPermission{}

	res := runEngine(t, store, testConfig(), &manifest.Manifest{})
	row := findRow(t, res.report, "tools")
	if v, _ := row.Verdict(rules.KeyTeamCore); v != rules.Pass {
		t.Errorf("team_core: expected pass, got %s", v)
	}
	if v, _ := row.Verdict(rules.KeyTeamAll); v != rules.Fail {
		t.Errorf("team_all: expected fail, got %s", v)
	}
	if len(res.report.CoreRepos.Rows) != 1 {
		t.Errorf("expected one row for a repository listed twice, got %d", len(res.report.CoreRepos.Rows))
	}
}

func TestRun_SkipsRepositoryFetchWhenListingIsComplete(t *testing.T) {
	store := compliantOrg(map[string]bool{"tools": false})
	full := compliantRepo("tools", false)
	store.teams["all"] = []models.TeamRepository{{Repository: *full, Permissions: &models.TeamPermission{Push: true}}}

	res := runEngine(t, store, testConfig(), &manifest.Manifest{})
	if res.code != 0 {
		t.Fatalf("expected exit code 0, got %d", res.code)
	}
	if n := store.Calls("repo:tools"); n != 0 {
		t.Errorf("expected no repository fetch, got %d", n)
	}
	if n := store.Calls("branch:tools/master") + store.Calls("branch:tools/dev"); n != 2 {
		t.Errorf("expected both branches fetched once, got %d calls", n)
	}
}

func TestRun_RepositoryFailureIsPartial(t *testing.T) {
	store := compliantOrg(map[string]bool{"rnaseq": true, "tools": false})
	store.repoErr["rnaseq"] = errors.New("GET https://api.github.com/repos/nf-core/rnaseq: 502 Bad Gateway []")
	registry := &manifest.Manifest{Pipelines: []manifest.Pipeline{{Name: "rnaseq"}}}

	res := runEngine(t, store, testConfig(), registry)
	if res.code != 2 {
		t.Fatalf("expected exit code 2, got %d", res.code)
	}
	if len(res.report.Pipelines.Rows) != 0 || len(res.report.CoreRepos.Rows) != 1 {
		t.Errorf("unexpected report rows: %v / %v", rowNames(res.report.Pipelines.Rows), rowNames(res.report.CoreRepos.Rows))
	}

	var skipped *output.Event
	for i := range res.events {
		if res.events[i].Type == output.EventRepoSkipped {
			skipped = &res.events[i]
		}
	}
	if skipped == nil || skipped.Repo != "rnaseq" {
		t.Fatalf("expected skipped event for rnaseq, got %+v", skipped)
	}
	if strings.Contains(skipped.Message, "https://") {
		t.Errorf("expected request URL scrubbed, got %q", skipped.Message)
	}
}

func TestRun_FailFastAborts(t *testing.T) {
	store := compliantOrg(map[string]bool{"rnaseq": true})
	store.repoErr["rnaseq"] = errors.New("boom")
	cfg := testConfig()
	cfg.Runtime.FailFast = true

	res := runEngine(t, store, cfg, &manifest.Manifest{})
	if res.code != 3 {
		t.Fatalf("expected exit code 3, got %d", res.code)
	}
	if res.report != nil {
		t.Error("expected no report after abort")
	}
}

func TestRun_TeamFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.teamErr = errors.New("401 Bad credentials")

	res := runEngine(t, store, testConfig(), &manifest.Manifest{})
	if res.code != 3 {
		t.Fatalf("expected exit code 3, got %d", res.code)
	}
	if len(res.events) != 0 {
		t.Errorf("expected no output, got %d events", len(res.events))
	}
}

func TestRun_ConcurrencyPreservesOrder(t *testing.T) {
	names := map[string]bool{}
	var pipelines []manifest.Pipeline
	for _, n := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		names[n] = true
		pipelines = append(pipelines, manifest.Pipeline{Name: n})
	}
	store := compliantOrg(names)

	cfg := testConfig()
	cfg.Runtime.Concurrency = 4
	res := runEngine(t, store, cfg, &manifest.Manifest{Pipelines: pipelines})
	if res.code != 0 {
		t.Fatalf("expected exit code 0, got %d", res.code)
	}
	if got := rowNames(res.report.Pipelines.Rows); !slices.Equal(got, []string{"a", "b", "c", "d", "e", "f", "g", "h"}) {
		t.Errorf("pipelines = %v", got)
	}
}

func TestRun_IncludeExclude(t *testing.T) {
	store := compliantOrg(map[string]bool{"rnaseq": true, "test-datasets": false, "tools": false})
	cfg := testConfig()
	cfg.Targeting.Exclude = []string{"test-*"}

	res := runEngine(t, store, cfg, &manifest.Manifest{Pipelines: []manifest.Pipeline{{Name: "rnaseq"}}})
	if got := rowNames(res.report.CoreRepos.Rows); !slices.Equal(got, []string{"tools"}) {
		t.Errorf("core repos = %v", got)
	}
	if store.Calls("branch:test-datasets/master") != 0 {
		t.Error("excluded repository must not be fetched")
	}
}

func TestRun_NoConsole(t *testing.T) {
	store := compliantOrg(map[string]bool{"tools": false})
	cfg := testConfig()
	cfg.Output.NoConsole = true

	res := runEngine(t, store, cfg, &manifest.Manifest{})
	if res.code != 0 {
		t.Fatalf("expected exit code 0, got %d", res.code)
	}
	if len(res.events) != 0 {
		t.Errorf("expected no console output when NoConsole is true; got %d lines", len(res.events))
	}
}

func TestRun_WritesFiles(t *testing.T) {
	store := compliantOrg(map[string]bool{"rnaseq": true, "tools": false})
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Output.NoConsole = true
	cfg.Output.Out = filepath.Join(dir, "report.yaml")
	cfg.Output.OutFormat = output.FormatYAML
	cfg.Output.Report = filepath.Join(dir, "report.md")

	res := runEngine(t, store, cfg, &manifest.Manifest{Pipelines: []manifest.Pipeline{{Name: "rnaseq"}}})
	if res.code != 0 {
		t.Fatalf("expected exit code 0, got %d", res.code)
	}

	yml, err := os.ReadFile(cfg.Output.Out)
	if err != nil {
		t.Fatalf("read yaml: %v", err)
	}
	if !strings.Contains(string(yml), "organization: nf-core") {
		t.Errorf("unexpected yaml output:\n%s", yml)
	}
	md, err := os.ReadFile(cfg.Output.Report)
	if err != nil {
		t.Fatalf("read markdown: %v", err)
	}
	if !strings.Contains(string(md), "# nf-core repository health") {
		t.Errorf("unexpected markdown output:\n%s", md)
	}
}

func TestRun_WithMetadataStore(t *testing.T) {
	// The engine runs on top of the caching store: a second run is served
	// entirely from the cache.
	src := &countingSource{fakeStore: compliantOrg(map[string]bool{"tools": false})}
	cache := fetcher.NewCache(t.TempDir())

	first := runEngine(t, fetcher.NewStore(src, cache), testConfig(), &manifest.Manifest{})
	calls := src.total()
	second := runEngine(t, fetcher.NewStore(src, cache), testConfig(), &manifest.Manifest{})

	if first.code != 0 || second.code != 0 {
		t.Fatalf("expected clean runs, got %d and %d", first.code, second.code)
	}
	if src.total() != calls {
		t.Errorf("expected second run to be served from cache, source calls went from %d to %d", calls, src.total())
	}
	if !slices.Equal(first.report.CoreRepos.Rows[0].Verdicts, second.report.CoreRepos.Rows[0].Verdicts) {
		t.Error("expected identical verdicts from cached metadata")
	}
}

// countingSource adapts fakeStore to the fetcher.Source interface.
type countingSource struct {
	*fakeStore
}

func (s *countingSource) TeamRepositoriesPage(ctx context.Context, team *models.Team, _ string) ([]models.TeamRepository, string, error) {
	repos, err := s.TeamRepositories(ctx, team)
	return repos, "", err
}

func (s *countingSource) BranchProtection(ctx context.Context, repo, branch string) (*models.BranchProtection, error) {
	p, _ := s.fakeStore.BranchProtection(ctx, repo, branch)
	if p == nil {
		return nil, fetcher.ErrBranchNotProtected
	}
	return p, nil
}

func (s *countingSource) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}
