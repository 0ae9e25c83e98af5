package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pipelinehealth/internal/config"
	"pipelinehealth/internal/engine"
	"pipelinehealth/internal/fetcher"
	"pipelinehealth/internal/flags"
	gh "pipelinehealth/internal/github"
	"pipelinehealth/internal/logging"
	"pipelinehealth/internal/manifest"
)

const auditHelpTemplate = `{{with (or .Long .Short)}}{{. | trimTrailingWhitespaces}}

{{end}}Usage:
  {{.UseLine}}

{{if .HasAvailableLocalFlags}}Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}Environment:
  pipelinehealth authenticates to GitHub using an access token or a GitHub App.

  Token sources (in order):
  1) --token (or PIPELINEHEALTH_AUTH_TOKEN)
  2) GITHUB_TOKEN environment variable
  3) GH_TOKEN environment variable
  4) GitHub CLI (gh) authentication via gh auth token

  Token guidance (brief):
  - PAT (classic): needs read:org to list teams, plus repo to read branch
    protection.
  - Fine-grained PAT: Members: Read (organization), Metadata: Read and
    Administration: Read (repositories).
  - GitHub App: set --app-id, --app-installation-id and --app-private-key.

  Examples:
    export GITHUB_TOKEN="<your_token>"
    pipelinehealth audit

    gh auth login
    pipelinehealth audit --org my-org --teams all,core

{{if .HasAvailableSubCommands}}Available Commands:
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.
{{end}}`

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit the organization's repositories",
	Long: `Audit every repository reachable from the configured teams, plus every
pipeline listed in the pipeline registry, and report one verdict per check.

Repositories named in the registry are audited as pipelines; every other
repository is a core repository. Archived repositories are skipped.

GitHub responses are cached under --cache-dir and reused on later runs; use
--refresh to fetch everything again.

Output:
	Console output is controlled by --console-format (default: table).
	- --out / --out-format: write the report to a file (json, ndjson, yaml, markdown)
	- --report: write a Markdown report to a file
	- --no-console: suppress the console sink

	NDJSON mode emits one JSON object per line with a "type" field
	(run.started, repo.evaluated, repo.skipped, report, run.finished).

Exit codes:
	0 = no failing checks
	1 = failing checks detected
	2 = partial failure (some repositories could not be fetched)
	3 = fatal error (audit did not complete)

Examples:
  pipelinehealth audit
  pipelinehealth audit --only-failing
  pipelinehealth audit --exclude 'test-*' --report health.md
  pipelinehealth audit --no-console --out health.json --concurrency 4
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if code := runAudit(cmd); code != 0 {
			exit(code)
		}
		return nil
	},
}

func runAudit(cmd *cobra.Command) int {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return 3
	}

	logger, err := logging.New(cfg.Runtime.LogLevel, cfg.Runtime.LogFormat)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return 3
	}
	defer func() { _ = logger.Sync() }()

	client, err := newGitHubClient(ctx, cfg, logger)
	if err != nil {
		logger.Error("could not create GitHub client", zap.Error(err))
		return 3
	}

	registry, err := manifest.Load(ctx, cfg.Targeting.Manifest, nil)
	if err != nil {
		logger.Error("could not load pipeline registry",
			zap.String("location", cfg.Targeting.Manifest),
			zap.Error(err),
		)
		return 3
	}
	logger.Debug("loaded pipeline registry", zap.Int("pipelines", len(registry.Pipelines)))

	source := fetcher.NewGitHubSource(client, cfg.Targeting.Org, fetcher.NewBudget())
	store := fetcher.NewStore(source, fetcher.NewCache(cfg.Cache.Dir),
		fetcher.WithRefresh(cfg.Cache.Refresh),
		fetcher.WithLogger(logger),
	)

	eng := engine.NewEngine(store, logger)
	eng.Stdout = cmd.OutOrStdout()
	return eng.Run(ctx, cfg, registry)
}

func newGitHubClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*gh.Client, error) {
	opts := []gh.Option{gh.WithBaseURL(cfg.Auth.APIURL)}
	if cfg.Runtime.Verbose {
		opts = append(opts, gh.WithRequestLogging(logger))
	}

	app := gh.AppCredentials{
		AppID:          cfg.Auth.AppID,
		InstallationID: cfg.Auth.InstallationID,
		PrivateKeyPath: cfg.Auth.PrivateKeyPath,
	}
	if app.IsSet() {
		logger.Debug("authenticating as GitHub App", zap.Int64("app_id", app.AppID))
		return gh.NewClient(ctx, "", append(opts, gh.WithApp(app))...)
	}

	token, source, err := gh.ResolveAuthToken(ctx, cfg.Auth.Token, apiHost(cfg.Auth.APIURL))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve GitHub auth token: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("GitHub auth token is required (set GITHUB_TOKEN or run 'gh auth login')")
	}
	logger.Debug("resolved GitHub auth token", zap.String("source", string(source)))
	return gh.NewClient(ctx, token, opts...)
}

// apiHost returns the host gh should be asked for a token for.
func apiHost(apiURL string) string {
	if strings.TrimSpace(apiURL) == "" {
		return gh.DefaultHost
	}
	u, err := url.Parse(apiURL)
	if err != nil || u.Hostname() == "" {
		return gh.DefaultHost
	}
	return strings.TrimPrefix(u.Hostname(), "api.")
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.SetHelpTemplate(auditHelpTemplate)

	d := config.New()
	f := auditCmd.Flags()

	// Targeting
	f.String(flags.FlagOrg, d.Targeting.Org, "GitHub organization to audit (name or URL)")
	f.StringSlice(flags.FlagTeams, d.Targeting.Teams, "Teams whose repository listings are audited, in order (comma-separated accepted)")
	f.String(flags.FlagManifest, d.Targeting.Manifest, "Pipeline registry: local path or http(s) URL")
	f.StringSlice(flags.FlagInclude, nil, "Include pattern(s) (repeatable; comma-separated accepted). Go path.Match style; if pattern contains '/', matches OWNER/REPO, else matches repo name")
	f.StringSlice(flags.FlagExclude, nil, "Exclude pattern(s) (repeatable; comma-separated accepted). Same matching rules as --include")

	// Policy
	f.String(flags.FlagWebURL, d.Policy.WebURL, "Organization website; pipelines must link to <web-url>/<name>")
	f.StringSlice(flags.FlagCoreTopics, d.Policy.CoreTopics, "Topics every core repository must carry")
	f.StringSlice(flags.FlagPipelineTopics, d.Policy.PipelineTopics, "Topics every pipeline must carry")
	f.StringSlice(flags.FlagCIContexts, d.Policy.CIContexts, "Status check contexts every protected branch must require")
	f.String(flags.FlagPushTeam, d.Policy.PushTeam, "Team that must have push access on every repository (must be in --teams)")
	f.String(flags.FlagAdminTeam, d.Policy.AdminTeam, "Team that must have admin access on every repository (must be in --teams)")

	// Cache
	f.String(flags.FlagCacheDir, d.Cache.Dir, "Directory for cached GitHub responses")
	f.Bool(flags.FlagRefresh, false, "Ignore cached responses and fetch everything again")

	// Output
	f.String(flags.FlagConsoleFormat, d.Output.ConsoleFormat, "Console output format: table|json|ndjson")
	f.Bool(flags.FlagOnlyFailing, false, "Only show repositories with at least one failing check in console tables")
	f.String(flags.FlagReport, "", "Write a Markdown report to this path")
	f.String(flags.FlagOut, "", "Write the report to this path")
	f.String(flags.FlagOutFormat, "", "Format for --out: json|ndjson|yaml|markdown (default: inferred from file extension)")
	f.Bool(flags.FlagNoConsole, false, "Suppress console output (use with --out/--report)")

	// Runtime
	f.Int(flags.FlagConcurrency, d.Runtime.Concurrency, "Repositories completed concurrently")
	f.Duration(flags.FlagTimeout, d.Runtime.Timeout, "Global timeout")
	f.Bool(flags.FlagFailFast, false, "Abort on the first repository whose metadata cannot be fetched")

	// Auth
	f.String(flags.FlagToken, "", "GitHub access token (default: GITHUB_TOKEN, GH_TOKEN or gh auth token)")
	f.String(flags.FlagAPIURL, "", "GitHub Enterprise API URL (default: api.github.com)")
	f.Int64(flags.FlagAppID, 0, "GitHub App ID")
	f.Int64(flags.FlagInstallationID, 0, "GitHub App installation ID")
	f.String(flags.FlagAppKey, "", "Path to the GitHub App private key (PEM)")
}
