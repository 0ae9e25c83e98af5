package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"pipelinehealth/internal/logging"
)

type Config struct {
	// Keep in sync with the flag wiring in internal/cli and the key bindings
	// in load.go when fields change.
	Targeting Targeting `mapstructure:"targeting"`
	Policy    Policy    `mapstructure:"policy"`
	Cache     Cache     `mapstructure:"cache"`
	Output    Output    `mapstructure:"output"`
	Runtime   Runtime   `mapstructure:"runtime"`
	Auth      Auth      `mapstructure:"auth"`
}

type Targeting struct {
	// Org is the GitHub organization to audit (name or URL; see --org).
	Org string `mapstructure:"org"`

	// Teams are the team slugs whose repository listings are walked, in order
	// (see --teams). Later teams merge into repositories found earlier.
	Teams []string `mapstructure:"teams"`

	// Manifest is the pipeline registry, a file path or http(s) URL (see --manifest).
	Manifest string `mapstructure:"manifest"`

	// Include and Exclude filter repository names with path.Match patterns.
	Include []string `mapstructure:"include"`
	Exclude []string `mapstructure:"exclude"`
}

type Policy struct {
	// WebURL is the organization website; pipelines must point at WebURL/<name>.
	WebURL         string   `mapstructure:"web_url"`
	CoreTopics     []string `mapstructure:"core_topics"`
	PipelineTopics []string `mapstructure:"pipeline_topics"`

	// CIContexts must all be required status checks on every audited branch.
	CIContexts []string `mapstructure:"ci_contexts"`

	// PushTeam must grant push and AdminTeam admin on every repository. Both
	// must be among Targeting.Teams, or their permissions are never listed.
	PushTeam  string `mapstructure:"push_team"`
	AdminTeam string `mapstructure:"admin_team"`
}

type Cache struct {
	Dir string `mapstructure:"dir"`

	// Refresh ignores cached documents and overwrites them (see --refresh).
	Refresh bool `mapstructure:"refresh"`
}

type Output struct {
	// ConsoleFormat is one of table, json, ndjson (see --console-format).
	ConsoleFormat string `mapstructure:"console_format"`

	// OnlyFailing hides repositories without a failing check from console tables.
	OnlyFailing bool `mapstructure:"only_failing"`

	// Report writes a Markdown report to this path (see --report).
	Report string `mapstructure:"report"`

	// Out writes structured output to this path; OutFormat is inferred from
	// the extension when empty. Allowed: json, ndjson, yaml, markdown.
	Out       string `mapstructure:"out"`
	OutFormat string `mapstructure:"out_format"`

	NoConsole bool `mapstructure:"no_console"`
}

type Runtime struct {
	// Concurrency bounds how many repositories are completed at once.
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`

	// FailFast aborts the run on the first repository whose metadata cannot
	// be fetched.
	FailFast bool `mapstructure:"fail_fast"`

	Verbose   bool   `mapstructure:"verbose"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

type Auth struct {
	// Token overrides GITHUB_TOKEN, GH_TOKEN and the gh CLI.
	Token string `mapstructure:"token"`

	// APIURL targets a GitHub Enterprise API root instead of api.github.com.
	APIURL string `mapstructure:"api_url"`

	// GitHub App installation credentials; all three must be set together.
	AppID          int64  `mapstructure:"app_id"`
	InstallationID int64  `mapstructure:"installation_id"`
	PrivateKeyPath string `mapstructure:"private_key_path"`
}

func New() *Config {
	return &Config{
		Targeting: Targeting{
			Org:      "nf-core",
			Teams:    []string{"all", "core"},
			Manifest: "https://nf-co.re/pipelines.json",
		},
		Policy: Policy{
			WebURL:         "https://nf-co.re",
			CoreTopics:     []string{"nf-core"},
			PipelineTopics: []string{"nf-core", "nextflow", "workflow", "pipeline"},
			CIContexts:     []string{"continuous-integration/travis-ci"},
			PushTeam:       "all",
			AdminTeam:      "core",
		},
		Cache: Cache{
			Dir: "api_cache/pipeline_health",
		},
		Output: Output{
			ConsoleFormat: "table",
		},
		Runtime: Runtime{
			Concurrency: 1,
			Timeout:     30 * time.Minute,
			LogLevel:    logging.LevelInfo,
			LogFormat:   logging.FormatConsole,
		},
	}
}

func (c *Config) Validate() error {
	c.Targeting.Teams = splitCommaList(c.Targeting.Teams)
	c.Targeting.Include = splitCommaList(c.Targeting.Include)
	c.Targeting.Exclude = splitCommaList(c.Targeting.Exclude)
	c.Policy.CoreTopics = splitCommaList(c.Policy.CoreTopics)
	c.Policy.PipelineTopics = splitCommaList(c.Policy.PipelineTopics)
	c.Policy.CIContexts = splitCommaList(c.Policy.CIContexts)

	org, err := normalizeOrgSelector(c.Targeting.Org)
	if err != nil {
		return fmt.Errorf("invalid --org value: %w", err)
	}
	if org == "" {
		return errors.New("--org must be provided")
	}
	c.Targeting.Org = org

	if len(c.Targeting.Teams) == 0 {
		return errors.New("--teams must name at least one team")
	}
	c.Targeting.Manifest = strings.TrimSpace(c.Targeting.Manifest)
	if c.Targeting.Manifest == "" {
		return errors.New("--manifest must be provided")
	}
	for _, pattern := range append(append([]string{}, c.Targeting.Include...), c.Targeting.Exclude...) {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid name pattern %q: %w", pattern, err)
		}
	}

	c.Policy.PushTeam = strings.TrimSpace(c.Policy.PushTeam)
	c.Policy.AdminTeam = strings.TrimSpace(c.Policy.AdminTeam)
	for _, team := range []struct{ flag, slug string }{
		{"--push-team", c.Policy.PushTeam},
		{"--admin-team", c.Policy.AdminTeam},
	} {
		if team.slug == "" {
			return fmt.Errorf("%s must be provided", team.flag)
		}
		if !slices.Contains(c.Targeting.Teams, team.slug) {
			return fmt.Errorf("%s %q is not listed in --teams", team.flag, team.slug)
		}
	}

	c.Policy.WebURL = strings.TrimSuffix(strings.TrimSpace(c.Policy.WebURL), "/")
	if u, err := url.Parse(c.Policy.WebURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid --web-url: %q", c.Policy.WebURL)
	}

	if strings.TrimSpace(c.Cache.Dir) == "" {
		return errors.New("--cache-dir must not be empty")
	}

	c.Output.ConsoleFormat = normalizeEnumValue(c.Output.ConsoleFormat)
	switch c.Output.ConsoleFormat {
	case "table", "json", "ndjson":
	case "":
		return errors.New("--console-format must be one of: table, json, ndjson")
	default:
		return fmt.Errorf("unsupported --console-format: %s (must be one of: table, json, ndjson)", c.Output.ConsoleFormat)
	}

	if c.Output.Out != "" {
		c.Output.OutFormat = normalizeEnumValue(c.Output.OutFormat)
		if c.Output.OutFormat == "" {
			format, err := inferOutFormat(c.Output.Out)
			if err != nil {
				return err
			}
			c.Output.OutFormat = format
		}
		switch c.Output.OutFormat {
		case "json", "ndjson", "yaml", "markdown":
		default:
			return fmt.Errorf("unsupported output format: %s", c.Output.OutFormat)
		}
	}

	if c.Runtime.Concurrency <= 0 {
		return errors.New("--concurrency must be >= 1")
	}
	if c.Runtime.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}

	c.Runtime.LogLevel = normalizeEnumValue(c.Runtime.LogLevel)
	if c.Runtime.Verbose {
		c.Runtime.LogLevel = logging.LevelDebug
	}
	if _, err := logging.ParseLevel(c.Runtime.LogLevel); err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	c.Runtime.LogFormat = normalizeEnumValue(c.Runtime.LogFormat)
	if c.Runtime.LogFormat != logging.FormatConsole && c.Runtime.LogFormat != logging.FormatJSON {
		return fmt.Errorf("unsupported --log-format: %s (must be one of: console, json)", c.Runtime.LogFormat)
	}

	appFields := 0
	if c.Auth.AppID != 0 {
		appFields++
	}
	if c.Auth.InstallationID != 0 {
		appFields++
	}
	if strings.TrimSpace(c.Auth.PrivateKeyPath) != "" {
		appFields++
	}
	if appFields != 0 && appFields != 3 {
		return errors.New("--app-id, --app-installation-id and --app-private-key must be set together")
	}

	return nil
}

func inferOutFormat(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return "json", nil
	case ".ndjson", ".jsonl":
		return "ndjson", nil
	case ".yaml", ".yml":
		return "yaml", nil
	case ".md", ".markdown":
		return "markdown", nil
	case "":
		return "", errors.New("cannot infer output format from file extension (missing extension); use --out-format")
	default:
		return "", fmt.Errorf("cannot infer output format from file extension %q; use --out-format", ext)
	}
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// normalizeOrgSelector accepts a bare organization name or a GitHub URL such
// as https://github.com/orgs/<name> or github.com/<name>.
func normalizeOrgSelector(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	if strings.HasPrefix(raw, "github.com/") || strings.HasPrefix(raw, "www.github.com/") {
		raw = "https://" + raw
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("%q", raw)
		}
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		if host != "github.com" {
			return "", fmt.Errorf("%q", raw)
		}
		parts := strings.FieldsFunc(strings.Trim(u.Path, "/"), func(r rune) bool { return r == '/' })
		if len(parts) == 0 {
			return "", fmt.Errorf("%q", raw)
		}
		if parts[0] == "orgs" {
			if len(parts) < 2 {
				return "", fmt.Errorf("%q", raw)
			}
			return parts[1], nil
		}
		return parts[0], nil
	}

	if strings.Contains(raw, "/") {
		return "", fmt.Errorf("%q", raw)
	}
	return raw, nil
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
