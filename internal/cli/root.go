package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pipelinehealth/internal/flags"
	"pipelinehealth/internal/logging"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

// configPath is the --config value shared by every command.
var configPath string

// exit terminates the process with an audit exit code.
var exit = os.Exit

var rootCmd = &cobra.Command{
	Use:   "pipelinehealth",
	Short: "Audit the repositories of a GitHub organization against the nf-core repository policy",
	Long: `pipelinehealth audits every repository of a GitHub organization (nf-core by
default) against a fixed checklist: repository settings, team permissions and
branch protection on master and dev. Each check yields pass, fail or unknown.

pipelinehealth is read-only: it never changes repository settings.

Examples:
	# Audit nf-core and print the two verdict tables
	pipelinehealth audit

	# List the checks
	pipelinehealth checks list

	# Print build info
	pipelinehealth version

Configuration:
	Flags override PIPELINEHEALTH_* environment variables, which override the
	config file (--config, or ./pipelinehealth.yaml when present).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, flags.FlagConfig, "", "Config file (yaml, json or toml; default ./pipelinehealth.yaml when present)")
	pf.Bool(flags.FlagVerbose, false, "Enable verbose logging (forces debug level and logs every GitHub API call)")
	pf.String(flags.FlagLogLevel, logging.LevelInfo, "Log level: debug|info|warn|error")
	pf.String(flags.FlagLogFormat, logging.FormatConsole, "Log format: console|json")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
