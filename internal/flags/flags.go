// Package flags defines canonical CLI flag names shared by the cobra wiring
// and the viper key bindings in internal/config.
// These are flag names without leading dashes.
package flags

const (
	// Global
	FlagConfig    = "config"
	FlagVerbose   = "verbose"
	FlagLogLevel  = "log-level"
	FlagLogFormat = "log-format"

	// Targeting
	FlagOrg      = "org"
	FlagTeams    = "teams"
	FlagManifest = "manifest"
	FlagInclude  = "include"
	FlagExclude  = "exclude"

	// Policy
	FlagWebURL         = "web-url"
	FlagCoreTopics     = "core-topics"
	FlagPipelineTopics = "pipeline-topics"
	FlagCIContexts     = "ci-contexts"
	FlagPushTeam       = "push-team"
	FlagAdminTeam      = "admin-team"

	// Cache
	FlagCacheDir = "cache-dir"
	FlagRefresh  = "refresh"

	// Output
	FlagConsoleFormat = "console-format"
	FlagOnlyFailing   = "only-failing"
	FlagReport        = "report"
	FlagOut           = "out"
	FlagOutFormat     = "out-format"
	FlagNoConsole     = "no-console"

	// Runtime
	FlagConcurrency = "concurrency"
	FlagTimeout     = "timeout"
	FlagFailFast    = "fail-fast"

	// Auth
	FlagToken          = "token"
	FlagAPIURL         = "api-url"
	FlagAppID          = "app-id"
	FlagInstallationID = "app-installation-id"
	FlagAppKey         = "app-private-key"
)
