package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"pipelinehealth/internal/flags"
)

const (
	// EnvPrefix prefixes every environment override, e.g.
	// PIPELINEHEALTH_TARGETING_ORG or PIPELINEHEALTH_RUNTIME_CONCURRENCY.
	EnvPrefix = "PIPELINEHEALTH"

	configName = "pipelinehealth"
)

// Keys of the configuration tree, as used in config files and env overrides.
const (
	KeyOrg            = "targeting.org"
	KeyTeams          = "targeting.teams"
	KeyManifest       = "targeting.manifest"
	KeyInclude        = "targeting.include"
	KeyExclude        = "targeting.exclude"
	KeyWebURL         = "policy.web_url"
	KeyCoreTopics     = "policy.core_topics"
	KeyPipelineTopics = "policy.pipeline_topics"
	KeyCIContexts     = "policy.ci_contexts"
	KeyPushTeam       = "policy.push_team"
	KeyAdminTeam      = "policy.admin_team"
	KeyCacheDir       = "cache.dir"
	KeyRefresh        = "cache.refresh"
	KeyConsoleFormat  = "output.console_format"
	KeyOnlyFailing    = "output.only_failing"
	KeyReport         = "output.report"
	KeyOut            = "output.out"
	KeyOutFormat      = "output.out_format"
	KeyNoConsole      = "output.no_console"
	KeyConcurrency    = "runtime.concurrency"
	KeyTimeout        = "runtime.timeout"
	KeyFailFast       = "runtime.fail_fast"
	KeyVerbose        = "runtime.verbose"
	KeyLogLevel       = "runtime.log_level"
	KeyLogFormat      = "runtime.log_format"
	KeyToken          = "auth.token"
	KeyAPIURL         = "auth.api_url"
	KeyAppID          = "auth.app_id"
	KeyInstallationID = "auth.installation_id"
	KeyPrivateKeyPath = "auth.private_key_path"
)

var flagKeys = map[string]string{
	flags.FlagOrg:            KeyOrg,
	flags.FlagTeams:          KeyTeams,
	flags.FlagManifest:       KeyManifest,
	flags.FlagInclude:        KeyInclude,
	flags.FlagExclude:        KeyExclude,
	flags.FlagWebURL:         KeyWebURL,
	flags.FlagCoreTopics:     KeyCoreTopics,
	flags.FlagPipelineTopics: KeyPipelineTopics,
	flags.FlagCIContexts:     KeyCIContexts,
	flags.FlagPushTeam:       KeyPushTeam,
	flags.FlagAdminTeam:      KeyAdminTeam,
	flags.FlagCacheDir:       KeyCacheDir,
	flags.FlagRefresh:        KeyRefresh,
	flags.FlagConsoleFormat:  KeyConsoleFormat,
	flags.FlagOnlyFailing:    KeyOnlyFailing,
	flags.FlagReport:         KeyReport,
	flags.FlagOut:            KeyOut,
	flags.FlagOutFormat:      KeyOutFormat,
	flags.FlagNoConsole:      KeyNoConsole,
	flags.FlagConcurrency:    KeyConcurrency,
	flags.FlagTimeout:        KeyTimeout,
	flags.FlagFailFast:       KeyFailFast,
	flags.FlagVerbose:        KeyVerbose,
	flags.FlagLogLevel:       KeyLogLevel,
	flags.FlagLogFormat:      KeyLogFormat,
	flags.FlagToken:          KeyToken,
	flags.FlagAPIURL:         KeyAPIURL,
	flags.FlagAppID:          KeyAppID,
	flags.FlagInstallationID: KeyInstallationID,
	flags.FlagAppKey:         KeyPrivateKeyPath,
}

func defaults(c *Config) map[string]any {
	return map[string]any{
		KeyOrg:            c.Targeting.Org,
		KeyTeams:          c.Targeting.Teams,
		KeyManifest:       c.Targeting.Manifest,
		KeyInclude:        c.Targeting.Include,
		KeyExclude:        c.Targeting.Exclude,
		KeyWebURL:         c.Policy.WebURL,
		KeyCoreTopics:     c.Policy.CoreTopics,
		KeyPipelineTopics: c.Policy.PipelineTopics,
		KeyCIContexts:     c.Policy.CIContexts,
		KeyPushTeam:       c.Policy.PushTeam,
		KeyAdminTeam:      c.Policy.AdminTeam,
		KeyCacheDir:       c.Cache.Dir,
		KeyRefresh:        c.Cache.Refresh,
		KeyConsoleFormat:  c.Output.ConsoleFormat,
		KeyOnlyFailing:    c.Output.OnlyFailing,
		KeyReport:         c.Output.Report,
		KeyOut:            c.Output.Out,
		KeyOutFormat:      c.Output.OutFormat,
		KeyNoConsole:      c.Output.NoConsole,
		KeyConcurrency:    c.Runtime.Concurrency,
		KeyTimeout:        c.Runtime.Timeout,
		KeyFailFast:       c.Runtime.FailFast,
		KeyVerbose:        c.Runtime.Verbose,
		KeyLogLevel:       c.Runtime.LogLevel,
		KeyLogFormat:      c.Runtime.LogFormat,
		KeyToken:          c.Auth.Token,
		KeyAPIURL:         c.Auth.APIURL,
		KeyAppID:          c.Auth.AppID,
		KeyInstallationID: c.Auth.InstallationID,
		KeyPrivateKeyPath: c.Auth.PrivateKeyPath,
	}
}

// Load resolves the configuration from, in decreasing precedence: flags set
// on fs, PIPELINEHEALTH_* environment variables, the config file, and the
// built-in defaults. An empty path looks for pipelinehealth.{yaml,json,toml}
// in the working directory and tolerates its absence; an explicit path must
// exist. The result is validated.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults(New()) {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read configuration: %w", err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind --%s: %w", name, err)
			}
		}
	}

	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
