// Package config loads policy-atlas settings from a file and the environment.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/de-tools/policy-atlas/pkg/models/domain"
	"github.com/de-tools/policy-atlas/pkg/services/httpclient"
	"github.com/de-tools/policy-atlas/pkg/services/notify"
	"github.com/de-tools/policy-atlas/pkg/services/remediation"
	"github.com/de-tools/policy-atlas/pkg/services/scoring"
	"github.com/de-tools/policy-atlas/pkg/store/blob"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const EnvPrefix = "POLICY_ATLAS"

const (
	EngineOPA  = "opa"
	EngineRego = "rego"
)

type Config struct {
	Server      ServerConfig         `mapstructure:"server"`
	Log         LogConfig            `mapstructure:"log"`
	Engine      EngineConfig         `mapstructure:"engine"`
	Audit       AuditConfig          `mapstructure:"audit"`
	Scoring     ScoringConfig        `mapstructure:"scoring"`
	Storage     blob.Settings        `mapstructure:"storage"`
	Index       IndexConfig          `mapstructure:"index"`
	HTTP        httpclient.Settings  `mapstructure:"http"`
	Remediation remediation.Settings `mapstructure:"remediation"`
	Notify      notify.Settings      `mapstructure:"notify"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type EngineConfig struct {
	Kind          string        `mapstructure:"kind"`
	Binary        string        `mapstructure:"binary"`
	RuleRoot      string        `mapstructure:"rule_root"`
	PackagePrefix string        `mapstructure:"package_prefix"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type AuditConfig struct {
	Workers            int      `mapstructure:"workers"`
	RemediationWorkers int      `mapstructure:"remediation_workers"`
	Owner              string   `mapstructure:"owner"`
	Tags               []string `mapstructure:"tags"`
	Provider           string   `mapstructure:"provider"`
}

type ScoringConfig struct {
	Base     int            `mapstructure:"base"`
	Weights  map[string]int `mapstructure:"weights"`
	Fallback int            `mapstructure:"fallback"`
}

// IndexConfig locates the DuckDB report index. An empty path keeps the
// index in memory.
type IndexConfig struct {
	DbPath string `mapstructure:"db_path"`
}

// LoadConfig reads the optional config file at path and applies environment
// overrides. An empty path yields defaults plus environment.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)

	// log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// engine
	v.SetDefault("engine.kind", EngineOPA)
	v.SetDefault("engine.binary", "opa")
	v.SetDefault("engine.rule_root", "policies")
	v.SetDefault("engine.package_prefix", "terraform.azure")
	v.SetDefault("engine.timeout", "30s")

	// audit
	v.SetDefault("audit.workers", 4)
	v.SetDefault("audit.remediation_workers", 4)
	v.SetDefault("audit.owner", "")
	v.SetDefault("audit.tags", []string{})
	v.SetDefault("audit.provider", "azure")

	// scoring
	defaults := scoring.DefaultPolicy()
	v.SetDefault("scoring.base", defaults.Base)
	v.SetDefault("scoring.fallback", defaults.Fallback)
	for _, s := range domain.Severities {
		v.SetDefault("scoring.weights."+string(s), defaults.Weights[s])
	}

	// storage
	v.SetDefault("storage.backend", blob.BackendLocal)
	v.SetDefault("storage.root", "output")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.profile", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.container", "")
	v.SetDefault("storage.account_url", "")
	v.SetDefault("storage.connection_string", "")

	// index
	v.SetDefault("index.db_path", "")

	// outbound http
	transport := httpclient.DefaultSettings()
	v.SetDefault("http.timeout", transport.Timeout)
	v.SetDefault("http.retry_max", transport.RetryMax)
	v.SetDefault("http.retry_wait_min", transport.RetryWaitMin)
	v.SetDefault("http.retry_wait_max", transport.RetryWaitMax)

	// remediation
	rem := remediation.DefaultSettings()
	v.SetDefault("remediation.api_key", "")
	v.SetDefault("remediation.base_url", rem.BaseURL)
	v.SetDefault("remediation.model", rem.Model)
	v.SetDefault("remediation.temperature", rem.Temperature)
	v.SetDefault("remediation.max_tokens", rem.MaxTokens)

	// notify
	v.SetDefault("notify.api_key", "")
	v.SetDefault("notify.endpoint", notify.DefaultEndpoint)
	v.SetDefault("notify.from_email", notify.DefaultFromEmail)
	v.SetDefault("notify.from_name", notify.DefaultFromName)
	v.SetDefault("notify.recipients", []string{})
}

// bindEnv maps the conventional variable names of the hosted service onto
// config keys. The prefixed name wins when both are set.
func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"server.port":               "PORT",
		"remediation.api_key":       "DEEPSEEK_API_KEY",
		"notify.api_key":            "MAILERSEND_API_KEY",
		"notify.from_email":         "FROM_EMAIL",
		"storage.connection_string": "AZURE_STORAGE_CONNECTION_STRING",
		"storage.container":         "AZURE_STORAGE_CONTAINER_NAME",
	}
	for key, env := range bindings {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	if !slices.Contains([]string{EngineOPA, EngineRego}, c.Engine.Kind) {
		return fmt.Errorf("engine.kind must be %q or %q, got %q", EngineOPA, EngineRego, c.Engine.Kind)
	}
	if c.Engine.RuleRoot == "" {
		return fmt.Errorf("engine.rule_root is required")
	}
	if c.Engine.Kind == EngineOPA && c.Engine.Binary == "" {
		return fmt.Errorf("engine.binary is required for the opa engine")
	}
	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("engine.timeout must be positive")
	}

	if c.Audit.Workers < 1 {
		return fmt.Errorf("audit.workers must be at least 1")
	}
	if c.Audit.RemediationWorkers < 1 {
		return fmt.Errorf("audit.remediation_workers must be at least 1")
	}

	if c.Scoring.Base < 0 {
		return fmt.Errorf("scoring.base must not be negative")
	}
	for sev, w := range c.Scoring.Weights {
		if w < 0 {
			return fmt.Errorf("scoring.weights.%s must not be negative", sev)
		}
	}

	switch c.Storage.Backend {
	case blob.BackendLocal:
		if c.Storage.Root == "" {
			return fmt.Errorf("storage.root is required for local storage")
		}
	case blob.BackendS3:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for s3 storage")
		}
	case blob.BackendAzure:
		if c.Storage.Container == "" {
			return fmt.Errorf("storage.container is required for azure storage")
		}
		if c.Storage.ConnectionString == "" && c.Storage.AccountURL == "" {
			return fmt.Errorf("storage.connection_string or storage.account_url is required for azure storage")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}

	if len(c.Notify.Recipients) > 0 && c.Notify.APIKey == "" {
		return fmt.Errorf("notify.api_key is required when notify.recipients are set")
	}
	return nil
}

// Policy converts the scoring section into a scoring policy.
func (s ScoringConfig) Policy() scoring.Policy {
	weights := make(map[domain.Severity]int, len(s.Weights))
	for k, w := range s.Weights {
		weights[domain.Severity(strings.ToLower(k))] = w
	}
	return scoring.Policy{
		Base:     s.Base,
		Weights:  weights,
		Fallback: s.Fallback,
	}
}
