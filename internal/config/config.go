// Package config resolves runtime configuration for the shiftengine commands.
//
// Values are layered: built-in defaults, then an optional YAML file, then the
// process environment (a .env file in the working directory is loaded first),
// then command line flags applied by the caller.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/BTreeMap/shiftengine/internal/api"
	"github.com/BTreeMap/shiftengine/internal/flow"
	"github.com/BTreeMap/shiftengine/internal/genai"
	"github.com/BTreeMap/shiftengine/internal/store"
	"github.com/BTreeMap/shiftengine/internal/util"
)

const (
	// DefaultStateDir is the default directory for shiftengine state data
	DefaultStateDir = "/var/lib/shiftengine"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "sessions.db"
	// MemoryDSN selects the in-memory session store.
	MemoryDSN = "memory"
)

// Environment variable names.
const (
	EnvConfigFile    = "SHIFT_CONFIG"
	EnvStateDir      = "SHIFT_STATE_DIR"
	EnvDatabaseURL   = "DATABASE_URL"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvOpenAIModel   = "OPENAI_MODEL"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	EnvAPIAddr       = "API_ADDR"
	EnvAssistTimeout = "ASSIST_TIMEOUT"
	EnvSaveTimeout   = "SAVE_TIMEOUT"
	EnvMaxChainHops  = "MAX_CHAIN_HOPS"
	EnvMaxDigDepth   = "MAX_DIGGING_DEPTH"
	EnvAssistEnabled = "ASSIST_ENABLED"
	EnvLogLevel      = "LOG_LEVEL"
)

// Config holds the resolved configuration.
type Config struct {
	StateDir        string
	DatabaseURL     string // empty means SQLite in StateDir
	OpenAIKey       string
	OpenAIModel     string
	OpenAIBaseURL   string
	APIAddr         string
	AssistTimeout   time.Duration
	SaveTimeout     time.Duration
	MaxChainHops    int
	MaxDiggingDepth int
	AssistEnabled   bool
	LogLevel        string
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		StateDir:        DefaultStateDir,
		OpenAIModel:     genai.DefaultModel,
		APIAddr:         api.DefaultServerAddress,
		AssistTimeout:   flow.DefaultAssistTimeout,
		SaveTimeout:     flow.DefaultSaveTimeout,
		MaxChainHops:    flow.DefaultMaxChainHops,
		MaxDiggingDepth: flow.DefaultMaxDiggingDepth,
		AssistEnabled:   true,
		LogLevel:        "info",
	}
}

// fileConfig mirrors Config for the YAML file. Unset keys leave the lower
// layer untouched.
type fileConfig struct {
	StateDir        *string `yaml:"state_dir"`
	DatabaseURL     *string `yaml:"database_url"`
	OpenAIModel     *string `yaml:"openai_model"`
	OpenAIBaseURL   *string `yaml:"openai_base_url"`
	APIAddr         *string `yaml:"api_addr"`
	AssistTimeout   *string `yaml:"assist_timeout"`
	SaveTimeout     *string `yaml:"save_timeout"`
	MaxChainHops    *int    `yaml:"max_chain_hops"`
	MaxDiggingDepth *int    `yaml:"max_digging_depth"`
	AssistEnabled   *bool   `yaml:"assist_enabled"`
	LogLevel        *string `yaml:"log_level"`
}

// Load resolves configuration from defaults, the YAML file at path (or
// $SHIFT_CONFIG when path is empty) and the environment.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("config.Load: no .env file loaded", "error", err)
	} else {
		slog.Debug("config.Load: loaded .env file")
	}

	cfg := Defaults()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
		slog.Debug("config.Load: applied config file", "path", path)
	}

	cfg.applyEnv()

	slog.Debug("config.Load: configuration resolved",
		"state_dir", cfg.StateDir,
		"database_url_set", cfg.DatabaseURL != "",
		"openai_api_key_set", cfg.OpenAIKey != "",
		"openai_model", cfg.OpenAIModel,
		"api_addr", cfg.APIAddr,
		"assist_enabled", cfg.AssistEnabled,
		"assist_timeout", cfg.AssistTimeout,
		"save_timeout", cfg.SaveTimeout,
		"max_chain_hops", cfg.MaxChainHops)
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setString(&c.StateDir, fc.StateDir)
	setString(&c.DatabaseURL, fc.DatabaseURL)
	setString(&c.OpenAIModel, fc.OpenAIModel)
	setString(&c.OpenAIBaseURL, fc.OpenAIBaseURL)
	setString(&c.APIAddr, fc.APIAddr)
	setString(&c.LogLevel, fc.LogLevel)
	if fc.AssistTimeout != nil {
		d, err := time.ParseDuration(*fc.AssistTimeout)
		if err != nil {
			return fmt.Errorf("config file %s: assist_timeout: %w", path, err)
		}
		c.AssistTimeout = d
	}
	if fc.SaveTimeout != nil {
		d, err := time.ParseDuration(*fc.SaveTimeout)
		if err != nil {
			return fmt.Errorf("config file %s: save_timeout: %w", path, err)
		}
		c.SaveTimeout = d
	}
	if fc.MaxChainHops != nil {
		c.MaxChainHops = *fc.MaxChainHops
	}
	if fc.MaxDiggingDepth != nil {
		c.MaxDiggingDepth = *fc.MaxDiggingDepth
	}
	if fc.AssistEnabled != nil {
		c.AssistEnabled = *fc.AssistEnabled
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil && strings.TrimSpace(*v) != "" {
		*dst = strings.TrimSpace(*v)
	}
}

// applyEnv overrides c with any set environment variables. The API key is
// only read from the environment.
func (c *Config) applyEnv() {
	c.StateDir = util.GetEnv(EnvStateDir, c.StateDir)
	c.DatabaseURL = util.GetEnv(EnvDatabaseURL, c.DatabaseURL)
	c.OpenAIKey = util.GetEnv(EnvOpenAIKey, c.OpenAIKey)
	c.OpenAIModel = util.GetEnv(EnvOpenAIModel, c.OpenAIModel)
	c.OpenAIBaseURL = util.GetEnv(EnvOpenAIBaseURL, c.OpenAIBaseURL)
	c.APIAddr = util.GetEnv(EnvAPIAddr, c.APIAddr)
	c.AssistTimeout = util.ParseDurationEnv(EnvAssistTimeout, c.AssistTimeout)
	c.SaveTimeout = util.ParseDurationEnv(EnvSaveTimeout, c.SaveTimeout)
	c.MaxChainHops = util.ParseIntEnv(EnvMaxChainHops, c.MaxChainHops)
	c.MaxDiggingDepth = util.ParseIntEnv(EnvMaxDigDepth, c.MaxDiggingDepth)
	c.AssistEnabled = util.ParseBoolEnv(EnvAssistEnabled, c.AssistEnabled)
	c.LogLevel = util.GetEnv(EnvLogLevel, c.LogLevel)
}

// Validate reports settings the engine cannot run with.
func (c Config) Validate() error {
	if c.AssistTimeout <= 0 {
		return fmt.Errorf("assist timeout must be positive, got %s", c.AssistTimeout)
	}
	if c.SaveTimeout <= 0 {
		return fmt.Errorf("save timeout must be positive, got %s", c.SaveTimeout)
	}
	if c.MaxChainHops <= 0 {
		return fmt.Errorf("max chain hops must be positive, got %d", c.MaxChainHops)
	}
	if c.MaxDiggingDepth <= 0 {
		return fmt.Errorf("max digging depth must be positive, got %d", c.MaxDiggingDepth)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.DSN() != "" && store.DetectDSNType(c.DSN()) == "sqlite3" && c.StateDir == "" {
		return fmt.Errorf("state directory must be set when using SQLite")
	}
	return nil
}

// ParseLogLevel maps debug/info/warn/error onto a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// DSN returns the session store connection string. An empty result selects
// the in-memory store.
func (c Config) DSN() string {
	switch {
	case strings.EqualFold(c.DatabaseURL, MemoryDSN):
		return ""
	case c.DatabaseURL != "":
		return c.DatabaseURL
	default:
		return filepath.Join(c.StateDir, DefaultDBFileName)
	}
}

// UsesStateDir reports whether the session store lives in StateDir, which
// then needs the single-process lock.
func (c Config) UsesStateDir() bool {
	return c.DatabaseURL == ""
}

// AssistActive reports whether the engine should be built with an assist.
func (c Config) AssistActive() bool {
	return c.AssistEnabled && c.OpenAIKey != ""
}

// GenAIOptions constructs assist client options.
func (c Config) GenAIOptions() []genai.Option {
	var opts []genai.Option
	if c.OpenAIKey != "" {
		opts = append(opts, genai.WithAPIKey(c.OpenAIKey))
	}
	if c.OpenAIModel != "" {
		opts = append(opts, genai.WithModel(c.OpenAIModel))
	}
	if c.OpenAIBaseURL != "" {
		opts = append(opts, genai.WithBaseURL(c.OpenAIBaseURL))
	}
	return opts
}

// APIOptions constructs HTTP harness options. The metrics handler is added
// by the serve command.
func (c Config) APIOptions() []api.Option {
	var opts []api.Option
	if c.APIAddr != "" {
		opts = append(opts, api.WithAddr(c.APIAddr))
	}
	return opts
}

// EngineOptions constructs the engine tuning options. The assist and the
// recorder are wired by the caller.
func (c Config) EngineOptions() []flow.EngineOption {
	return []flow.EngineOption{
		flow.WithAssistTimeout(c.AssistTimeout),
		flow.WithSaveTimeout(c.SaveTimeout),
		flow.WithMaxChainHops(c.MaxChainHops),
		flow.WithMaxDiggingDepth(c.MaxDiggingDepth),
	}
}
