package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/BTreeMap/shiftengine/internal/config"
	"github.com/BTreeMap/shiftengine/internal/flow"
	"github.com/BTreeMap/shiftengine/internal/genai"
	"github.com/BTreeMap/shiftengine/internal/lockfile"
	"github.com/BTreeMap/shiftengine/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootFlags holds the persistent flag values shared by every subcommand.
type rootFlags struct {
	configFile  string
	stateDir    string
	dbDSN       string
	openaiKey   string
	openaiModel string
	logLevel    string
	noAssist    bool
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(&rootFlags{})
}

func buildRootCmd(flags *rootFlags) *cobra.Command {
	root := &cobra.Command{
		Use:          "shiftengine",
		Short:        "Scripted treatment dialogue engine",
		Long:         "shiftengine runs the scripted treatment dialogue behind an HTTP harness (serve) or an interactive terminal (chat).",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "path to a YAML config file (overrides $SHIFT_CONFIG)")
	pf.StringVar(&flags.stateDir, "state-dir", "", "state directory for session data (overrides $SHIFT_STATE_DIR)")
	pf.StringVar(&flags.dbDSN, "db-dsn", "", "session store DSN: a PostgreSQL URL, a SQLite path, or \"memory\" (overrides $DATABASE_URL)")
	pf.StringVar(&flags.openaiKey, "openai-api-key", "", "OpenAI API key (overrides $OPENAI_API_KEY)")
	pf.StringVar(&flags.openaiModel, "openai-model", "", "chat model for the linguistic assist (overrides $OPENAI_MODEL)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides $LOG_LEVEL)")
	pf.BoolVar(&flags.noAssist, "no-assist", false, "disable the linguistic assist")

	root.AddCommand(newServeCmd(flags), newChatCmd(flags))
	return root
}

// resolveConfig loads configuration and applies explicitly set flags on top.
func resolveConfig(cmd *cobra.Command, flags *rootFlags) (config.Config, error) {
	// Bootstrap logger so config loading is visible at the default level.
	initializeLogger(slog.LevelInfo)

	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return config.Config{}, err
	}

	pf := cmd.Flags()
	if pf.Changed("state-dir") {
		cfg.StateDir = flags.stateDir
	}
	if pf.Changed("db-dsn") {
		cfg.DatabaseURL = flags.dbDSN
	}
	if pf.Changed("openai-api-key") {
		cfg.OpenAIKey = flags.openaiKey
	}
	if pf.Changed("openai-model") {
		cfg.OpenAIModel = flags.openaiModel
	}
	if pf.Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if flags.noAssist {
		cfg.AssistEnabled = false
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	initializeLogger(level)

	slog.Debug("Final configuration",
		"state_dir", cfg.StateDir,
		"dsn_set", cfg.DatabaseURL != "",
		"assist_active", cfg.AssistActive(),
		"api_addr", cfg.APIAddr)
	return cfg, nil
}

// initializeLogger sets up structured logging at level.
func initializeLogger(level slog.Level) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// app bundles what a subcommand needs and how to tear it down.
type app struct {
	engine *flow.Engine
	store  store.SessionStore
	lock   *lockfile.Lock
}

func (a *app) Close() {
	if a.engine != nil {
		a.engine.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("app.Close: store close failed", "error", err)
		}
	}
	if a.lock != nil {
		a.lock.Release()
	}
}

// buildApp locks the state directory when the store lives there, opens
// the store and constructs the engine.
func buildApp(cfg config.Config, command string, extra ...flow.EngineOption) (*app, error) {
	a := &app{}

	if cfg.UsesStateDir() {
		lock, err := lockfile.Acquire(cfg.StateDir, command)
		if err != nil {
			return nil, err
		}
		a.lock = lock
	}

	st, err := openStore(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = st

	opts := cfg.EngineOptions()
	if cfg.AssistActive() {
		client, err := genai.NewClient(cfg.GenAIOptions()...)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create assist client: %w", err)
		}
		opts = append(opts, flow.WithAssist(client))
	} else {
		slog.Info("Linguistic assist disabled", "assist_enabled", cfg.AssistEnabled, "api_key_set", cfg.OpenAIKey != "")
	}
	opts = append(opts, extra...)

	engine, err := flow.NewEngine(st, opts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	a.engine = engine
	return a, nil
}

// openStore opens the session store selected by the configured DSN.
func openStore(cfg config.Config) (store.SessionStore, error) {
	st, err := store.NewFromDSN(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return st, nil
}
