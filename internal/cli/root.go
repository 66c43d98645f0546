package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/promessa/internal/model"
	"github.com/ppiankov/promessa/internal/pipeline"
	"github.com/ppiankov/promessa/internal/render"
)

// Version is overridden at build time with -ldflags "-X".
var Version = "v0.1.0"

var (
	cfgFile  string
	verbose  bool
	jsonOut  bool
	noCache  bool
	noColor  bool
	logLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "promessa",
	Short: "Promessa - campaign promise audits against budget and voting records",
	Long: `Promessa audits political campaign promises.

For each promise it checks how much of the matching budget line was actually
executed, whether the politician voted against the same theme, and
synthesizes a verdict: REALISTA, DUVIDOSA or VAZIA.

A verdict is a probabilistic estimate, not proof.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command until it returns or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "promessa %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.promessa/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output and debug logs")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "disable the budget and voting cache")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if err := setDefaults(viper.GetViper(), model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading defaults: %v\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".promessa"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// PROMESSA_SERVER_ADDR overrides server.addr, and so on.
	viper.SetEnvPrefix("PROMESSA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every key of def with v so that environment
// variables and partial config files resolve against the full tree.
func setDefaults(v *viper.Viper, def model.Config) error {
	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	flatten("", tree, func(key string, value any) {
		v.SetDefault(key, value)
	})
	return nil
}

func flatten(prefix string, tree map[string]any, set func(string, any)) {
	for k, value := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := value.(map[string]any); ok && len(sub) > 0 && key != "authority.domain_map" {
			flatten(key, sub, set)
			continue
		}
		set(key, value)
	}
}

// loadConfig resolves the effective configuration from viper and the
// provider environment variables.
func loadConfig(v *viper.Viper) (model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	applyProviderEnv(&cfg, os.Getenv)
	return cfg, nil
}

// newLogger builds the process logger: text on w by default, JSON when
// log.format is json. verbose forces debug.
func newLogger(cfg model.LogConfig, verbose bool, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// session bundles what every pipeline-backed command needs.
type session struct {
	cfg      model.Config
	logger   *slog.Logger
	ui       *render.UI
	pipeline *pipeline.Pipeline
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Log, verbose, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize pipeline: %w", err)
	}
	return &session{cfg: cfg, logger: logger, ui: newUI(cmd), pipeline: p}, nil
}

func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Jobs.Timeout)
	defer cancel()
	if err := s.pipeline.Close(ctx); err != nil {
		s.logger.Warn("shutdown incomplete", "error", err)
	}
}

func newUI(cmd *cobra.Command) *render.UI {
	if noColor {
		render.DisableColor()
	}
	return &render.UI{
		Verbose: verbose,
		JSON:    jsonOut,
		Out:     cmd.OutOrStdout(),
		ErrOut:  cmd.ErrOrStderr(),
	}
}
