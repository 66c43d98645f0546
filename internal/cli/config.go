package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/promessa/internal/llm"
	"github.com/ppiankov/promessa/internal/model"
)

// providerEnv maps extraction providers to their API key variables.
var providerEnv = []struct {
	provider string
	keyVar   string
	model    string
}{
	{"openai", "OPENAI_API_KEY", "gpt-4o-mini"},
	{"anthropic", "ANTHROPIC_API_KEY", ""},
	{"groq", "GROQ_API_KEY", ""},
	{"deepseek", "DEEPSEEK_API_KEY", ""},
	{"openrouter", "OPENROUTER_API_KEY", ""},
}

// applyProviderEnv fills missing API keys from the environment. When no
// providers are configured the chain is built from whichever keys are set,
// in providerEnv order, with a local Ollama last when OLLAMA_BASE_URL is set.
func applyProviderEnv(cfg *model.Config, getenv func(string) string) {
	if len(cfg.Extraction.Providers) == 0 {
		for _, pe := range providerEnv {
			if key := getenv(pe.keyVar); key != "" {
				cfg.Extraction.Providers = append(cfg.Extraction.Providers, model.LLMConfig{
					Provider: pe.provider, Model: pe.model, APIKey: key,
				})
			}
		}
		if base := getenv("OLLAMA_BASE_URL"); base != "" {
			cfg.Extraction.Providers = append(cfg.Extraction.Providers, model.LLMConfig{
				Provider: "ollama", BaseURL: base,
			})
		}
		return
	}

	for i := range cfg.Extraction.Providers {
		entry := &cfg.Extraction.Providers[i]
		name := strings.ToLower(entry.Provider)
		if name == "claude" {
			name = "anthropic"
		}
		if name == "ollama" {
			if entry.BaseURL == "" {
				entry.BaseURL = getenv("OLLAMA_BASE_URL")
			}
			continue
		}
		if entry.APIKey != "" {
			continue
		}
		for _, pe := range providerEnv {
			if pe.provider == name {
				entry.APIKey = getenv(pe.keyVar)
			}
		}
	}
}

// redacted returns a copy of cfg safe to print.
func redacted(cfg model.Config) model.Config {
	providers := make([]model.LLMConfig, len(cfg.Extraction.Providers))
	copy(providers, cfg.Extraction.Providers)
	for i := range providers {
		if providers[i].APIKey != "" {
			providers[i].APIKey = "***"
		}
	}
	cfg.Extraction.Providers = providers
	return cfg
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage promessa configuration",
	Long: `Manage promessa configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (PROMESSA_*, plus provider API keys)
3. Config file (~/.promessa/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Configuration file: %s\n\n", used)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "No configuration file found (using defaults)\n\n")
		}

		data, err := yaml.Marshal(redacted(cfg))
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

// providerStatus is one row of `config check`.
type providerStatus struct {
	Provider  string `json:"provider"`
	Model     string `json:"model,omitempty"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// checkProviders builds every configured extraction provider and asks it
// whether it can answer. Entries that fail to build are reported with the
// construction error.
func checkProviders(ctx context.Context, cfg model.Config) []providerStatus {
	out := make([]providerStatus, 0, len(cfg.Extraction.Providers))
	for _, entry := range cfg.Extraction.Providers {
		st := providerStatus{Provider: entry.Provider, Model: entry.Model}
		p, err := llm.NewProvider(llm.ConfigFromModel(entry, cfg.Extraction.MaxTokens, cfg.HTTP))
		switch {
		case err != nil:
			st.Error = err.Error()
		case p == nil:
			st.Error = "no provider configured"
		default:
			st.Provider = p.Name()
			st.Model = p.Model()
			st.Available = p.IsAvailable(ctx)
			if !st.Available {
				st.Error = "unreachable or rejected credentials"
			}
		}
		out = append(out, st)
	}
	return out
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that configured extraction providers answer",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		ui := newUI(cmd)

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Extraction.Timeout)
		defer cancel()
		statuses := checkProviders(ctx, cfg)

		if ui.JSON {
			return ui.WriteJSON(statuses)
		}
		if len(statuses) == 0 {
			if cfg.Extraction.HeuristicFallback {
				ui.Info("No LLM providers configured, extraction uses the heuristic extractor")
				return nil
			}
			return fmt.Errorf("no extraction providers configured")
		}
		available := 0
		for _, st := range statuses {
			if st.Available {
				available++
				ui.Success("%s (%s) available", st.Provider, st.Model)
				continue
			}
			ui.Warning("%s: %s", st.Provider, st.Error)
		}
		if available == 0 && !cfg.Extraction.HeuristicFallback {
			return fmt.Errorf("no extraction provider is available")
		}
		return nil
	},
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long:  `Create ~/.promessa/config.yaml (or the --config path) with every option at its default.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("find home directory: %w", err)
			}
			path = filepath.Join(home, ".promessa", "config.yaml")
		}
		if err := writeDefaultConfig(path, configInitForce); err != nil {
			return err
		}
		ui := newUI(cmd)
		ui.Success("Created default configuration: %s", path)
		ui.Info("View it with: promessa config show")
		return nil
	},
}

const configHeader = `# promessa configuration
#
# Configuration hierarchy (highest to lowest priority):
#   1. CLI flags
#   2. Environment variables (PROMESSA_*, e.g. PROMESSA_SERVER_ADDR)
#   3. This config file
#   4. Built-in defaults
#
# API keys are best kept in the environment:
#   export OPENAI_API_KEY=sk-...
#   export ANTHROPIC_API_KEY=sk-ant-...
#   export GROQ_API_KEY=...
#   export OLLAMA_BASE_URL=http://localhost:11434

`

// writeDefaultConfig writes the documented default file. An existing file
// is kept unless force is set.
func writeDefaultConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(configHeader), data...), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd, configCheckCmd)

	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
}
