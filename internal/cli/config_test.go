package cli

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/ppiankov/promessa/internal/model"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestApplyProviderEnv_BuildsChainFromKeys(t *testing.T) {
	cfg := model.DefaultConfig()
	applyProviderEnv(&cfg, envMap(map[string]string{
		"GROQ_API_KEY":    "gsk",
		"OPENAI_API_KEY":  "sk",
		"OLLAMA_BASE_URL": "http://localhost:11434",
	}))

	got := cfg.Extraction.Providers
	if len(got) != 3 {
		t.Fatalf("Expected 3 providers, got %+v", got)
	}
	if got[0].Provider != "openai" || got[0].APIKey != "sk" || got[0].Model != "gpt-4o-mini" {
		t.Errorf("Expected openai first, got %+v", got[0])
	}
	if got[1].Provider != "groq" || got[1].APIKey != "gsk" {
		t.Errorf("Expected groq second, got %+v", got[1])
	}
	if got[2].Provider != "ollama" || got[2].BaseURL != "http://localhost:11434" {
		t.Errorf("Expected ollama last, got %+v", got[2])
	}
}

func TestApplyProviderEnv_FillsConfiguredEntries(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Extraction.Providers = []model.LLMConfig{
		{Provider: "claude"},
		{Provider: "openai", APIKey: "from-file"},
		{Provider: "ollama"},
	}
	applyProviderEnv(&cfg, envMap(map[string]string{
		"ANTHROPIC_API_KEY": "ant",
		"OPENAI_API_KEY":    "env",
		"OLLAMA_BASE_URL":   "http://gpu:11434",
	}))

	got := cfg.Extraction.Providers
	if len(got) != 3 {
		t.Fatalf("Expected configured list kept, got %+v", got)
	}
	if got[0].APIKey != "ant" {
		t.Errorf("Expected anthropic key from env, got %q", got[0].APIKey)
	}
	if got[1].APIKey != "from-file" {
		t.Errorf("Expected file key to win, got %q", got[1].APIKey)
	}
	if got[2].BaseURL != "http://gpu:11434" {
		t.Errorf("Expected ollama base URL from env, got %q", got[2].BaseURL)
	}
}

func TestRedacted_DoesNotMutate(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Extraction.Providers = []model.LLMConfig{{Provider: "openai", APIKey: "sk-secret"}}

	out := redacted(cfg)
	if out.Extraction.Providers[0].APIKey != "***" {
		t.Errorf("Expected redacted key, got %q", out.Extraction.Providers[0].APIKey)
	}
	if cfg.Extraction.Providers[0].APIKey != "sk-secret" {
		t.Error("Expected original config untouched")
	}
}

func newTestViper(t *testing.T, file string) *viper.Viper {
	t.Helper()
	v := viper.New()
	if err := setDefaults(v, model.DefaultConfig()); err != nil {
		t.Fatalf("setDefaults: %v", err)
	}
	v.SetEnvPrefix("PROMESSA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			t.Fatalf("ReadInConfig: %v", err)
		}
	}
	return v
}

func TestLoadConfig_FileThenEnvOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	partial := "server:\n  addr: 0.0.0.0:9000\nscout:\n  source_timeout: 3s\n"
	if err := os.WriteFile(path, []byte(partial), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PROMESSA_JOBS_RESULT_TTL", "30m")

	cfg, err := loadConfig(newTestViper(t, path))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	def := model.DefaultConfig()
	if cfg.Server.Addr != "0.0.0.0:9000" {
		t.Errorf("Expected file addr, got %s", cfg.Server.Addr)
	}
	if cfg.Scout.SourceTimeout != 3*time.Second {
		t.Errorf("Expected 3s source timeout, got %v", cfg.Scout.SourceTimeout)
	}
	if cfg.Jobs.ResultTTL != 30*time.Minute {
		t.Errorf("Expected env result TTL, got %v", cfg.Jobs.ResultTTL)
	}
	if cfg.Server.SyncWait != def.Server.SyncWait {
		t.Errorf("Expected default sync wait, got %v", cfg.Server.SyncWait)
	}
	if len(cfg.Scout.Sources) != len(def.Scout.Sources) {
		t.Errorf("Expected default sources kept, got %d", len(cfg.Scout.Sources))
	}
	if cfg.Scoring.VotePenalty != def.Scoring.VotePenalty {
		t.Errorf("Expected default vote penalty, got %v", cfg.Scoring.VotePenalty)
	}
}

func TestWriteDefaultConfig_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := writeDefaultConfig(path, false); err != nil {
		t.Fatalf("writeDefaultConfig: %v", err)
	}
	if err := writeDefaultConfig(path, false); err == nil {
		t.Error("Expected error when file exists")
	}
	if err := writeDefaultConfig(path, true); err != nil {
		t.Errorf("Expected --force to overwrite: %v", err)
	}

	cfg, err := loadConfig(newTestViper(t, path))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	def := model.DefaultConfig()
	if cfg.HTTP.Timeout != def.HTTP.Timeout || cfg.Budget.BaseURL != def.Budget.BaseURL {
		t.Errorf("Expected defaults after round trip, got %+v", cfg.HTTP)
	}
	if len(cfg.Authority.PrimaryDomains) != len(def.Authority.PrimaryDomains) {
		t.Errorf("Expected authority domains, got %v", cfg.Authority.PrimaryDomains)
	}
}

func TestNewLogger_Levels(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	l := newLogger(model.LogConfig{Level: "warn"}, false, &buf)
	if l.Enabled(ctx, slog.LevelInfo) {
		t.Error("Expected info disabled at warn")
	}
	if !newLogger(model.LogConfig{Level: "warn"}, true, &buf).Enabled(ctx, slog.LevelDebug) {
		t.Error("Expected verbose to force debug")
	}

	newLogger(model.LogConfig{Level: "info", Format: "json"}, false, &buf).Info("hello", "k", "v")
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("Expected JSON log line, got %s", buf.String())
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out.String(), "promessa "+Version) {
		t.Errorf("Unexpected version output: %q", out.String())
	}
}

func TestCheckProviders_ReportsEachEntry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cfg := model.DefaultConfig()
	cfg.Extraction.Providers = []model.LLMConfig{
		{Provider: "ollama", Model: "llama3.1:8b", BaseURL: server.URL},
		{Provider: "ollama"},
		{Provider: "nope"},
	}

	got := checkProviders(context.Background(), cfg)
	if len(got) != 3 {
		t.Fatalf("Expected 3 statuses, got %+v", got)
	}
	if !got[0].Available || got[0].Provider != "ollama" || got[0].Model != "llama3.1:8b" {
		t.Errorf("Expected reachable ollama, got %+v", got[0])
	}
	if got[1].Available || !strings.Contains(got[1].Error, "model must be specified") {
		t.Errorf("Expected missing model error, got %+v", got[1])
	}
	if got[2].Available || !strings.Contains(got[2].Error, "unknown LLM provider") {
		t.Errorf("Expected unknown provider error, got %+v", got[2])
	}

	server.Close()
	if st := checkProviders(context.Background(), cfg)[0]; st.Available || st.Error == "" {
		t.Errorf("Expected unreachable after shutdown, got %+v", st)
	}
}
