package model

import "time"

// Config is the complete promessa configuration tree.
type Config struct {
	HTTP         HTTPConfig       `yaml:"http" mapstructure:"http"`
	RateLimiting RateLimitConfig  `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Cache        CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Storage      StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Budget       BudgetConfig     `yaml:"budget" mapstructure:"budget"`
	Voting       VotingConfig     `yaml:"voting" mapstructure:"voting"`
	Scout        ScoutConfig      `yaml:"scout" mapstructure:"scout"`
	Extraction   ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Scoring      ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Audit        AuditConfig      `yaml:"audit" mapstructure:"audit"`
	Jobs         JobsConfig       `yaml:"jobs" mapstructure:"jobs"`
	Server       ServerConfig     `yaml:"server" mapstructure:"server"`
	Authority    AuthorityConfig  `yaml:"authority" mapstructure:"authority"`
	Log          LogConfig        `yaml:"log" mapstructure:"log"`
}

type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxRetries   int           `yaml:"max_retries" mapstructure:"max_retries"`
	HTTPProxy    string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`

	// BreakerFailures consecutive failures open a host's circuit for
	// BreakerReset. Zero disables the breakers.
	BreakerFailures int           `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerReset    time.Duration `yaml:"breaker_reset" mapstructure:"breaker_reset"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
}

type StorageConfig struct {
	Path string `yaml:"path" mapstructure:"path"` // sqlite file, ":memory:" for ephemeral runs
}

type BudgetConfig struct {
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	CacheTTL  time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	Tolerance float64       `yaml:"tolerance" mapstructure:"tolerance"`
	// ReferenceYear is the budget year audited; 0 means the current year.
	ReferenceYear int `yaml:"reference_year" mapstructure:"reference_year"`
}

type VotingConfig struct {
	BaseURL    string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	HistoryTTL time.Duration `yaml:"history_ttl" mapstructure:"history_ttl"`
	MaxPages   int           `yaml:"max_pages" mapstructure:"max_pages"`
	PageSize   int           `yaml:"page_size" mapstructure:"page_size"`
}

type ScoutConfig struct {
	SourceTimeout     time.Duration  `yaml:"source_timeout" mapstructure:"source_timeout"`
	MaxItemsPerSource int            `yaml:"max_items_per_source" mapstructure:"max_items_per_source"`
	RespectRobots     bool           `yaml:"respect_robots" mapstructure:"respect_robots"`
	Sources           []SourceConfig `yaml:"sources" mapstructure:"sources"`
}

// SourceConfig describes one news/search source. URL contains a single %s
// that receives the query-escaped subject name.
type SourceConfig struct {
	Name string `yaml:"name" mapstructure:"name"`
	Kind string `yaml:"kind" mapstructure:"kind"` // rss | html
	URL  string `yaml:"url" mapstructure:"url"`
}

type ExtractionConfig struct {
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens         int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	HeuristicFallback bool          `yaml:"heuristic_fallback" mapstructure:"heuristic_fallback"`
	Providers         []LLMConfig   `yaml:"providers" mapstructure:"providers"`
}

// LLMConfig contains one reasoning provider entry of the extraction chain.
type LLMConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, groq, deepseek, openrouter
	Model    string `yaml:"model" mapstructure:"model"`
	APIKey   string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL  string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout  int    `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// ScoringConfig holds the weights blended into viabilityScore.
type ScoringConfig struct {
	ExecutionWeight float64 `yaml:"execution_weight" mapstructure:"execution_weight"`
	CostWeight      float64 `yaml:"cost_weight" mapstructure:"cost_weight"`
	VotePenalty     float64 `yaml:"vote_penalty" mapstructure:"vote_penalty"`
	NeutralScore    float64 `yaml:"neutral_score" mapstructure:"neutral_score"`
}

type AuditConfig struct {
	StepTimeout time.Duration `yaml:"step_timeout" mapstructure:"step_timeout"`
}

type JobsConfig struct {
	ResultTTL time.Duration `yaml:"result_ttl" mapstructure:"result_ttl"`
	FailedTTL time.Duration `yaml:"failed_ttl" mapstructure:"failed_ttl"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	SyncWait       time.Duration `yaml:"sync_wait" mapstructure:"sync_wait"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// AuthorityConfig is the domain tier table for scout results.
type AuthorityConfig struct {
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	DomainMap        map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // text | json
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Timeout:         15 * time.Second,
			UserAgent:       "Promessa/0.1 (+https://github.com/ppiankov/promessa)",
			MaxBodyBytes:    5 << 20,
			MaxRetries:      3,
			BreakerFailures: 5,
			BreakerReset:    30 * time.Second,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2.0,
			BurstSize:         5,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "", // resolved to ~/.promessa/cache
			MemoryTTL: time.Hour,
		},
		Budget: BudgetConfig{
			BaseURL:   "https://apidatalake.tesouro.gov.br/api/siconfi",
			Timeout:   10 * time.Second,
			CacheTTL:  6 * time.Hour,
			Tolerance: 4.0, // one four-year term of the audited line
		},
		Voting: VotingConfig{
			BaseURL:    "https://dadosabertos.camara.leg.br/api/v2",
			Timeout:    10 * time.Second,
			HistoryTTL: 24 * time.Hour,
			MaxPages:   5,
			PageSize:   100,
		},
		Scout: ScoutConfig{
			SourceTimeout:     10 * time.Second,
			MaxItemsPerSource: 25,
			RespectRobots:     true,
			Sources: []SourceConfig{
				{Name: "google-news", Kind: "rss", URL: "https://news.google.com/rss/search?q=%s&hl=pt-BR&gl=BR&ceid=BR:pt-419"},
				{Name: "bing-news", Kind: "rss", URL: "https://www.bing.com/news/search?q=%s&format=rss&setlang=pt-BR"},
				{Name: "agencia-camara", Kind: "html", URL: "https://www.camara.leg.br/busca-portal?contextoBusca=BuscaNoticias&q=%s"},
			},
		},
		Extraction: ExtractionConfig{
			Timeout:   30 * time.Second,
			MaxTokens: 1500,
		},
		Scoring: ScoringConfig{
			ExecutionWeight: 0.8,
			CostWeight:      0.2,
			VotePenalty:     30,
			NeutralScore:    50,
		},
		Audit: AuditConfig{
			StepTimeout: 10 * time.Second,
		},
		Jobs: JobsConfig{
			ResultTTL: 15 * time.Minute,
			FailedTTL: time.Minute,
			Timeout:   2 * time.Minute,
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8088",
			SyncWait:       5 * time.Second,
			AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		Authority: AuthorityConfig{
			PrimaryDomains: []string{
				"gov.br", "leg.br", "jus.br", "mp.br", "def.br",
			},
			SecondaryDomains: []string{
				"g1.globo.com", "folha.uol.com.br", "estadao.com.br", "oglobo.globo.com",
				"valor.globo.com", "agenciabrasil.ebc.com.br", "cnnbrasil.com.br",
				"bbc.com", "reuters.com", "uol.com.br", "poder360.com.br",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
