// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SourceEndpoint describes one entry in the source catalog: where the source
// lives and how long a single call to it may take.
type SourceEndpoint struct {
	ID      string        `json:"id" yaml:"id" mapstructure:"id"`
	Name    string        `json:"name" yaml:"name" mapstructure:"name"`
	URL     string        `json:"url" yaml:"url" mapstructure:"url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// Description is the one-line capability summary shown to the model
	// during AI-assisted source selection.
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
}

// RegistryConfig holds the static source catalog. The catalog is fixed at
// process start; unknown identifiers are filtered by callers, never rejected.
type RegistryConfig struct {
	Sources []SourceEndpoint `json:"sources" yaml:"sources" mapstructure:"sources"`
}

// DispatchConfig holds settings for the fan-out dispatcher.
type DispatchConfig struct {
	// MaxConcurrent caps the number of source calls in flight at once.
	// Larger target sets are issued in successive batches of this size.
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent" mapstructure:"max_concurrent"`

	// SourceTimeout is the per-source-call timeout. Endpoints may override
	// it with their own Timeout.
	SourceTimeout time.Duration `json:"source_timeout" yaml:"source_timeout" mapstructure:"source_timeout"`

	// UseGateway routes every source call through the policy gateway.
	UseGateway bool `json:"use_gateway" yaml:"use_gateway" mapstructure:"use_gateway"`
}

// GatewayConfig holds settings for the policy indirection layer.
type GatewayConfig struct {
	// RatePerMinute is the per-source request budget. Zero disables
	// rate limiting.
	RatePerMinute int `json:"rate_per_minute" yaml:"rate_per_minute" mapstructure:"rate_per_minute"`

	// Burst is the per-source burst allowance.
	Burst int `json:"burst" yaml:"burst" mapstructure:"burst"`

	// AuditLogSize bounds the in-memory audit trail (default 1000).
	AuditLogSize int `json:"audit_log_size" yaml:"audit_log_size" mapstructure:"audit_log_size"`
}

// SelectorConfig holds settings for AI-assisted source selection.
type SelectorConfig struct {
	// DefaultSources is the fallback set used when the model's answer is
	// missing, malformed, or names no known sources.
	DefaultSources []string `json:"default_sources" yaml:"default_sources" mapstructure:"default_sources"`

	// FailureSources is the broader fallback used when the selection call
	// itself fails, biased toward recoverable coverage.
	FailureSources []string `json:"failure_sources" yaml:"failure_sources" mapstructure:"failure_sources"`

	// MaxTokens is the output budget for the selection call (default 100).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SynthesisConfig holds settings for the language-model synthesis client.
type SynthesisConfig struct {
	// APIURL is the chat-completions endpoint.
	APIURL string `json:"api_url" yaml:"api_url" mapstructure:"api_url"`

	// APIKey is the bearer token for the API. Usually loaded from
	// .secrets/synthesis-api-key rather than the config file.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Model is the model identifier (e.g. "llama-3.3-70b").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// Timeout is the synthesis-call timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxTokens caps the synthesis output (default 2000).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// Temperature is the sampling temperature (default 0.7).
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`
}

// StreamConfig holds settings for the polling live feed.
type StreamConfig struct {
	// PollInterval is the delay between store re-reads (default 500ms).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval" mapstructure:"poll_interval"`

	// MaxPolls bounds the feed lifetime; on exceeding it while the record
	// is still non-terminal a timeout sentinel ends the feed (default 120).
	MaxPolls int `json:"max_polls" yaml:"max_polls" mapstructure:"max_polls"`
}

// StoreConfig holds settings for the research record store.
type StoreConfig struct {
	// Path is the SQLite database file (default "research-pilot.db").
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// ServerConfig holds settings for the HTTP API server.
type ServerConfig struct {
	// Addr is the listen address (default ":8000").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// LogLevel selects the zap level: debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
}

// Config groups all component configurations. It is built once at startup
// and injected into each component at construction.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server" mapstructure:"server"`
	Store     StoreConfig     `json:"store" yaml:"store" mapstructure:"store"`
	Registry  RegistryConfig  `json:"registry" yaml:"registry" mapstructure:"registry"`
	Dispatch  DispatchConfig  `json:"dispatch" yaml:"dispatch" mapstructure:"dispatch"`
	Gateway   GatewayConfig   `json:"gateway" yaml:"gateway" mapstructure:"gateway"`
	Selector  SelectorConfig  `json:"selector" yaml:"selector" mapstructure:"selector"`
	Synthesis SynthesisConfig `json:"synthesis" yaml:"synthesis" mapstructure:"synthesis"`
	Stream    StreamConfig    `json:"stream" yaml:"stream" mapstructure:"stream"`
}

// DefaultConfig returns the configuration used when no config file is
// present: the six stock sources on their compose-network addresses and the
// knob defaults the deployment was sized for.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:     ":8000",
			LogLevel: "info",
		},
		Store: StoreConfig{
			Path: "research-pilot.db",
		},
		Registry: RegistryConfig{
			Sources: []SourceEndpoint{
				{ID: "web-search", Name: "Web Search", URL: "http://mcp-web-search:9001", Timeout: 30 * time.Second,
					Description: "Current information, news, general knowledge (DuckDuckGo)"},
				{ID: "arxiv", Name: "ArXiv Papers", URL: "http://mcp-arxiv:9002", Timeout: 30 * time.Second,
					Description: "Academic papers, scientific research, peer-reviewed studies"},
				{ID: "database", Name: "Database Cache", URL: "http://mcp-database:9003", Timeout: 15 * time.Second,
					Description: "Cached previous research results"},
				{ID: "filesystem", Name: "Filesystem Documents", URL: "http://mcp-filesystem:9004", Timeout: 20 * time.Second,
					Description: "Local documents, uploaded PDFs, knowledge base"},
				{ID: "github", Name: "GitHub Code Search", URL: "http://mcp-github:9005", Timeout: 30 * time.Second,
					Description: "Code repositories, software projects, developer documentation"},
				{ID: "news", Name: "News API", URL: "http://mcp-news:9006", Timeout: 30 * time.Second,
					Description: "Breaking news, current events, recent developments"},
			},
		},
		Dispatch: DispatchConfig{
			MaxConcurrent: 6,
			SourceTimeout: 30 * time.Second,
		},
		Gateway: GatewayConfig{
			RatePerMinute: 60,
			Burst:         10,
			AuditLogSize:  1000,
		},
		Selector: SelectorConfig{
			DefaultSources: []string{"web-search", "arxiv"},
			FailureSources: []string{"web-search", "arxiv", "news"},
			MaxTokens:      100,
		},
		Synthesis: SynthesisConfig{
			APIURL:      "https://api.cerebras.ai/v1/chat/completions",
			Model:       "llama-3.3-70b",
			Timeout:     30 * time.Second,
			MaxTokens:   2000,
			Temperature: 0.7,
		},
		Stream: StreamConfig{
			PollInterval: 500 * time.Millisecond,
			MaxPolls:     120,
		},
	}
}
