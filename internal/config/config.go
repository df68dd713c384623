// Package config loads and hot-reloads the engine's configuration: provider
// groups, the system tunables, the allow-list, and the static MCP
// descriptor table. The on-disk shape and reload mechanism follow the
// teacher's config/watcher split, generalized with the governor, context,
// and presenter defaults this engine additionally needs.
package config

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config is the user-editable application configuration (config.json):
// provider groups, the system prompt, and the allow-list.
type Config struct {
	Providers    jsoniter.RawMessage `json:"providers"`
	SystemPrompt string              `json:"system_prompt"`
	AllowList    AllowListConfig     `json:"allow_list"`
	MCPServices  []MCPServiceConfig  `json:"mcp_services"`
}

// AllowListConfig gates which channels/users the Event Router will respond
// to. In "dev" mode only AllowedUsers is enforced (any channel); in "prod"
// mode both AllowedChannels and AllowedUsers are enforced.
type AllowListConfig struct {
	Mode            string   `json:"mode"` // "dev" | "prod"
	AllowedChannels []string `json:"allowed_channels"`
	AllowedUsers    []string `json:"allowed_users"`
}

// MCPServiceConfig is the on-disk shape of one static MCP descriptor entry.
type MCPServiceConfig struct {
	Key           string   `json:"key"`
	ServerLabel   string   `json:"server_label"`
	ServerURL     string   `json:"server_url"`
	SystemPrompt  string   `json:"system_prompt"`
	RouteKeywords []string `json:"route_keywords"`
	TagName       string   `json:"tag_name"`
}

func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("config: providers must not be empty")
	}
	return nil
}

func (c *Config) DeepCopy() *Config {
	cp := *c
	cp.AllowList.AllowedChannels = append([]string(nil), c.AllowList.AllowedChannels...)
	cp.AllowList.AllowedUsers = append([]string(nil), c.AllowList.AllowedUsers...)
	cp.MCPServices = append([]MCPServiceConfig(nil), c.MCPServices...)
	return &cp
}

// SystemConfig holds tunables for every pipeline stage. Defaults mirror the
// teacher's SystemConfig plus the governor/context/presenter constants
// confirmed against concurrency_manager.py, context_manager.py and
// streaming_processor.py in the original implementation.
type SystemConfig struct {
	MaxRetries            int  `json:"max_retries"`
	RetryDelayMs          int  `json:"retry_delay_ms"`
	LLMTimeoutMs          int  `json:"llm_timeout_ms"`
	InternalChannelBuffer int  `json:"internal_channel_buffer"`
	ThinkingInitDelayMs   int  `json:"thinking_init_delay_ms"`
	ShowThinking          bool `json:"show_thinking"`
	EnableTools           bool `json:"enable_tools"`
	LogLevel              string `json:"log_level"`

	HistorySummarizeThreshold int `json:"history_summarize_threshold"`
	HistoryKeepRecentCount    int `json:"history_keep_recent_count"`

	// Rate Governor pool defaults, one set per pool name.
	GovernorPools map[string]GovernorPoolConfig `json:"governor_pools"`

	// Context Assembler.
	ContextMargin          int `json:"context_margin"`
	ContextResponseReserve int `json:"context_response_reserve"`
	ContextMaxReplies      int `json:"context_max_replies"`

	// Streaming Presenter circuit breaker.
	PresenterMaxStreamSeconds int `json:"presenter_max_stream_seconds"`
	PresenterMaxResponseChars int `json:"presenter_max_response_chars"`
	PresenterMaxUpdates       int `json:"presenter_max_updates"`
	PresenterMinCharsDelta    int `json:"presenter_min_chars_delta"`
	PresenterMinIntervalMs    int `json:"presenter_min_interval_ms"`

	// Document Ingestor.
	DocumentMaxBytes int64 `json:"document_max_bytes"`
	DocumentIndexTTLHours int `json:"document_index_ttl_hours"`

	// Media Adapters.
	AudioMaxBytes int64 `json:"audio_max_bytes"`

	// Dedupe cache bound (§9 Open Question resolution: bounded LRU).
	DedupeCacheSize int `json:"dedupe_cache_size"`

	// Process-wide handler back-pressure, independent of any Governor pool.
	MaxConcurrentHandlers int `json:"max_concurrent_handlers"`
}

// GovernorPoolConfig configures one Rate Governor pool.
type GovernorPoolConfig struct {
	MaxConcurrent     int     `json:"max_concurrent"`
	RequestsPerMinute int     `json:"requests_per_minute"`
	RequestsPerHour   int     `json:"requests_per_hour"`
	RetryAttempts     int     `json:"retry_attempts"`
	MinWaitSeconds    float64 `json:"min_wait_seconds"`
	MaxWaitSeconds    float64 `json:"max_wait_seconds"`
}

func (s *SystemConfig) DeepCopy() *SystemConfig {
	cp := *s
	cp.GovernorPools = make(map[string]GovernorPoolConfig, len(s.GovernorPools))
	for k, v := range s.GovernorPools {
		cp.GovernorPools[k] = v
	}
	return &cp
}

// DefaultSystemConfig returns the engine's baked-in defaults, grounded on
// concurrency_manager.py's "openai"/"zapier" API limits (llm/integration
// pools), context_manager.py's margin/reserve constants, and
// streaming_processor.py's circuit-breaker constants.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		MaxRetries:            3,
		RetryDelayMs:          500,
		LLMTimeoutMs:          600000,
		InternalChannelBuffer: 100,
		ThinkingInitDelayMs:   500,
		ShowThinking:          true,
		EnableTools:           true,
		LogLevel:              "info",

		HistorySummarizeThreshold: 10,
		HistoryKeepRecentCount:    5,

		GovernorPools: map[string]GovernorPoolConfig{
			"llm": {
				MaxConcurrent: 8, RequestsPerMinute: 500, RequestsPerHour: 10000,
				RetryAttempts: 5, MinWaitSeconds: 1.0, MaxWaitSeconds: 60.0,
			},
			"integration": {
				MaxConcurrent: 3, RequestsPerMinute: 60, RequestsPerHour: 75,
				RetryAttempts: 3, MinWaitSeconds: 2.0, MaxWaitSeconds: 30.0,
			},
		},

		ContextMargin:          1000,
		ContextResponseReserve: 4000,
		ContextMaxReplies:      100,

		PresenterMaxStreamSeconds: 120,
		PresenterMaxResponseChars: 8000,
		PresenterMaxUpdates:       200,
		PresenterMinCharsDelta:    10,
		PresenterMinIntervalMs:    500,

		DocumentMaxBytes:      25 * 1024 * 1024,
		DocumentIndexTTLHours: 24,

		AudioMaxBytes: 25 * 1024 * 1024,

		DedupeCacheSize: 4096,

		MaxConcurrentHandlers: 5,
	}
}

// Load reads config.json from path, validating required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadSystemConfig returns defaults merged with any overrides found at path.
// A missing or unparsable file silently falls back to defaults, matching the
// teacher's LoadSystemConfig behavior.
func LoadSystemConfig(path string) *SystemConfig {
	cfg := DefaultSystemConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return DefaultSystemConfig()
	}
	return cfg
}
