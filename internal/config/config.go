package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server ServerConfig `koanf:"server"`
	Models ModelsConfig `koanf:"models"`
	Agent  AgentConfig  `koanf:"agent"`
	Tools  ToolsConfig  `koanf:"tools"`
	Store  StoreConfig  `koanf:"store"`
}

type ServerConfig struct {
	Port            int    `koanf:"port"`
	LogLevel        string `koanf:"log_level"`
	ReadTimeout     string `koanf:"read_timeout"`
	WriteTimeout    string `koanf:"write_timeout"`
	IdleTimeout     string `koanf:"idle_timeout"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

type ModelsConfig struct {
	Default  string          `koanf:"default"`
	Registry []ModelRegistry `koanf:"registry"`
}

type ModelRegistry struct {
	Name           string `koanf:"name"`
	Provider       string `koanf:"provider"`
	BaseURL        string `koanf:"base_url"`
	APIKey         string `koanf:"api_key"`
	RequestTimeout string `koanf:"request_timeout"`
}

type AgentConfig struct {
	SystemPrompt     string `koanf:"system_prompt"`
	MaxToolIters     int    `koanf:"max_tool_iterations"`
	RetryMaxAttempts int    `koanf:"retry_max_attempts"`
	RetryBackoff     string `koanf:"retry_backoff"`
	Stream           bool   `koanf:"stream"`
}

type ToolsConfig struct {
	InvokeTimeout string        `koanf:"invoke_timeout"`
	Web           WebToolConfig `koanf:"web"`
}

type WebToolConfig struct {
	BaseURL    string `koanf:"base_url"`
	Timeout    string `koanf:"timeout"`
	MaxResults int    `koanf:"max_results"`
}

type StoreConfig struct {
	Path         string `koanf:"path"`
	LockTimeout  string `koanf:"lock_timeout"`
	LockRetry    string `koanf:"lock_retry"`
	LockMaxRetry int    `koanf:"lock_max_retry"`
}

// PathOrDefault resolves the session store location, falling back to
// $HOME/.tyson/sessions when unset.
func (s StoreConfig) PathOrDefault() string {
	if s.Path != "" {
		return s.Path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".tyson", "sessions")
}

const (
	DefaultServerPort            = 8080
	DefaultServerLogLevel        = "info"
	DefaultServerReadTimeout     = "10s"
	DefaultServerWriteTimeout    = "120s"
	DefaultServerIdleTimeout     = "60s"
	DefaultServerShutdownTimeout = "5s"

	DefaultModel               = "sonar-pro"
	DefaultPerplexityBaseURL   = "https://api.perplexity.ai"
	DefaultOpenAIBaseURL       = "https://api.openai.com/v1"
	DefaultModelRequestTimeout = "120s"

	DefaultAgentSystemPrompt     = "You are Tyson, a helpful assistant with access to local tools. Use them when they help answer the question."
	DefaultAgentMaxToolIters     = 10
	DefaultAgentRetryMaxAttempts = 3
	DefaultAgentRetryBackoff     = "500ms"

	DefaultToolInvokeTimeout = "10s"
	DefaultWebToolBaseURL    = "https://www.bing.com/search"
	DefaultWebToolTimeout    = "10s"
	DefaultWebToolMaxResults = 5

	DefaultStoreLockTimeout  = "30s"
	DefaultStoreLockRetry    = "100ms"
	DefaultStoreLockMaxRetry = 300
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":             DefaultServerPort,
		"server.log_level":        DefaultServerLogLevel,
		"server.read_timeout":     DefaultServerReadTimeout,
		"server.write_timeout":    DefaultServerWriteTimeout,
		"server.idle_timeout":     DefaultServerIdleTimeout,
		"server.shutdown_timeout": DefaultServerShutdownTimeout,
		"models.default":          DefaultModel,
		"models.registry": []ModelRegistry{
			{Name: DefaultModel, Provider: "perplexity", BaseURL: DefaultPerplexityBaseURL},
		},
		"agent.system_prompt":       DefaultAgentSystemPrompt,
		"agent.max_tool_iterations": DefaultAgentMaxToolIters,
		"agent.retry_max_attempts":  DefaultAgentRetryMaxAttempts,
		"agent.retry_backoff":       DefaultAgentRetryBackoff,
		"agent.stream":              false,
		"tools.invoke_timeout":      DefaultToolInvokeTimeout,
		"tools.web.base_url":        DefaultWebToolBaseURL,
		"tools.web.timeout":         DefaultWebToolTimeout,
		"tools.web.max_results":     DefaultWebToolMaxResults,
		"store.path":                filepath.Join(os.Getenv("HOME"), ".tyson", "sessions"),
		"store.lock_timeout":        DefaultStoreLockTimeout,
		"store.lock_retry":          DefaultStoreLockRetry,
		"store.lock_max_retry":      DefaultStoreLockMaxRetry,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".tyson", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	k.Load(env.Provider("TYSON_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "TYSON_")), "_", ".", -1)
	}), nil)

	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for i, m := range cfg.Models.Registry {
		if m.Provider == "" {
			cfg.Models.Registry[i].Provider = "perplexity"
		}
	}

	// Inject standard env credentials into matching registry entries.
	injectAPIKey(&cfg, "perplexity", os.Getenv("PERPLEXITY_API_KEY"))
	injectAPIKey(&cfg, "openai", os.Getenv("OPENAI_API_KEY"))
	injectAPIKey(&cfg, "anthropic", os.Getenv("ANTHROPIC_API_KEY"))
	injectAPIKey(&cfg, "gemini", os.Getenv("GEMINI_API_KEY"))

	return &cfg, nil
}

func injectAPIKey(cfg *Config, provider, key string) {
	if key == "" {
		return
	}
	for i, m := range cfg.Models.Registry {
		if m.Provider == provider && m.APIKey == "" {
			cfg.Models.Registry[i].APIKey = key
		}
	}
}
