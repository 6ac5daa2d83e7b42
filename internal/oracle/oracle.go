// Package oracle is the boundary to the external extraction model. The
// pipeline treats it as an opaque capability: a request goes in, raw text
// comes out, with no guarantee the text conforms to any schema.
package oracle

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// Request carries the system role text and the formatted user prompt for
// one extraction call.
type Request struct {
	System string
	User   string
}

// CallFunc is the signature for a single oracle inference call.
type CallFunc func(ctx context.Context, req Request) (string, error)

// Config selects and configures a provider-backed caller.
type Config struct {
	Provider    string // "groq", "openai", "anthropic", or "ollama"
	Model       string // e.g. "openai/gpt-oss-20b", "gpt-4o-mini"
	APIKey      string // explicit API key (highest priority)
	BaseURL     string // override base URL
	Temperature float64
	Timeout     time.Duration // per-call timeout; 0 means DefaultTimeout
}

// DefaultTimeout bounds a single oracle call when Config.Timeout is unset.
const DefaultTimeout = 30 * time.Second

const (
	providerGroq      = "groq"
	providerOpenAI    = "openai"
	providerAnthropic = "anthropic"
	providerOllama    = "ollama"
)

// NewCaller creates a CallFunc for the configured provider. API keys resolve
// from the explicit config value first, then the provider's environment
// variable. Groq is the default provider.
func NewCaller(cfg Config) (CallFunc, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = providerGroq
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = apiKeyFromEnv(provider)
	}
	if apiKey == "" && provider != providerOllama {
		return nil, fmt.Errorf("no API key for provider %s (set %s)", provider, envVarFor(provider))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	switch provider {
	case providerGroq:
		model := cfg.Model
		if model == "" {
			model = "openai/gpt-oss-20b"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.groq.com/openai"
		}
		return newChatCompletionsCaller(apiKey, model, baseURL, cfg.Temperature, timeout), nil

	case providerOpenAI:
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com"
		}
		return newChatCompletionsCaller(apiKey, model, baseURL, cfg.Temperature, timeout), nil

	case providerAnthropic:
		model := cfg.Model
		if model == "" {
			model = "claude-haiku-4-5-20251001"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.anthropic.com"
		}
		return newAnthropicCaller(apiKey, model, baseURL, cfg.Temperature, timeout), nil

	case providerOllama:
		model := cfg.Model
		if model == "" {
			model = "llama3.2"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			if host := os.Getenv("OLLAMA_HOST"); host != "" {
				baseURL = host
			} else {
				baseURL = "http://localhost:11434"
			}
		}
		return newOllamaCaller(model, baseURL, cfg.Temperature, timeout), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func apiKeyFromEnv(provider string) string {
	return os.Getenv(envVarFor(provider))
}

func envVarFor(provider string) string {
	switch provider {
	case providerAnthropic:
		return "ANTHROPIC_API_KEY"
	case providerOpenAI:
		return "OPENAI_API_KEY"
	default:
		return "GROQ_API_KEY"
	}
}
