package factory

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/PipeOpsHQ/medical-coder-api/config"
	"github.com/PipeOpsHQ/medical-coder-api/llm"
	geminiprov "github.com/PipeOpsHQ/medical-coder-api/providers/gemini"
	ollamaprov "github.com/PipeOpsHQ/medical-coder-api/providers/ollama"
	openaiprov "github.com/PipeOpsHQ/medical-coder-api/providers/openai"
)

// FromConfig builds the provider named by cfg.Provider. An empty api_key
// falls back to the provider's conventional environment variable.
func FromConfig(ctx context.Context, cfg config.EngineConfig) (llm.Provider, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "openai":
		key := firstNonEmpty(cfg.APIKey, os.Getenv("OPENAI_API_KEY"))
		if key == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when engine.provider=openai")
		}
		opts := []openaiprov.Option{
			openaiprov.WithModel(firstNonEmpty(cfg.Model, os.Getenv("OPENAI_MODEL"))),
			openaiprov.WithBaseURL(firstNonEmpty(cfg.BaseURL, os.Getenv("OPENAI_BASE_URL"))),
		}
		if cfg.RequestTimeout > 0 {
			opts = append(opts, openaiprov.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}))
		}
		return openaiprov.New(key, opts...)

	case "gemini":
		key := firstNonEmpty(cfg.APIKey, os.Getenv("GEMINI_API_KEY"))
		if key == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required when engine.provider=gemini")
		}
		return geminiprov.New(ctx, key,
			geminiprov.WithModel(firstNonEmpty(cfg.Model, os.Getenv("GEMINI_MODEL"))),
			geminiprov.WithBaseURL(cfg.BaseURL),
		)

	case "ollama":
		opts := []ollamaprov.Option{
			ollamaprov.WithModel(firstNonEmpty(cfg.Model, os.Getenv("OLLAMA_MODEL"))),
			ollamaprov.WithBaseURL(firstNonEmpty(cfg.BaseURL, os.Getenv("OLLAMA_BASE_URL"))),
			ollamaprov.WithAPIKey(firstNonEmpty(cfg.APIKey, os.Getenv("OLLAMA_API_KEY"))),
		}
		if cfg.RequestTimeout > 0 {
			opts = append(opts, ollamaprov.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}))
		}
		return ollamaprov.New(opts...)
	}

	return nil, fmt.Errorf("unsupported engine.provider %q (use openai, gemini, or ollama)", provider)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
