package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Lllllllleong/imigraflow/internal/config"
)

// NewConnector returns a Connector for the configured provider. The
// credential is looked up on every call so a key added after start-up is
// picked up without a restart, and a missing key never fails start-up.
func NewConnector(cfg config.LLMConfig, logger *zap.Logger) Connector {
	return func(ctx context.Context) (Provider, error) {
		credential := cfg.Credential()
		if credential == "" {
			return nil, ErrMissingCredential
		}
		switch cfg.Provider {
		case config.ProviderVertex:
			return NewVertexProvider(ctx, cfg, credential)
		case config.ProviderGemini:
			return NewGeminiProvider(ctx, cfg, credential)
		case config.ProviderOpenAI:
			return NewOpenAIProvider(cfg, credential), nil
		default:
			logger.Error("unknown llm provider", zap.String("provider", cfg.Provider))
			return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
		}
	}
}

// modelFor picks the model name for a request.
func modelFor(cfg config.LLMConfig, req Request) string {
	if req.Tier == TierVision || hasAttachments(req.Turns) {
		return cfg.VisionModel
	}
	return cfg.FastModel
}
