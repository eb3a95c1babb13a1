package llm

import (
	"context"
	"log"
)

// Service wraps the provider for dependency injection.
type Service struct {
	provider Provider
}

// NewService creates the service with the provider selected by environment.
func NewService() *Service {
	cfg, err := LoadProviderFromEnv()
	if err != nil {
		log.Fatalf("❌ Failed to load LLM config: %v", err)
	}

	provider, err := NewProvider(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to create LLM provider: %v", err)
	}

	log.Printf("🤖 Using LLM provider: %s (model: %s)", provider.GetProviderName(), cfg.Model)

	return &Service{provider: provider}
}

// NewServiceWithProvider injects a custom provider (used by tests).
func NewServiceWithProvider(provider Provider) *Service {
	return &Service{provider: provider}
}

func (s *Service) GenerateReply(ctx context.Context, systemPrompt string, history []Turn) (string, error) {
	return s.provider.GenerateReply(ctx, systemPrompt, history)
}

func (s *Service) GetProviderName() string {
	return s.provider.GetProviderName()
}
