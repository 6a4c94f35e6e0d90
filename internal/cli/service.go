package cli

import (
	"fmt"

	"resumematch/internal/ai"
	"resumematch/internal/config"
	"resumematch/internal/errors"
)

// runtime holds what both serve and the in-process analyze path share
type runtime struct {
	service *ai.Service
	keys    *ai.RotatingKey
	vault   *config.VaultClient
}

// buildRuntime resolves the gateway key (Vault when enabled) and creates the AI service
func buildRuntime(cfg *config.Config, logger *errors.Logger) (*runtime, error) {
	vaultClient, err := config.ApplyVaultSecrets(cfg, logger)
	if err != nil {
		return nil, err
	}

	keys := ai.NewRotatingKey(cfg.AI.APIKey, 0)
	prompts := ai.NewPromptStore(cfg.Prompts, cfg.AI.UseSystemPrompts)

	service, err := ai.NewService(&cfg.AI, keys, prompts, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI service: %w", err)
	}

	return &runtime{service: service, keys: keys, vault: vaultClient}, nil
}
