package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// loadPromptsFromFiles resolves the system and user prompts from files and inline config
func (c *Config) loadPromptsFromFiles() (LoadedPrompts, error) {
	log.Println("[CONFIG] Starting custom prompt loading from files")

	prompts := c.AI.CustomPrompts
	var systemFile, userFile string

	if prompts.SystemPromptFile != "" {
		content, err := LoadPromptFile(prompts.SystemPromptFile, "system")
		if err != nil {
			return LoadedPrompts{}, err
		}
		systemFile = content
	}

	if prompts.UserPromptFile != "" {
		content, err := LoadPromptFile(prompts.UserPromptFile, "user")
		if err != nil {
			return LoadedPrompts{}, err
		}
		userFile = content
	}

	var loaded LoadedPrompts
	loaded.System, loaded.SystemSource = resolvePrompt(systemFile, prompts.SystemPrompt)
	loaded.User, loaded.UserSource = resolvePrompt(userFile, prompts.UserPrompt)

	log.Println("[CONFIG] === Custom Prompt Loading Summary ===")
	log.Printf("[CONFIG] System prompt source: %s", loaded.SystemSource)
	log.Printf("[CONFIG] User prompt source: %s", loaded.UserSource)
	log.Println("[CONFIG] ==========================================")

	return loaded, nil
}

// LoadPromptFile reads a prompt from disk, rejecting missing or empty files
func LoadPromptFile(filePath, promptType string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s prompt file '%s': %w", promptType, filePath, err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return "", fmt.Errorf("%s prompt file not found: %s", promptType, absPath)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s prompt file '%s': %w", promptType, absPath, err)
	}

	trimmedContent := strings.TrimSpace(string(content))
	if trimmedContent == "" {
		return "", fmt.Errorf("%s prompt file '%s' is empty", promptType, absPath)
	}

	log.Printf("[CONFIG] Successfully loaded %s prompt from file: %s (%d characters)",
		promptType, absPath, len(trimmedContent))

	return trimmedContent, nil
}

// validatePromptFiles checks that configured prompt files exist before loading
func (c *Config) validatePromptFiles() error {
	var validationErrors []string

	validateFile := func(filePath, promptType string) {
		if filePath == "" {
			return
		}

		absPath, err := filepath.Abs(filePath)
		if err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("invalid path for %s prompt: %s", promptType, filePath))
			return
		}

		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			validationErrors = append(validationErrors, fmt.Sprintf("%s prompt file not found: %s", promptType, absPath))
		}
	}

	validateFile(c.AI.CustomPrompts.SystemPromptFile, "system")
	validateFile(c.AI.CustomPrompts.UserPromptFile, "user")

	if len(validationErrors) > 0 {
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}

	return nil
}

// PromptFiles returns the configured prompt file paths that exist, keyed by prompt type
func (c *Config) PromptFiles() map[string]string {
	files := make(map[string]string)
	if c.AI.CustomPrompts.SystemPromptFile != "" {
		files["system"] = c.AI.CustomPrompts.SystemPromptFile
	}
	if c.AI.CustomPrompts.UserPromptFile != "" {
		files["user"] = c.AI.CustomPrompts.UserPromptFile
	}
	return files
}
