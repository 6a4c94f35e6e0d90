package config

// Prompt sources reported in logs and on /health
const (
	PromptSourceFile    = "file"
	PromptSourceConfig  = "config"
	PromptSourceDefault = "default"
)

// LoadedPrompts holds the prompt content resolved from config and files.
// Empty content means the built-in default applies.
type LoadedPrompts struct {
	System       string
	SystemSource string
	User         string
	UserSource   string
}

// resolvePrompt picks file content over inline config
func resolvePrompt(fileContent, configValue string) (string, string) {
	if fileContent != "" {
		return fileContent, PromptSourceFile
	}
	if configValue != "" {
		return configValue, PromptSourceConfig
	}
	return "", PromptSourceDefault
}
