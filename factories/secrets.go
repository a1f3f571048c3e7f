package factories

import (
	"fmt"
	"os"

	"github.com/bytedance/sonic"
)

// SecretsConfig holds credentials kept out of settings.json so the
// settings file can be shared or checked in.
type SecretsConfig struct {
	OpenAIAPIKey string `json:"openai_api_key"`
}

// ApplySecretsFile merges secrets from an optional JSON file. A missing
// file is fine; the environment can carry the same values.
func (c *SettingsConfig) ApplySecretsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("secrets: read %q: %w", path, err)
	}
	var secrets SecretsConfig
	if err := sonic.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("secrets: %w", err)
	}
	if secrets.OpenAIAPIKey != "" {
		c.LLM.OpenAI.APIKey = secrets.OpenAIAPIKey
	}
	return nil
}
