package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"resumematch/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *errors.Logger {
	logger, _ := errors.New("debug")
	return logger
}

func TestParseVersionValue(t *testing.T) {
	tests := []struct {
		name        string
		input       any
		expected    int64
		expectError bool
	}{
		{name: "int64 value", input: int64(42), expected: 42},
		{name: "float64 value", input: float64(7), expected: 7},
		{name: "json.Number value", input: json.Number("12"), expected: 12},
		{name: "string value", input: "42", expected: 42},
		{name: "invalid string value", input: "not-a-number", expectError: true},
		{name: "unsupported type", input: []string{"42"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseVersionValue(tt.input, "secret/data/gateway")

			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseKVv2Secret(t *testing.T) {
	t.Run("valid secret", func(t *testing.T) {
		raw := map[string]any{
			"data":     map[string]any{GatewayKeyField: "sk-gateway-123456"},
			"metadata": map[string]any{"version": json.Number("3")},
		}

		secret, err := parseKVv2Secret(raw, "secret/data/gateway")
		require.NoError(t, err)
		assert.Equal(t, int64(3), secret.Version)

		key, err := secret.StringField(GatewayKeyField, "secret/data/gateway")
		require.NoError(t, err)
		assert.Equal(t, "sk-gateway-123456", key)
	})

	t.Run("missing data", func(t *testing.T) {
		_, err := parseKVv2Secret(map[string]any{"metadata": map[string]any{"version": 1.0}}, "p")
		assert.ErrorContains(t, err, "missing 'data' field")
	})

	t.Run("missing metadata", func(t *testing.T) {
		_, err := parseKVv2Secret(map[string]any{"data": map[string]any{}}, "p")
		assert.ErrorContains(t, err, "missing 'metadata' field")
	})

	t.Run("missing version", func(t *testing.T) {
		_, err := parseKVv2Secret(map[string]any{"data": map[string]any{}, "metadata": map[string]any{}}, "p")
		assert.ErrorContains(t, err, "missing 'version' field")
	})
}

func TestVaultSecretStringField(t *testing.T) {
	secret := &VaultSecret{Data: map[string]any{"api_key": "abc", "count": 3}}

	_, err := secret.StringField("missing", "p")
	assert.ErrorContains(t, err, "not found")

	_, err = secret.StringField("count", "p")
	assert.ErrorContains(t, err, "is not a string")

	value, err := secret.StringField("api_key", "p")
	require.NoError(t, err)
	assert.Equal(t, "abc", value)
}

func TestResolveVaultToken(t *testing.T) {
	t.Run("token from config", func(t *testing.T) {
		token, err := resolveVaultToken(VaultConfig{Token: "direct-token"})
		require.NoError(t, err)
		assert.Equal(t, "direct-token", token)
	})

	t.Run("token from file", func(t *testing.T) {
		tokenFile := filepath.Join(t.TempDir(), "vault-token")
		require.NoError(t, os.WriteFile(tokenFile, []byte("  file-token  \n"), 0600))

		token, err := resolveVaultToken(VaultConfig{TokenFile: tokenFile})
		require.NoError(t, err)
		assert.Equal(t, "file-token", token)
	})

	t.Run("missing token file", func(t *testing.T) {
		_, err := resolveVaultToken(VaultConfig{TokenFile: "/nonexistent/token/file"})
		assert.ErrorContains(t, err, "failed to read vault token file")
	})

	t.Run("no token provided", func(t *testing.T) {
		_, err := resolveVaultToken(VaultConfig{})
		assert.ErrorContains(t, err, "vault token is required")
	})
}

func TestApplyVaultSecretsDisabled(t *testing.T) {
	config := &Config{AI: AIConfig{APIKey: "from-env"}}

	client, err := ApplyVaultSecrets(config, newTestLogger())
	require.NoError(t, err)
	assert.Nil(t, client)
	assert.Equal(t, "from-env", config.AI.APIKey)
}

func TestGetSecretV2NilClient(t *testing.T) {
	var client *VaultClient
	_, err := client.GetSecretV2("secret/data/gateway")
	assert.ErrorContains(t, err, "not initialized")
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "sk-l****7890", MaskSecret("sk-live-1234567890"))
	assert.Equal(t, "****", MaskSecret("short"))
	assert.Equal(t, "", MaskSecret(""))
}
