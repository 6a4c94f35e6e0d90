package server

import (
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"resumematch/internal/ai"
	"resumematch/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSecretReader serves a mutable secret
type mockSecretReader struct {
	mu     sync.Mutex
	secret *config.VaultSecret
	err    error
	reads  int
}

func (m *mockSecretReader) GetSecretV2(string) (*config.VaultSecret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	return m.secret, m.err
}

func (m *mockSecretReader) set(key string, version int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret = &config.VaultSecret{Data: map[string]any{config.GatewayKeyField: key}, Version: version}
	m.err = nil
}

func TestKeyWatcherRotatesOnNewVersion(t *testing.T) {
	keys := ai.NewRotatingKey("old-key", 1)
	reader := &mockSecretReader{}
	reader.set("old-key", 1)
	kw := NewKeyWatcher(reader, "secret/data/gw", time.Minute, keys, nil, testLogger)

	changed, err := kw.CheckNow()
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "old-key", keys.APIKey())

	reader.set("new-key", 2)
	changed, err = kw.CheckNow()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "new-key", keys.APIKey())
	assert.Equal(t, int64(2), keys.Version())

	status := kw.Status()
	assert.Equal(t, int64(2), status["key_version"])
	assert.Equal(t, 1, status["rotations"])
	assert.NotContains(t, status, "last_error")
}

func TestKeyWatcherKeepsKeyOnFailure(t *testing.T) {
	keys := ai.NewRotatingKey("current", 3)
	reader := &mockSecretReader{err: stderrors.New("vault sealed")}
	kw := NewKeyWatcher(reader, "secret/data/gw", time.Minute, keys, nil, testLogger)

	_, err := kw.CheckNow()
	assert.Error(t, err)
	assert.Equal(t, "current", keys.APIKey())
	assert.Contains(t, kw.Status()["last_error"], "vault sealed")

	reader.set("", 4)
	_, err = kw.CheckNow()
	assert.Error(t, err)
	assert.Equal(t, "current", keys.APIKey())

	reader.mu.Lock()
	reader.secret = &config.VaultSecret{Data: map[string]any{}, Version: 5}
	reader.mu.Unlock()
	_, err = kw.CheckNow()
	assert.Error(t, err)
	assert.Equal(t, "current", keys.APIKey())
}

func TestKeyWatcherPollsUntilStopped(t *testing.T) {
	keys := ai.NewRotatingKey("old-key", 1)
	reader := &mockSecretReader{}
	reader.set("polled-key", 2)
	kw := NewKeyWatcher(reader, "secret/data/gw", 10*time.Millisecond, keys, nil, testLogger)

	require.NoError(t, kw.Start())
	assert.Error(t, kw.Start(), "second start fails")
	assert.True(t, kw.IsRunning())

	assert.Eventually(t, func() bool { return keys.APIKey() == "polled-key" }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, kw.Stop())
	assert.False(t, kw.IsRunning())
	assert.NoError(t, kw.Stop())
}
