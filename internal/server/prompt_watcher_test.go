package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"resumematch/internal/ai"
	"resumematch/internal/config"
	"resumematch/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePrompt(t *testing.T, path, content string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestPromptWatcherReloadChanged(t *testing.T) {
	dir := t.TempDir()
	systemFile := filepath.Join(dir, "system.txt")
	userFile := filepath.Join(dir, "user.txt")
	base := time.Now().Add(-time.Hour)
	writePrompt(t, systemFile, "system v1", base)
	writePrompt(t, userFile, "Rate {resume} for {companyName}", base)

	store := ai.NewPromptStore(config.LoadedPrompts{}, true)
	pw, err := NewPromptWatcher(map[string]string{"system": systemFile, "user": userFile}, store, 10*time.Millisecond, nil, testLogger)
	require.NoError(t, err)

	// nothing seen yet, so both load
	assert.Equal(t, []string{"system", "user"}, pw.ReloadChanged())
	assert.Equal(t, "system v1", store.System())
	assert.Equal(t, config.PromptSourceFile, store.Sources()["user"])

	assert.Empty(t, pw.ReloadChanged(), "unchanged files are skipped")

	writePrompt(t, systemFile, "system v2", base.Add(time.Minute))
	assert.Equal(t, []string{"system"}, pw.ReloadChanged())
	assert.Equal(t, "system v2", store.System())

	// empty file keeps the previous prompt
	writePrompt(t, systemFile, "   ", base.Add(2*time.Minute))
	assert.Empty(t, pw.ReloadChanged())
	assert.Equal(t, "system v2", store.System())
}

func TestPromptWatcherPicksUpWrites(t *testing.T) {
	dir := t.TempDir()
	userFile := filepath.Join(dir, "user.txt")
	writePrompt(t, userFile, "first {resume}", time.Now().Add(-time.Hour))

	store := ai.NewPromptStore(config.LoadedPrompts{User: "first {resume}", UserSource: config.PromptSourceFile}, true)
	pw, err := NewPromptWatcher(map[string]string{"user": userFile}, store, 20*time.Millisecond, nil, testLogger)
	require.NoError(t, err)

	require.NoError(t, pw.Start())
	t.Cleanup(func() { _ = pw.Stop() })
	assert.True(t, pw.IsRunning())
	assert.Equal(t, map[string]string{"user": userFile}, pw.WatchedFiles())

	require.NoError(t, os.WriteFile(userFile, []byte("second {resume}"), 0o600))

	req := types.AnalysisRequest{Resume: "R", JobDescription: "J", CompanyName: "C"}
	assert.Eventually(t, func() bool {
		return store.RenderUser(req) == "second R"
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, pw.Stop())
	assert.False(t, pw.IsRunning())
}

func TestNewPromptWatcherRequiresFiles(t *testing.T) {
	_, err := NewPromptWatcher(nil, ai.NewPromptStore(config.LoadedPrompts{}, true), 0, nil, testLogger)
	assert.Error(t, err)
}
