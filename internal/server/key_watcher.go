package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"resumematch/internal/ai"
	"resumematch/internal/config"
	"resumematch/internal/errors"
	"resumematch/internal/observability"
)

// SecretReader is the subset of the Vault client the key watcher needs
type SecretReader interface {
	GetSecretV2(path string) (*config.VaultSecret, error)
}

// KeyWatcher polls a Vault KVv2 secret and swaps the gateway key when a newer
// version appears. In-flight requests keep the key they started with.
type KeyWatcher struct {
	mu sync.RWMutex

	client       SecretReader
	secretPath   string
	pollInterval time.Duration
	keys         *ai.RotatingKey
	om           *observability.ObservabilityManager
	logger       *errors.Logger

	stopChan    chan struct{}
	doneChan    chan struct{}
	running     bool
	lastVersion int64
	lastCheck   time.Time
	lastError   string
	rotations   int
}

// NewKeyWatcher creates a KeyWatcher. It does not poll until Start.
func NewKeyWatcher(client SecretReader, secretPath string, pollInterval time.Duration, keys *ai.RotatingKey, om *observability.ObservabilityManager, logger *errors.Logger) *KeyWatcher {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Minute
	}
	return &KeyWatcher{
		client:       client,
		secretPath:   secretPath,
		pollInterval: pollInterval,
		keys:         keys,
		om:           om,
		logger:       logger,
		lastVersion:  keys.Version(),
	}
}

// Start begins polling Vault for new key versions
func (kw *KeyWatcher) Start() error {
	kw.mu.Lock()
	defer kw.mu.Unlock()
	if kw.running {
		return fmt.Errorf("key watcher is already running")
	}
	kw.running = true
	kw.stopChan = make(chan struct{})
	kw.doneChan = make(chan struct{})
	go kw.pollLoop(kw.stopChan, kw.doneChan)

	kw.logger.Info("Gateway key watcher started",
		"secret_path", kw.secretPath,
		"poll_interval", kw.pollInterval)
	return nil
}

// Stop stops polling and waits for the loop to exit
func (kw *KeyWatcher) Stop() error {
	kw.mu.Lock()
	if !kw.running {
		kw.mu.Unlock()
		return nil
	}
	close(kw.stopChan)
	kw.running = false
	done := kw.doneChan
	kw.mu.Unlock()

	<-done
	kw.logger.Info("Gateway key watcher stopped")
	return nil
}

func (kw *KeyWatcher) pollLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(kw.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := kw.CheckNow(); err != nil {
				kw.logger.LogError(err, "Failed to check Vault for a rotated gateway key",
					"secret_path", kw.secretPath)
			}
		case <-stop:
			return
		}
	}
}

// CheckNow reads the secret once and rotates the key if its version advanced.
// It reports whether the active key changed.
func (kw *KeyWatcher) CheckNow() (bool, error) {
	secret, err := kw.client.GetSecretV2(kw.secretPath)

	kw.mu.Lock()
	defer kw.mu.Unlock()
	kw.lastCheck = time.Now()

	if err != nil {
		kw.lastError = err.Error()
		kw.om.RecordKeyRotation(context.Background(), false)
		return false, fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == nil || secret.Version <= kw.lastVersion {
		kw.lastError = ""
		return false, nil
	}

	key, err := secret.StringField(config.GatewayKeyField, kw.secretPath)
	if err != nil || key == "" {
		if err == nil {
			err = fmt.Errorf("empty gateway key in secret %s version %d", kw.secretPath, secret.Version)
		}
		kw.lastError = err.Error()
		kw.om.RecordKeyRotation(context.Background(), false)
		return false, err
	}

	previous := kw.keys.APIKey()
	kw.lastVersion = secret.Version
	kw.lastError = ""
	if !kw.keys.Rotate(key, secret.Version) || key == previous {
		kw.logger.Debug("Gateway key version advanced without a new key", "version", secret.Version)
		return false, nil
	}

	kw.rotations++
	kw.om.RecordKeyRotation(context.Background(), true)
	kw.logger.Info("Gateway key rotated",
		"version", secret.Version,
		"masked_key", config.MaskSecret(key))
	return true, nil
}

// IsRunning reports whether the poll loop is active
func (kw *KeyWatcher) IsRunning() bool {
	kw.mu.RLock()
	defer kw.mu.RUnlock()
	return kw.running
}

// Status returns the current status of the watcher for health reporting
func (kw *KeyWatcher) Status() map[string]any {
	kw.mu.RLock()
	defer kw.mu.RUnlock()

	status := map[string]any{
		"running":       kw.running,
		"poll_interval": kw.pollInterval.String(),
		"secret_path":   kw.secretPath,
		"key_version":   kw.lastVersion,
		"rotations":     kw.rotations,
	}
	if !kw.lastCheck.IsZero() {
		status["last_check"] = kw.lastCheck.UTC().Format(time.RFC3339)
	}
	if kw.lastError != "" {
		status["last_error"] = kw.lastError
	}
	return status
}
