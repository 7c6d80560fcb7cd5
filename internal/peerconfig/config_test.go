package peerconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigPassesValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig() failed Validate: %v", err)
	}
}

func TestValidateRejectsNonPositiveTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestTimeoutMS = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate accepted request_timeout_ms = 0")
	}
}

func TestValidateRejectsSubUnityMultiplier(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backoff.Multiplier = 0.5
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate accepted backoff.multiplier = 0.5")
	}
}

func TestLoadOverridesDefaultsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peer.toml")
	body := `
request_timeout_ms = 2500

[backoff]
initial_delay_ms = 100
multiplier = 1.5
max_delay_ms = 1000
jitter = false
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RequestTimeout() != 2500*time.Millisecond {
		t.Fatalf("RequestTimeout() = %v, want 2500ms", cfg.RequestTimeout())
	}
	if cfg.Backoff.Jitter {
		t.Fatalf("Backoff.Jitter = true, want false (overridden by file)")
	}
	// Fields absent from the file retain DefaultConfig's values.
	if cfg.ConnectTimeoutMS != DefaultConfig().ConnectTimeoutMS {
		t.Fatalf("ConnectTimeoutMS = %d, want default %d", cfg.ConnectTimeoutMS, DefaultConfig().ConnectTimeoutMS)
	}
}

func TestLoadRejectsInvalidOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peer.toml")
	if err := os.WriteFile(path, []byte("request_timeout_ms = -1\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("Load accepted a negative request_timeout_ms")
	}
}
