package transport

import (
	"errors"
	"testing"
	"time"
)

func TestNewEmbeddedTor(t *testing.T) {
	t.Parallel()

	t.Run("default startup timeout", func(t *testing.T) {
		t.Parallel()
		e := NewEmbeddedTor()
		if e.startupTimeout != 3*time.Minute {
			t.Errorf("expected 3m, got %v", e.startupTimeout)
		}
	})

	t.Run("custom startup timeout", func(t *testing.T) {
		t.Parallel()
		e := NewEmbeddedTor(WithStartupTimeout(30 * time.Second))
		if e.startupTimeout != 30*time.Second {
			t.Errorf("expected 30s, got %v", e.startupTimeout)
		}
	})
}

func TestEmbeddedTorNotRunning(t *testing.T) {
	t.Parallel()

	e := NewEmbeddedTor()
	if e.IsRunning() {
		t.Error("expected new instance to be stopped")
	}
	if e.SocksAddr() != "" {
		t.Errorf("expected empty SocksAddr, got %q", e.SocksAddr())
	}
	if err := e.Stop(); err != nil {
		t.Errorf("expected Stop on stopped instance to succeed, got %v", err)
	}
	if _, err := e.ProxyOption(); !errors.Is(err, ErrTorNotRunning) {
		t.Errorf("expected ErrTorNotRunning, got %v", err)
	}
}
