package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSecureHandler_RedactsByKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		key      string
		value    string
		wantMask bool
	}{
		{"cookie key is redacted", "cookie", "foo=bar", true},
		{"Cookie key is redacted regardless of case", "Cookie", "foo=bar", true},
		{"set-cookie key is redacted", "set-cookie", "foo=bar; Path=/", true},
		{"authorization key is redacted", "authorization", "secretvalue", true},
		{"key containing clearance is redacted", "challenge_clearance", "value", true},
		{"key containing token is redacted", "csrf_token", "value", true},
		{"url key is kept", "url", "https://ebanoe.it/page/2/", false},
		{"attempt key is kept", "attempt", "3", false},
		{"checksum key is kept", "checksum", "4f1a0c9b2e7d8a6f5c3b1e0d9a8f7c6b5e4d3c2b1a0f9e8d7c6b5a4f3e2d1c0b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewSecureLogger(&buf, true)
			logger.Info("test message", tt.key, tt.value)

			output := buf.String()
			if tt.wantMask {
				if strings.Contains(output, tt.value) {
					t.Errorf("expected value %q to be masked, got: %s", tt.value, output)
				}
				if !strings.Contains(output, MaskValue) {
					t.Errorf("expected mask in output, got: %s", output)
				}
				return
			}
			if !strings.Contains(output, tt.value) {
				t.Errorf("expected value %q in output, got: %s", tt.value, output)
			}
		})
	}
}

func TestSecureHandler_RedactsByValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    string
		wantMask bool
	}{
		{"cloudflare clearance cookie", "cf_clearance=abcdef123456; path=/", true},
		{"cloudflare bot management cookie", "__cf_bm=xyz", true},
		{"ddos-guard cookie", "__ddg1_=qwerty", true},
		{"wordpress login cookie", "wordpress_logged_in_0a1b=admin%7C123", true},
		{"bearer token", "Bearer abc.def.ghi", true},
		{"plain url", "https://ebanoe.it/2020/01/01/post/", false},
		{"status text", "ok", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewSecureLogger(&buf, true)
			logger.Info("test message", "data", tt.value)

			output := buf.String()
			masked := strings.Contains(output, MaskValue)
			if masked != tt.wantMask {
				t.Errorf("expected masked=%v, got output: %s", tt.wantMask, output)
			}
		})
	}
}

func TestSecureHandler_Groups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureJSONLogger(&buf, true)
	logger.Info("request",
		slog.Group("http",
			slog.String("url", "https://ebanoe.it/"),
			slog.String("cookie", "cf_clearance=secret"),
		),
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log line: %v", err)
	}
	group, ok := entry["http"].(map[string]any)
	if !ok {
		t.Fatalf("expected http group, got %v", entry)
	}
	if group["cookie"] != MaskValue {
		t.Errorf("expected cookie to be masked, got %v", group["cookie"])
	}
	if group["url"] != "https://ebanoe.it/" {
		t.Errorf("expected url to be kept, got %v", group["url"])
	}
}

func TestSecureHandler_WithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, true).With("cookie", "cf_clearance=secret")
	logger.Info("hello")

	if strings.Contains(buf.String(), "secret") {
		t.Errorf("expected With attrs to be masked, got: %s", buf.String())
	}
}

func TestNewLogger_Levels(t *testing.T) {
	t.Parallel()

	t.Run("non-verbose drops debug", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := NewLogger(&buf, FormatText, false)
		logger.Debug("hidden")
		logger.Info("shown")
		if strings.Contains(buf.String(), "hidden") {
			t.Error("expected debug message to be dropped")
		}
		if !strings.Contains(buf.String(), "shown") {
			t.Error("expected info message to be written")
		}
	})

	t.Run("verbose keeps debug", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := NewLogger(&buf, FormatJSON, true)
		logger.Debug("visible")
		if !strings.Contains(buf.String(), `"msg":"visible"`) {
			t.Errorf("expected JSON debug line, got: %s", buf.String())
		}
	})
}

func TestNewSecureHandler_NilFallsBackToDefault(t *testing.T) {
	t.Parallel()

	h := NewSecureHandler(nil)
	if h.handler == nil {
		t.Fatal("expected fallback handler")
	}
}
