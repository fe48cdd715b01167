package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunSchedule(t *testing.T) {
	t.Parallel()

	t.Run("immediate run then stop", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var runs atomic.Int32
		job := func(context.Context) {
			runs.Add(1)
			cancel()
		}

		done := make(chan error, 1)
		go func() {
			done <- runSchedule(ctx, "@every 1h", true, job, slog.New(slog.NewTextHandler(io.Discard, nil)))
		}()

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("runSchedule did not return after cancellation")
		}
		if got := runs.Load(); got != 1 {
			t.Errorf("expected 1 run, got %d", got)
		}
	})

	t.Run("invalid schedule", func(t *testing.T) {
		t.Parallel()

		err := runSchedule(context.Background(), "every now and then", false, func(context.Context) {},
			slog.New(slog.NewTextHandler(io.Discard, nil)))
		if err == nil {
			t.Error("expected error for invalid schedule")
		}
	})
}

func TestWatchCommandRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	srv := newBlog(t)
	cfgPath := writeTestConfig(t, srv, "")
	_, err := execute(t, "watch", "--config", cfgPath, "--env-file", "", "--db-dir", t.TempDir(), "--schedule", "61 * * * *")
	if err == nil || !strings.Contains(err.Error(), "invalid schedule") {
		t.Errorf("expected invalid schedule error, got %v", err)
	}
}

func TestCronLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := cronLogger{logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))}

	l.Info("wake", "now", "x")
	l.Error(errors.New("boom"), "panic", "job", 1)

	output := buf.String()
	if strings.Contains(output, "wake") {
		t.Error("cron info messages are logged at debug level")
	}
	if !strings.Contains(output, "msg=panic") || !strings.Contains(output, "error=boom") {
		t.Errorf("unexpected output %q", output)
	}
}
