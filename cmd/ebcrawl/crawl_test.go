package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/ebcrawl/internal/config"
	"github.com/nao1215/ebcrawl/internal/model"
)

// newBlog serves two listing pages (0 and 2) with three posts in total.
func newBlog(t *testing.T) *httptest.Server {
	t.Helper()

	published := map[string]time.Time{
		"/a/": time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC),
		"/b/": time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC),
		"/c/": time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	listing := func(posts ...string) string {
		var b strings.Builder
		b.WriteString("<html><body>")
		for _, p := range posts {
			fmt.Fprintf(&b, `<h3 class="entry-title"><a href="%s">x</a></h3>`, p)
		}
		b.WriteString(`<div class="pages"><a class="page" href="/page/2/">2</a></div></body></html>`)
		return b.String()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/page/0/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, listing("/a/", "/b/")) //nolint:errcheck
	})
	mux.HandleFunc("/page/2/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, listing("/c/")) //nolint:errcheck
	})
	for path, ts := range published {
		slug := strings.Trim(path, "/")
		mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprintf(w, `<html><body>
<div class="section-post-header"><img class="wp-post-image" src="/img/%[1]s.jpg"></div>
<h1 class="entry-title">Post %[1]s</h1>
<div class="author-date"><a href="/author/x/">Автор</a></div>
<time class="entry-date" datetime="%[2]s">date</time>
<div class="the_content"><p>body</p><img src="/img/shared.png"></div>
<ul class="post-tags"><li><a href="/tag/t/">t</a></li></ul>
<ol class="commentlist">
  <li class="comment" id="comment-1">
    <div id="div-comment-1" class="comment-body">
      <cite class="fn">Anna</cite>
      <div class="commentmetadata">01.06.2024 в 15:00</div>
      <p>hi</p>
    </div>
  </li>
</ol>
</body></html>`, slug, ts.Format(time.RFC3339))
		})
	}
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "image "+r.URL.Path) //nolint:errcheck
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// writeTestConfig points a config file at srv.
func writeTestConfig(t *testing.T, srv *httptest.Server, extra string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := fmt.Sprintf("site: %q\npagePattern: %q\nfeedUrl: %q\n%s",
		srv.URL, srv.URL+"/page/%d/", srv.URL+"/feed/", extra)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func decodeSummary(t *testing.T, output string) map[string]any {
	t.Helper()

	var m map[string]any
	if err := json.Unmarshal([]byte(output), &m); err != nil {
		t.Fatalf("report is not JSON: %v\n%s", err, output)
	}
	return m
}

func TestCrawlCommand(t *testing.T) {
	t.Parallel()

	srv := newBlog(t)
	cfgPath := writeTestConfig(t, srv, "attempts: 1\n")
	dbDir := t.TempDir()
	filesDir := t.TempDir()
	args := []string{
		"crawl", "--config", cfgPath, "--env-file", "",
		"--db-dir", dbDir, "--save-files", "--files-dir", filesDir,
		"--report", "json",
	}

	output, err := execute(t, args...)
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}
	first := decodeSummary(t, output)
	if first["posts_saved"] != float64(3) {
		t.Errorf("expected 3 posts saved, got %v", first["posts_saved"])
	}
	if first["status"] != model.StatusComplete {
		t.Errorf("expected complete status, got %v", first["status"])
	}
	// Three covers plus one image shared by every post.
	if first["assets_saved"] != float64(4) {
		t.Errorf("expected 4 assets saved, got %v", first["assets_saved"])
	}
	entries, err := os.ReadDir(filesDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Errorf("expected 4 files on disk, got %d", len(entries))
	}

	t.Run("second run stops at the cursor", func(t *testing.T) {
		output, err := execute(t, args...)
		if err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		second := decodeSummary(t, output)
		if second["posts_saved"] != float64(0) {
			t.Errorf("expected nothing new, got %v", second["posts_saved"])
		}
		if second["status"] != model.StatusUpToDate {
			t.Errorf("expected up-to-date status, got %v", second["status"])
		}
	})

	t.Run("status reports the store", func(t *testing.T) {
		output, err := execute(t, "status", "--config", cfgPath, "--env-file", "", "--db-dir", dbDir, "--report", "json")
		if err != nil {
			t.Fatalf("status failed: %v", err)
		}
		status := decodeSummary(t, output)
		store, ok := status["store"].(map[string]any)
		if !ok {
			t.Fatalf("no store section in %v", status)
		}
		if store["posts"] != float64(3) || store["assets"] != float64(4) {
			t.Errorf("unexpected store stats %v", store)
		}
		if store["last_post_url"] != srv.URL+"/a/" {
			t.Errorf("expected cursor at newest post, got %v", store["last_post_url"])
		}
	})

	t.Run("status feed failure is reported not fatal", func(t *testing.T) {
		output, err := execute(t, "status", "--config", cfgPath, "--env-file", "", "--db-dir", dbDir,
			"--feed", "--attempts", "1", "--report", "json")
		if err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if status := decodeSummary(t, output); status["feed_error"] == nil {
			t.Errorf("expected feed_error, got %v", status)
		}
	})
}

func TestCrawlCommandDiscoveryFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	cfgPath := writeTestConfig(t, srv, "attempts: 1\n")
	reportPath := filepath.Join(t.TempDir(), "reports", "run.md")

	_, err := execute(t, "crawl", "--config", cfgPath, "--env-file", "", "--db-dir", t.TempDir(),
		"--report", "markdown", "--output", reportPath)
	if err == nil {
		t.Fatal("expected error when the first listing page is missing")
	}

	content, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("expected a report even for a failed run: %v", err)
	}
	if !strings.Contains(string(content), "Failed") {
		t.Errorf("expected failed status in report:\n%s", content)
	}
}

func TestStatusWithoutDatabase(t *testing.T) {
	t.Parallel()

	srv := newBlog(t)
	cfgPath := writeTestConfig(t, srv, "")
	_, err := execute(t, "status", "--config", cfgPath, "--env-file", "", "--db-dir", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "run 'ebcrawl crawl' first") {
		t.Errorf("expected missing database error, got %v", err)
	}
}

// Not parallel: t.Setenv.
func TestBuildConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	content := "attempts: 2\ndelay: 3s\nfilesDir: from-file\ndbDir: from-file\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvDBDir, "from-env")
	t.Setenv(config.EnvFilesDir, "")

	cmd := NewCrawlCmd()
	if err := cmd.ParseFlags([]string{"--config", cfgPath, "--env-file", "", "--attempts", "5", "--report", "none"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := buildConfig(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Attempts != 5 {
		t.Errorf("flag should win: attempts = %d", cfg.Attempts)
	}
	if cfg.CrawlDelay != 3*time.Second {
		t.Errorf("file should apply when no flag is set: delay = %s", cfg.CrawlDelay)
	}
	if cfg.DBDir != "from-env" {
		t.Errorf("environment should win over file: dbDir = %q", cfg.DBDir)
	}
	if cfg.FilesDir != "from-file" {
		t.Errorf("empty variable should be ignored: filesDir = %q", cfg.FilesDir)
	}
	if cfg.Report != config.ReportNone {
		t.Errorf("expected no report, got %q", cfg.Report)
	}
	if cfg.Timeout != config.DefaultTimeout {
		t.Errorf("expected default timeout, got %s", cfg.Timeout)
	}
}

func TestBuildConfigMissingExplicitFile(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()
	if err := cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}); err != nil {
		t.Fatal(err)
	}
	if _, err := buildConfig(cmd); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}

func TestProxyTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		site string
		want string
	}{
		{"https://ebanoe.it", "ebanoe.it:443"},
		{"http://ebanoe.it", "ebanoe.it:80"},
		{"http://127.0.0.1:8080", "127.0.0.1:8080"},
	}
	for _, tt := range tests {
		got, err := proxyTarget(tt.site)
		if err != nil {
			t.Fatalf("%s: %v", tt.site, err)
		}
		if got != tt.want {
			t.Errorf("proxyTarget(%q) = %q, want %q", tt.site, got, tt.want)
		}
	}
}

func TestLogEvent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	logEvent(logger, model.Event{Kind: model.EventReport, Page: -1, Message: "pages: 412"})
	logEvent(logger, model.Event{Kind: model.EventPage, Page: 3, URL: "https://ebanoe.it/page/3/"})
	logEvent(logger, model.Event{Kind: model.EventDiagnostic, Page: 3, URL: "https://ebanoe.it/x/", Err: errors.New("comment #2: missing comment author")})
	logEvent(logger, model.Event{Kind: model.EventError, Page: 3, URL: "https://ebanoe.it/y/", Err: errors.New("status 500")})

	output := buf.String()
	for _, want := range []string{
		`level=INFO msg="pages: 412"`,
		`level=WARN msg=recovered`,
		`level=ERROR msg=skipped`,
		`error="status 500"`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected log to contain %q, got:\n%s", want, output)
		}
	}
	if strings.Contains(output, "visiting") {
		t.Error("page events are logged at debug level")
	}
}
