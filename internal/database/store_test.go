package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/ebcrawl/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testPost(url string, published time.Time) *model.Post {
	return &model.Post{
		URL:       url,
		Title:     "Title of " + url,
		Author:    "Иван",
		Published: published,
		Poster:    "https://ebanoe.it/cover.jpg",
		Content:   "<div class=\"the_content\"><p>hi</p></div>",
		Category:  "news",
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		s, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer s.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if s.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("unexpected Path %q", s.Path())
		}
	})

	t.Run("missing database without create fails", func(t *testing.T) {
		t.Parallel()

		_, err := Open(t.TempDir(), Options{CreateIfNotExists: false})
		if !errors.Is(err, ErrDatabaseNotFound) {
			t.Errorf("expected ErrDatabaseNotFound, got %v", err)
		}
	})

	t.Run("reopening applies no migrations twice", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		first, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		if _, err := first.SavePost(context.Background(), testPost("https://ebanoe.it/a/", time.Now()), nil); err != nil {
			t.Fatal(err)
		}
		_ = first.Close()

		second, err := Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen: %v", err)
		}
		defer second.Close()

		ok, err := second.Exists(context.Background(), "https://ebanoe.it/a/")
		if err != nil || !ok {
			t.Errorf("expected stored post to survive reopen, got %v, %v", ok, err)
		}
	})
}

func TestUpsertTags(t *testing.T) {
	t.Parallel()

	s := setupTestDB(t)
	ctx := context.Background()

	first, err := s.UpsertTags(ctx, []string{"go", "Go", "go", " sqlite ", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 distinct tags, got %v", first)
	}
	if first[0].Name != "go" || first[1].Name != "Go" || first[2].Name != "sqlite" {
		t.Errorf("unexpected tags %v", first)
	}

	second, err := s.UpsertTags(ctx, []string{"sqlite", "go"})
	if err != nil {
		t.Fatal(err)
	}
	if second[0].ID != first[2].ID || second[1].ID != first[0].ID {
		t.Error("expected existing tags to be reused")
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Tags != 3 {
		t.Errorf("expected 3 tags stored, got %d", stats.Tags)
	}

	if tags, err := s.UpsertTags(ctx, nil); err != nil || tags != nil {
		t.Errorf("expected nil for no names, got %v, %v", tags, err)
	}
}

func TestSavePost(t *testing.T) {
	t.Parallel()

	t.Run("stores post with tags", func(t *testing.T) {
		t.Parallel()

		s := setupTestDB(t)
		ctx := context.Background()

		tags, err := s.UpsertTags(ctx, []string{"a", "b"})
		if err != nil {
			t.Fatal(err)
		}
		post := testPost("https://ebanoe.it/2020/01/01/x/", time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC))
		id, err := s.SavePost(ctx, post, tags)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id == 0 || post.ID != id {
			t.Errorf("expected id to be set, got %d / %d", id, post.ID)
		}
		if post.Updated.IsZero() {
			t.Error("expected Updated to be stamped")
		}

		var links int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM post_tags WHERE post_id = ?`, id).Scan(&links); err != nil {
			t.Fatal(err)
		}
		if links != 2 {
			t.Errorf("expected 2 tag links, got %d", links)
		}
	})

	t.Run("duplicate url is rejected", func(t *testing.T) {
		t.Parallel()

		s := setupTestDB(t)
		ctx := context.Background()
		post := testPost("https://ebanoe.it/dup/", time.Now())

		if _, err := s.SavePost(ctx, post, nil); err != nil {
			t.Fatal(err)
		}
		_, err := s.SavePost(ctx, testPost("https://ebanoe.it/dup/", time.Now()), nil)
		if !errors.Is(err, ErrDuplicatePost) {
			t.Errorf("expected ErrDuplicatePost, got %v", err)
		}

		stats, err := s.Stats(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if stats.Posts != 1 {
			t.Errorf("expected 1 post, got %d", stats.Posts)
		}
	})

	t.Run("long fields are truncated", func(t *testing.T) {
		t.Parallel()

		s := setupTestDB(t)
		ctx := context.Background()
		post := testPost("https://ebanoe.it/long/", time.Now())
		post.Title = strings.Repeat("я", 200)
		post.Category = strings.Repeat("c", 100)

		id, err := s.SavePost(ctx, post, nil)
		if err != nil {
			t.Fatal(err)
		}
		var title, category string
		if err := s.db.QueryRowContext(ctx, `SELECT title, category FROM posts WHERE id = ?`, id).Scan(&title, &category); err != nil {
			t.Fatal(err)
		}
		if len(title) > model.MaxTitleLength || len(category) != model.MaxCategoryLength {
			t.Errorf("expected truncation, got title %d bytes, category %d bytes", len(title), len(category))
		}
	})

	t.Run("overlong url is rejected", func(t *testing.T) {
		t.Parallel()

		s := setupTestDB(t)
		post := testPost("https://ebanoe.it/"+strings.Repeat("x", model.MaxURLLength), time.Now())
		_, err := s.SavePost(context.Background(), post, nil)
		if !errors.Is(err, ErrPersistence) || !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("expected persistence error, got %v", err)
		}
	})
}

func TestSaveComments(t *testing.T) {
	t.Parallel()

	t.Run("stores forest with parent links", func(t *testing.T) {
		t.Parallel()

		s := setupTestDB(t)
		ctx := context.Background()
		id, err := s.SavePost(ctx, testPost("https://ebanoe.it/c/", time.Now()), nil)
		if err != nil {
			t.Fatal(err)
		}

		records := []model.CommentRecord{
			{Parent: model.NoParent, Author: "root", Content: "1"},
			{Parent: 0, Author: "child", Content: "2"},
			{Parent: 1, Author: "grandchild", Content: "4"},
			{Parent: 0, Author: "child2", Content: "3"},
		}
		if err := s.SaveComments(ctx, id, records); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		rows, err := s.db.QueryContext(ctx, `
		SELECT c.author, COALESCE(p.author, '')
		FROM comments c LEFT JOIN comments p ON p.id = c.parent_id
		WHERE c.post_id = ? ORDER BY c.id`, id)
		if err != nil {
			t.Fatal(err)
		}
		defer rows.Close()

		want := [][2]string{{"root", ""}, {"child", "root"}, {"grandchild", "child"}, {"child2", "root"}}
		i := 0
		for rows.Next() {
			var author, parent string
			if err := rows.Scan(&author, &parent); err != nil {
				t.Fatal(err)
			}
			if i >= len(want) || author != want[i][0] || parent != want[i][1] {
				t.Errorf("row %d: got (%q, %q)", i, author, parent)
			}
			i++
		}
		if err := rows.Err(); err != nil {
			t.Fatal(err)
		}
		if i != len(want) {
			t.Errorf("expected %d comments, got %d", len(want), i)
		}
	})

	t.Run("forward parent index is rejected atomically", func(t *testing.T) {
		t.Parallel()

		s := setupTestDB(t)
		ctx := context.Background()
		id, err := s.SavePost(ctx, testPost("https://ebanoe.it/bad/", time.Now()), nil)
		if err != nil {
			t.Fatal(err)
		}

		err = s.SaveComments(ctx, id, []model.CommentRecord{
			{Parent: model.NoParent, Author: "ok"},
			{Parent: 2, Author: "bad"},
			{Parent: model.NoParent, Author: "late"},
		})
		if !errors.Is(err, ErrInvalidRecord) {
			t.Fatalf("expected ErrInvalidRecord, got %v", err)
		}

		stats, err := s.Stats(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if stats.Comments != 0 {
			t.Errorf("expected rollback, found %d comments", stats.Comments)
		}
	})
}

func TestDeletePostCascades(t *testing.T) {
	t.Parallel()

	s := setupTestDB(t)
	ctx := context.Background()

	tags, err := s.UpsertTags(ctx, []string{"t"})
	if err != nil {
		t.Fatal(err)
	}
	id, err := s.SavePost(ctx, testPost("https://ebanoe.it/del/", time.Now()), tags)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveComments(ctx, id, []model.CommentRecord{
		{Parent: model.NoParent, Author: "a"},
		{Parent: 0, Author: "b"},
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeletePost(ctx, id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Posts != 0 || stats.Comments != 0 {
		t.Errorf("expected cascade delete, got %+v", stats)
	}
	if stats.Tags != 1 {
		t.Errorf("tags must survive post deletion, got %d", stats.Tags)
	}
	var links int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM post_tags`).Scan(&links); err != nil {
		t.Fatal(err)
	}
	if links != 0 {
		t.Errorf("expected tag links to be removed, got %d", links)
	}
}

func TestLastPostURL(t *testing.T) {
	t.Parallel()

	s := setupTestDB(t)
	ctx := context.Background()

	url, err := s.LastPostURL(ctx)
	if err != nil || url != "" {
		t.Fatalf("expected empty cursor, got %q, %v", url, err)
	}

	base := time.Date(2021, 5, 1, 12, 0, 0, 0, time.UTC)
	// inserted out of publish order
	for _, p := range []struct {
		url string
		at  time.Time
	}{
		{"https://ebanoe.it/middle/", base},
		{"https://ebanoe.it/newest/", base.Add(time.Hour)},
		{"https://ebanoe.it/oldest/", base.Add(-time.Hour)},
	} {
		if _, err := s.SavePost(ctx, testPost(p.url, p.at), nil); err != nil {
			t.Fatal(err)
		}
	}

	url, err = s.LastPostURL(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://ebanoe.it/newest/" {
		t.Errorf("expected newest post by publish time, got %q", url)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.LastPostURL != url || !stats.LastPublished.Equal(base.Add(time.Hour)) {
		t.Errorf("unexpected stats cursor %+v", stats)
	}
}

func TestExists(t *testing.T) {
	t.Parallel()

	s := setupTestDB(t)
	ctx := context.Background()

	if ok, err := s.Exists(ctx, "https://ebanoe.it/x/"); err != nil || ok {
		t.Fatalf("expected false, got %v, %v", ok, err)
	}
	if _, err := s.SavePost(ctx, testPost("https://ebanoe.it/x/", time.Now()), nil); err != nil {
		t.Fatal(err)
	}
	if ok, err := s.Exists(ctx, "https://ebanoe.it/x/"); err != nil || !ok {
		t.Errorf("expected true, got %v, %v", ok, err)
	}
}

func TestAssets(t *testing.T) {
	t.Parallel()

	s := setupTestDB(t)
	ctx := context.Background()

	a, err := s.AssetByURL(ctx, "https://ebanoe.it/a.jpg")
	if err != nil || a != nil {
		t.Fatalf("expected nil asset, got %v, %v", a, err)
	}

	fetched := time.Date(2022, 2, 2, 2, 2, 2, 0, time.UTC)
	assets := []model.Asset{
		{URL: "https://ebanoe.it/a.jpg", FileName: "1.jpg", Size: 10, Checksum: "abc", Exif: map[string]string{"Make": "Canon"}, Fetched: fetched},
		{URL: "https://ebanoe.it/b.png", FileName: "2.png", Size: 20},
	}
	if err := s.SaveAssets(ctx, assets); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, err = s.AssetByURL(ctx, "https://ebanoe.it/a.jpg")
	if err != nil || a == nil {
		t.Fatalf("expected asset, got %v, %v", a, err)
	}
	if a.FileName != "1.jpg" || a.Size != 10 || a.Checksum != "abc" || a.Exif["Make"] != "Canon" {
		t.Errorf("unexpected asset %+v", a)
	}
	if !a.Fetched.Equal(fetched) {
		t.Errorf("expected fetched %v, got %v", fetched, a.Fetched)
	}

	// same URL again, different file: the record follows the new file
	refetched := fetched.Add(time.Hour)
	if err := s.SaveAssets(ctx, []model.Asset{{URL: "https://ebanoe.it/a.jpg", FileName: "3.jpg", Size: 11, Checksum: "def", Fetched: refetched}}); err != nil {
		t.Fatal(err)
	}
	a, err = s.AssetByURL(ctx, "https://ebanoe.it/a.jpg")
	if err != nil || a == nil {
		t.Fatalf("expected asset, got %v, %v", a, err)
	}
	if a.FileName != "3.jpg" || a.Size != 11 || a.Checksum != "def" || len(a.Exif) != 0 {
		t.Errorf("expected replaced asset, got %+v", a)
	}
	if !a.Fetched.Equal(refetched) {
		t.Errorf("expected fetched %v, got %v", refetched, a.Fetched)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Assets != 2 {
		t.Errorf("expected 2 assets, got %d", stats.Assets)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-15T10:30:00.123456789Z", time.Date(2024, 1, 15, 10, 30, 0, 123456789, time.UTC)},
		{"2024-01-15T10:30:00Z", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"2024-01-15 10:30:00", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"garbage", time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := parseTimestamp(tt.in); !got.Equal(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
