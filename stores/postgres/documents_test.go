package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"codeshare-server/core"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	// The gorm sqlite dialect stands in for PostgreSQL and needs cgo.
	if !cgoEnabled {
		fmt.Println("skipping gorm store tests: CGO disabled")
		os.Exit(0)
	}

	os.Exit(m.Run())
}

func setupTestDB(t *testing.T) *documentStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	store, err := NewDocumentStoreWithDB(db)
	if err != nil {
		t.Fatalf("NewDocumentStoreWithDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = store.(*documentStore).Close() })
	return store.(*documentStore)
}

func TestMigrationCreatesCodeTable(t *testing.T) {
	store := setupTestDB(t)

	if !store.db.Migrator().HasTable("code") {
		t.Fatal("code table was not created")
	}
	for _, column := range []string{"title", "code", "updated_at"} {
		if !store.db.Migrator().HasColumn(&codeRow{}, column) {
			t.Errorf("column %s is missing", column)
		}
	}
}

func TestSetAndGet(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	if err := store.Set(ctx, "doc1", "x=1"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	doc, err := store.Get(ctx, "doc1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if doc.Title != "doc1" || doc.Code != "x=1" {
		t.Errorf("Get() = %+v", doc)
	}
}

func TestSet_Upserts(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	for _, code := range []string{"first", "second"} {
		if err := store.Set(ctx, "doc1", code); err != nil {
			t.Fatalf("Set(%q) failed: %v", code, err)
		}
	}

	var count int64
	if err := store.db.Model(&codeRow{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("row count: got %d, want 1", count)
	}

	doc, err := store.Get(ctx, "doc1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if doc.Code != "second" {
		t.Errorf("Get() = %q, want %q", doc.Code, "second")
	}
}

func TestGet_NotFound(t *testing.T) {
	store := setupTestDB(t)

	_, err := store.Get(context.Background(), "nonexistent")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get() error: got %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	docs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("List() on empty table returned %d documents", len(docs))
	}

	want := map[string]string{"a": "1", "b": "2", "": "untitled"}
	for title, code := range want {
		if err := store.Set(ctx, title, code); err != nil {
			t.Fatalf("Set(%q) failed: %v", title, err)
		}
	}

	docs, err = store.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(docs) != len(want) {
		t.Fatalf("List() returned %d documents, want %d", len(docs), len(want))
	}
	for _, doc := range docs {
		if want[doc.Title] != doc.Code {
			t.Errorf("document %q: got %q, want %q", doc.Title, doc.Code, want[doc.Title])
		}
	}
}

func TestClosedDatabase(t *testing.T) {
	store := setupTestDB(t)
	if err := store.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	if err := store.Set(context.Background(), "doc1", "x"); err == nil {
		t.Error("Set() on closed db should fail")
	}
	if _, err := store.Get(context.Background(), "doc1"); err == nil || errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get() on closed db: got %v, want a persistence error", err)
	}
}
