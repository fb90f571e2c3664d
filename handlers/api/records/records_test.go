package records

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"codeshare-server/core"

	"github.com/go-chi/chi/v5"
)

// Mock document store for testing
type mockDocumentStore struct {
	mu        sync.RWMutex
	documents map[string]core.Document
	getErr    error
	listErr   error
	listNil   bool
}

func newMockStore() *mockDocumentStore {
	return &mockDocumentStore{
		documents: make(map[string]core.Document),
	}
}

func (m *mockDocumentStore) Get(ctx context.Context, title string) (*core.Document, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[title]
	if !ok {
		return nil, fmt.Errorf("document %q: %w", title, core.ErrNotFound)
	}
	return &doc, nil
}

func (m *mockDocumentStore) Set(ctx context.Context, title, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[title] = core.Document{Title: title, Code: code, UpdatedAt: time.Now().UTC()}
	return nil
}

func (m *mockDocumentStore) List(ctx context.Context) ([]core.Document, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if m.listNil {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := make([]core.Document, 0, len(m.documents))
	for _, doc := range m.documents {
		docs = append(docs, doc)
	}
	return docs, nil
}

func newRouter(store core.DocumentStore) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/record/{title}", HandleGet(store))
	r.Get("/records", HandleList(store))
	return r
}

func TestHandleGet_Success(t *testing.T) {
	store := newMockStore()
	_ = store.Set(context.Background(), "doc1", "print('hi')")

	req := httptest.NewRequest(http.MethodGet, "/record/doc1", nil)
	rec := httptest.NewRecorder()
	newRouter(store).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}

	var doc core.Document
	if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if doc.Title != "doc1" || doc.Code != "print('hi')" {
		t.Errorf("Response mismatch: got %+v", doc)
	}
}

func TestHandleGet_UsesLatestCode(t *testing.T) {
	store := newMockStore()
	ctx := context.Background()
	_ = store.Set(ctx, "doc1", "v1")
	_ = store.Set(ctx, "doc1", "v2")

	rec := httptest.NewRecorder()
	newRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/record/doc1", nil))

	var doc core.Document
	if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if doc.Code != "v2" {
		t.Errorf("Code: got %q, want v2", doc.Code)
	}
}

func TestHandleGet_NotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(newMockStore()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/record/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusNotFound)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"error":"Record not found"}` {
		t.Errorf("Body mismatch: got %s", body)
	}
}

func TestHandleGet_StoreError(t *testing.T) {
	store := newMockStore()
	store.getErr = fmt.Errorf("connection refused")

	rec := httptest.NewRecorder()
	newRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/record/doc1", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"error":"Internal Server Error"}` {
		t.Errorf("Body mismatch: got %s", body)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Error("Internal error details leaked to the client")
	}
}

func TestHandleGet_EscapedTitle(t *testing.T) {
	store := newMockStore()
	_ = store.Set(context.Background(), "my doc", "x")

	rec := httptest.NewRecorder()
	newRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/record/my%20doc", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHandleList(t *testing.T) {
	testCases := []struct {
		name   string
		titles []string
		setup  func(*mockDocumentStore)
		want   int
	}{
		{"Empty store", nil, nil, 0},
		{"Nil slice from store", nil, func(m *mockDocumentStore) { m.listNil = true }, 0},
		{"Several documents", []string{"a", "b", "c"}, nil, 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMockStore()
			for _, title := range tc.titles {
				_ = store.Set(context.Background(), title, "code")
			}
			if tc.setup != nil {
				tc.setup(store)
			}

			rec := httptest.NewRecorder()
			newRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records", nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
			}
			if strings.TrimSpace(rec.Body.String()) == "null" {
				t.Fatal("List rendered null instead of an array")
			}

			var docs []core.Document
			if err := json.NewDecoder(rec.Body).Decode(&docs); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if len(docs) != tc.want {
				t.Errorf("Document count: got %d, want %d", len(docs), tc.want)
			}
		})
	}
}

func TestHandleList_StoreError(t *testing.T) {
	store := newMockStore()
	store.listErr = fmt.Errorf("disk on fire")

	rec := httptest.NewRecorder()
	newRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"error":"Internal Server Error"}` {
		t.Errorf("Body mismatch: got %s", body)
	}
}
