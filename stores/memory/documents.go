package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"codeshare-server/core"

	"github.com/sirupsen/logrus"
)

type documentStore struct {
	mu        sync.RWMutex
	documents map[string]core.Document
	rooms     map[string]int64
}

func NewDocumentStore() core.DocumentStore {
	return &documentStore{
		documents: make(map[string]core.Document),
		rooms:     make(map[string]int64),
	}
}

func (s *documentStore) Get(ctx context.Context, title string) (*core.Document, error) {
	log := logrus.WithField("title", title)

	s.mu.RLock()
	doc, ok := s.documents[title]
	s.mu.RUnlock()

	if ok {
		log.Debug("Document retrieved successfully")
		return &doc, nil
	}

	log.Debug("Document with specified title not found")
	return nil, fmt.Errorf("document %q: %w", title, core.ErrNotFound)
}

func (s *documentStore) Set(ctx context.Context, title, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.documents[title] = core.Document{
		Title:     title,
		Code:      code,
		UpdatedAt: time.Now().UTC(),
	}
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"title":       title,
		"code_length": len(code),
	}).Debug("Document saved successfully")
	return nil
}

func (s *documentStore) List(ctx context.Context) ([]core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	documents := make([]core.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		documents = append(documents, doc)
	}
	return documents, nil
}

func (s *documentStore) TouchRoom(ctx context.Context, title string) error {
	s.mu.Lock()
	s.rooms[title] = time.Now().UnixMilli()
	s.mu.Unlock()

	return nil
}

func (s *documentStore) ListRooms(ctx context.Context) ([]core.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]core.Room, 0, len(s.rooms))
	for title, last := range s.rooms {
		rooms = append(rooms, core.Room{Title: title, LastActive: last})
	}

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].LastActive == rooms[j].LastActive {
			return rooms[i].Title < rooms[j].Title
		}
		return rooms[i].LastActive > rooms[j].LastActive
	})

	return rooms, nil
}
