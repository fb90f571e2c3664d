package filesystem

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"codeshare-server/core"

	"github.com/sirupsen/logrus"
)

const fileExt = ".code"

type documentStore struct {
	mu       sync.RWMutex
	basePath string
}

func NewDocumentStore(basePath string) (core.DocumentStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}
	return &documentStore{basePath: basePath}, nil
}

// fileName encodes the title so any string, including "" and "../x", maps to
// a single file inside basePath.
func fileName(title string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(title)) + fileExt
}

func titleFromFileName(name string) (string, bool) {
	encoded, ok := strings.CutSuffix(name, fileExt)
	if !ok {
		return "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func (s *documentStore) Get(ctx context.Context, title string) (*core.Document, error) {
	filePath := filepath.Join(s.basePath, fileName(title))
	log := logrus.WithFields(logrus.Fields{"title": title, "file_path": filePath})

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("Document with specified title not found")
			return nil, fmt.Errorf("document %q: %w", title, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to retrieve document")
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		log.WithError(err).Error("Failed to get file stats")
		return nil, err
	}

	return &core.Document{
		Title:     title,
		Code:      string(data),
		UpdatedAt: info.ModTime().UTC(),
	}, nil
}

func (s *documentStore) Set(ctx context.Context, title, code string) error {
	filePath := filepath.Join(s.basePath, fileName(title))
	log := logrus.WithFields(logrus.Fields{
		"title":       title,
		"file_path":   filePath,
		"code_length": len(code),
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.basePath, "tmp-*")
	if err != nil {
		log.WithError(err).Error("Failed to create temp file")
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(code); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		log.WithError(err).Error("Failed to write document")
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		_ = os.Remove(tmpPath)
		log.WithError(err).Error("Failed to replace document")
		return err
	}

	log.Debug("Document saved successfully")
	return nil
}

func (s *documentStore) List(ctx context.Context) ([]core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		logrus.WithError(err).WithField("path", s.basePath).Error("Failed to read storage directory")
		return nil, err
	}

	documents := make([]core.Document, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		title, ok := titleFromFileName(entry.Name())
		if !ok {
			continue
		}

		filePath := filepath.Join(s.basePath, entry.Name())
		data, err := os.ReadFile(filePath)
		if err != nil {
			logrus.WithError(err).Warnf("Failed to read document file %s, skipping", entry.Name())
			continue
		}
		info, err := entry.Info()
		if err != nil {
			logrus.WithError(err).Warnf("Failed to get file info for %s, skipping", entry.Name())
			continue
		}

		documents = append(documents, core.Document{
			Title:     title,
			Code:      string(data),
			UpdatedAt: info.ModTime().UTC(),
		})
	}

	return documents, nil
}
