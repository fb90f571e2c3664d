package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"codeshare-server/core"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

type documentStore struct {
	db *sql.DB
}

func NewDocumentStore(dataSourceName string) (core.DocumentStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// Create code table
	codeTable := `CREATE TABLE IF NOT EXISTS code (
		title TEXT PRIMARY KEY,
		code TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL DEFAULT 0
	);`
	if _, err = db.Exec(codeTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create code table: %w", err)
	}

	// Create room_activity table
	activityTable := `CREATE TABLE IF NOT EXISTS room_activity (
		title TEXT PRIMARY KEY,
		last_active INTEGER NOT NULL
	);`
	if _, err = db.Exec(activityTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create room_activity table: %w", err)
	}

	return &documentStore{db}, nil
}

func (s *documentStore) Get(ctx context.Context, title string) (*core.Document, error) {
	log := logrus.WithField("title", title)
	log.Debug("Retrieving document by title")

	var (
		doc       = core.Document{Title: title}
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, "SELECT code, updated_at FROM code WHERE title = ?", title).Scan(&doc.Code, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("Document with specified title not found")
			return nil, fmt.Errorf("document %q: %w", title, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to retrieve document")
		return nil, err
	}
	doc.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	log.Debug("Document retrieved successfully")
	return &doc, nil
}

func (s *documentStore) Set(ctx context.Context, title, code string) error {
	log := logrus.WithFields(logrus.Fields{
		"title":       title,
		"code_length": len(code),
	})

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO code (title, code, updated_at) VALUES (?, ?, ?) ON CONFLICT(title) DO UPDATE SET code = excluded.code, updated_at = excluded.updated_at",
		title, code, time.Now().UnixMilli())
	if err != nil {
		log.WithError(err).Error("Failed to save document")
		return err
	}

	log.Debug("Document saved successfully")
	return nil
}

func (s *documentStore) List(ctx context.Context) ([]core.Document, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT title, code, updated_at FROM code")
	if err != nil {
		logrus.WithError(err).Error("Failed to list documents")
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("Failed to close document rows")
		}
	}()

	documents := []core.Document{}
	for rows.Next() {
		var (
			doc       core.Document
			updatedAt int64
		)
		if err := rows.Scan(&doc.Title, &doc.Code, &updatedAt); err != nil {
			logrus.WithError(err).Error("Failed to scan document")
			return nil, err
		}
		doc.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		documents = append(documents, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return documents, nil
}

func (s *documentStore) TouchRoom(ctx context.Context, title string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO room_activity (title, last_active) VALUES (?, ?) ON CONFLICT(title) DO UPDATE SET last_active = excluded.last_active",
		title, time.Now().UnixMilli())
	return err
}

func (s *documentStore) ListRooms(ctx context.Context) ([]core.Room, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT title, last_active FROM room_activity ORDER BY last_active DESC, title ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []core.Room
	for rows.Next() {
		var room core.Room
		if err := rows.Scan(&room.Title, &room.LastActive); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (s *documentStore) Close() error {
	return s.db.Close()
}
