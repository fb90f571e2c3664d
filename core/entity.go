package core

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a DocumentStore when no document exists for a title.
var ErrNotFound = errors.New("record not found")

type (
	// Document is a persisted code snippet keyed by its title.
	Document struct {
		Title     string    `json:"title"`
		Code      string    `json:"code"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	// DocumentStore persists documents by title. Implementations must be safe
	// for concurrent use.
	DocumentStore interface {
		Get(ctx context.Context, title string) (*Document, error)
		Set(ctx context.Context, title, code string) error
		List(ctx context.Context) ([]Document, error)
	}

	Room struct {
		Title      string
		LastActive int64
	}

	// RoomTracker is implemented by stores that remember when a room was
	// last edited.
	RoomTracker interface {
		ListRooms(ctx context.Context) ([]Room, error)
		TouchRoom(ctx context.Context, title string) error
	}
)
