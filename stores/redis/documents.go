package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"codeshare-server/core"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type storedDocument struct {
	Code      string `json:"code"`
	UpdatedAt int64  `json:"updated_at"`
}

// documentStore keeps every document in one hash (title -> JSON) and room
// activity in a sorted set scored by last-edit time in milliseconds.
type documentStore struct {
	rdb      *goredis.Client
	codeKey  string
	roomsKey string
}

func NewDocumentStore(addr, keyPrefix string) (core.DocumentStore, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return NewDocumentStoreWithClient(rdb, keyPrefix), nil
}

func NewDocumentStoreWithClient(rdb *goredis.Client, keyPrefix string) core.DocumentStore {
	if keyPrefix == "" {
		keyPrefix = "codeshare"
	}
	return &documentStore{
		rdb:      rdb,
		codeKey:  keyPrefix + ":code",
		roomsKey: keyPrefix + ":rooms",
	}
}

func (s *documentStore) Get(ctx context.Context, title string) (*core.Document, error) {
	log := logrus.WithField("title", title)

	raw, err := s.rdb.HGet(ctx, s.codeKey, title).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			log.Debug("Document with specified title not found")
			return nil, fmt.Errorf("document %q: %w", title, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to retrieve document")
		return nil, err
	}

	doc, err := decode(title, raw)
	if err != nil {
		log.WithError(err).Error("Failed to decode document")
		return nil, err
	}
	return doc, nil
}

func (s *documentStore) Set(ctx context.Context, title, code string) error {
	data, err := json.Marshal(storedDocument{Code: code, UpdatedAt: time.Now().UnixMilli()})
	if err != nil {
		return err
	}

	if err := s.rdb.HSet(ctx, s.codeKey, title, data).Err(); err != nil {
		logrus.WithError(err).WithField("title", title).Error("Failed to save document")
		return err
	}
	return nil
}

func (s *documentStore) List(ctx context.Context) ([]core.Document, error) {
	all, err := s.rdb.HGetAll(ctx, s.codeKey).Result()
	if err != nil {
		logrus.WithError(err).Error("Failed to list documents")
		return nil, err
	}

	documents := make([]core.Document, 0, len(all))
	for title, raw := range all {
		doc, err := decode(title, raw)
		if err != nil {
			logrus.WithError(err).WithField("title", title).Warn("Skipping undecodable document")
			continue
		}
		documents = append(documents, *doc)
	}
	return documents, nil
}

func (s *documentStore) TouchRoom(ctx context.Context, title string) error {
	return s.rdb.ZAdd(ctx, s.roomsKey, goredis.Z{
		Score:  float64(time.Now().UnixMilli()),
		Member: title,
	}).Err()
}

func (s *documentStore) ListRooms(ctx context.Context) ([]core.Room, error) {
	entries, err := s.rdb.ZRevRangeWithScores(ctx, s.roomsKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	rooms := make([]core.Room, 0, len(entries))
	for _, entry := range entries {
		title, ok := entry.Member.(string)
		if !ok {
			continue
		}
		rooms = append(rooms, core.Room{Title: title, LastActive: int64(entry.Score)})
	}
	return rooms, nil
}

func (s *documentStore) Close() error {
	return s.rdb.Close()
}

func decode(title, raw string) (*core.Document, error) {
	var stored storedDocument
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", strconv.Quote(title), err)
	}
	return &core.Document{
		Title:     title,
		Code:      stored.Code,
		UpdatedAt: time.UnixMilli(stored.UpdatedAt).UTC(),
	}, nil
}
