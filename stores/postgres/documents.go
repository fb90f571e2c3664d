package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codeshare-server/core"

	"github.com/sirupsen/logrus"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// codeRow maps the shared code table.
type codeRow struct {
	Title     string `gorm:"primaryKey"`
	Code      string `gorm:"not null"`
	UpdatedAt time.Time
}

func (codeRow) TableName() string { return "code" }

func (r codeRow) document() core.Document {
	return core.Document{Title: r.Title, Code: r.Code, UpdatedAt: r.UpdatedAt.UTC()}
}

type documentStore struct {
	db *gorm.DB
}

// NewDocumentStore connects to PostgreSQL and migrates the code table.
func NewDocumentStore(dsn string) (core.DocumentStore, error) {
	db, err := gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewDocumentStoreWithDB(db)
}

// NewDocumentStoreWithDB wraps an open gorm handle of any dialect.
func NewDocumentStoreWithDB(db *gorm.DB) (core.DocumentStore, error) {
	if err := db.AutoMigrate(&codeRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &documentStore{db: db}, nil
}

func (s *documentStore) Get(ctx context.Context, title string) (*core.Document, error) {
	log := logrus.WithField("title", title)

	var row codeRow
	err := s.db.WithContext(ctx).Where("title = ?", title).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Debug("Document with specified title not found")
			return nil, fmt.Errorf("document %q: %w", title, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to retrieve document")
		return nil, err
	}

	doc := row.document()
	return &doc, nil
}

func (s *documentStore) Set(ctx context.Context, title, code string) error {
	row := codeRow{Title: title, Code: code, UpdatedAt: time.Now().UTC()}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "title"}},
		DoUpdates: clause.AssignmentColumns([]string{"code", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		logrus.WithError(err).WithField("title", title).Error("Failed to save document")
		return err
	}
	return nil
}

func (s *documentStore) List(ctx context.Context) ([]core.Document, error) {
	var rows []codeRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		logrus.WithError(err).Error("Failed to list documents")
		return nil, err
	}

	documents := make([]core.Document, 0, len(rows))
	for _, row := range rows {
		documents = append(documents, row.document())
	}
	return documents, nil
}

func (s *documentStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
