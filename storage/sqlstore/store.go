// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlstore implements storage.MetadataStore on a relational database
// through gorm, with PostgreSQL for deployments and SQLite for local runs.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Supported dialects.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// PublicationRow is the publications table. Missing optional fields are
// stored as core.NotAvailable.
type PublicationRow struct {
	ID          uint   `gorm:"primaryKey"`
	Title       string `gorm:"uniqueIndex;not null"`
	Summary     string
	ImageLink   string
	DetailLink  string
	FileLink    string
	ImageObject string
	FileObject  string
	InsertedAt  time.Time `gorm:"index"`
}

// TableName pins the table name.
func (PublicationRow) TableName() string {
	return "publications"
}

// Store implements storage.MetadataStore.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ storage.MetadataStore = (*Store)(nil)

// Open connects with the given dialect and migrates the publications table.
func Open(dialect, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch dialect {
	case DialectPostgres:
		dialector = postgres.Open(dsn)
	case DialectSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported SQL dialect %q", dialect)
	}

	logger := slog.Default().With("component", "sql-metadata", "dialect", dialect)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		logger.Error("failed to connect", "err", err)
		return nil, fmt.Errorf("failed to connect to %s: %w", dialect, err)
	}

	if err := db.AutoMigrate(&PublicationRow{}); err != nil {
		logger.Error("auto migration failed", "err", err)
		return nil, err
	}

	return &Store{db: db, logger: logger}, nil
}

// InsertIfAbsent inserts with ON CONFLICT (title) DO NOTHING.
func (s *Store) InsertIfAbsent(ctx context.Context, pub *core.Publication) (bool, error) {
	if err := core.ValidatePublication(pub); err != nil {
		return false, err
	}

	row := toRow(pub)
	if row.InsertedAt.IsZero() {
		row.InsertedAt = time.Now().UTC()
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "title"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("failed to insert %q: %w", pub.Title, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	pub.InsertedAt = row.InsertedAt
	return true, nil
}

// Get retrieves a publication by title.
func (s *Store) Get(ctx context.Context, title string) (*core.Publication, error) {
	var row PublicationRow
	err := s.db.WithContext(ctx).Where("title = ?", title).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromRow(&row), nil
}

// List returns all publications in insertion order.
func (s *Store) List(ctx context.Context) ([]*core.Publication, error) {
	var rows []PublicationRow
	if err := s.db.WithContext(ctx).Order("inserted_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	pubs := make([]*core.Publication, len(rows))
	for i := range rows {
		pubs[i] = fromRow(&rows[i])
	}
	return pubs, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRow(pub *core.Publication) PublicationRow {
	doc := storage.ToDocument(pub)
	return PublicationRow{
		Title:       doc.Title,
		Summary:     doc.Summary,
		ImageLink:   doc.ImageLink,
		DetailLink:  doc.DetailLink,
		FileLink:    doc.FileLink,
		ImageObject: doc.ImageObject,
		FileObject:  doc.FileObject,
		InsertedAt:  doc.InsertedAt,
	}
}

func fromRow(row *PublicationRow) *core.Publication {
	return storage.FromDocument(&storage.PublicationDocument{
		Title:       row.Title,
		Summary:     row.Summary,
		ImageLink:   row.ImageLink,
		DetailLink:  row.DetailLink,
		FileLink:    row.FileLink,
		ImageObject: row.ImageObject,
		FileObject:  row.FileObject,
		InsertedAt:  row.InsertedAt,
	})
}
