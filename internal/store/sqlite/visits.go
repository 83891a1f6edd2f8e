// Package sqlite implements the CounterStore on an embedded SQLite database
// through gorm. It serves local development and tests; production uses the
// postgres store.
package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/MrSnakeDoc/visits/internal/domain"
)

// Visit is the gorm model of the visits table.
type Visit struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	ClientAddress string    `gorm:"column:client_address;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;autoCreateTime"`
}

// TableName pins the table name shared with the postgres store.
func (Visit) TableName() string {
	return "visits"
}

// Store implements domain.CounterStore on SQLite.
type Store struct {
	db *gorm.DB
}

var (
	_ domain.CounterStore = (*Store)(nil)
	_ domain.VisitLister  = (*Store)(nil)
)

// Open opens (or creates) the database at path. Use ":memory:" for an
// ephemeral database. verbose turns on gorm's SQL logging.
func Open(path string, verbose bool) (*Store, error) {
	level := gormlogger.Silent
	if verbose {
		level = gormlogger.Info
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}

	// A single connection keeps ":memory:" databases alive and serializes writers.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sqlite pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return &Store{db: db}, nil
}

// EnsureSchema auto-migrates the visits table.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Visit{}); err != nil {
		return fmt.Errorf("%w: failed to migrate visits table: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Insert appends one visit inside an implicit transaction.
func (s *Store) Insert(ctx context.Context, clientAddress string) error {
	v := Visit{ClientAddress: clientAddress}
	if err := s.db.WithContext(ctx).Create(&v).Error; err != nil {
		return fmt.Errorf("%w: failed to insert visit: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Count returns the total number of visits.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Visit{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("%w: failed to count visits: %w", domain.ErrStoreUnavailable, err)
	}
	return count, nil
}

// List returns the most recent visits, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]domain.Visit, error) {
	var rows []Visit
	if err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to list visits: %w", domain.ErrStoreUnavailable, err)
	}
	visits := make([]domain.Visit, 0, len(rows))
	for _, r := range rows {
		visits = append(visits, domain.Visit{ID: r.ID, ClientAddress: r.ClientAddress, CreatedAt: r.CreatedAt})
	}
	return visits, nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
