// Package offlinequeue keeps signature submissions on the kiosk device,
// encrypted, until they reach the server.
package offlinequeue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// kvEntry is one row of the device store.
type kvEntry struct {
	Key       string `gorm:"primaryKey"`
	Value     []byte `gorm:"not null"`
	CreatedAt time.Time
}

func (kvEntry) TableName() string { return "kv_entries" }

// SQLiteStore is the device-local KeyValueStore.
type SQLiteStore struct {
	db  *gorm.DB
	log zerolog.Logger
}

var _ ports.KeyValueStore = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the store at path.
func OpenSQLite(path string, baseLogger *zerolog.Logger) (*SQLiteStore, error) {
	log := baseLogger.With().Str("component", "device_store").Logger()
	log.Debug().Str("path", path).Msg("Opening device store")

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open device store: %w", err)
	}
	// One connection serializes writers; sqlite would otherwise report
	// "database is locked" when a sync runs next to a new submission.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open device store: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&kvEntry{}); err != nil {
		return nil, fmt.Errorf("migrate device store: %w", err)
	}
	return &SQLiteStore{db: db, log: log}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var e kvEntry
	err := s.db.WithContext(ctx).Where("`key` = ?", key).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return e.Value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&kvEntry{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("`key` = ?", key).Delete(&kvEntry{}).Error; err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keys lists keys starting with prefix. substr is used instead of LIKE
// because the prefixes contain '_'.
func (s *SQLiteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).Model(&kvEntry{}).
		Where("substr(`key`, 1, ?) = ?", len(prefix), prefix).
		Order("`key`").
		Pluck("key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("list keys %s: %w", prefix, err)
	}
	return keys, nil
}
