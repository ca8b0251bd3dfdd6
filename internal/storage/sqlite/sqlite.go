// Package sqlite keeps the event log and checkpoints in a SQLite database
// through gorm.
package sqlite

import (
	"context"
	"fmt"

	"github.com/goodtune/focuswatch/internal/eventlog"
	"github.com/goodtune/focuswatch/internal/storage"
	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const scanBatchSize = 500

// Store implements storage.Store on SQLite.
type Store struct {
	db *gorm.DB
}

// Open connects to the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	if err := storage.EnsureParentDir(path); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&ActivityRecord{}, &Checkpoint{}); err != nil {
		store := &Store{db: db}
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying sql.DB.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Events returns the event log backend.
func (s *Store) Events() eventlog.Backend { return &eventRepository{db: s.db} }

// Checkpoints returns the checkpoint store.
func (s *Store) Checkpoints() storage.CheckpointStore { return &checkpointRepository{db: s.db} }

type eventRepository struct {
	db *gorm.DB
}

// Append inserts one record in its own statement.
func (r *eventRepository) Append(ctx context.Context, line []byte) error {
	record := ActivityRecord{Line: string(line)}
	if result := r.db.WithContext(ctx).Create(&record); result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert activity record")
	}
	return nil
}

// Scan reads records one batch at a time. FindInBatches pages by primary
// key, so records come back in append order.
func (r *eventRepository) Scan(ctx context.Context, fn func(line []byte) error) error {
	var batch []ActivityRecord
	result := r.db.WithContext(ctx).
		FindInBatches(&batch, scanBatchSize, func(tx *gorm.DB, _ int) error {
			for _, record := range batch {
				if err := fn([]byte(record.Line)); err != nil {
					return err
				}
			}
			return nil
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to scan activity records")
	}
	return nil
}

// Size returns the highest record ID.
func (r *eventRepository) Size(ctx context.Context) (int64, error) {
	var size int64
	result := r.db.WithContext(ctx).
		Model(&ActivityRecord{}).
		Select("COALESCE(MAX(id), 0)").
		Scan(&size)
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to query activity size")
	}
	return size, nil
}

type checkpointRepository struct {
	db *gorm.DB
}

func (r *checkpointRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var checkpoint Checkpoint
	result := r.db.WithContext(ctx).Where("key = ?", key).Limit(1).Find(&checkpoint)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to get checkpoint")
	}
	if result.RowsAffected == 0 {
		return nil, storage.ErrNotFound
	}
	return checkpoint.Value, nil
}

func (r *checkpointRepository) Put(ctx context.Context, key string, value []byte) error {
	checkpoint := Checkpoint{Key: key, Value: value}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&checkpoint)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to save checkpoint")
	}
	return nil
}

func (r *checkpointRepository) Delete(ctx context.Context, key string) error {
	result := r.db.WithContext(ctx).Where("key = ?", key).Delete(&Checkpoint{})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to delete checkpoint")
	}
	return nil
}
