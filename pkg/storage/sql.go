package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/angelmondragon/storefront/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQL keeps values in the kv_entries table (see pkg/migrate). Every write bumps
// a version column, which Watch polls to notice writes from other processes.
type SQL struct {
	db           *gorm.DB
	pollInterval time.Duration
}

// NewSQL wraps an open connection whose schema is already migrated.
func NewSQL(conn *gorm.DB, pollInterval time.Duration) (*SQL, error) {
	if conn == nil {
		return nil, errors.New("db connection required")
	}
	return &SQL{db: conn, pollInterval: pollInterval}, nil
}

func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	var entry models.KVEntry
	err := s.db.WithContext(ctx).Where(`"key" = ?`, key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %q: %w", key, err)
	}
	return []byte(entry.Value), nil
}

func (s *SQL) Set(ctx context.Context, key string, value []byte) error {
	entry := models.KVEntry{Key: key, Value: string(value), Version: 1, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      entry.Value,
			"version":    gorm.Expr("kv_entries.version + 1"),
			"updated_at": entry.UpdatedAt,
		}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("upsert %q: %w", key, err)
	}
	return nil
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Where(`"key" = ?`, key).Delete(&models.KVEntry{}).Error
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Watch polls the entry's version and update time.
func (s *SQL) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	return pollWatch(ctx, s.pollInterval, func(ctx context.Context) (string, error) {
		var entry models.KVEntry
		err := s.db.WithContext(ctx).Select("version", "updated_at").Where(`"key" = ?`, key).First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "absent", nil
		}
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(entry.Version, 10) + ":" + strconv.FormatInt(entry.UpdatedAt.UnixNano(), 10), nil
	}), nil
}
