// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package llmcache is a SQLite-backed gollm.CacheStore. Optimization runs
// issue many identical requests; caching them makes re-runs cheap.
package llmcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/crewtune/crewtune/gollm"
)

// Entry is one cached completion.
type Entry struct {
	Key       string    `gorm:"column:cache_key;primaryKey;size:64"`
	Model     string    `gorm:"size:200;index"`
	Response  string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	Hits      int       `gorm:"default:0"`
}

func (Entry) TableName() string {
	return "completions"
}

// Store implements gollm.CacheStore on top of gorm.
type Store struct {
	db *gorm.DB
}

var _ gollm.CacheStore = &Store{}

// Open opens (creating if needed) the cache database at path. The special
// path ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening cache database %q: %w", path, err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrating cache database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var e Entry
	err := s.db.WithContext(ctx).First(&e, "cache_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading cache entry: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&Entry{}).Where("cache_key = ?", key).
		UpdateColumn("hits", gorm.Expr("hits + 1")).Error; err != nil {
		return "", false, fmt.Errorf("updating cache hit count: %w", err)
	}
	return e.Response, true, nil
}

func (s *Store) Put(ctx context.Context, key, model, text string) error {
	e := Entry{Key: key, Model: model, Response: text}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"model", "response"}),
	}).Create(&e).Error
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Stats reports the number of cached completions and total hits.
func (s *Store) Stats(ctx context.Context) (entries int64, hits int64, err error) {
	if err := s.db.WithContext(ctx).Model(&Entry{}).Count(&entries).Error; err != nil {
		return 0, 0, fmt.Errorf("counting cache entries: %w", err)
	}
	var total struct{ Hits int64 }
	if err := s.db.WithContext(ctx).Model(&Entry{}).Select("COALESCE(SUM(hits), 0) AS hits").Scan(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("summing cache hits: %w", err)
	}
	return entries, total.Hits, nil
}

// Purge deletes all cached completions.
func (s *Store) Purge(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Entry{}).Error; err != nil {
		return fmt.Errorf("purging cache: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
