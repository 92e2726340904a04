// Package gormstore persists push store documents in PostgreSQL through gorm.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/ahmetcoskunkizilkaya/fellowship/internal/models"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/store"
	"github.com/codeGROOVE-dev/retry"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Backend struct {
	db     *gorm.DB
	logger *slog.Logger
}

func New(db *gorm.DB, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{db: db, logger: logger}
}

func (b *Backend) Get(ctx context.Context, path, key string) (store.Document, bool, error) {
	var row models.Document
	err := b.db.WithContext(ctx).Where("path = ? AND key = ?", path, key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.Document{}, false, nil
	}
	if err != nil {
		return store.Document{}, false, err
	}
	doc, err := decode(row)
	if err != nil {
		return store.Document{}, false, err
	}
	return doc, true, nil
}

// Put upserts on (path, key). Seq is left alone on conflict so a replaced
// document keeps its place among equal timestamps.
func (b *Backend) Put(ctx context.Context, doc store.Document) error {
	data, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	row := models.Document{
		Path:      doc.Path,
		Key:       doc.Key,
		OrderMs:   doc.Order,
		Data:      datatypes.JSON(data),
		UpdatedAt: time.Now(),
	}

	return b.write(ctx, "put", doc.Path, doc.Key, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "path"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"order_ms", "data", "updated_at"}),
		}).Create(&row).Error
	})
}

func (b *Backend) Remove(ctx context.Context, path, key string) error {
	return b.write(ctx, "remove", path, key, func(tx *gorm.DB) error {
		return tx.Where("path = ? AND key = ?", path, key).Delete(&models.Document{}).Error
	})
}

func (b *Backend) LastN(ctx context.Context, path string, n int) ([]store.Document, error) {
	var rows []models.Document
	err := b.db.WithContext(ctx).
		Where("path = ?", path).
		Order("order_ms DESC, seq DESC").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	slices.Reverse(rows)
	docs := make([]store.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := decode(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Close is a no-op; the connection pool belongs to the database package.
func (b *Backend) Close() error { return nil }

func (b *Backend) write(ctx context.Context, op, path, key string, fn func(tx *gorm.DB) error) error {
	err := retry.Do(
		func() error {
			return fn(b.db.WithContext(ctx))
		},
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.MaxDelay(2*time.Second),
		retry.MaxJitter(100*time.Millisecond),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			b.logger.Warn("retrying document write", "action", op, "collection", path, "item_id", key, "attempt", n, "error", err)
		}),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
	)
	if err != nil {
		return fmt.Errorf("%s after retries: %w", op, err)
	}
	return nil
}

func decode(row models.Document) (store.Document, error) {
	var fields map[string]any
	if err := json.Unmarshal(row.Data, &fields); err != nil {
		return store.Document{}, fmt.Errorf("unmarshal %s/%s: %w", row.Path, row.Key, err)
	}
	return store.Document{
		Path:   row.Path,
		Key:    row.Key,
		Order:  row.OrderMs,
		Seq:    row.Seq,
		Fields: fields,
	}, nil
}
