package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bigkaa/goartstore/docstore/internal/config"
	"github.com/bigkaa/goartstore/docstore/internal/database"
	"github.com/bigkaa/goartstore/docstore/internal/storage/blobstore"
	"github.com/bigkaa/goartstore/docstore/internal/storage/wal"
)

// storageSet — открытые хранилища: файлы, журнал и метаданные.
type storageSet struct {
	blobs     *blobstore.Store
	walEngine *wal.WAL
	db        *database.Store
}

// openStorage открывает хранилища в порядке: файлы, журнал, метаданные
// (с применением миграций).
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storageSet, error) {
	blobs, err := blobstore.New(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации хранилища файлов: %w", err)
	}

	walEngine, err := wal.New(cfg.WALDir, logger)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации журнала: %w", err)
	}

	db, err := database.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &storageSet{blobs: blobs, walEngine: walEngine, db: db}, nil
}

// Close закрывает соединения с хранилищем метаданных.
func (s *storageSet) Close() {
	s.db.Close()
}
