// download.go — сервис скачивания файлов.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/goartstore/docstore/internal/api/middleware"
	"github.com/bigkaa/goartstore/docstore/internal/domain/model"
	"github.com/bigkaa/goartstore/docstore/internal/repository"
	"github.com/bigkaa/goartstore/docstore/internal/storage/blobstore"
)

// DownloadService — сервис скачивания файлов.
type DownloadService struct {
	blobs  *blobstore.Store
	repo   repository.FileRepository
	logger *slog.Logger
}

// NewDownloadService создаёт сервис скачивания файлов.
func NewDownloadService(
	blobs *blobstore.Store,
	repo repository.FileRepository,
	logger *slog.Logger,
) *DownloadService {
	return &DownloadService{
		blobs:  blobs,
		repo:   repo,
		logger: logger.With(slog.String("component", "download_service")),
	}
}

// Open находит запись по id и открывает blob для чтения.
// Вызывающий код обязан закрыть файл.
// Отсутствие blob при существующей записи — StorageIOError, а не NotFound.
func (s *DownloadService) Open(ctx context.Context, id string) (*os.File, *model.FileRecord, *Error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			middleware.OperationsTotal.WithLabelValues("download", "not_found").Inc()
			return nil, nil, errNotFound(fmt.Sprintf("Файл %s не найден", id))
		}
		middleware.OperationsTotal.WithLabelValues("download", "error").Inc()
		s.logger.Error("Ошибка получения метаданных",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
		return nil, nil, errMetadataStore("Ошибка получения файла", err)
	}

	f, err := s.blobs.Open(rec.StoragePath)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("download", "error").Inc()
		s.logger.Error("Ошибка открытия файла",
			slog.String("file_id", id),
			slog.String("storage_path", rec.StoragePath),
			slog.String("error", err.Error()),
		)
		return nil, nil, errStorageIO("Ошибка получения файла", err)
	}

	middleware.OperationsTotal.WithLabelValues("download", "success").Inc()
	return f, rec, nil
}
