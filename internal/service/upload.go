// upload.go — сервис загрузки файлов.
package service

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/docstore/internal/api/middleware"
	"github.com/bigkaa/goartstore/docstore/internal/domain/model"
	"github.com/bigkaa/goartstore/docstore/internal/repository"
	"github.com/bigkaa/goartstore/docstore/internal/storage/blobstore"
	"github.com/bigkaa/goartstore/docstore/internal/storage/wal"
)

// UploadParams — параметры загрузки файла.
type UploadParams struct {
	// Reader — поток данных файла (nil — файл не передан)
	Reader io.Reader
	// OriginalFilename — имя файла, переданное клиентом
	OriginalFilename string
}

// UploadService — сервис загрузки файлов.
type UploadService struct {
	blobs     *blobstore.Store
	repo      repository.FileRepository
	walEngine *wal.WAL
	logger    *slog.Logger
}

// NewUploadService создаёт сервис загрузки файлов.
func NewUploadService(
	blobs *blobstore.Store,
	repo repository.FileRepository,
	walEngine *wal.WAL,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		blobs:     blobs,
		repo:      repo,
		walEngine: walEngine,
		logger:    logger.With(slog.String("component", "upload_service")),
	}
}

// Upload сохраняет файл и создаёт запись метаданных.
//
// Поток:
//  1. Проверка наличия файла
//  2. Запись blob на диск
//  3. Генерация id (UUID v4)
//  4. WAL Start (file_create)
//  5. Вставка записи в хранилище метаданных
//  6. WAL Commit
//
// Если вставка не удалась, blob остаётся на диске, а запись журнала —
// в статусе pending. Её разрешает восстановление при следующем старте.
func (s *UploadService) Upload(ctx context.Context, params UploadParams) (*model.FileRecord, *Error) {
	if params.Reader == nil {
		middleware.OperationsTotal.WithLabelValues("upload", "bad_request").Inc()
		return nil, errBadRequest("Документ не передан")
	}

	storagePath, err := s.blobs.Write(params.OriginalFilename, params.Reader)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("upload", "error").Inc()
		s.logger.Error("Ошибка сохранения файла",
			slog.String("filename", params.OriginalFilename),
			slog.String("error", err.Error()),
		)
		return nil, errStorageIO("Ошибка сохранения файла", err)
	}

	rec := &model.FileRecord{
		ID:               uuid.New().String(),
		OriginalFilename: params.OriginalFilename,
		StoragePath:      storagePath,
	}

	entry, err := s.walEngine.Start(wal.OpFileCreate, rec.ID, storagePath)
	if err != nil {
		// Журнал — вспомогательный механизм, загрузка продолжается без него
		s.logger.Warn("Ошибка записи журнала",
			slog.String("file_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.repo.Insert(ctx, rec); err != nil {
		middleware.OperationsTotal.WithLabelValues("upload", "error").Inc()
		s.logger.Error("Ошибка сохранения метаданных, blob остаётся на диске",
			slog.String("file_id", rec.ID),
			slog.String("storage_path", storagePath),
			slog.String("error", err.Error()),
		)
		return nil, errMetadataStore("Ошибка сохранения метаданных файла", err)
	}

	if entry != nil {
		if err := s.walEngine.Commit(entry.TransactionID); err != nil {
			s.logger.Warn("Ошибка коммита журнала (данные сохранены)",
				slog.String("tx_id", entry.TransactionID),
				slog.String("error", err.Error()),
			)
		}
	}

	middleware.OperationsTotal.WithLabelValues("upload", "success").Inc()
	middleware.FilesTotal.Inc()

	s.logger.Info("Файл загружен",
		slog.String("file_id", rec.ID),
		slog.String("filename", rec.OriginalFilename),
		slog.String("storage_path", rec.StoragePath),
	)

	return rec, nil
}
