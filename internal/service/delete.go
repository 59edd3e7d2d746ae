// delete.go — сервис удаления файлов: одного по id и всех сразу.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/goartstore/docstore/internal/api/middleware"
	"github.com/bigkaa/goartstore/docstore/internal/domain/model"
	"github.com/bigkaa/goartstore/docstore/internal/repository"
	"github.com/bigkaa/goartstore/docstore/internal/storage/blobstore"
	"github.com/bigkaa/goartstore/docstore/internal/storage/wal"
)

// DeleteService — сервис удаления файлов.
type DeleteService struct {
	blobs       *blobstore.Store
	repo        repository.FileRepository
	walEngine   *wal.WAL
	concurrency int
	logger      *slog.Logger
}

// NewDeleteService создаёт сервис удаления.
// concurrency — максимум параллельных удалений в DeleteAll (<= 0 — без ограничения).
func NewDeleteService(
	blobs *blobstore.Store,
	repo repository.FileRepository,
	walEngine *wal.WAL,
	concurrency int,
	logger *slog.Logger,
) *DeleteService {
	return &DeleteService{
		blobs:       blobs,
		repo:        repo,
		walEngine:   walEngine,
		concurrency: concurrency,
		logger:      logger.With(slog.String("component", "delete_service")),
	}
}

// DeleteOne удаляет файл по id: сначала blob, затем запись метаданных.
// Если удаление blob не удалось, запись остаётся нетронутой.
// Если не удалось удаление записи, blob уже удалён (осиротевшая запись).
func (s *DeleteService) DeleteOne(ctx context.Context, id string) *Error {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			middleware.OperationsTotal.WithLabelValues("delete", "not_found").Inc()
			return errNotFound(fmt.Sprintf("Файл %s не найден", id))
		}
		middleware.OperationsTotal.WithLabelValues("delete", "error").Inc()
		s.logger.Error("Ошибка получения метаданных",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
		return errMetadataStore("Ошибка получения файла", err)
	}

	if e := s.deleteRecord(ctx, rec); e != nil {
		middleware.OperationsTotal.WithLabelValues("delete", "error").Inc()
		return e
	}

	middleware.OperationsTotal.WithLabelValues("delete", "success").Inc()
	s.logger.Info("Файл удалён", slog.String("file_id", id))
	return nil
}

// DeleteAll удаляет все файлы. Каждая запись удаляется независимой задачей;
// ошибка одной задачи не отменяет остальные, уже начатые удаления
// завершаются. Результат — первая возникшая ошибка.
// Частичное удаление не откатывается. Пустое хранилище — успех.
func (s *DeleteService) DeleteAll(ctx context.Context) *Error {
	records, err := s.repo.List(ctx)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("delete_all", "error").Inc()
		s.logger.Error("Ошибка получения списка файлов", slog.String("error", err.Error()))
		return errMetadataStore("Ошибка получения списка файлов", err)
	}

	// Отмена запроса клиентом не прерывает уже начатые удаления
	taskCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}
	for _, rec := range records {
		g.Go(func() error {
			if e := s.deleteRecord(taskCtx, rec); e != nil {
				return e
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		middleware.OperationsTotal.WithLabelValues("delete_all", "error").Inc()
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return svcErr
		}
		return errStorageIO("Ошибка удаления файлов", err)
	}

	middleware.OperationsTotal.WithLabelValues("delete_all", "success").Inc()
	s.logger.Info("Все файлы удалены", slog.Int("count", len(records)))
	return nil
}

// deleteRecord удаляет blob и запись одного файла в рамках записи журнала.
func (s *DeleteService) deleteRecord(ctx context.Context, rec *model.FileRecord) *Error {
	entry, err := s.walEngine.Start(wal.OpFileDelete, rec.ID, rec.StoragePath)
	if err != nil {
		s.logger.Warn("Ошибка записи журнала",
			slog.String("file_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.blobs.Delete(rec.StoragePath); err != nil {
		s.logger.Error("Ошибка удаления файла с диска",
			slog.String("file_id", rec.ID),
			slog.String("storage_path", rec.StoragePath),
			slog.String("error", err.Error()),
		)
		s.finishEntry(entry, false)
		return errStorageIO("Ошибка удаления файла", err)
	}

	if err := s.repo.DeleteByID(ctx, rec.ID); err != nil {
		// blob уже удалён: запись журнала остаётся pending до восстановления
		s.logger.Error("Ошибка удаления метаданных, запись осталась без файла",
			slog.String("file_id", rec.ID),
			slog.String("error", err.Error()),
		)
		return errMetadataStore("Ошибка удаления метаданных файла", err)
	}

	s.finishEntry(entry, true)
	middleware.FilesTotal.Dec()
	return nil
}

// finishEntry фиксирует или откатывает запись журнала (nil — журнал недоступен).
func (s *DeleteService) finishEntry(entry *wal.Entry, commit bool) {
	if entry == nil {
		return
	}

	var err error
	if commit {
		err = s.walEngine.Commit(entry.TransactionID)
	} else {
		err = s.walEngine.Rollback(entry.TransactionID)
	}
	if err != nil {
		s.logger.Warn("Ошибка завершения записи журнала",
			slog.String("tx_id", entry.TransactionID),
			slog.String("error", err.Error()),
		)
	}
}
