// recovery.go — разрешение незавершённых записей журнала при старте.
//
// Правила:
//   - file_create, запись метаданных есть → commit
//   - file_create, записи нет → удаление осиротевшего blob, rollback
//   - file_delete, blob отсутствует → удаление записи метаданных, commit
//   - file_delete, blob на месте → rollback (ничего не удалено)
//
// Выполняется до запуска HTTP-сервера: в это время параллельных
// операций нет, и pending записи отражают только прерванные операции.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/goartstore/docstore/internal/repository"
	"github.com/bigkaa/goartstore/docstore/internal/storage/blobstore"
	"github.com/bigkaa/goartstore/docstore/internal/storage/wal"
)

// RecoveryResult — итог восстановления.
type RecoveryResult struct {
	Committed  int
	RolledBack int
	Failed     int
	Cleaned    int
}

// RecoveryService — восстановление согласованности после сбоя.
type RecoveryService struct {
	blobs     *blobstore.Store
	repo      repository.FileRepository
	walEngine *wal.WAL
	logger    *slog.Logger
}

// NewRecoveryService создаёт сервис восстановления.
func NewRecoveryService(
	blobs *blobstore.Store,
	repo repository.FileRepository,
	walEngine *wal.WAL,
	logger *slog.Logger,
) *RecoveryService {
	return &RecoveryService{
		blobs:     blobs,
		repo:      repo,
		walEngine: walEngine,
		logger:    logger.With(slog.String("component", "recovery")),
	}
}

// Run разрешает все pending записи журнала и удаляет завершённые.
// Ошибка отдельной записи не прерывает обработку остальных:
// запись остаётся pending и будет обработана при следующем старте.
func (rs *RecoveryService) Run(ctx context.Context) (*RecoveryResult, error) {
	pending, err := rs.walEngine.Pending()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала: %w", err)
	}

	result := &RecoveryResult{}
	for _, entry := range pending {
		committed, err := rs.resolve(ctx, entry)
		if err != nil {
			result.Failed++
			rs.logger.Error("Не удалось разрешить запись журнала",
				slog.String("tx_id", entry.TransactionID),
				slog.String("operation", string(entry.Operation)),
				slog.String("file_id", entry.FileID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if committed {
			result.Committed++
		} else {
			result.RolledBack++
		}
	}

	cleaned, err := rs.walEngine.CleanCompleted()
	if err != nil {
		return result, fmt.Errorf("ошибка очистки журнала: %w", err)
	}
	result.Cleaned = cleaned

	if len(pending) > 0 {
		rs.logger.Info("Восстановление журнала завершено",
			slog.Int("pending", len(pending)),
			slog.Int("committed", result.Committed),
			slog.Int("rolled_back", result.RolledBack),
			slog.Int("failed", result.Failed),
			slog.Int("cleaned", result.Cleaned),
		)
	}

	return result, nil
}

// resolve доводит одну запись до конечного статуса.
// Возвращает true, если операция зафиксирована, false — если отменена.
func (rs *RecoveryService) resolve(ctx context.Context, entry *wal.Entry) (bool, error) {
	switch entry.Operation {
	case wal.OpFileCreate:
		return rs.resolveCreate(ctx, entry)
	case wal.OpFileDelete:
		return rs.resolveDelete(ctx, entry)
	default:
		return false, fmt.Errorf("неизвестная операция %q", entry.Operation)
	}
}

func (rs *RecoveryService) resolveCreate(ctx context.Context, entry *wal.Entry) (bool, error) {
	_, err := rs.repo.GetByID(ctx, entry.FileID)
	switch {
	case err == nil:
		return true, rs.walEngine.Commit(entry.TransactionID)
	case !errors.Is(err, repository.ErrNotFound):
		return false, err
	}

	if err := rs.blobs.Delete(entry.StoragePath); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		return false, err
	}
	rs.logger.Info("Удалён blob незавершённой загрузки",
		slog.String("file_id", entry.FileID),
		slog.String("storage_path", entry.StoragePath),
	)
	return false, rs.walEngine.Rollback(entry.TransactionID)
}

func (rs *RecoveryService) resolveDelete(ctx context.Context, entry *wal.Entry) (bool, error) {
	if rs.blobs.Exists(entry.StoragePath) {
		return false, rs.walEngine.Rollback(entry.TransactionID)
	}

	if err := rs.repo.DeleteByID(ctx, entry.FileID); err != nil {
		return false, err
	}
	rs.logger.Info("Удалена запись незавершённого удаления",
		slog.String("file_id", entry.FileID),
	)
	return true, rs.walEngine.Commit(entry.TransactionID)
}
