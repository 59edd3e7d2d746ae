// reconcile.go — сервис сверки (Reconciliation) директории загрузок
// с хранилищем метаданных.
//
// Обнаруживает проблемы:
//   - orphaned_blob: файл на диске без записи метаданных
//   - missing_blob: запись метаданных без файла на диске
//
// Сверка только сообщает о проблемах и ничего не исправляет.
// Запускается периодически (DS_RECONCILE_INTERVAL), по запросу через
// POST /maintenance/reconcile и командой docstore reconcile.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/docstore/internal/api/middleware"
	"github.com/bigkaa/goartstore/docstore/internal/repository"
	"github.com/bigkaa/goartstore/docstore/internal/storage/blobstore"
	"github.com/bigkaa/goartstore/docstore/internal/storage/wal"
)

// Prometheus метрики Reconciliation
var (
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ds_reconcile_runs_total",
		Help: "Общее количество запусков reconciliation",
	})

	reconcileIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ds_reconcile_issues_total",
		Help: "Общее количество проблем, обнаруженных reconciliation",
	}, []string{"type"})

	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ds_reconcile_duration_seconds",
		Help:    "Длительность выполнения reconciliation в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// IssueType — тип расхождения.
type IssueType string

const (
	IssueOrphanedBlob IssueType = "orphaned_blob"
	IssueMissingBlob  IssueType = "missing_blob"
)

// ReconcileIssue — одно обнаруженное расхождение.
type ReconcileIssue struct {
	Type        IssueType `json:"type"`
	FileID      string    `json:"file_id,omitempty"`
	Path        string    `json:"path"`
	Description string    `json:"description"`
}

// ReconcileSummary — сводка по типам расхождений.
type ReconcileSummary struct {
	OK            int `json:"ok"`
	OrphanedBlobs int `json:"orphaned_blobs"`
	MissingBlobs  int `json:"missing_blobs"`
}

// ReconcileResult — результат одного запуска сверки.
type ReconcileResult struct {
	StartedAt    time.Time        `json:"started_at"`
	CompletedAt  time.Time        `json:"completed_at"`
	FilesChecked int              `json:"files_checked"`
	Issues       []ReconcileIssue `json:"issues"`
	Summary      ReconcileSummary `json:"summary"`
}

// ReconcileService — сервис сверки хранилища.
type ReconcileService struct {
	blobs     *blobstore.Store
	repo      repository.FileRepository
	walEngine *wal.WAL
	interval  time.Duration
	logger    *slog.Logger

	mu        sync.Mutex // защита от параллельного запуска
	inProcess bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewReconcileService создаёт сервис reconciliation.
// walEngine может быть nil: тогда завершённые записи журнала не очищаются.
func NewReconcileService(
	blobs *blobstore.Store,
	repo repository.FileRepository,
	walEngine *wal.WAL,
	interval time.Duration,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		blobs:     blobs,
		repo:      repo,
		walEngine: walEngine,
		interval:  interval,
		logger:    logger.With(slog.String("component", "reconcile")),
	}
}

// Start запускает фоновую горутину reconciliation с периодическим тикером.
func (rs *ReconcileService) Start(ctx context.Context) {
	rsCtx, cancel := context.WithCancel(ctx)
	rs.cancel = cancel
	rs.done = make(chan struct{})

	go rs.run(rsCtx)

	rs.logger.Info("Reconciliation запущена",
		slog.String("interval", rs.interval.String()),
	)
}

// Stop останавливает фоновый процесс и дожидается его завершения.
func (rs *ReconcileService) Stop() {
	if rs.cancel == nil {
		return
	}
	rs.cancel()
	<-rs.done
	rs.logger.Info("Reconciliation остановлена")
}

// IsInProgress возвращает true, если reconciliation выполняется.
func (rs *ReconcileService) IsInProgress() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.inProcess
}

func (rs *ReconcileService) run(ctx context.Context) {
	defer close(rs.done)

	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := rs.RunOnce(ctx); err != nil {
				rs.logger.Error("Ошибка reconciliation", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce выполняет один цикл reconciliation.
// Если reconciliation уже выполняется, возвращает nil, true, nil.
func (rs *ReconcileService) RunOnce(ctx context.Context) (*ReconcileResult, bool, error) {
	rs.mu.Lock()
	if rs.inProcess {
		rs.mu.Unlock()
		rs.logger.Warn("Reconciliation уже выполняется, пропуск")
		return nil, true, nil
	}
	rs.inProcess = true
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		rs.inProcess = false
		rs.mu.Unlock()
	}()

	startedAt := time.Now().UTC()
	rs.logger.Info("Reconciliation начата")

	result, err := rs.reconcile(ctx)
	if err != nil {
		return nil, false, err
	}
	result.StartedAt = startedAt
	result.CompletedAt = time.Now().UTC()
	duration := result.CompletedAt.Sub(startedAt)

	// Периодическая очистка завершённых записей журнала
	if rs.walEngine != nil {
		if _, cleanErr := rs.walEngine.CleanCompleted(); cleanErr != nil {
			rs.logger.Warn("Ошибка очистки журнала", slog.String("error", cleanErr.Error()))
		}
	}

	reconcileRunsTotal.Inc()
	reconcileDurationSeconds.Observe(duration.Seconds())
	for _, issue := range result.Issues {
		reconcileIssuesTotal.WithLabelValues(string(issue.Type)).Inc()
	}

	rs.logger.Info("Reconciliation завершена",
		slog.Int("files_checked", result.FilesChecked),
		slog.Int("issues", len(result.Issues)),
		slog.Int("ok", result.Summary.OK),
		slog.Duration("duration", duration),
	)

	return result, false, nil
}

// reconcile сравнивает файлы на диске с записями метаданных.
func (rs *ReconcileService) reconcile(ctx context.Context) (*ReconcileResult, error) {
	records, err := rs.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения записей: %w", err)
	}
	paths, err := rs.blobs.List()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории загрузок: %w", err)
	}

	onDisk := make(map[string]bool, len(paths))
	for _, p := range paths {
		onDisk[p] = true
	}

	result := &ReconcileResult{
		FilesChecked: len(records),
		Issues:       []ReconcileIssue{},
	}

	referenced := make(map[string]bool, len(records))
	for _, rec := range records {
		referenced[rec.StoragePath] = true
		if onDisk[rec.StoragePath] {
			result.Summary.OK++
			continue
		}
		result.Issues = append(result.Issues, ReconcileIssue{
			Type:        IssueMissingBlob,
			FileID:      rec.ID,
			Path:        rec.StoragePath,
			Description: "Запись метаданных без файла на диске",
		})
		result.Summary.MissingBlobs++
	}

	for _, p := range paths {
		if referenced[p] {
			continue
		}
		result.Issues = append(result.Issues, ReconcileIssue{
			Type:        IssueOrphanedBlob,
			Path:        p,
			Description: "Файл на диске без записи метаданных",
		})
		result.Summary.OrphanedBlobs++
	}

	sort.Slice(result.Issues, func(i, j int) bool {
		return result.Issues[i].Path < result.Issues[j].Path
	})

	middleware.FilesTotal.Set(float64(len(records)))

	return result, nil
}
