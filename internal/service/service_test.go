package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bigkaa/goartstore/docstore/internal/config"
	"github.com/bigkaa/goartstore/docstore/internal/database"
	"github.com/bigkaa/goartstore/docstore/internal/domain/model"
	"github.com/bigkaa/goartstore/docstore/internal/repository"
	"github.com/bigkaa/goartstore/docstore/internal/storage/blobstore"
	"github.com/bigkaa/goartstore/docstore/internal/storage/wal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testEnv — окружение сервисов на временной директории и SQLite.
type testEnv struct {
	blobs *blobstore.Store
	repo  repository.FileRepository
	wal   *wal.WAL

	upload   *UploadService
	download *DownloadService
	deleter  *DeleteService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	blobs, err := blobstore.New(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}
	walEngine, err := wal.New(filepath.Join(dir, "wal"), testLogger())
	if err != nil {
		t.Fatalf("wal.New: %v", err)
	}
	store, err := database.Open(context.Background(), &config.Config{
		DBDriver: config.DriverSQLite,
		DBPath:   filepath.Join(dir, "db.sqlite"),
	}, testLogger())
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(store.Close)

	env := &testEnv{blobs: blobs, repo: store.Repo, wal: walEngine}
	env.rebuild(store.Repo)
	return env
}

// rebuild пересоздаёт сервисы поверх другого репозитория.
func (e *testEnv) rebuild(repo repository.FileRepository) {
	logger := testLogger()
	e.upload = NewUploadService(e.blobs, repo, e.wal, logger)
	e.download = NewDownloadService(e.blobs, repo, logger)
	e.deleter = NewDeleteService(e.blobs, repo, e.wal, 4, logger)
}

// mustUpload загружает файл и завершает тест при ошибке.
func (e *testEnv) mustUpload(t *testing.T, name, content string) *model.FileRecord {
	t.Helper()

	rec, svcErr := e.upload.Upload(context.Background(), UploadParams{
		Reader:           strings.NewReader(content),
		OriginalFilename: name,
	})
	if svcErr != nil {
		t.Fatalf("Upload(%s): %v", name, svcErr)
	}
	return rec
}

func (e *testEnv) count(t *testing.T) int {
	t.Helper()

	n, err := e.repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	return n
}

func (e *testEnv) pending(t *testing.T) []*wal.Entry {
	t.Helper()

	entries, err := e.wal.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	return entries
}

// faultyRepo — репозиторий с внедряемыми ошибками.
type faultyRepo struct {
	repository.FileRepository
	insertErr error
	deleteErr error
	// deleteErrFor — ошибка удаления только для указанного id
	deleteErrFor string
}

func (r *faultyRepo) Insert(ctx context.Context, rec *model.FileRecord) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	return r.FileRepository.Insert(ctx, rec)
}

func (r *faultyRepo) DeleteByID(ctx context.Context, id string) error {
	if r.deleteErr != nil && (r.deleteErrFor == "" || r.deleteErrFor == id) {
		return r.deleteErr
	}
	return r.FileRepository.DeleteByID(ctx, id)
}

var errInjected = errors.New("внедрённая ошибка хранилища")
