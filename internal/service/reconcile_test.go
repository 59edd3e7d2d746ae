package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newReconcile(env *testEnv) *ReconcileService {
	return NewReconcileService(env.blobs, env.repo, env.wal, time.Hour, testLogger())
}

func TestReconcileRunOnce_NoIssues(t *testing.T) {
	env := newTestEnv(t)
	env.mustUpload(t, "a.txt", "a")
	env.mustUpload(t, "b.txt", "b")

	result, skipped, err := newReconcile(env).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if skipped {
		t.Fatal("Reconciliation пропущена")
	}
	if result.FilesChecked != 2 {
		t.Errorf("FilesChecked = %d, ожидалось 2", result.FilesChecked)
	}
	if len(result.Issues) != 0 {
		t.Errorf("ожидалось 0 проблем, получено %+v", result.Issues)
	}
	if result.Summary.OK != 2 {
		t.Errorf("Summary.OK = %d, ожидалось 2", result.Summary.OK)
	}
}

func TestReconcileRunOnce_TmpExtension(t *testing.T) {
	env := newTestEnv(t)
	rec := env.mustUpload(t, "notes.tmp", "n")

	if !env.blobs.Exists(rec.StoragePath) {
		t.Fatalf("blob %s не записан", rec.StoragePath)
	}

	result, _, err := newReconcile(env).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(result.Issues) != 0 {
		t.Errorf("файл с расширением .tmp не должен давать расхождений: %+v", result.Issues)
	}
	if result.Summary.OK != 1 {
		t.Errorf("Summary.OK = %d, ожидалось 1", result.Summary.OK)
	}
}

func TestReconcileRunOnce_Issues(t *testing.T) {
	env := newTestEnv(t)
	missing := env.mustUpload(t, "missing.txt", "m")
	env.mustUpload(t, "ok.txt", "ok")

	if err := os.Remove(missing.StoragePath); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	orphan := filepath.Join(env.blobs.Dir(), "1718000000000-orphan.txt")
	if err := os.WriteFile(orphan, []byte("x"), 0o640); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	// Временные файлы незавершённой записи не считаются blob
	if err := os.WriteFile(filepath.Join(env.blobs.Dir(), ".upload-42"), []byte("x"), 0o640); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	result, _, err := newReconcile(env).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if result.Summary.OK != 1 || result.Summary.MissingBlobs != 1 || result.Summary.OrphanedBlobs != 1 {
		t.Errorf("некорректная сводка: %+v", result.Summary)
	}
	if len(result.Issues) != 2 {
		t.Fatalf("ожидалось 2 проблемы, получено %+v", result.Issues)
	}

	byType := make(map[IssueType]ReconcileIssue)
	for _, issue := range result.Issues {
		byType[issue.Type] = issue
	}
	if got := byType[IssueMissingBlob]; got.FileID != missing.ID || got.Path != missing.StoragePath {
		t.Errorf("некорректная missing_blob: %+v", got)
	}
	if got := byType[IssueOrphanedBlob]; got.Path != orphan || got.FileID != "" {
		t.Errorf("некорректная orphaned_blob: %+v", got)
	}

	// Сверка ничего не исправляет
	if _, err := os.Stat(orphan); err != nil {
		t.Errorf("orphaned blob не должен удаляться: %v", err)
	}
	if n := env.count(t); n != 2 {
		t.Errorf("записи не должны удаляться, записей: %d", n)
	}
}

func TestReconcileRunOnce_AlreadyInProgress(t *testing.T) {
	env := newTestEnv(t)
	rs := newReconcile(env)

	rs.mu.Lock()
	rs.inProcess = true
	rs.mu.Unlock()

	result, skipped, err := rs.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !skipped || result != nil {
		t.Errorf("ожидался пропуск, получено skipped=%v result=%v", skipped, result)
	}
	if !rs.IsInProgress() {
		t.Error("флаг выполнения не должен сбрасываться пропущенным запуском")
	}
}

func TestReconcileRunOnce_CleansCompletedJournal(t *testing.T) {
	env := newTestEnv(t)
	env.mustUpload(t, "a.txt", "a")

	matches, _ := filepath.Glob(filepath.Join(env.wal.Dir(), "*.wal.json"))
	if len(matches) != 1 {
		t.Fatalf("ожидалась 1 запись журнала до сверки, найдено %d", len(matches))
	}

	if _, _, err := newReconcile(env).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	matches, _ = filepath.Glob(filepath.Join(env.wal.Dir(), "*.wal.json"))
	if len(matches) != 0 {
		t.Errorf("завершённые записи должны быть удалены, найдено %d", len(matches))
	}
}

func TestReconcileStartStop(t *testing.T) {
	env := newTestEnv(t)
	rs := NewReconcileService(env.blobs, env.repo, env.wal, 10*time.Millisecond, testLogger())

	rs.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	rs.Stop()

	if rs.IsInProgress() {
		t.Error("после Stop сверка не должна выполняться")
	}
}
