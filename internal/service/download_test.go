package service

import (
	"context"
	"io"
	"net/http"
	"os"
	"testing"

	apierrors "github.com/bigkaa/goartstore/docstore/internal/api/errors"
)

func TestOpen_Success(t *testing.T) {
	env := newTestEnv(t)
	uploaded := env.mustUpload(t, "report.pdf", "ABC")

	f, rec, svcErr := env.download.Open(context.Background(), uploaded.ID)
	if svcErr != nil {
		t.Fatalf("Open: %v", svcErr)
	}
	defer f.Close()

	if rec.OriginalFilename != "report.pdf" {
		t.Errorf("OriginalFilename = %q", rec.OriginalFilename)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "ABC" {
		t.Errorf("содержимое = %q, ожидалось ABC", data)
	}
}

func TestOpen_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, _, svcErr := env.download.Open(context.Background(), "00000000-0000-4000-8000-000000000000")
	if svcErr == nil || svcErr.StatusCode != http.StatusNotFound || svcErr.Code != apierrors.CodeNotFound {
		t.Fatalf("ожидалась NotFound, получено %v", svcErr)
	}
}

// TestOpen_MissingBlob — запись есть, файла нет: общая ошибка сервера, не 404.
func TestOpen_MissingBlob(t *testing.T) {
	env := newTestEnv(t)
	uploaded := env.mustUpload(t, "report.pdf", "ABC")

	if err := os.Remove(uploaded.StoragePath); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	_, _, svcErr := env.download.Open(context.Background(), uploaded.ID)
	if svcErr == nil || svcErr.StatusCode != http.StatusInternalServerError || svcErr.Code != apierrors.CodeStorageIOError {
		t.Fatalf("ожидалась StorageIOError, получено %v", svcErr)
	}
}
