package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/docstore/internal/api/handlers"
	"github.com/bigkaa/goartstore/docstore/internal/api/openapi"
	"github.com/bigkaa/goartstore/docstore/internal/config"
	"github.com/bigkaa/goartstore/docstore/internal/database"
	"github.com/bigkaa/goartstore/docstore/internal/repository"
	"github.com/bigkaa/goartstore/docstore/internal/service"
	"github.com/bigkaa/goartstore/docstore/internal/storage/blobstore"
	"github.com/bigkaa/goartstore/docstore/internal/storage/wal"
)

// testApp — собранное приложение поверх временной директории.
type testApp struct {
	router http.Handler
	blobs  *blobstore.Store
	repo   repository.FileRepository
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := &config.Config{
		DBDriver:          config.DriverSQLite,
		DBPath:            filepath.Join(dir, "db.sqlite"),
		UploadDir:         filepath.Join(dir, "uploads"),
		WALDir:            filepath.Join(dir, "wal"),
		MultipartMemory:   1 << 20,
		DeleteConcurrency: 4,
		CORSOrigins:       []string{"http://localhost:3000"},
		ShutdownTimeout:   time.Second,
	}

	blobs, err := blobstore.New(cfg.UploadDir)
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}
	walEngine, err := wal.New(cfg.WALDir, logger)
	if err != nil {
		t.Fatalf("wal.New: %v", err)
	}
	store, err := database.Open(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(store.Close)

	doc, err := openapi.Load(context.Background())
	if err != nil {
		t.Fatalf("openapi.Load: %v", err)
	}
	docHandler, err := openapi.Handler(doc)
	if err != nil {
		t.Fatalf("openapi.Handler: %v", err)
	}

	reconciler := service.NewReconcileService(blobs, store.Repo, walEngine, time.Hour, logger)
	router := NewRouter(cfg, logger, Handlers{
		Files: handlers.NewFilesHandler(
			service.NewUploadService(blobs, store.Repo, walEngine, logger),
			service.NewDownloadService(blobs, store.Repo, logger),
			service.NewDeleteService(blobs, store.Repo, walEngine, cfg.DeleteConcurrency, logger),
			cfg.MultipartMemory,
			logger,
		),
		Health:      handlers.NewHealthHandler(blobs.Dir(), walEngine.Dir(), store.Repo, nil),
		Maintenance: handlers.NewMaintenanceHandler(reconciler, logger),
		OpenAPI:     docHandler,
	})

	return &testApp{router: router, blobs: blobs, repo: store.Repo}
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// uploadRequest формирует multipart-запрос с файлом в поле field.
func uploadRequest(t *testing.T, field, filename, content string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = io.WriteString(part, content)
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart Close: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// upload загружает файл и возвращает fileId.
func (a *testApp) upload(t *testing.T, filename, content string) string {
	t.Helper()

	rec := a.do(uploadRequest(t, "document", filename, content))
	if rec.Code != http.StatusOK {
		t.Fatalf("upload %s: статус %d, тело %s", filename, rec.Code, rec.Body.String())
	}

	var resp handlers.UploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("некорректный ответ upload: %v", err)
	}
	if resp.Message == "" {
		t.Error("ответ upload должен содержать message")
	}
	return resp.FileID.String()
}

func (a *testApp) count(t *testing.T) int {
	t.Helper()

	n, err := a.repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	return n
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("тело ошибки не является JSON: %v (%s)", err, rec.Body.String())
	}
	return body
}

func TestUpload_NoDocument(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"другое поле формы", uploadRequest(t, "file", "report.pdf", "ABC")},
		{"не multipart", httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString("ABC"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(tt.req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("ожидался 400, получен %d", rec.Code)
			}
			if body := decodeError(t, rec); body["code"] != "BAD_REQUEST" || body["message"] == "" {
				t.Errorf("некорректное тело ошибки: %v", body)
			}
		})
	}

	if n := app.count(t); n != 0 {
		t.Errorf("записи не должны создаваться, записей: %d", n)
	}
}

func TestUploadAndDownload(t *testing.T) {
	app := newTestApp(t)

	id := app.upload(t, "report.pdf", "ABC")
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("fileId %q не является UUID", id)
	}

	rec := app.do(httptest.NewRequest(http.MethodGet, "/upload/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получен %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "ABC" {
		t.Errorf("содержимое = %q, ожидалось ABC", rec.Body.String())
	}

	_, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	if err != nil {
		t.Fatalf("некорректный Content-Disposition: %v", err)
	}
	if params["filename"] != "report.pdf" {
		t.Errorf("filename = %q, ожидалось report.pdf", params["filename"])
	}
}

func TestDownload_NotFound(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/upload/"+uuid.NewString(), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("ожидался 404, получен %d", rec.Code)
	}
	if body := decodeError(t, rec); body["code"] != "NOT_FOUND" {
		t.Errorf("code = %q", body["code"])
	}
}

func TestDownload_MissingBlob(t *testing.T) {
	app := newTestApp(t)
	id := app.upload(t, "report.pdf", "ABC")

	paths, _ := app.blobs.List()
	for _, p := range paths {
		_ = os.Remove(p)
	}

	rec := app.do(httptest.NewRequest(http.MethodGet, "/upload/"+id, nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("ожидался 500, получен %d", rec.Code)
	}
	if body := decodeError(t, rec); body["error"] == "" {
		t.Error("ответ 500 должен содержать причину в поле error")
	}
}

func TestDeleteOne(t *testing.T) {
	app := newTestApp(t)
	id := app.upload(t, "report.pdf", "ABC")

	rec := app.do(httptest.NewRequest(http.MethodDelete, "/upload/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получен %d: %s", rec.Code, rec.Body.String())
	}
	var resp handlers.MessageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Message == "" {
		t.Errorf("некорректный ответ: %s", rec.Body.String())
	}

	if n := app.count(t); n != 0 {
		t.Errorf("запись должна быть удалена, записей: %d", n)
	}
	if paths, _ := app.blobs.List(); len(paths) != 0 {
		t.Errorf("blob должен быть удалён: %v", paths)
	}

	rec = app.do(httptest.NewRequest(http.MethodGet, "/upload/"+id, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("после удаления ожидался 404, получен %d", rec.Code)
	}
}

func TestDeleteOne_NotFound(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(httptest.NewRequest(http.MethodDelete, "/upload/"+uuid.NewString(), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("ожидался 404, получен %d", rec.Code)
	}
}

func TestDeleteAll(t *testing.T) {
	app := newTestApp(t)

	const n = 5
	for i := 0; i < n; i++ {
		app.upload(t, fmt.Sprintf("doc-%d.txt", i), "data")
	}
	if c := app.count(t); c != n {
		t.Fatalf("ожидалось %d записей, получено %d", n, c)
	}

	// Второй вызов видит пустое хранилище и тоже успешен
	for i := 0; i < 2; i++ {
		rec := app.do(httptest.NewRequest(http.MethodDelete, "/upload", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("DELETE /upload #%d: статус %d, тело %s", i+1, rec.Code, rec.Body.String())
		}
	}

	if c := app.count(t); c != 0 {
		t.Errorf("ожидалось 0 записей, получено %d", c)
	}
	if paths, _ := app.blobs.List(); len(paths) != 0 {
		t.Errorf("директория загрузок должна быть пустой: %v", paths)
	}
}

func TestDeleteAll_PartialFailure(t *testing.T) {
	app := newTestApp(t)
	app.upload(t, "a.txt", "a")
	app.upload(t, "b.txt", "b")

	paths, _ := app.blobs.List()
	_ = os.Remove(paths[0])

	rec := app.do(httptest.NewRequest(http.MethodDelete, "/upload", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("ожидался 500, получен %d", rec.Code)
	}
	if body := decodeError(t, rec); body["code"] != "STORAGE_IO_ERROR" {
		t.Errorf("code = %q", body["code"])
	}

	// Удаление второго файла завершено, несмотря на ошибку первого
	if n := app.count(t); n != 1 {
		t.Errorf("должна остаться одна запись без файла, записей: %d", n)
	}
	if left, _ := app.blobs.List(); len(left) != 0 {
		t.Errorf("файл второй записи должен быть удалён: %v", left)
	}
}

func TestDownload_EmptyID(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/upload/", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("ожидался 404, получен %d", rec.Code)
	}
	if body := decodeError(t, rec); body["code"] != "NOT_FOUND" {
		t.Errorf("code = %q", body["code"])
	}
}

func TestReconcileEndpoint(t *testing.T) {
	app := newTestApp(t)
	app.upload(t, "a.txt", "a")

	rec := app.do(httptest.NewRequest(http.MethodPost, "/maintenance/reconcile", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получен %d: %s", rec.Code, rec.Body.String())
	}

	var result service.ReconcileResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("некорректный ответ: %v", err)
	}
	if result.FilesChecked != 1 || result.Summary.OK != 1 {
		t.Errorf("некорректный результат: %+v", result)
	}
}

func TestAuxiliaryEndpoints(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/health/live", "/health/ready", "/metrics", "/openapi.json"} {
		rec := app.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: ожидался 200, получен %d", path, rec.Code)
		}
	}

	rec := app.do(httptest.NewRequest(http.MethodGet, "/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("неизвестный маршрут: ожидался 404, получен %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/upload", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := app.do(req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/upload", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec = app.do(req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("чужой origin не должен разрешаться, получено %q", got)
	}
}
