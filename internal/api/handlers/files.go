// files.go — HTTP handlers файловых операций docstore:
// загрузка, скачивание, удаление одного и всех файлов.
package handlers

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/bigkaa/goartstore/docstore/internal/api/errors"
	"github.com/bigkaa/goartstore/docstore/internal/service"
)

// documentField — имя поля multipart-формы с загружаемым файлом.
const documentField = "document"

// UploadResponse — ответ на успешную загрузку.
type UploadResponse struct {
	Message string             `json:"message"`
	FileID  openapi_types.UUID `json:"fileId"`
}

// MessageResponse — ответ операций без данных.
type MessageResponse struct {
	Message string `json:"message"`
}

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	uploadSvc       *service.UploadService
	downloadSvc     *service.DownloadService
	deleteSvc       *service.DeleteService
	multipartMemory int64
	logger          *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых endpoints.
// multipartMemory — объём формы в памяти, остальное уходит во временные файлы.
func NewFilesHandler(
	uploadSvc *service.UploadService,
	downloadSvc *service.DownloadService,
	deleteSvc *service.DeleteService,
	multipartMemory int64,
	logger *slog.Logger,
) *FilesHandler {
	return &FilesHandler{
		uploadSvc:       uploadSvc,
		downloadSvc:     downloadSvc,
		deleteSvc:       deleteSvc,
		multipartMemory: multipartMemory,
		logger:          logger.With(slog.String("component", "files_handler")),
	}
}

// Upload обрабатывает POST /upload.
// Multipart form: document (обязательно). Отсутствие поля или
// нечитаемая форма — 400.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var params service.UploadParams

	if err := r.ParseMultipartForm(h.multipartMemory); err != nil {
		h.logger.Debug("Ошибка парсинга multipart", slog.String("error", err.Error()))
	} else if file, header, err := r.FormFile(documentField); err == nil {
		defer file.Close()
		params.Reader = file
		params.OriginalFilename = header.Filename
	}

	rec, svcErr := h.uploadSvc.Upload(r.Context(), params)
	if svcErr != nil {
		writeServiceError(w, svcErr)
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Message: "Документ загружен",
		FileID:  uuid.MustParse(rec.ID),
	})
}

// Download обрабатывает GET /upload/{id}.
// Отдаёт содержимое через http.ServeContent (Range, If-Modified-Since)
// с исходным именем файла в Content-Disposition.
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	f, rec, svcErr := h.downloadSvc.Open(r.Context(), chi.URLParam(r, "id"))
	if svcErr != nil {
		writeServiceError(w, svcErr)
		return
	}
	defer f.Close()

	var modTime time.Time
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	}

	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": rec.OriginalFilename}))
	http.ServeContent(w, r, rec.OriginalFilename, modTime, f)
}

// DeleteOne обрабатывает DELETE /upload/{id}.
func (h *FilesHandler) DeleteOne(w http.ResponseWriter, r *http.Request) {
	if svcErr := h.deleteSvc.DeleteOne(r.Context(), chi.URLParam(r, "id")); svcErr != nil {
		writeServiceError(w, svcErr)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Файл удалён"})
}

// DeleteAll обрабатывает DELETE /upload.
func (h *FilesHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if svcErr := h.deleteSvc.DeleteAll(r.Context()); svcErr != nil {
		writeServiceError(w, svcErr)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Все файлы удалены"})
}

// writeServiceError записывает ошибку сервисного слоя в стандартном формате.
func writeServiceError(w http.ResponseWriter, e *service.Error) {
	apierrors.WriteError(w, e.StatusCode, e.Code, e.Message, e.Cause())
}

// writeJSON вспомогательная функция для записи JSON-ответа.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
