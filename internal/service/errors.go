// Пакет service — бизнес-логика docstore: загрузка, скачивание и удаление
// файлов, восстановление журнала и сверка хранилища.
// errors.go — ошибка сервисного слоя с HTTP-кодом.
package service

import (
	"fmt"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/docstore/internal/api/errors"
)

// Error — ошибка операции с HTTP-кодом и машиночитаемым кодом.
// Err — исходная ошибка нижнего слоя (может быть nil).
type Error struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Cause возвращает текст исходной ошибки или пустую строку.
func (e *Error) Cause() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func errBadRequest(message string) *Error {
	return &Error{StatusCode: http.StatusBadRequest, Code: apierrors.CodeBadRequest, Message: message}
}

func errNotFound(message string) *Error {
	return &Error{StatusCode: http.StatusNotFound, Code: apierrors.CodeNotFound, Message: message}
}

func errStorageIO(message string, err error) *Error {
	return &Error{
		StatusCode: http.StatusInternalServerError,
		Code:       apierrors.CodeStorageIOError,
		Message:    message,
		Err:        err,
	}
}

func errMetadataStore(message string, err error) *Error {
	return &Error{
		StatusCode: http.StatusInternalServerError,
		Code:       apierrors.CodeMetadataStoreError,
		Message:    message,
		Err:        err,
	}
}
