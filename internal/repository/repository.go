// Пакет repository — хранилище метаданных файлов (таблица files).
// Все запросы — чистый SQL, без ORM. Две реализации FileRepository:
// SQLite (database/sql) по умолчанию и PostgreSQL (pgx) опционально.
package repository

import (
	"context"
	"errors"

	"github.com/bigkaa/goartstore/docstore/internal/domain/model"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — запись с таким id уже существует.
	ErrConflict = errors.New("конфликт — запись уже существует")
)

// FileRepository — доступ к записям таблицы files.
type FileRepository interface {
	// Insert добавляет запись. ErrConflict при дублирующемся id.
	Insert(ctx context.Context, rec *model.FileRecord) error
	// GetByID возвращает запись по id или ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.FileRecord, error)
	// List возвращает все записи. Порядок не гарантируется.
	List(ctx context.Context) ([]*model.FileRecord, error)
	// DeleteByID удаляет запись. Отсутствие записи — не ошибка.
	DeleteByID(ctx context.Context, id string) error
	// Count возвращает количество записей.
	Count(ctx context.Context) (int, error)
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
}
