package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bigkaa/goartstore/docstore/internal/domain/model"
)

// DBTX — интерфейс для выполнения SQL-запросов через pgx.
// Реализуется как *pgxpool.Pool, так и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pinger — пул соединений с проверкой доступности.
type pinger interface {
	Ping(ctx context.Context) error
}

// pgRepo — реализация FileRepository через pgx.
type pgRepo struct {
	db DBTX
}

// NewPostgresRepository создаёт репозиторий поверх pgxpool.Pool или pgx.Tx.
func NewPostgresRepository(db DBTX) FileRepository {
	return &pgRepo{db: db}
}

func (r *pgRepo) Insert(ctx context.Context, rec *model.FileRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO files (id, filename, filepath) VALUES ($1, $2, $3)`,
		rec.ID, rec.OriginalFilename, rec.StoragePath,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: id %s", ErrConflict, rec.ID)
		}
		return fmt.Errorf("ошибка вставки записи: %w", err)
	}
	return nil
}

func (r *pgRepo) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	rec := &model.FileRecord{}
	err := r.db.QueryRow(ctx,
		`SELECT id, filename, filepath FROM files WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.OriginalFilename, &rec.StoragePath)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи: %w", err)
	}
	return rec, nil
}

func (r *pgRepo) List(ctx context.Context) ([]*model.FileRecord, error) {
	rows, err := r.db.Query(ctx, `SELECT id, filename, filepath FROM files`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка записей: %w", err)
	}
	defer rows.Close()

	var result []*model.FileRecord
	for rows.Next() {
		rec := &model.FileRecord{}
		if err := rows.Scan(&rec.ID, &rec.OriginalFilename, &rec.StoragePath); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}
	return result, nil
}

func (r *pgRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id); err != nil {
		return fmt.Errorf("ошибка удаления записи: %w", err)
	}
	return nil
}

func (r *pgRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта записей: %w", err)
	}
	return n, nil
}

// Ping проверяет пул; внутри транзакции (pgx.Tx) проверка не выполняется.
func (r *pgRepo) Ping(ctx context.Context) error {
	if p, ok := r.db.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
