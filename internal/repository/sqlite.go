package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/bigkaa/goartstore/docstore/internal/domain/model"
)

// sqliteRepo — реализация FileRepository поверх database/sql и go-sqlite3.
type sqliteRepo struct {
	db *sql.DB
}

// NewSQLiteRepository создаёт репозиторий поверх открытого *sql.DB.
// Схема должна быть создана заранее (database.Migrate).
func NewSQLiteRepository(db *sql.DB) FileRepository {
	return &sqliteRepo{db: db}
}

func (r *sqliteRepo) Insert(ctx context.Context, rec *model.FileRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO files (id, filename, filepath) VALUES (?, ?, ?)`,
		rec.ID, rec.OriginalFilename, rec.StoragePath,
	)
	if err != nil {
		if isSQLiteConstraint(err) {
			return fmt.Errorf("%w: id %s", ErrConflict, rec.ID)
		}
		return fmt.Errorf("ошибка вставки записи: %w", err)
	}
	return nil
}

func (r *sqliteRepo) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	rec := &model.FileRecord{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, filename, filepath FROM files WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.OriginalFilename, &rec.StoragePath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи: %w", err)
	}
	return rec, nil
}

func (r *sqliteRepo) List(ctx context.Context) ([]*model.FileRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, filename, filepath FROM files`)
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

func (r *sqliteRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id); err != nil {
		return fmt.Errorf("ошибка удаления записи: %w", err)
	}
	return nil
}

func (r *sqliteRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта записей: %w", err)
	}
	return n, nil
}

func (r *sqliteRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// isSQLiteConstraint проверяет, является ли ошибка нарушением ограничения
// (PRIMARY KEY / UNIQUE) SQLite.
func isSQLiteConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
