// Package storage реализует удалённый синхронизируемый слой хранения на
// PostgreSQL. Все записи движка — пары ключ → JSON-снапшот целой записи;
// частичных обновлений нет, запись всегда замещается полностью.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Storage инкапсулирует соединение с PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{DB: db}, nil
}

// CheckDatabaseReady проверяет готовность базы данных.
func CheckDatabaseReady(storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRow(`SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'records'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table records missing or query error: %w", err)
	}
	return nil
}

// UpsertRecord замещает снапшот записи по ключу (last-write-wins).
func (s *Storage) UpsertRecord(ctx context.Context, key string, value []byte) error {
	const op = "storage.UpsertRecord"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO records (key, value, updated_at)
			  VALUES ($1, $2, now())
			  ON CONFLICT (key) DO UPDATE
			  SET value = EXCLUDED.value, updated_at = now()`
	if _, err := s.DB.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetRecord возвращает снапшот записи по ключу. nil, nil — записи нет.
func (s *Storage) GetRecord(ctx context.Context, key string) ([]byte, error) {
	const op = "storage.GetRecord"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT value FROM records WHERE key = $1`
	var value []byte
	err := s.DB.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return value, nil
}

// DeleteRecord удаляет запись и возвращает количество удалённых строк.
func (s *Storage) DeleteRecord(ctx context.Context, key string) (int, error) {
	const op = "storage.DeleteRecord"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM records WHERE key = $1`, key)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ListRecords возвращает ключи с заданным префиксом, с пагинацией.
// Используется административными потоками для обхода каталога.
func (s *Storage) ListRecords(ctx context.Context, prefix string, limit, offset int) ([]string, error) {
	const op = "storage.ListRecords"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT key FROM records
			  WHERE key LIKE $1 || '%'
			  ORDER BY key
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, prefix, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return keys, nil
}
