// Package repository реализует хранилище данных на основе PostgreSQL
// для управления пользователями, подписками и каталогом организаторов.
// Мутации ролей и статусов подписок выполняются в сериализуемых
// транзакциях: инварианты про последнего администратора и порядок
// переходов статусов проверяются на живых данных в момент операции.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	// ErrLastAdmin возвращается, когда операция оставила бы систему без
	// единого администратора.
	ErrLastAdmin = errors.New("operation would remove the last administrator")
	// ErrNotFound возвращается, когда запись не найдена.
	ErrNotFound = errors.New("record not found")
)

// Storage инкапсулирует соединение с базой данных PostgreSQL
// и реализует методы работы с пользователями, подписками и каталогом.
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

	return &Storage{
		DB: db,
	}, nil
}

// CheckReady проверяет готовность базы данных: соединение живо и
// основная таблица на месте. Используется readiness-пробой.
func (s *Storage) CheckReady(ctx context.Context) error {
	const op = "storage.CheckReady"
	var exists bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'users'
    )`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("%s: required table users is missing", op)
	}
	return nil
}

// inSerializableTx выполняет fn в сериализуемой транзакции.
func (s *Storage) inSerializableTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
