// Пакет repository — слой доступа к данным PostgreSQL.
// Все запросы — чистый SQL через pgx, без ORM.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — запись уже существует")
	// ErrInvalidReference — внешний ключ ссылается на несуществующую запись.
	ErrInvalidReference = errors.New("ссылка на несуществующую запись")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// beginner — DBTX, умеющий открывать транзакцию.
// Для pgx.Tx вложенный Begin создаёт SAVEPOINT.
type beginner interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store объединяет репозитории одной области видимости: пула или транзакции.
type Store interface {
	Accounts() AccountRepository
	Domains() DomainRepository
	Assignments() AssignmentRepository
	SyncState() SyncStateRepository
	// RunInTx выполняет fn внутри транзакции. Если Store уже транзакционный,
	// fn выполняется внутри точки сохранения: её откат не прерывает внешнюю транзакцию.
	RunInTx(ctx context.Context, fn func(tx Store) error) error
}

// pgStore — реализация Store поверх pgx.
type pgStore struct {
	db beginner
}

// NewStore создаёт Store поверх пула соединений.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{db: pool}
}

func (s *pgStore) Accounts() AccountRepository       { return NewAccountRepository(s.db) }
func (s *pgStore) Domains() DomainRepository         { return NewDomainRepository(s.db) }
func (s *pgStore) Assignments() AssignmentRepository { return NewAssignmentRepository(s.db) }
func (s *pgStore) SyncState() SyncStateRepository    { return NewSyncStateRepository(s.db) }

// RunInTx выполняет fn внутри транзакции.
// При ошибке fn — транзакция откатывается.
// При успехе — коммитится.
func (s *pgStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(&pgStore{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == "23505" // unique_violation
}

// isForeignKeyViolation проверяет нарушение внешнего ключа.
func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == "23503" // foreign_key_violation
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
