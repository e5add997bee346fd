package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/svdleer/pdnsapi-sub000/internal/domain/model"
)

// AccountRepository — интерфейс CRUD для таблицы accounts.
type AccountRepository interface {
	// Create создаёт аккаунт. ErrConflict — имя уже занято.
	Create(ctx context.Context, a *model.Account) error
	// GetByID возвращает аккаунт по локальному id.
	GetByID(ctx context.Context, id int64) (*model.Account, error)
	// GetByName возвращает аккаунт по точному имени.
	GetByName(ctx context.Context, name string) (*model.Account, error)
	// List возвращает все аккаунты, упорядоченные по имени.
	List(ctx context.Context) ([]*model.Account, error)
	// Update обновляет изменяемые поля. Имя не изменяется.
	Update(ctx context.Context, a *model.Account) error
	// Delete удаляет аккаунт; связи удаляются каскадно, домены теряют владельца.
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

type accountRepo struct {
	db DBTX
}

// NewAccountRepository создаёт репозиторий аккаунтов.
func NewAccountRepository(db DBTX) AccountRepository {
	return &accountRepo{db: db}
}

const accountColumns = `id, name, description, contact, mail, ip_addresses,
	remote_account_id, created_at, updated_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	a := &model.Account{}
	err := row.Scan(
		&a.ID, &a.Name, &a.Description, &a.Contact, &a.Mail, &a.IPAddresses,
		&a.RemoteAccountID, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

// ipList не даёт записать NULL в NOT NULL-колонку ip_addresses.
func ipList(ips []string) []string {
	if ips == nil {
		return []string{}
	}
	return ips
}

func (r *accountRepo) Create(ctx context.Context, a *model.Account) error {
	query := `
		INSERT INTO accounts (name, description, contact, mail, ip_addresses, remote_account_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		a.Name, a.Description, a.Contact, a.Mail, ipList(a.IPAddresses), a.RemoteAccountID,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: аккаунт %q уже существует", ErrConflict, a.Name)
		}
		return fmt.Errorf("ошибка создания аккаунта: %w", err)
	}
	return nil
}

func (r *accountRepo) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE id = $1`, accountColumns)
	a, err := scanAccount(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения аккаунта: %w", err)
	}
	return a, nil
}

func (r *accountRepo) GetByName(ctx context.Context, name string) (*model.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE name = $1`, accountColumns)
	a, err := scanAccount(r.db.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения аккаунта по имени: %w", err)
	}
	return a, nil
}

func (r *accountRepo) List(ctx context.Context) ([]*model.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts ORDER BY name`, accountColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка аккаунтов: %w", err)
	}
	defer rows.Close()

	var result []*model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования аккаунта: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (r *accountRepo) Update(ctx context.Context, a *model.Account) error {
	query := `
		UPDATE accounts
		SET description = $2, contact = $3, mail = $4, ip_addresses = $5,
			remote_account_id = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		a.ID, a.Description, a.Contact, a.Mail, ipList(a.IPAddresses), a.RemoteAccountID,
	).Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления аккаунта: %w", err)
	}
	return nil
}

func (r *accountRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления аккаунта: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *accountRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта аккаунтов: %w", err)
	}
	return count, nil
}
