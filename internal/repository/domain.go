package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/svdleer/pdnsapi-sub000/internal/domain/model"
)

// DomainFilter — фильтр списка доменов.
type DomainFilter struct {
	// AccountID — только домены с этим владельцем (внешний ключ)
	AccountID *int64
	// OwnerDigest — только домены с этим дайджестом владельца
	OwnerDigest *string
}

// DomainRepository — интерфейс CRUD для таблицы domains.
// Имена передаются уже в канонической форме.
type DomainRepository interface {
	// Create создаёт домен. ErrConflict — имя занято, ErrInvalidReference — нет аккаунта.
	Create(ctx context.Context, d *model.Domain) error
	GetByID(ctx context.Context, id int64) (*model.Domain, error)
	// GetByName ищет по каноническому имени.
	GetByName(ctx context.Context, name string) (*model.Domain, error)
	// List возвращает домены, упорядоченные по имени.
	List(ctx context.Context, filter DomainFilter) ([]*model.Domain, error)
	// Update обновляет все поля, кроме имени.
	Update(ctx context.Context, d *model.Domain) error
	// Delete удаляет домен вместе со связями.
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

type domainRepo struct {
	db DBTX
}

// NewDomainRepository создаёт репозиторий доменов.
func NewDomainRepository(db DBTX) DomainRepository {
	return &domainRepo{db: db}
}

const domainColumns = `id, name, remote_zone_id, kind, dnssec, account_text,
	owner_digest, account_id, owner_source, created_at, updated_at`

func scanDomain(row pgx.Row) (*model.Domain, error) {
	d := &model.Domain{}
	err := row.Scan(
		&d.ID, &d.Name, &d.RemoteZoneID, &d.Kind, &d.DNSSEC, &d.AccountText,
		&d.OwnerDigest, &d.AccountID, &d.OwnerSource, &d.CreatedAt, &d.UpdatedAt,
	)
	return d, err
}

func ownerSource(s string) string {
	if s == "" {
		return model.OwnerSourceRemote
	}
	return s
}

func (r *domainRepo) Create(ctx context.Context, d *model.Domain) error {
	d.OwnerSource = ownerSource(d.OwnerSource)
	query := `
		INSERT INTO domains (name, remote_zone_id, kind, dnssec, account_text,
			owner_digest, account_id, owner_source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		d.Name, d.RemoteZoneID, d.Kind, d.DNSSEC, d.AccountText,
		d.OwnerDigest, d.AccountID, d.OwnerSource,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: домен %s уже существует", ErrConflict, d.Name)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: аккаунт владельца домена %s", ErrInvalidReference, d.Name)
		}
		return fmt.Errorf("ошибка создания домена: %w", err)
	}
	return nil
}

func (r *domainRepo) GetByID(ctx context.Context, id int64) (*model.Domain, error) {
	query := fmt.Sprintf(`SELECT %s FROM domains WHERE id = $1`, domainColumns)
	d, err := scanDomain(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения домена: %w", err)
	}
	return d, nil
}

func (r *domainRepo) GetByName(ctx context.Context, name string) (*model.Domain, error) {
	query := fmt.Sprintf(`SELECT %s FROM domains WHERE name = $1`, domainColumns)
	d, err := scanDomain(r.db.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения домена по имени: %w", err)
	}
	return d, nil
}

func (r *domainRepo) List(ctx context.Context, filter DomainFilter) ([]*model.Domain, error) {
	var conditions []string
	var args []any
	argNum := 1

	if filter.AccountID != nil {
		conditions = append(conditions, fmt.Sprintf("account_id = $%d", argNum))
		args = append(args, *filter.AccountID)
		argNum++
	}
	if filter.OwnerDigest != nil {
		conditions = append(conditions, fmt.Sprintf("owner_digest = $%d", argNum))
		args = append(args, *filter.OwnerDigest)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s FROM domains %s ORDER BY name`, domainColumns, where)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка доменов: %w", err)
	}
	defer rows.Close()

	var result []*model.Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования домена: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (r *domainRepo) Update(ctx context.Context, d *model.Domain) error {
	d.OwnerSource = ownerSource(d.OwnerSource)
	query := `
		UPDATE domains
		SET remote_zone_id = $2, kind = $3, dnssec = $4, account_text = $5,
			owner_digest = $6, account_id = $7, owner_source = $8, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		d.ID, d.RemoteZoneID, d.Kind, d.DNSSEC, d.AccountText,
		d.OwnerDigest, d.AccountID, d.OwnerSource,
	).Scan(&d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: аккаунт владельца домена %s", ErrInvalidReference, d.Name)
		}
		return fmt.Errorf("ошибка обновления домена: %w", err)
	}
	return nil
}

func (r *domainRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM domains WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления домена: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *domainRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM domains`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта доменов: %w", err)
	}
	return count, nil
}
