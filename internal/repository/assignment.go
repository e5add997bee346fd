package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/svdleer/pdnsapi-sub000/internal/domain/model"
)

// AssignmentFilter — фильтр списка связей.
type AssignmentFilter struct {
	DomainID  *int64
	AccountID *int64
}

// AssignmentRepository — интерфейс для таблицы domain_assignments.
type AssignmentRepository interface {
	// Create создаёт связь. ErrConflict — пара уже есть,
	// ErrInvalidReference — домен или аккаунт не существует.
	Create(ctx context.Context, a *model.Assignment) error
	// Delete удаляет связь. ErrNotFound — связи нет.
	Delete(ctx context.Context, domainID, accountID int64) error
	Get(ctx context.Context, domainID, accountID int64) (*model.AssignmentView, error)
	// List возвращает связи с данными домена и аккаунта,
	// упорядоченные по имени домена, затем по имени аккаунта.
	List(ctx context.Context, filter AssignmentFilter) ([]*model.AssignmentView, error)
	// CountByDomain возвращает количество связей домена.
	CountByDomain(ctx context.Context, domainID int64) (int, error)
	// CountByAccount возвращает количество связей аккаунта.
	CountByAccount(ctx context.Context, accountID int64) (int, error)
}

type assignmentRepo struct {
	db DBTX
}

// NewAssignmentRepository создаёт репозиторий связей.
func NewAssignmentRepository(db DBTX) AssignmentRepository {
	return &assignmentRepo{db: db}
}

const assignmentViewSelect = `
	SELECT da.domain_id, da.account_id, da.assigned_at, da.assigned_by,
		d.name, d.remote_zone_id, a.name, a.mail
	FROM domain_assignments da
	JOIN domains d ON d.id = da.domain_id
	JOIN accounts a ON a.id = da.account_id`

func scanAssignmentView(row pgx.Row) (*model.AssignmentView, error) {
	v := &model.AssignmentView{}
	err := row.Scan(
		&v.DomainID, &v.AccountID, &v.AssignedAt, &v.AssignedBy,
		&v.DomainName, &v.RemoteZoneID, &v.AccountName, &v.AccountMail,
	)
	return v, err
}

func (r *assignmentRepo) Create(ctx context.Context, a *model.Assignment) error {
	query := `
		INSERT INTO domain_assignments (domain_id, account_id, assigned_by)
		VALUES ($1, $2, $3)
		RETURNING assigned_at`

	err := r.db.QueryRow(ctx, query, a.DomainID, a.AccountID, a.AssignedBy).Scan(&a.AssignedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: домен %d уже связан с аккаунтом %d", ErrConflict, a.DomainID, a.AccountID)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: домен %d или аккаунт %d", ErrInvalidReference, a.DomainID, a.AccountID)
		}
		return fmt.Errorf("ошибка создания связи: %w", err)
	}
	return nil
}

func (r *assignmentRepo) Delete(ctx context.Context, domainID, accountID int64) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM domain_assignments WHERE domain_id = $1 AND account_id = $2`,
		domainID, accountID)
	if err != nil {
		return fmt.Errorf("ошибка удаления связи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *assignmentRepo) Get(ctx context.Context, domainID, accountID int64) (*model.AssignmentView, error) {
	query := assignmentViewSelect + ` WHERE da.domain_id = $1 AND da.account_id = $2`
	v, err := scanAssignmentView(r.db.QueryRow(ctx, query, domainID, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения связи: %w", err)
	}
	return v, nil
}

func (r *assignmentRepo) List(ctx context.Context, filter AssignmentFilter) ([]*model.AssignmentView, error) {
	var conditions []string
	var args []any
	argNum := 1

	if filter.DomainID != nil {
		conditions = append(conditions, fmt.Sprintf("da.domain_id = $%d", argNum))
		args = append(args, *filter.DomainID)
		argNum++
	}
	if filter.AccountID != nil {
		conditions = append(conditions, fmt.Sprintf("da.account_id = $%d", argNum))
		args = append(args, *filter.AccountID)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	rows, err := r.db.Query(ctx, assignmentViewSelect+where+` ORDER BY d.name, a.name`, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка связей: %w", err)
	}
	defer rows.Close()

	var result []*model.AssignmentView
	for rows.Next() {
		v, err := scanAssignmentView(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования связи: %w", err)
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

func (r *assignmentRepo) CountByDomain(ctx context.Context, domainID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM domain_assignments WHERE domain_id = $1`, domainID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта связей домена: %w", err)
	}
	return count, nil
}

func (r *assignmentRepo) CountByAccount(ctx context.Context, accountID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM domain_assignments WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта связей аккаунта: %w", err)
	}
	return count, nil
}
