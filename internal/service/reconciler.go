// reconciler.go — синхронизация аккаунтов и зон PowerDNS-Admin в локальную БД.
//
// Reconciliation одной коллекции:
//  1. Получить полный список из PowerDNS-Admin (ошибка — прогон прерывается)
//  2. Для каждого элемента в отдельной транзакции: найти по естественному ключу,
//     создать или обновить только изменившиеся поля
//  3. Ошибка элемента не прерывает прогон: элемент попадает в Skipped
//
// Удалённые из PowerDNS-Admin элементы здесь не удаляются (см. cleanup.go).
//
// Prometheus-метрики:
//   - pdnsapi_sync_duration_seconds — длительность прогона по коллекциям
//   - pdnsapi_sync_items_total — обработанные элементы по исходу
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/svdleer/pdnsapi-sub000/internal/dnsname"
	"github.com/svdleer/pdnsapi-sub000/internal/domain/model"
	"github.com/svdleer/pdnsapi-sub000/internal/identity"
	"github.com/svdleer/pdnsapi-sub000/internal/pdnsadmin"
	"github.com/svdleer/pdnsapi-sub000/internal/repository"
)

var (
	syncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pdnsapi_sync_duration_seconds",
		Help:    "Длительность синхронизации коллекции PowerDNS-Admin",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 0.05s … ~25s
	}, []string{"collection"})

	syncItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdnsapi_sync_items_total",
		Help: "Элементы, обработанные синхронизацией",
	}, []string{"collection", "outcome"})
)

// Исходы обработки элемента.
type outcome int

const (
	outcomeUnchanged outcome = iota
	outcomeCreated
	outcomeUpdated
)

func (o outcome) String() string {
	switch o {
	case outcomeCreated:
		return "created"
	case outcomeUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}

// defaultZoneKind — тип зоны, если PowerDNS-Admin его не вернул.
const defaultZoneKind = "Native"

// SyncOptions — параметры синхронизации зон.
type SyncOptions struct {
	// CreateMissingAccounts — создавать локальный аккаунт для неизвестного владельца зоны.
	// Если false, зона сохраняется без владельца.
	CreateMissingAccounts bool
}

// DefaultSyncOptions возвращает параметры по умолчанию.
func DefaultSyncOptions() SyncOptions {
	return SyncOptions{CreateMissingAccounts: true}
}

// SyncReport — итог полной синхронизации (аккаунты, затем зоны).
type SyncReport struct {
	Accounts *model.SyncResult
	Domains  *model.SyncResult
}

// Err возвращает ErrPartialSync, если хотя бы одна коллекция синхронизирована частично.
func (r *SyncReport) Err() error {
	var errs []error
	for _, res := range []*model.SyncResult{r.Accounts, r.Domains} {
		if res != nil {
			if err := res.Err(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Reconciler переносит состояние PowerDNS-Admin в локальную БД.
type Reconciler struct {
	remote Directory
	store  repository.Store
	mapper *identity.Mapper
	logger *slog.Logger
}

// NewReconciler создаёт Reconciler.
func NewReconciler(remote Directory, store repository.Store, mapper *identity.Mapper, logger *slog.Logger) *Reconciler {
	if mapper == nil {
		mapper = identity.NewMapper()
	}
	return &Reconciler{
		remote: remote,
		store:  store,
		mapper: mapper,
		logger: logger.With(slog.String("component", "reconciler")),
	}
}

func newResult(collection string) *model.SyncResult {
	return &model.SyncResult{
		RunID:      uuid.New().String(),
		Collection: collection,
		StartedAt:  time.Now().UTC(),
	}
}

// record учитывает исход элемента в результате и метриках.
func (r *Reconciler) record(res *model.SyncResult, logger *slog.Logger, key string, out outcome, err error) {
	if err != nil {
		res.Skip(key, err)
		syncItems.WithLabelValues(res.Collection, "failed").Inc()
		logger.Warn("Элемент пропущен",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}
	switch out {
	case outcomeCreated:
		res.Created++
	case outcomeUpdated:
		res.Updated++
	default:
		res.Unchanged++
	}
	syncItems.WithLabelValues(res.Collection, out.String()).Inc()
}

func (r *Reconciler) finish(res *model.SyncResult, logger *slog.Logger) {
	res.CompletedAt = time.Now().UTC()
	syncDuration.WithLabelValues(res.Collection).Observe(res.CompletedAt.Sub(res.StartedAt).Seconds())

	attrs := []any{
		slog.String("status", res.Status()),
		slog.Int("total", res.Total),
		slog.Int("created", res.Created),
		slog.Int("updated", res.Updated),
		slog.Int("unchanged", res.Unchanged),
		slog.Int("failed", res.Failed),
	}
	if res.AccountsCreated > 0 {
		attrs = append(attrs, slog.Int("accounts_created", res.AccountsCreated))
	}
	if res.Failed > 0 {
		logger.Warn("Синхронизация завершена с ошибками", attrs...)
		return
	}
	logger.Info("Синхронизация завершена", attrs...)
}

// SyncAccounts синхронизирует аккаунты PowerDNS-Admin.
// Ошибка получения списка прерывает прогон без изменений в БД.
// Частичный сбой не является ошибкой: см. SyncResult.Err.
func (r *Reconciler) SyncAccounts(ctx context.Context) (*model.SyncResult, error) {
	res := newResult(model.CollectionAccounts)
	logger := r.logger.With(
		slog.String("run_id", res.RunID),
		slog.String("collection", res.Collection),
	)

	remote, err := r.remote.ListAccounts(ctx)
	if err != nil {
		return nil, classifyRemote("получение аккаунтов PowerDNS-Admin", err)
	}
	res.Total = len(remote)

	for _, ra := range remote {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("синхронизация аккаунтов прервана: %w", err)
		}
		key := identity.NormalizeOwner(ra.Name)
		out, err := r.applyAccount(ctx, ra)
		r.record(res, logger, key, out, err)
	}

	r.finish(res, logger)
	if err := r.store.SyncState().UpdateAccountSyncAt(ctx, res.CompletedAt); err != nil {
		logger.Warn("Не удалось сохранить время синхронизации",
			slog.String("error", err.Error()),
		)
	}
	return res, nil
}

// SyncDomains синхронизирует зоны PowerDNS-Admin и разрешает их владельцев.
func (r *Reconciler) SyncDomains(ctx context.Context, opts SyncOptions) (*model.SyncResult, error) {
	res := newResult(model.CollectionDomains)
	logger := r.logger.With(
		slog.String("run_id", res.RunID),
		slog.String("collection", res.Collection),
	)

	zones, err := r.remote.ListZones(ctx)
	if err != nil {
		return nil, classifyRemote("получение зон PowerDNS-Admin", err)
	}
	res.Total = len(zones)

	owners := make([]string, 0, len(zones))
	for _, z := range zones {
		owners = append(owners, z.Account)
	}
	res.DigestCollisions = identity.Collisions(owners)
	for _, c := range res.DigestCollisions {
		logger.Warn("Коллизия дайджеста владельцев",
			slog.String("digest", c.Digest),
			slog.String("owners", strings.Join(c.Owners, ",")),
		)
	}

	source := r.remoteAccountSource(ctx, logger)
	seen := make(map[string]struct{}, len(zones))
	for _, z := range zones {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("синхронизация зон прервана: %w", err)
		}
		key := dnsname.Canonicalize(z.Name)

		// Имена, отличающиеся только регистром или точкой в конце, — одна зона:
		// применяется первая из них.
		if _, dup := seen[key]; dup {
			logger.Warn("Дубликат зоны после канонизации",
				slog.String("key", key),
				slog.String("name", z.Name),
			)
			r.record(res, logger, key, outcomeUnchanged, nil)
			continue
		}
		seen[key] = struct{}{}

		out, created, err := r.applyZone(ctx, z, opts, source)
		if created {
			res.AccountsCreated++
		}
		r.record(res, logger, key, out, err)
	}

	r.finish(res, logger)
	if err := r.store.SyncState().UpdateDomainSyncAt(ctx, res.CompletedAt); err != nil {
		logger.Warn("Не удалось сохранить время синхронизации",
			slog.String("error", err.Error()),
		)
	}
	return res, nil
}

// SyncAll синхронизирует аккаунты, затем зоны.
// Ошибка получения аккаунтов прерывает прогон до синхронизации зон.
func (r *Reconciler) SyncAll(ctx context.Context, opts SyncOptions) (*SyncReport, error) {
	report := &SyncReport{}

	accounts, err := r.SyncAccounts(ctx)
	if err != nil {
		return nil, err
	}
	report.Accounts = accounts

	domains, err := r.SyncDomains(ctx, opts)
	if err != nil {
		return report, err
	}
	report.Domains = domains
	return report, nil
}

// ApplyZone сохраняет одну зону, полученную от PowerDNS-Admin, и возвращает
// локальную запись. Неизвестный владелец создаётся локально.
func (r *Reconciler) ApplyZone(ctx context.Context, z pdnsadmin.Zone) (*model.Domain, error) {
	source := func(owner string) pdnsadmin.Account {
		ra, err := r.remote.GetAccount(ctx, owner)
		if err != nil {
			r.logger.Warn("Владелец зоны не получен из PowerDNS-Admin",
				slog.String("owner", owner),
				slog.String("error", err.Error()),
			)
			return pdnsadmin.Account{Name: owner}
		}
		return *ra
	}

	if _, _, err := r.applyZone(ctx, z, DefaultSyncOptions(), source); err != nil {
		return nil, err
	}
	d, err := r.store.Domains().GetByName(ctx, dnsname.Canonicalize(z.Name))
	if err != nil {
		return nil, classifyStore("чтение сохранённой зоны", err)
	}
	return d, nil
}

// remoteAccountSource лениво загружает аккаунты PowerDNS-Admin один раз за прогон.
// Нужен только при появлении неизвестного владельца.
func (r *Reconciler) remoteAccountSource(ctx context.Context, logger *slog.Logger) func(string) pdnsadmin.Account {
	var byName map[string]pdnsadmin.Account
	return func(owner string) pdnsadmin.Account {
		if byName == nil {
			byName = make(map[string]pdnsadmin.Account)
			list, err := r.remote.ListAccounts(ctx)
			if err != nil {
				logger.Warn("Аккаунты PowerDNS-Admin недоступны, владелец создаётся только по имени",
					slog.String("error", err.Error()),
				)
			}
			for _, a := range list {
				byName[identity.NormalizeOwner(a.Name)] = a
			}
		}
		if a, ok := byName[owner]; ok {
			return a
		}
		return pdnsadmin.Account{Name: owner}
	}
}

func (r *Reconciler) applyAccount(ctx context.Context, ra pdnsadmin.Account) (outcome, error) {
	want := accountFromRemote(ra)
	if want.Name == "" {
		return outcomeUnchanged, fmt.Errorf("%w: пустое имя аккаунта", ErrValidation)
	}

	var out outcome
	err := r.store.RunInTx(ctx, func(tx repository.Store) error {
		var err error
		out, err = upsertAccount(ctx, tx, want)
		return err
	})
	return out, err
}

func (r *Reconciler) applyZone(
	ctx context.Context,
	z pdnsadmin.Zone,
	opts SyncOptions,
	source func(string) pdnsadmin.Account,
) (outcome, bool, error) {
	name := dnsname.Canonicalize(z.Name)
	if !dnsname.Valid(name) {
		return outcomeUnchanged, false, fmt.Errorf("%w: недопустимое имя зоны %q", ErrValidation, z.Name)
	}

	owner := identity.NormalizeOwner(z.Account)
	want := &model.Domain{
		Name:        name,
		Kind:        z.Kind,
		DNSSEC:      z.DNSSEC,
		AccountText: owner,
		OwnerDigest: identity.DigestPtr(owner),
		OwnerSource: model.OwnerSourceRemote,
	}
	if want.Kind == "" {
		want.Kind = defaultZoneKind
	}
	if z.ID > 0 {
		id := z.ID
		want.RemoteZoneID = &id
	}

	var (
		out            outcome
		accountCreated bool
	)
	err := r.store.RunInTx(ctx, func(tx repository.Store) error {
		accountCreated = false

		accountID, err := r.mapper.Resolve(ctx, tx.Accounts(), owner)
		if errors.Is(err, identity.ErrUnknownOwner) {
			accountID = nil
			if opts.CreateMissingAccounts {
				acc, created, err := createOrGetAccount(ctx, tx, accountFromRemote(source(owner)))
				if err != nil {
					return fmt.Errorf("создание владельца %q: %w", owner, err)
				}
				accountID = &acc.ID
				accountCreated = created
			}
		} else if err != nil {
			return err
		}
		want.AccountID = accountID

		out, err = upsertDomain(ctx, tx, want)
		return err
	})
	if err != nil {
		return outcomeUnchanged, false, err
	}
	return out, accountCreated, nil
}

func accountFromRemote(ra pdnsadmin.Account) *model.Account {
	a := &model.Account{
		Name:        identity.NormalizeOwner(ra.Name),
		Description: ra.Description,
		Contact:     ra.Contact,
		Mail:        ra.Mail,
	}
	if ra.ID > 0 {
		id := ra.ID
		a.RemoteAccountID = &id
	}
	return a
}

// upsertAccount создаёт аккаунт или обновляет его зеркальные поля.
// IP-адреса локальные и не трогаются.
func upsertAccount(ctx context.Context, tx repository.Store, want *model.Account) (outcome, error) {
	existing, created, err := createOrGetAccount(ctx, tx, want)
	if err != nil {
		return outcomeUnchanged, err
	}
	if created {
		return outcomeCreated, nil
	}

	if existing.Description == want.Description &&
		existing.Contact == want.Contact &&
		existing.Mail == want.Mail &&
		equalInt64Ptr(existing.RemoteAccountID, want.RemoteAccountID) {
		return outcomeUnchanged, nil
	}

	existing.Description = want.Description
	existing.Contact = want.Contact
	existing.Mail = want.Mail
	existing.RemoteAccountID = want.RemoteAccountID
	if err := tx.Accounts().Update(ctx, existing); err != nil {
		return outcomeUnchanged, err
	}
	return outcomeUpdated, nil
}

// createOrGetAccount читает аккаунт по имени или создаёт его в точке сохранения.
// Существующий аккаунт не изменяется.
// Конфликт уникальности (параллельная вставка) приводит к повторному чтению.
func createOrGetAccount(ctx context.Context, tx repository.Store, want *model.Account) (*model.Account, bool, error) {
	existing, err := tx.Accounts().GetByName(ctx, want.Name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	err = tx.RunInTx(ctx, func(sp repository.Store) error {
		return sp.Accounts().Create(ctx, want)
	})
	if err == nil {
		return want, true, nil
	}
	if !errors.Is(err, repository.ErrConflict) {
		return nil, false, err
	}

	existing, err = tx.Accounts().GetByName(ctx, want.Name)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// upsertDomain создаёт домен или обновляет изменившиеся поля.
// Владелец, назначенный вручную (owner_source = manual), синхронизацией не меняется.
func upsertDomain(ctx context.Context, tx repository.Store, want *model.Domain) (outcome, error) {
	existing, err := tx.Domains().GetByName(ctx, want.Name)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		err = tx.RunInTx(ctx, func(sp repository.Store) error {
			return sp.Domains().Create(ctx, want)
		})
		if err == nil {
			return outcomeCreated, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return outcomeUnchanged, err
		}
		existing, err = tx.Domains().GetByName(ctx, want.Name)
		if err != nil {
			return outcomeUnchanged, err
		}
	case err != nil:
		return outcomeUnchanged, err
	}

	manual := existing.OwnerSource == model.OwnerSourceManual
	if equalInt64Ptr(existing.RemoteZoneID, want.RemoteZoneID) &&
		existing.Kind == want.Kind &&
		existing.DNSSEC == want.DNSSEC &&
		existing.AccountText == want.AccountText &&
		equalStringPtr(existing.OwnerDigest, want.OwnerDigest) &&
		(manual || equalInt64Ptr(existing.AccountID, want.AccountID)) {
		return outcomeUnchanged, nil
	}

	existing.RemoteZoneID = want.RemoteZoneID
	existing.Kind = want.Kind
	existing.DNSSEC = want.DNSSEC
	existing.AccountText = want.AccountText
	existing.OwnerDigest = want.OwnerDigest
	if !manual {
		existing.AccountID = want.AccountID
	}
	if err := tx.Domains().Update(ctx, existing); err != nil {
		return outcomeUnchanged, err
	}
	return outcomeUpdated, nil
}

func equalInt64Ptr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
