// cleanup.go — явное удаление локальных записей, отсутствующих в PowerDNS-Admin.
// Синхронизация сама ничего не удаляет; очистка запускается только вручную.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/svdleer/pdnsapi-sub000/internal/dnsname"
	"github.com/svdleer/pdnsapi-sub000/internal/domain/model"
	"github.com/svdleer/pdnsapi-sub000/internal/identity"
	"github.com/svdleer/pdnsapi-sub000/internal/repository"
)

// CleanupOptions — параметры очистки.
type CleanupOptions struct {
	// DryRun — только отчёт, без удаления
	DryRun bool
	// AllowEmptyRemote — разрешить очистку, когда PowerDNS-Admin вернул пустой список
	AllowEmptyRemote bool
}

// Cleanup удаляет локальные домены, которых нет среди зон PowerDNS-Admin,
// и аккаунты с remote_account_id, которых нет среди аккаунтов PowerDNS-Admin.
// Аккаунты без remote_account_id не удаляются.
func (r *Reconciler) Cleanup(ctx context.Context, opts CleanupOptions) (*model.CleanupResult, error) {
	res := &model.CleanupResult{
		RunID:     uuid.New().String(),
		DryRun:    opts.DryRun,
		StartedAt: time.Now().UTC(),
	}
	logger := r.logger.With(
		slog.String("run_id", res.RunID),
		slog.String("collection", "cleanup"),
		slog.Bool("dry_run", opts.DryRun),
	)

	zones, err := r.remote.ListZones(ctx)
	if err != nil {
		return nil, classifyRemote("получение зон PowerDNS-Admin", err)
	}
	accounts, err := r.remote.ListAccounts(ctx)
	if err != nil {
		return nil, classifyRemote("получение аккаунтов PowerDNS-Admin", err)
	}

	localDomains, err := r.store.Domains().List(ctx, repository.DomainFilter{})
	if err != nil {
		return nil, classifyStore("список доменов", err)
	}
	localAccounts, err := r.store.Accounts().List(ctx)
	if err != nil {
		return nil, classifyStore("список аккаунтов", err)
	}

	if !opts.AllowEmptyRemote {
		if len(zones) == 0 && len(localDomains) > 0 {
			return nil, fmt.Errorf("%w: PowerDNS-Admin вернул пустой список зон, очистка удалила бы все домены", ErrValidation)
		}
		if len(accounts) == 0 && len(localAccounts) > 0 {
			return nil, fmt.Errorf("%w: PowerDNS-Admin вернул пустой список аккаунтов, очистка удалила бы все аккаунты", ErrValidation)
		}
	}

	remoteZones := make(map[string]struct{}, len(zones))
	for _, z := range zones {
		remoteZones[dnsname.Canonicalize(z.Name)] = struct{}{}
	}
	remoteAccounts := make(map[string]struct{}, len(accounts))
	for _, a := range accounts {
		remoteAccounts[identity.NormalizeOwner(a.Name)] = struct{}{}
	}

	for _, d := range localDomains {
		if _, ok := remoteZones[d.Name]; ok {
			continue
		}
		n, err := r.removeOrphan(ctx, opts.DryRun,
			func(tx repository.Store) (int, error) { return tx.Assignments().CountByDomain(ctx, d.ID) },
			func(tx repository.Store) error { return tx.Domains().Delete(ctx, d.ID) },
		)
		if err != nil {
			res.Skip(d.Name, err)
			logger.Warn("Домен не удалён", slog.String("key", d.Name), slog.String("error", err.Error()))
			continue
		}
		res.DomainsRemoved = append(res.DomainsRemoved, d.Name)
		res.AssignmentsPruned += n
	}

	for _, a := range localAccounts {
		if a.RemoteAccountID == nil {
			continue
		}
		if _, ok := remoteAccounts[a.Name]; ok {
			continue
		}
		n, err := r.removeOrphan(ctx, opts.DryRun,
			func(tx repository.Store) (int, error) { return tx.Assignments().CountByAccount(ctx, a.ID) },
			func(tx repository.Store) error { return tx.Accounts().Delete(ctx, a.ID) },
		)
		if err != nil {
			res.Skip(a.Name, err)
			logger.Warn("Аккаунт не удалён", slog.String("key", a.Name), slog.String("error", err.Error()))
			continue
		}
		res.AccountsRemoved = append(res.AccountsRemoved, a.Name)
		res.AssignmentsPruned += n
	}

	res.CompletedAt = time.Now().UTC()
	logger.Info("Очистка завершена",
		slog.Int("domains_removed", len(res.DomainsRemoved)),
		slog.Int("accounts_removed", len(res.AccountsRemoved)),
		slog.Int("assignments_pruned", res.AssignmentsPruned),
		slog.Int("failed", res.Failed),
	)
	return res, nil
}

// removeOrphan считает связи записи и удаляет её в одной транзакции.
// В режиме dry-run транзакция не открывается и ничего не удаляется.
func (r *Reconciler) removeOrphan(
	ctx context.Context,
	dryRun bool,
	count func(tx repository.Store) (int, error),
	remove func(tx repository.Store) error,
) (int, error) {
	if dryRun {
		return count(r.store)
	}

	var n int
	err := r.store.RunInTx(ctx, func(tx repository.Store) error {
		var err error
		if n, err = count(tx); err != nil {
			return err
		}
		return remove(tx)
	})
	return n, err
}
