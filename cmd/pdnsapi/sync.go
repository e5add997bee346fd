package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/svdleer/pdnsapi-sub000/internal/domain/model"
	"github.com/svdleer/pdnsapi-sub000/internal/service"
)

const collectionAll = "all"

func newSyncCommand() *cobra.Command {
	var noCreateAccounts bool

	cmd := &cobra.Command{
		Use:       "sync [accounts|domains|all]",
		Short:     "Синхронизировать локальную БД с PowerDNS-Admin",
		Long:      "Синхронизирует аккаунты и/или зоны. Код выхода не нулевой при ошибке или частичной синхронизации.",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{model.CollectionAccounts, model.CollectionDomains, collectionAll},
		RunE: func(cmd *cobra.Command, args []string) error {
			collection := collectionAll
			if len(args) == 1 {
				collection = args[0]
			}

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateRemote(); err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := service.SyncOptions{CreateMissingAccounts: !noCreateAccounts}
			report, err := runSync(cmd, a.reconciler, collection, opts)
			if err != nil {
				return err
			}
			if err := writeReport(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if err := report.Err(); err != nil {
				logger.Warn("Синхронизация завершена частично", slog.String("error", err.Error()))
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noCreateAccounts, "no-create-accounts", false,
		"не создавать аккаунты для неизвестных владельцев зон (группировка по дайджесту)")
	return cmd
}

func runSync(cmd *cobra.Command, rec *service.Reconciler, collection string, opts service.SyncOptions) (*service.SyncReport, error) {
	ctx := cmd.Context()
	switch collection {
	case model.CollectionAccounts:
		res, err := rec.SyncAccounts(ctx)
		if err != nil {
			return nil, err
		}
		return &service.SyncReport{Accounts: res}, nil
	case model.CollectionDomains:
		res, err := rec.SyncDomains(ctx, opts)
		if err != nil {
			return nil, err
		}
		return &service.SyncReport{Domains: res}, nil
	default:
		return rec.SyncAll(ctx, opts)
	}
}

// syncSummary — строка отчёта для вывода.
type syncSummary struct {
	Collection      string     `json:"collection"`
	RunID           string     `json:"run_id"`
	Status          string     `json:"status"`
	Total           int        `json:"total"`
	Created         int        `json:"created"`
	Updated         int        `json:"updated"`
	Unchanged       int        `json:"unchanged"`
	Failed          int        `json:"failed"`
	AccountsCreated int        `json:"accounts_created,omitempty"`
	Skipped         []skipLine `json:"skipped,omitempty"`
}

type skipLine struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

func toSkipLines(skips []model.SyncSkip) []skipLine {
	var out []skipLine
	for _, s := range skips {
		out = append(out, skipLine{Key: s.Key, Reason: s.Reason})
	}
	return out
}

type cleanupSummary struct {
	RunID             string     `json:"run_id"`
	DryRun            bool       `json:"dry_run"`
	DomainsRemoved    []string   `json:"domains_removed"`
	AccountsRemoved   []string   `json:"accounts_removed"`
	AssignmentsPruned int        `json:"assignments_pruned"`
	Failed            int        `json:"failed"`
	Skipped           []skipLine `json:"skipped,omitempty"`
}

func writeReport(w io.Writer, report *service.SyncReport) error {
	var out []syncSummary
	for _, res := range []*model.SyncResult{report.Accounts, report.Domains} {
		if res == nil {
			continue
		}
		out = append(out, syncSummary{
			Collection:      res.Collection,
			RunID:           res.RunID,
			Status:          res.Status(),
			Total:           res.Total,
			Created:         res.Created,
			Updated:         res.Updated,
			Unchanged:       res.Unchanged,
			Failed:          res.Failed,
			AccountsCreated: res.AccountsCreated,
			Skipped:         toSkipLines(res.Skipped),
		})
	}
	return writeJSON(w, out)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("ошибка вывода отчёта: %w", err)
	}
	return nil
}

func newCleanupCommand() *cobra.Command {
	var opts service.CleanupOptions

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Удалить локальные домены и аккаунты, которых нет в PowerDNS-Admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateRemote(); err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.reconciler.Cleanup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			err = writeJSON(cmd.OutOrStdout(), cleanupSummary{
				RunID:             res.RunID,
				DryRun:            res.DryRun,
				DomainsRemoved:    res.DomainsRemoved,
				AccountsRemoved:   res.AccountsRemoved,
				AssignmentsPruned: res.AssignmentsPruned,
				Failed:            res.Failed,
				Skipped:           toSkipLines(res.Skipped),
			})
			if err != nil {
				return err
			}
			if res.Failed > 0 {
				return fmt.Errorf("очистка завершена частично: %d записей не удалено", res.Failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "только показать, что будет удалено")
	cmd.Flags().BoolVar(&opts.AllowEmptyRemote, "allow-empty", false,
		"разрешить очистку, когда PowerDNS-Admin вернул пустой список")
	return cmd
}
