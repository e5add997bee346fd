package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/svdleer/pdnsapi-sub000/internal/api/handlers"
	"github.com/svdleer/pdnsapi-sub000/internal/config"
	"github.com/svdleer/pdnsapi-sub000/internal/database"
	"github.com/svdleer/pdnsapi-sub000/internal/server"
	"github.com/svdleer/pdnsapi-sub000/internal/service"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Применить миграции и запустить HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, logger)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("pdnsapi запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// Неполная настройка PowerDNS-Admin не мешает старту:
	// запросы к удалённому сервису вернут MISCONFIGURED.
	if err := cfg.ValidateRemote(); err != nil {
		logger.Warn("PowerDNS-Admin не настроен", slog.String("error", err.Error()))
	}

	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	pgDB := stdlib.OpenDBFromPool(a.pool)
	defer pgDB.Close()

	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(a.pool), a.client)
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		a.accounts,
		a.domains,
		a.assignments,
		a.reconciler,
		a.status,
		logger,
	)

	// topologymetrics — мониторинг зависимостей (PostgreSQL + PowerDNS-Admin)
	dephealthSvc, err := service.NewDephealthService(
		"pdnsapi",
		cfg.DephealthGroup,
		service.DephealthTargets{
			DB:             pgDB,
			PostgresURL:    database.URL(cfg),
			PDNSBaseURL:    cfg.PDNSBaseURL,
			PDNSHealthPath: cfg.PDNSHealthPath,
		},
		cfg.DephealthCheckInterval,
		logger,
	)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
		dephealthSvc = nil
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	srv := server.New(cfg, logger, apiHandler)
	runErr := srv.Run()

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	logger.Info("pdnsapi остановлен")
	return runErr
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции БД",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			return database.Migrate(cfg, logger)
		},
	}
}
