package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/svdleer/pdnsapi-sub000/internal/config"
	"github.com/svdleer/pdnsapi-sub000/internal/database"
	"github.com/svdleer/pdnsapi-sub000/internal/identity"
	"github.com/svdleer/pdnsapi-sub000/internal/pdnsadmin"
	"github.com/svdleer/pdnsapi-sub000/internal/repository"
	"github.com/svdleer/pdnsapi-sub000/internal/service"
)

// app — общие зависимости команд: конфигурация, пул PostgreSQL,
// клиент PowerDNS-Admin и сервисный слой.
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	pool        *pgxpool.Pool
	client      *pdnsadmin.Client
	store       repository.Store
	reconciler  *service.Reconciler
	accounts    *service.AccountService
	domains     *service.DomainService
	assignments *service.AssignmentService
	status      *service.StatusService
}

// loadConfig загружает конфигурацию и настраивает логгер.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	return cfg, config.SetupLogger(cfg), nil
}

// newApp подключается к PostgreSQL и собирает сервисы.
// Вызывающий обязан вызвать Close.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	httpClient, err := buildPDNSHTTPClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	client := pdnsadmin.New(pdnsadmin.Settings{
		BaseURL:        cfg.PDNSBaseURL,
		AdminUser:      cfg.PDNSAdminUser,
		AdminPassword:  cfg.PDNSAdminPassword,
		ServerKey:      cfg.PDNSServerKey,
		ServerID:       cfg.PDNSServerID,
		ServerPrefixes: cfg.PDNSServerPrefixes,
	}, httpClient, logger)

	store := repository.NewStore(pool)
	reconciler := service.NewReconciler(client, store, identity.NewMapper(), logger)

	return &app{
		cfg:         cfg,
		logger:      logger,
		pool:        pool,
		client:      client,
		store:       store,
		reconciler:  reconciler,
		accounts:    service.NewAccountService(client, store, reconciler, cfg.AutoSync, logger),
		domains:     service.NewDomainService(client, store, reconciler, cfg.AutoSync, logger),
		assignments: service.NewAssignmentService(store, logger),
		status:      service.NewStatusService(client, store, cfg.PDNSBaseURL, logger),
	}, nil
}

// Close закрывает пул подключений.
func (a *app) Close() {
	a.pool.Close()
}

// buildPDNSHTTPClient создаёт HTTP-клиент к PowerDNS-Admin с таймаутом
// и, если задан PA_PDNS_CA_CERT_PATH, с кастомным CA.
func buildPDNSHTTPClient(cfg *config.Config, logger *slog.Logger) (*http.Client, error) {
	if cfg.PDNSCACertPath == "" {
		return &http.Client{Timeout: cfg.PDNSTimeout}, nil
	}
	client, err := buildHTTPClientWithCA(cfg.PDNSCACertPath, cfg.PDNSTimeout)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки CA-сертификата %s: %w", cfg.PDNSCACertPath, err)
	}
	logger.Info("CA-сертификат загружен", slog.String("path", cfg.PDNSCACertPath))
	return client, nil
}

// buildHTTPClientWithCA создаёт HTTP-клиент с кастомным CA-сертификатом.
func buildHTTPClientWithCA(caCertPath string, timeout time.Duration) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("в файле нет PEM-сертификатов")
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs:    caCertPool,
				MinVersion: tls.VersionTLS12,
			},
		},
	}, nil
}
