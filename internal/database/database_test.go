package database_test

import (
	"context"
	"strings"
	"testing"

	"github.com/svdleer/pdnsapi-sub000/internal/config"
	"github.com/svdleer/pdnsapi-sub000/internal/database"
	"github.com/svdleer/pdnsapi-sub000/internal/testutil/pgtest"
)

// TestConnect проверяет подключение к PostgreSQL через pgxpool.
func TestConnect(t *testing.T) {
	cfg := pgtest.Config(t)
	ctx := context.Background()

	pool, err := database.Connect(ctx, cfg, pgtest.Logger())
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("pool.Ping() вернул ошибку: %v", err)
	}
}

// TestMigrate проверяет применение миграций.
func TestMigrate(t *testing.T) {
	cfg := pgtest.Config(t)
	logger := pgtest.Logger()

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}

	// Повторное применение — должно быть без ошибки (ErrNoChange)
	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Повторный Migrate() вернул ошибку: %v", err)
	}

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	tables := []string{"accounts", "domains", "domain_assignments", "sync_state"}

	for _, table := range tables {
		var exists bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)`, table).Scan(&exists)
		if err != nil {
			t.Fatalf("Ошибка проверки таблицы %s: %v", table, err)
		}
		if !exists {
			t.Errorf("Таблица %s не создана", table)
		}
	}

	var syncID int
	if err := pool.QueryRow(ctx, `SELECT id FROM sync_state WHERE id = 1`).Scan(&syncID); err != nil {
		t.Fatalf("Начальная запись sync_state не найдена: %v", err)
	}

	// Неканоническое имя домена отклоняется на уровне схемы
	_, err = pool.Exec(ctx, `INSERT INTO domains (name) VALUES ('example.com')`)
	if err == nil {
		t.Error("вставка имени без завершающей точки должна нарушать CHECK")
	}
}

// TestReadinessChecker проверяет ReadinessChecker.
func TestReadinessChecker(t *testing.T) {
	cfg := pgtest.Config(t)
	ctx := context.Background()

	pool, err := database.Connect(ctx, cfg, pgtest.Logger())
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	status, msg := database.NewReadinessChecker(pool).CheckReady(ctx)
	if status != "ok" {
		t.Errorf("CheckReady() status = %q, message = %q; ожидали ok", status, msg)
	}
}

func TestMigrationURL_EscapesCredentials(t *testing.T) {
	cfg := &config.Config{
		DBHost: "db", DBPort: 5432, DBName: "pdns",
		DBUser: "user", DBPassword: "p@ss/w:rd", DBSSLMode: "disable",
	}

	got := database.MigrationURL(cfg)
	if !strings.HasPrefix(got, "pgx5://user:p%40ss%2Fw%3Ard@db:5432/pdns") {
		t.Errorf("MigrationURL() = %q, пароль должен быть экранирован", got)
	}
	if !strings.HasSuffix(got, "?sslmode=disable") {
		t.Errorf("MigrationURL() = %q, ожидается sslmode=disable", got)
	}
}

func TestURL_PostgresScheme(t *testing.T) {
	cfg := &config.Config{
		DBHost: "db", DBPort: 5432, DBName: "pdns",
		DBUser: "user", DBPassword: "secret", DBSSLMode: "require",
	}

	if got, want := database.URL(cfg), "postgres://user:secret@db:5432/pdns?sslmode=require"; got != want {
		t.Errorf("URL() = %q, ожидали %q", got, want)
	}
}
