package data

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/trade_tracker_bot/config"
	"github.com/golang-migrate/migrate/v4"
	migratePostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migrateSqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultConnAttemts = 10
	connTimeout        = time.Second
)

func NewPostgresClient(cfg *config.Config) *sqlx.DB {
	dataSourceName := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=disable password=%s",
		cfg.Storage.Postgres.Host,
		cfg.Storage.Postgres.Port,
		cfg.Storage.Postgres.User,
		cfg.Storage.Postgres.DbName,
		cfg.Storage.Postgres.Password,
	)

	connAttempts := defaultConnAttemts
	var db *sqlx.DB
	var err error

	for connAttempts > 0 {
		db, err = sqlx.Connect("pgx", dataSourceName)
		if err == nil {
			break
		}

		slog.Info("Postgres is trying to connect", slog.Int("attempts left", connAttempts))

		time.Sleep(connTimeout)

		connAttempts--
	}

	if err != nil {
		slog.Error("Postgres connAttempts = 0")
		panic(err)
	}

	db.SetMaxOpenConns(cfg.Storage.Postgres.MaxOpenConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Storage.Postgres.ConnMaxLifetime) * time.Second)
	db.SetMaxIdleConns(cfg.Storage.Postgres.MaxIdleConns)
	db.SetConnMaxIdleTime(time.Duration(cfg.Storage.Postgres.ConnMaxIdleTime) * time.Second)
	if err = db.Ping(); err != nil {
		slog.Error("Postgres dbPing error")
		panic(err)
	}
	slog.Info("Postgres connected")

	runPostgresMigrations(db, cfg.Storage.Postgres.MigrationDir)
	slog.Info("postgres migrated successfully")

	return db
}

func NewSQLiteClient(cfg *config.Config) *sqlx.DB {
	dataSourceName := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", cfg.Storage.SQLite.Path)

	db, err := sqlx.Connect("sqlite3", dataSourceName)
	if err != nil {
		slog.Error("SQLite open error", slog.String("err", err.Error()))
		panic(err)
	}

	// single writer, the driver serializes access anyway
	db.SetMaxOpenConns(1)
	slog.Info("SQLite connected", slog.String("path", cfg.Storage.SQLite.Path))

	runSqliteMigrations(db, cfg.Storage.SQLite.MigrationDir)
	slog.Info("sqlite migrated successfully")

	return db
}

func runPostgresMigrations(db *sqlx.DB, migrationDir string) {
	driver, err := migratePostgres.WithInstance(db.DB, &migratePostgres.Config{})
	if err != nil {
		slog.Error("postgres migration failed on WithInstance", slog.String("err", err.Error()))
		panic(err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationDir),
		"postgres",
		driver,
	)
	if err != nil {
		slog.Error("postgres migration failed on NewWithDatabaseInstance", slog.String("err", err.Error()))
		panic(err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		slog.Error("postgres migration failed on m.Up()", slog.String("err", err.Error()))
		panic(err)
	}
}

func runSqliteMigrations(db *sqlx.DB, migrationDir string) {
	driver, err := migrateSqlite.WithInstance(db.DB, &migrateSqlite.Config{})
	if err != nil {
		slog.Error("sqlite migration failed on WithInstance", slog.String("err", err.Error()))
		panic(err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationDir),
		"sqlite3",
		driver,
	)
	if err != nil {
		slog.Error("sqlite migration failed on NewWithDatabaseInstance", slog.String("err", err.Error()))
		panic(err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		slog.Error("sqlite migration failed on m.Up()", slog.String("err", err.Error()))
		panic(err)
	}
}
