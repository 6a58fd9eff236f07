// Package database owns the Postgres connection and schema migrations.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	// Postgres driver for database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/shivanshkc/signon/internal/config"
)

// connectTimeout bounds the initial connectivity check.
const connectTimeout = 10 * time.Second

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Connect opens a Postgres connection pool and verifies connectivity.
func Connect(ctx context.Context, conf config.Config) (*sql.DB, error) {
	dsn := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(conf.Database.Username, conf.Database.Password),
		Host:   conf.Database.Addr,
		Path:   conf.Database.Database,
	}

	db, err := sql.Open("pgx", dsn.String())
	if err != nil {
		return nil, fmt.Errorf("error in sql.Open call: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("error in db.PingContext call: %w", err)
	}

	slog.InfoContext(ctx, "connected to database", "addr", conf.Database.Addr)
	return db, nil
}

// Migrate brings the schema up to date using the embedded migrations.
func Migrate(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("error in iofs.New call: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("error in postgres.WithInstance call: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("error in migrate.NewWithInstance call: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("error in migrator.Up call: %w", err)
	}

	return nil
}
