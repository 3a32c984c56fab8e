// Package dbmigrate applies the embedded PostgreSQL schema with golang-migrate.
package dbmigrate

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers pgx5://
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// DefaultSchema is the schema the embedded migrations create.
const DefaultSchema = "wishsync"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Up applies every pending migration. ErrNoChange is not an error.
func Up(ctx context.Context, databaseURL string, log *slog.Logger) error {
	m, err := open(databaseURL)
	if err != nil {
		return err
	}
	defer closeMigrate(m, log)

	stop := stopOnCancel(ctx, m)
	defer stop()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	logVersion(m, log, "db.migrate.up.ok")
	return nil
}

// Down rolls back the given number of migrations (at least one).
func Down(ctx context.Context, databaseURL string, steps int, log *slog.Logger) error {
	if steps <= 0 {
		steps = 1
	}
	m, err := open(databaseURL)
	if err != nil {
		return err
	}
	defer closeMigrate(m, log)

	stop := stopOnCancel(ctx, m)
	defer stop()

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	logVersion(m, log, "db.migrate.down.ok")
	return nil
}

// Version reports the applied version. ok is false on an empty database.
func Version(databaseURL string) (version uint, dirty bool, ok bool, err error) {
	m, err := open(databaseURL)
	if err != nil {
		return 0, false, false, err
	}
	defer closeMigrate(m, nil)

	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, err
	}
	return version, dirty, true, nil
}

// UpSQL concatenates the up migrations with the schema renamed. Integration
// tests use it to build isolated throwaway schemas.
func UpSQL(schema string) (string, error) {
	names, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	if err != nil {
		return "", err
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		raw, err := migrationsFS.ReadFile(name)
		if err != nil {
			return "", err
		}
		b.Write(raw)
		b.WriteString("\n")
	}
	out := strings.ReplaceAll(b.String(), "SCHEMA IF NOT EXISTS "+DefaultSchema+";", "SCHEMA IF NOT EXISTS "+schema+";")
	return strings.ReplaceAll(out, DefaultSchema+".", schema+"."), nil
}

// DriverURL rewrites a postgres:// URL to the pgx5:// scheme the migrate driver registers.
func DriverURL(databaseURL string) (string, error) {
	databaseURL = strings.TrimSpace(databaseURL)
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix), nil
		}
	}
	if strings.HasPrefix(databaseURL, "pgx5://") {
		return databaseURL, nil
	}
	return "", errors.New("dbmigrate: database url must start with postgres://")
}

func open(databaseURL string) (*migrate.Migrate, error) {
	dbURL, err := DriverURL(databaseURL)
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return nil, fmt.Errorf("migration instance: %w", err)
	}
	return m, nil
}

func stopOnCancel(ctx context.Context, m *migrate.Migrate) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			select {
			case m.GracefulStop <- true:
			default:
			}
		case <-done:
		}
	}()
	return func() { close(done) }
}

func logVersion(m *migrate.Migrate, log *slog.Logger, msg string) {
	if log == nil {
		return
	}
	v, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		log.Warn("db.migrate.version.fail", "err", err)
		return
	}
	log.Info(msg, "version", v, "dirty", dirty)
}

func closeMigrate(m *migrate.Migrate, log *slog.Logger) {
	srcErr, dbErr := m.Close()
	if log == nil {
		return
	}
	if srcErr != nil {
		log.Warn("db.migrate.close.source.fail", "err", srcErr)
	}
	if dbErr != nil {
		log.Warn("db.migrate.close.db.fail", "err", dbErr)
	}
}
