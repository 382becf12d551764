// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

package db // import "github.com/toeirei/markbook/internal/db"

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	// SQL drivers for the supported backends.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

var (
	//go:embed migrations
	embeddedMigrations embed.FS
	// sqlOpenFunc allows tests to override database opening behavior.
	sqlOpenFunc = sql.Open
)

// SupportedTypes lists the accepted values for the dbType argument.
var SupportedTypes = []string{"sqlite", "postgres", "mysql"}

// NewStoreFromDSN opens a pooled connection for the given DSN, verifies the
// store is reachable and returns a Store backed by a long-lived *bun.DB.
// The schema is not touched; call InitializeSchema for that.
func NewStoreFromDSN(dbType, dsn string) (Store, error) {
	const op = "open"
	driverName, err := driverFor(dbType)
	if err != nil {
		return nil, malformed(op, err)
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, malformed(op, errors.New("empty DSN"))
	}
	if dbType == "sqlite" {
		dsn = sqliteDSN(dsn)
	}

	start := time.Now()
	sqlDB, err := sqlOpenFunc(driverName, dsn)
	if err != nil {
		return nil, &Error{Op: op, Kind: ErrConnectivity, Err: err}
	}

	// Pool defaults are conservative; env vars override them for CI or
	// production tuning.
	const (
		defaultMaxOpenConns    = 25
		defaultMaxIdleConns    = 25
		defaultConnMaxLifetime = 5 * time.Minute
		defaultConnMaxIdleSecs = 60
	)
	maxOpen := envInt("MARKBOOK_DB_MAX_OPEN_CONNS", defaultMaxOpenConns)
	maxIdle := envInt("MARKBOOK_DB_MAX_IDLE_CONNS", defaultMaxIdleConns)
	connMax := time.Duration(envInt("MARKBOOK_DB_CONN_MAX_LIFETIME_SECONDS", int(defaultConnMaxLifetime/time.Second))) * time.Second
	connIdle := envInt("MARKBOOK_DB_CONN_MAX_IDLE_SECONDS", defaultConnMaxIdleSecs)

	// An in-memory SQLite database exists per connection unless the shared
	// cache is used, and even then only while a connection stays open.
	// Pin it to one connection so schema and data stay visible.
	if dbType == "sqlite" && isSQLiteMemory(dsn) {
		maxOpen = 1
		maxIdle = 1
		connMax = 0
		connIdle = 0
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(connMax)
	sqlDB.SetConnMaxIdleTime(time.Duration(connIdle) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, &Error{Op: op, Kind: ErrConnectivity, Err: err}
	}
	if dbType == "sqlite" {
		// The DSN pragma covers new connections; this covers drivers that
		// ignore it.
		if _, err := sqlDB.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = sqlDB.Close()
			return nil, opError(op, err)
		}
	}
	dbLogf("opened %s driver in %s (conn max open=%d, idle=%ds, maxLifetime=%s)", driverName, time.Since(start), maxOpen, connIdle, connMax)

	return NewBunStore(createBunDB(sqlDB, dbType), dbType), nil
}

func driverFor(dbType string) (string, error) {
	switch dbType {
	case "sqlite", "mysql":
		return dbType, nil
	case "postgres":
		// The pgx stdlib registers driver name "pgx".
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported database type %q (want one of %s)", dbType, strings.Join(SupportedTypes, ", "))
	}
}

// createBunDB constructs a *bun.DB for the provided *sql.DB and dbType.
func createBunDB(sqlDB *sql.DB, dbType string) *bun.DB {
	switch dbType {
	case "postgres":
		return bun.NewDB(sqlDB, pgdialect.New())
	case "mysql":
		return bun.NewDB(sqlDB, mysqldialect.New())
	default:
		return bun.NewDB(sqlDB, sqlitedialect.New())
	}
}

// sqliteDSN makes sure foreign keys are enforced on every connection the
// pool opens. SQLite leaves them off by default.
func sqliteDSN(dsn string) string {
	if dsn == ":memory:" {
		dsn = "file::memory:"
	}
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

func isSQLiteMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

// RunMigrations applies the embedded migrations for dbType that have not
// been recorded in schema_migrations yet. Each file runs in its own
// transaction together with its bookkeeping row.
func RunMigrations(ctx context.Context, bdb *bun.DB, dbType string) error {
	start := time.Now()
	dbLogf("starting migrations for %s", dbType)
	migrationsPath := path.Join("migrations", dbType)

	entries, err := fs.ReadDir(embeddedMigrations, migrationsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("no migrations embedded for %s", dbType)
		}
		return fmt.Errorf("failed to read embedded migrations (%s): %w", migrationsPath, err)
	}

	var ups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			ups = append(ups, e.Name())
		}
	}
	sort.Strings(ups)

	if err := ensureSchemaMigrationsTable(ctx, bdb, dbType); err != nil {
		return fmt.Errorf("failed to ensure schema_migrations table: %w", err)
	}

	applied := 0
	for _, fname := range ups {
		version := strings.TrimSuffix(fname, ".up.sql")

		var count int
		if err := QueryRawInto(ctx, bdb, &count, "SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version); err != nil {
			return fmt.Errorf("failed to check migration version %s: %w", version, err)
		}
		if count > 0 {
			continue
		}

		data, err := embeddedMigrations.ReadFile(path.Join(migrationsPath, fname))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", fname, err)
		}

		err = WithTx(ctx, bdb, func(ctx context.Context, tx bun.Tx) error {
			for _, stmt := range splitStatements(string(data)) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("failed to execute migration %s: %w", version, err)
				}
			}
			if _, err := ExecRaw(ctx, tx, "INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", version, time.Now().UTC()); err != nil {
				return fmt.Errorf("failed to record migration %s: %w", version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		applied++
	}
	dbLogf("applied %d migrations for %s in %s", applied, dbType, time.Since(start))
	return nil
}

// ensureSchemaMigrationsTable creates the bookkeeping table if missing.
// MySQL cannot index TEXT without a length, so it gets a VARCHAR key.
func ensureSchemaMigrationsTable(ctx context.Context, bdb *bun.DB, dbType string) error {
	ddl := `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMP)`
	if dbType == "mysql" {
		ddl = `CREATE TABLE IF NOT EXISTS schema_migrations (version VARCHAR(191) PRIMARY KEY, applied_at TIMESTAMP NULL)`
	}
	_, err := bdb.ExecContext(ctx, ddl)
	return err
}

// splitStatements breaks a migration file into single statements so every
// driver can run them without multi-statement support. Chunks holding only
// comments are dropped.
func splitStatements(script string) []string {
	var out []string
	for _, chunk := range strings.Split(script, ";") {
		stmt := strings.TrimSpace(chunk)
		if stmt == "" || onlyComments(stmt) {
			continue
		}
		out = append(out, stmt)
	}
	return out
}

func onlyComments(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}

// latestMigration returns the highest applied migration version, or "" when
// none has been applied.
func latestMigration(ctx context.Context, exec execRawProvider) (string, error) {
	var version sql.NullString
	if err := QueryRawInto(ctx, exec, &version, "SELECT MAX(version) FROM schema_migrations"); err != nil {
		return "", err
	}
	return version.String, nil
}
