package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"sociofi/internal/config"
)

// Normalize maps driver aliases onto the names used across the package.
func Normalize(driver string) string {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return "sqlite3"
	case "postgres", "postgresql", "pgx":
		return "postgres"
	default:
		return strings.ToLower(driver)
	}
}

// Open connects to the configured database for driver.
func Open(ctx context.Context, driver string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[strings.ToLower(driver)]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", driver)
	}
	return OpenWith(ctx, driver, dbCfg)
}

// OpenWith connects using an explicit database section.
func OpenWith(ctx context.Context, driver string, dbCfg config.DatabaseConfig) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch Normalize(driver) {
	case "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if strings.Contains(dbCfg.DSN, ":memory:") {
			// Each connection would otherwise get its own empty database.
			db.SetMaxOpenConns(1)
		}
	case "mysql":
		dsn := dbCfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
				dbCfg.Username,
				dbCfg.Password,
				dbCfg.Host,
				dbCfg.Port,
				dbCfg.DBName,
				dbCfg.Params,
			)
		}
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	case "postgres":
		dsn := dbCfg.DSN
		if dsn == "" {
			u := url.URL{
				Scheme:   "postgres",
				User:     url.UserPassword(dbCfg.Username, dbCfg.Password),
				Host:     dbCfg.Host + ":" + strconv.Itoa(dbCfg.Port),
				Path:     "/" + dbCfg.DBName,
				RawQuery: dbCfg.Params,
			}
			dsn = u.String()
		}
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the required tables are present.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var stmts []string
	switch Normalize(driver) {
	case "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS document_embeddings (
				id TEXT PRIMARY KEY,
				document_name TEXT NOT NULL,
				chunk_index INTEGER NOT NULL,
				content TEXT NOT NULL,
				embedding TEXT NOT NULL,
				allowed_roles TEXT NOT NULL,
				created_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_document_embeddings_name ON document_embeddings(document_name)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS document_embeddings (
				id VARCHAR(36) NOT NULL,
				document_name VARCHAR(255) NOT NULL,
				chunk_index INT NOT NULL,
				content MEDIUMTEXT NOT NULL,
				embedding LONGTEXT NOT NULL,
				allowed_roles VARCHAR(512) NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_document_embeddings_name (document_name)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	case "postgres":
		stmts = []string{
			`CREATE EXTENSION IF NOT EXISTS vector`,
			`CREATE TABLE IF NOT EXISTS document_embeddings (
				id UUID PRIMARY KEY,
				document_name TEXT NOT NULL,
				chunk_index INTEGER NOT NULL,
				content TEXT NOT NULL,
				embedding vector NOT NULL,
				allowed_roles TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_document_embeddings_name ON document_embeddings(document_name)`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func rebind(driver, query string) string {
	if Normalize(driver) != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
