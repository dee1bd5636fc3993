package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/lutefd/draftpoints-api/internal/config"
	"github.com/lutefd/draftpoints-api/internal/logger"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding *.up.sql files")
	flag.Parse()

	cfgPath := os.Getenv("DRAFT_CONFIG")
	envOnly := cfgPath == ""
	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.DB.Driver != config.DriverPostgres {
		log.Info("nothing to migrate, sqlite schema is managed by the store", zap.String("driver", cfg.DB.Driver))
		return
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal("connect db failed", zap.Error(err))
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		log.Fatal("create schema_migrations failed", zap.Error(err))
	}

	files, err := listUpMigrations(*dir)
	if err != nil {
		log.Fatal("list migrations failed", zap.Error(err))
	}

	applied := 0
	for _, file := range files {
		version := strings.TrimSuffix(filepath.Base(file), ".up.sql")
		ok, err := apply(ctx, pool, version, file)
		if err != nil {
			log.Fatal("apply migration failed", zap.String("file", file), zap.Error(err))
		}
		if ok {
			applied++
			log.Info("applied migration", zap.String("version", version))
		}
	}
	log.Info("migrations complete", zap.Int("applied", applied), zap.Int("total", len(files)))
}

// apply runs one migration and records it in the same transaction. It
// reports false when the version was already applied.
func apply(ctx context.Context, pool *pgxpool.Pool, version, file string) (bool, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return false, fmt.Errorf("read migration: %w", err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, version).Scan(&exists); err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if _, err := tx.Exec(ctx, string(content)); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func listUpMigrations(root string) ([]string, error) {
	files := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".up.sql") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
