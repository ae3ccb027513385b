package repository

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"tutor_chat/pkg/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate применяет SQL файлы из migrations/ по порядку имен.
// Все скрипты идемпотентны (IF NOT EXISTS).
func Migrate(ctx context.Context, db *pgxpool.Pool, log logger.Logger) error {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, name := range files {
		script, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := db.Exec(ctx, string(script)); err != nil {
			log.Error("Failed to apply migration", "migration", name, "error", err)
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		log.Info("Migration applied", "migration", name)
	}

	return nil
}
