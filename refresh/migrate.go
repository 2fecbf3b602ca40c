package refresh

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	// Registers the pgx stdlib driver used by migration runners.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/MrEthical07/goRefresh/migrations"
)

// RunMigrations applies the embedded refresh_tokens schema to db. It is safe
// to call on every startup; goose skips already applied versions.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
