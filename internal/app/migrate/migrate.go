package migrate

import (
	"context"

	"qr-ordering/internal/common/config"
	"qr-ordering/internal/common/logger"
	"qr-ordering/internal/connections/database"
)

// Run applies the schema and exits.
func Run(ctx context.Context, cfg config.DB) error {
	pool, err := database.ConnectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		return err
	}
	logger.New("migrate").Info("schema_applied", map[string]any{"database": cfg.Name})
	return nil
}
