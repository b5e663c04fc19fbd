package warehouse

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/danee593/carris-encm/internal/config"
)

// Open connects to the backend selected by cfg.Warehouse
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Warehouse, error) {
	logger = logger.With(zap.String("warehouse", cfg.Warehouse))

	switch cfg.Warehouse {
	case config.WarehouseBigQuery, "":
		bq, err := OpenBigQuery(ctx, BigQueryOptions{
			ProjectID: cfg.ProjectID,
			Location:  cfg.BigQueryLocation,
			Endpoint:  cfg.BigQueryEndpoint,
		}, logger)
		if err != nil {
			return nil, err
		}
		return bq, nil
	case config.WarehousePostgres:
		pg, err := OpenPostgres(ctx, PostgresOptions{
			DatabaseURL:      cfg.DatabaseURL,
			CloudSQLInstance: cfg.CloudSQLInstance,
		}, logger)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case config.WarehouseSQLite:
		db, err := OpenSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown warehouse %q", cfg.Warehouse)
	}
}
