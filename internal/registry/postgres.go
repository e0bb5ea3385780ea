package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fleetreport/internal/apperr"
	"fleetreport/internal/storage"
)

// LoadPostgres copies the registry table into store, preserving the order
// Postgres returns the rows in.
func LoadPostgres(ctx context.Context, dsn, tableName string, store *storage.Store) error {
	source := "registry table " + tableName
	records, err := queryPostgres(ctx, dsn, tableName)
	if err != nil {
		return apperr.Load(source, err)
	}
	return apperr.Load(source, store.InsertTrips(ctx, records))
}

func queryPostgres(ctx context.Context, dsn, tableName string) ([]storage.TripRecord, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`SELECT COALESCE(%s::text, ''), COALESCE(%s::text, '') FROM %s`,
		pgx.Identifier{ColumnVehicle}.Sanitize(),
		pgx.Identifier{ColumnTransporter}.Sanitize(),
		pgx.Identifier{tableName}.Sanitize(),
	)
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query registry: %w", err)
	}
	defer rows.Close()

	var records []storage.TripRecord
	for rows.Next() {
		var r storage.TripRecord
		if err := rows.Scan(&r.VehicleNumber, &r.TransporterName); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
