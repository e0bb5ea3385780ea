package storage

import (
	"context"
	"database/sql"
	"errors"

	_ "modernc.org/sqlite"
)

// UnknownTransporter is reported for vehicles with no registry rows.
const UnknownTransporter = "N/A"

type Store struct {
	db *sql.DB
}

// TripRecord is one completed trip from the registry.
type TripRecord struct {
	VehicleNumber   string
	TransporterName string
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// every new connection to :memory: is a separate empty database
		db.SetMaxOpenConns(1)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS trips (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	vehicle_number TEXT NOT NULL,
	transporter_name TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS trips_vehicle_number ON trips (vehicle_number, seq);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// InsertTrips appends records in order. Insertion order decides which
// transporter a vehicle resolves to.
func (s *Store) InsertTrips(ctx context.Context, records []TripRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO trips (vehicle_number, transporter_name)
VALUES (?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.VehicleNumber, r.TransporterName); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LookupTrips returns the transporter of the first registry row for vehicle
// and the number of rows for it. Unknown vehicles resolve to
// (UnknownTransporter, 0).
func (s *Store) LookupTrips(ctx context.Context, vehicle string) (string, int, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT transporter_name, (SELECT COUNT(*) FROM trips WHERE vehicle_number = ?)
FROM trips
WHERE vehicle_number = ?
ORDER BY seq
LIMIT 1
`, vehicle, vehicle)
	var transporter string
	var count int
	if err := row.Scan(&transporter, &count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UnknownTransporter, 0, nil
		}
		return "", 0, err
	}
	return transporter, count, nil
}

func (s *Store) CountTrips(ctx context.Context) (int, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM trips
`)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
