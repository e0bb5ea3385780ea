// Package registry loads the trip registry into a request-scoped store.
package registry

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"fleetreport/internal/apperr"
	"fleetreport/internal/storage"
	"fleetreport/internal/table"
)

// Registry column names.
const (
	ColumnVehicle     = "vehicle_number"
	ColumnTransporter = "transporter_name"
)

// Columns lists the columns a registry table must carry.
var Columns = []string{ColumnVehicle, ColumnTransporter}

// Source selects where registry rows come from. When DSN is set the rows are
// read from the Postgres table Table, otherwise from the CSV file at Path.
type Source struct {
	Path  string
	DSN   string
	Table string
}

func (s Source) String() string {
	if s.DSN != "" {
		return "registry table " + s.tableOrDefault()
	}
	return "registry " + s.Path
}

func (s Source) tableOrDefault() string {
	if s.Table == "" {
		return "trip_info"
	}
	return s.Table
}

// Open loads the source into a fresh in-memory store. The caller closes it.
func Open(ctx context.Context, src Source) (*storage.Store, error) {
	store, err := storage.Open(":memory:")
	if err != nil {
		return nil, err
	}
	if err := store.InitSchema(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	if src.DSN != "" {
		err = LoadPostgres(ctx, src.DSN, src.tableOrDefault(), store)
	} else {
		err = LoadCSV(ctx, src.Path, store)
	}
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	trips, err := store.CountTrips(ctx)
	if err != nil {
		_ = store.Close()
		return nil, apperr.Load(src.String(), err)
	}
	log.Printf("trip registry %s: %d trips", src, trips)
	return store, nil
}

// LoadCSV reads one trip per row from the CSV file at path.
func LoadCSV(ctx context.Context, path string, store *storage.Store) error {
	file, err := os.Open(path)
	if err != nil {
		return apperr.Load(path, err)
	}
	defer file.Close()

	records, err := ReadCSV(file)
	if err != nil {
		return apperr.Load(path, err)
	}
	return apperr.Load(path, store.InsertTrips(ctx, records))
}

// ReadCSV parses registry rows in file order.
func ReadCSV(r io.Reader) ([]storage.TripRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty registry file")
		}
		return nil, err
	}
	cols, err := table.Index(header, Columns...)
	if err != nil {
		return nil, err
	}

	var records []storage.TripRecord
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, storage.TripRecord{
			VehicleNumber:   cols.Get(record, ColumnVehicle),
			TransporterName: cols.Get(record, ColumnTransporter),
		})
	}
	return records, nil
}
