package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr        string
	ArchivePath       string
	TrailDir          string
	TripInfoPath      string
	TripRegistryDSN   string
	TripRegistryTable string
	ScratchDir        string
	ReportFilename    string
	ReportRejectEmpty bool
	LoadConcurrency   int
	NATSURL           string
	NATSSubject       string
	MetricsAddr       string
}

func Load(path string) (Config, error) {
	cfg := Config{
		ServerAddr:        ":8080",
		ArchivePath:       "NU-raw-location-dump.zip",
		TrailDir:          "EOL-dump",
		TripInfoPath:      "Trip-Info.csv",
		TripRegistryTable: "trip_info",
		ReportFilename:    "Asset_Report.csv",
		LoadConcurrency:   4,
		NATSSubject:       "fleetreport.generated",
	}

	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	cfg.ServerAddr = getenv("SERVER_ADDR", cfg.ServerAddr)
	cfg.ArchivePath = getenv("ARCHIVE_PATH", cfg.ArchivePath)
	cfg.TrailDir = strings.Trim(getenv("TRAIL_DIR", cfg.TrailDir), "/")
	cfg.TripInfoPath = getenv("TRIP_INFO_PATH", cfg.TripInfoPath)
	cfg.TripRegistryDSN = os.Getenv("TRIP_REGISTRY_DSN")
	cfg.TripRegistryTable = getenv("TRIP_REGISTRY_TABLE", cfg.TripRegistryTable)
	cfg.ScratchDir = getenv("SCRATCH_DIR", os.TempDir())
	cfg.ReportFilename = getenv("REPORT_FILENAME", cfg.ReportFilename)
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubject = getenv("NATS_SUBJECT", cfg.NATSSubject)
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	if v := os.Getenv("REPORT_REJECT_EMPTY"); v != "" {
		if err := parseBool(&cfg.ReportRejectEmpty, v); err != nil {
			return Config{}, fmt.Errorf("REPORT_REJECT_EMPTY: %w", err)
		}
	}
	if v := os.Getenv("LOAD_CONCURRENCY"); v != "" {
		if err := parseInt(&cfg.LoadConcurrency, v); err != nil {
			return Config{}, fmt.Errorf("LOAD_CONCURRENCY: %w", err)
		}
		if cfg.LoadConcurrency <= 0 {
			return Config{}, fmt.Errorf("LOAD_CONCURRENCY: must be positive, got %d", cfg.LoadConcurrency)
		}
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseInt(target *int, value string) error {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return err
	}
	*target = parsed
	return nil
}

func parseBool(target *bool, value string) error {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return err
	}
	*target = parsed
	return nil
}
