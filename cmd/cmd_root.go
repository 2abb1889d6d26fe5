// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/starburger/foodcart/geocoding"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

// options holds the flags shared by every command.
type options struct {
	DbPath              string
	EnvFile             string
	CacheBackend        string
	PostgresURL         string
	Geocoder            string
	APIKey              string
	GeocoderURL         string
	GeocoderTimeout     time.Duration
	GCPProject          string
	EnableHTTPTrace     bool
	EnableHTTPBodyTrace bool
	MaxProcs            int
}

const (
	cacheBackendDuckDB   = "duckdb"
	cacheBackendPostgres = "postgres"
)

var rootOptions = &options{}

var rootCmd = &cobra.Command{
	Use:   "foodcart",
	Short: "restaurant selection for Star Burger orders",
	Long: `
foodcart decides which restaurants can prepare an order and ranks them by
their distance to the customer, geocoding addresses through Yandex or Google
and caching the results.
`,
	SilenceUsage:      true,
	PersistentPreRunE: loadEnvironment,
}

var Version = "dev"

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// loadEnvironment reads the .env file and fills the flags that were left
// empty from the environment.
func loadEnvironment(_ *cobra.Command, _ []string) error {
	if err := godotenv.Load(rootOptions.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", rootOptions.EnvFile, err)
	}

	if rootOptions.APIKey == "" {
		switch rootOptions.Geocoder {
		case geocoding.ProviderGoogle:
			rootOptions.APIKey = os.Getenv("GOOGLE_MAPS_API_KEY")
		default:
			rootOptions.APIKey = firstEnv("FOODCART_GEOCODER_API_KEY", "YANDEX_GEOCODER_API_KEY")
		}
	}

	if rootOptions.PostgresURL == "" {
		rootOptions.PostgresURL = os.Getenv("FOODCART_POSTGRES_URL")
	}

	switch rootOptions.CacheBackend {
	case cacheBackendDuckDB, cacheBackendPostgres:
	default:
		return fmt.Errorf("unknown cache backend %q", rootOptions.CacheBackend)
	}

	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}

	return ""
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootOptions.DbPath, "db-path", "db", "Directory holding the DuckDB database")
	flags.StringVar(&rootOptions.EnvFile, "env-file", ".env", "File with environment variables to load")
	flags.StringVar(
		&rootOptions.CacheBackend,
		"cache-backend",
		cacheBackendDuckDB,
		"Where geocoded addresses are cached: duckdb or postgres",
	)
	flags.StringVar(
		&rootOptions.PostgresURL,
		"postgres-url",
		"",
		"Postgres connection string for the geocode cache. Defaults to $FOODCART_POSTGRES_URL",
	)
	flags.StringVar(&rootOptions.Geocoder, "geocoder", geocoding.ProviderYandex, "Geocoding provider: yandex or google")
	flags.StringVar(
		&rootOptions.APIKey,
		"api-key",
		"",
		"Geocoder API key. Defaults to $FOODCART_GEOCODER_API_KEY or $GOOGLE_MAPS_API_KEY",
	)
	flags.StringVar(&rootOptions.GeocoderURL, "geocoder-url", "", "Override the geocoder base URL")
	flags.DurationVar(&rootOptions.GeocoderTimeout, "geocoder-timeout", 10*time.Second, "Timeout of a geocoding request")
	flags.StringVar(
		&rootOptions.GCPProject,
		"gcp-project",
		"",
		"Google Cloud project holding the Maps API key, when retrieved through ADC",
	)
	flags.BoolVar(&rootOptions.EnableHTTPTrace, "http-trace", false, "Display HTTP requests-responses")
	flags.BoolVar(&rootOptions.EnableHTTPBodyTrace, "http-body-trace", false, "Display HTTP requests-responses bodies")
	flags.IntVar(
		&rootOptions.MaxProcs,
		"max-procs",
		0,
		"Max number of concurrent geocoding requests. Defaults to 8",
	)
}
