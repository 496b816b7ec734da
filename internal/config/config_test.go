package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mibelpanel/internal/dataprocessing"
	apperrors "mibelpanel/internal/errors"
	"mibelpanel/internal/store"
	"mibelpanel/pkg/contracts/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mibel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"ES", "PT", "FR"}, cfg.Build.Countries)
	assert.Equal(t, "Europe/Madrid", cfg.Build.DefaultZone)
	assert.Equal(t, DriverDuckDB, cfg.Store.Driver)
	assert.Equal(t, FormatParquet, cfg.Export.Format)
	assert.Equal(t, domain.IberianException(), cfg.PolicyWindow())
	assert.Equal(t, 26*time.Hour, cfg.Build.LocalPadding)
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		env         map[string]string
		wantErr     apperrors.ErrorType
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults without file or env",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, Default().Build.Countries, cfg.Build.Countries)
				assert.Len(t, cfg.Build.Sources, len(DefaultSources()))
			},
		},
		{
			name: "file overrides defaults",
			file: `
build:
  countries: [ES, PT]
  workers: 2
  local_padding: 30h
  policy:
    name: test_window
    start: 2023-01-01T00:00:00Z
    end: 2023-02-01T00:00:00Z
    countries: [PT]
  groupings:
    ES: [Madrid]
export:
  format: csv
  compress: true
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"ES", "PT"}, cfg.Build.Countries)
				assert.Equal(t, 2, cfg.Build.Workers)
				assert.Equal(t, 30*time.Hour, cfg.Build.LocalPadding)
				assert.Equal(t, "test_window", cfg.PolicyWindow().Name)
				assert.Equal(t, time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), cfg.PolicyWindow().End.UTC())
				assert.Equal(t, dataprocessing.LocationGrouping{"ES": {"Madrid"}}, cfg.Grouping())
				assert.Equal(t, FormatCSV, cfg.Export.Format)
				assert.True(t, cfg.Export.Compress)
				// untouched sections keep their defaults
				assert.Equal(t, DefaultZone, cfg.Build.DefaultZone)
			},
		},
		{
			name: "env overrides file",
			file: `
build:
  countries: [ES]
store:
  driver: duckdb
`,
			env: map[string]string{
				"MIBEL_BUILD_COUNTRIES": "PT,FR",
				"MIBEL_STORE_DRIVER":    "postgres",
				"MIBEL_STORE_DSN":       "postgres://localhost/mibel",
				"MIBEL_LOGGING_LEVEL":   "debug",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"PT", "FR"}, cfg.Build.Countries)
				assert.Equal(t, DriverPostgres, cfg.Store.Driver)
				assert.Equal(t, "postgres://localhost/mibel", cfg.Store.DSN)
				assert.Equal(t, "debug", cfg.Logging.Level)
			},
		},
		{
			name:    "unknown driver",
			env:     map[string]string{"MIBEL_STORE_DRIVER": "sqlite"},
			wantErr: apperrors.ErrTypeValidation,
		},
		{
			name:    "mysql needs a dsn",
			env:     map[string]string{"MIBEL_STORE_DRIVER": "mysql"},
			wantErr: apperrors.ErrTypeConfig,
		},
		{
			name:    "lowercase country",
			env:     map[string]string{"MIBEL_BUILD_COUNTRIES": "es"},
			wantErr: apperrors.ErrTypeValidation,
		},
		{
			name:    "unknown zone",
			env:     map[string]string{"MIBEL_BUILD_DEFAULT_ZONE": "Mars/Olympus"},
			wantErr: apperrors.ErrTypeConfig,
		},
		{
			name:    "malformed yaml",
			file:    "build: [",
			wantErr: apperrors.ErrTypeConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}

			cfg, err := Load(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestValidate_Sources(t *testing.T) {
	t.Run("duplicate names", func(t *testing.T) {
		cfg := Default()
		cfg.Build.Sources = append(cfg.Build.Sources, cfg.Build.Sources[0])
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate source")
	})

	t.Run("flow without counterpart", func(t *testing.T) {
		cfg := Default()
		cfg.Build.Sources = []SourceConfig{{
			Name: "flows", Kind: "flow", Family: "flow_mw",
			Table: store.TableSpec{Table: "flows", TimeColumn: "ts", KeyColumn: "origin", ValueColumn: "mw"},
		}}
		require.Error(t, cfg.Validate())
	})

	t.Run("unsafe identifier", func(t *testing.T) {
		cfg := Default()
		cfg.Build.Sources = []SourceConfig{{
			Name: "prices", Kind: "country", Family: "price",
			Table: store.TableSpec{Table: "prices; DROP TABLE x", TimeColumn: "ts", KeyColumn: "country", ValueColumn: "price"},
		}}
		require.Error(t, cfg.Validate())
	})

	t.Run("unknown kind", func(t *testing.T) {
		cfg := Default()
		cfg.Build.Sources[0].Kind = "grid"
		err := cfg.Validate()
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	})
}

func TestSourceSpecs(t *testing.T) {
	cfg := Default()
	specs, err := cfg.SourceSpecs()
	require.NoError(t, err)
	require.Len(t, specs, len(cfg.Build.Sources))

	byName := make(map[string]dataprocessing.SourceSpec)
	for _, s := range specs {
		byName[s.Name] = s
	}

	prices := byName["prices"]
	assert.Equal(t, dataprocessing.SourceCountry, prices.Kind)
	assert.Equal(t, domain.TimestampLocal, prices.Table.Kind)
	assert.Equal(t, DefaultZone, prices.Table.Zone)
	assert.Equal(t, "utc_offset_s", prices.Table.OffsetColumn)
	assert.True(t, prices.Table.Local())

	solar := byName["generation_solar"]
	assert.Equal(t, "generation_mw_solar", solar.ColumnName())
	assert.Equal(t, "technology", solar.Table.FilterColumn)
	assert.Equal(t, "solar", solar.Table.FilterValue)
	assert.False(t, solar.Table.Local())

	flows := byName["flows"]
	assert.Equal(t, dataprocessing.SourceFlow, flows.Kind)
	assert.Equal(t, "country_to", flows.Table.CounterpartColumn)

	weather := byName["weather_temperature_c"]
	assert.Equal(t, dataprocessing.SourceLocation, weather.Kind)
	assert.Equal(t, domain.TimestampAbsolute, weather.Table.Kind)
}

func TestSourceSpecs_UnknownTimestamps(t *testing.T) {
	cfg := Default()
	cfg.Build.Sources[0].Timestamps = "julian"
	_, err := cfg.SourceSpecs()
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestProcessingOptions(t *testing.T) {
	cfg := Default()
	cfg.Build.Workers = 7
	cfg.Build.MissingRateThreshold = 0.2
	cfg.Build.DefaultZone = "Europe/Lisbon"

	opts := cfg.ProcessingOptions()
	assert.Equal(t, 7, opts.Workers)
	assert.Equal(t, 0.2, opts.Quality.MissingRateThreshold)
	assert.Equal(t, "Europe/Lisbon", opts.Normalizer.DefaultZone)
	assert.Equal(t, DefaultMaxEvents, opts.Normalizer.MaxEvents)
}

func TestStoreDSN(t *testing.T) {
	paths, err := NewPaths(t.TempDir())
	require.NoError(t, err)

	cfg := Default()
	assert.Equal(t, paths.StagingDB, cfg.StoreDSN(paths))

	cfg.Store.DSN = "other.duckdb"
	assert.Equal(t, filepath.Join(paths.BaseDir, "other.duckdb"), cfg.StoreDSN(paths))

	cfg.Store = StoreConfig{Driver: DriverMySQL, DSN: "user:pw@tcp(localhost:3306)/mibel"}
	assert.Equal(t, "user:pw@tcp(localhost:3306)/mibel", cfg.StoreDSN(paths))
}
