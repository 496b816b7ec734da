package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"mibelpanel/internal/dataprocessing"
	apperrors "mibelpanel/internal/errors"
	"mibelpanel/internal/store"
	"mibelpanel/pkg/contracts/domain"
)

// Config represents the complete application configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Store     StoreConfig     `yaml:"store" envconfig:"STORE"`
	Build     BuildConfig     `yaml:"build" envconfig:"BUILD"`
	Export    ExportConfig    `yaml:"export" envconfig:"EXPORT"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format      string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output      string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	// BaseDir anchors data/ and logs/. Empty means the executable directory.
	BaseDir string `yaml:"base_dir" envconfig:"BASE_DIR"`
}

// StoreConfig selects the staging store the builder reads from
type StoreConfig struct {
	Driver string `yaml:"driver" envconfig:"DRIVER" validate:"oneof=duckdb mysql postgres"`
	// DSN is a DuckDB file path, a MySQL DSN or a Postgres URL. An empty
	// DuckDB DSN uses the staging database under the data directory.
	DSN string `yaml:"dsn" envconfig:"DSN"`
}

// BuildConfig carries the static description of the panel
type BuildConfig struct {
	Countries            []string      `yaml:"countries" envconfig:"COUNTRIES" validate:"required,min=1,unique,dive,len=2,uppercase"`
	DefaultZone          string        `yaml:"default_zone" envconfig:"DEFAULT_ZONE" validate:"required"`
	Workers              int           `yaml:"workers" envconfig:"WORKERS" validate:"gte=0"`
	MissingRateThreshold float64       `yaml:"missing_rate_threshold" envconfig:"MISSING_RATE_THRESHOLD" validate:"gte=0,lte=1"`
	MaxGapsPerEntry      int           `yaml:"max_gaps_per_entry" envconfig:"MAX_GAPS_PER_ENTRY" validate:"gte=0"`
	MaxSamples           int           `yaml:"max_samples" envconfig:"MAX_SAMPLES" validate:"gte=0"`
	LocalPadding         time.Duration `yaml:"local_padding" envconfig:"LOCAL_PADDING" validate:"gte=0"`

	Policy    domain.PolicyWindow `yaml:"policy" ignored:"true"`
	Groupings map[string][]string `yaml:"groupings" ignored:"true"`
	Sources   []SourceConfig      `yaml:"sources" ignored:"true" validate:"dive"`
}

// SourceConfig binds a staged table to a panel column family
type SourceConfig struct {
	Name   string `yaml:"name" validate:"required"`
	Kind   string `yaml:"kind" validate:"oneof=country location flow"`
	Family string `yaml:"family" validate:"required"`
	Column string `yaml:"column,omitempty"`
	// Timestamps is absolute, local or local_offset.
	Timestamps string          `yaml:"timestamps,omitempty" validate:"omitempty,oneof=absolute utc local local_offset"`
	Table      store.TableSpec `yaml:"table"`
}

// ExportConfig controls the panel artifact
type ExportConfig struct {
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=parquet csv"`
	// Compress snappy-compresses CSV artifacts.
	Compress bool `yaml:"compress" envconfig:"COMPRESS"`
	// PostgresDSN, when set, also loads the panel into PostgresTable.
	PostgresDSN   string `yaml:"postgres_dsn" envconfig:"POSTGRES_DSN"`
	PostgresTable string `yaml:"postgres_table" envconfig:"POSTGRES_TABLE"`
}

// TelemetryConfig controls tracing and the metrics textfile
type TelemetryConfig struct {
	Tracing      bool   `yaml:"tracing" envconfig:"TRACING"`
	MetricsFile  string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
	WriteMetrics bool   `yaml:"write_metrics" envconfig:"WRITE_METRICS"`
}

// Load builds the configuration from defaults, then the YAML file at path
// (or the first well-known location when path is empty), then MIBEL_*
// environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, apperrors.NewConfigError(fmt.Sprintf("failed to load config from %s", path), err)
		}
	}

	// Fields carry no default tags, so unset variables keep file values.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file at filePath onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"mibel.yaml",
		"configs/mibel.yaml",
		"../configs/mibel.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Validate checks struct tags and the rules they cannot express
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return apperrors.NewValidationError("config validation failed", err)
	}

	if _, err := time.LoadLocation(c.Build.DefaultZone); err != nil {
		return apperrors.NewConfigError(fmt.Sprintf("unknown default zone %q", c.Build.DefaultZone), err)
	}

	if p := c.Build.Policy; p.Name != "" && !p.End.After(p.Start) {
		return apperrors.NewConfigError(fmt.Sprintf("policy %s ends before it starts", p.Name), nil)
	}

	if c.Store.Driver != DriverDuckDB && c.Store.DSN == "" {
		return apperrors.NewConfigError(fmt.Sprintf("store driver %s requires a dsn", c.Store.Driver), nil)
	}

	names := make(map[string]bool, len(c.Build.Sources))
	for _, src := range c.Build.Sources {
		if names[src.Name] {
			return apperrors.NewConfigError(fmt.Sprintf("duplicate source %q", src.Name), nil)
		}
		names[src.Name] = true

		if err := src.Table.Validate(); err != nil {
			return apperrors.NewConfigError(fmt.Sprintf("source %s", src.Name), err)
		}
		if src.Kind == string(dataprocessing.SourceFlow) && src.Table.CounterpartColumn == "" {
			return apperrors.NewConfigError(fmt.Sprintf("flow source %s needs a counterpart_column", src.Name), nil)
		}
	}
	return nil
}

// SourceSpecs converts the configured sources for the builder
func (c *Config) SourceSpecs() ([]dataprocessing.SourceSpec, error) {
	specs := make([]dataprocessing.SourceSpec, 0, len(c.Build.Sources))
	for _, src := range c.Build.Sources {
		kind, ok := domain.ParseTimestampKind(src.Timestamps)
		if !ok {
			return nil, apperrors.NewConfigError(fmt.Sprintf("source %s has unknown timestamps %q", src.Name, src.Timestamps), nil)
		}
		table := src.Table
		table.Kind = kind
		if kind != domain.TimestampAbsolute && table.Zone == "" {
			table.Zone = c.Build.DefaultZone
		}
		specs = append(specs, dataprocessing.SourceSpec{
			Name:   src.Name,
			Kind:   dataprocessing.SourceKind(src.Kind),
			Family: src.Family,
			Column: src.Column,
			Table:  table,
		})
	}
	return specs, nil
}

// Grouping returns the configured location grouping, or the default one
func (c *Config) Grouping() dataprocessing.LocationGrouping {
	if len(c.Build.Groupings) == 0 {
		return dataprocessing.DefaultGrouping()
	}
	return dataprocessing.LocationGrouping(c.Build.Groupings)
}

// PolicyWindow returns the configured policy window, or the Iberian
// exception when none is set
func (c *Config) PolicyWindow() domain.PolicyWindow {
	if c.Build.Policy.Name == "" {
		return domain.IberianException()
	}
	return c.Build.Policy
}

// ProcessingOptions maps the build section onto builder options
func (c *Config) ProcessingOptions() dataprocessing.ProcessingOptions {
	opts := dataprocessing.DefaultOptions()
	opts.Normalizer.DefaultZone = c.Build.DefaultZone
	opts.Workers = c.Build.Workers
	opts.LocalPadding = c.Build.LocalPadding
	opts.Quality.MissingRateThreshold = c.Build.MissingRateThreshold
	opts.Quality.MaxGapsPerEntry = c.Build.MaxGapsPerEntry
	opts.Quality.MaxSamples = c.Build.MaxSamples
	return opts
}

// StoreDSN returns the DSN to open, resolving the default DuckDB file
func (c *Config) StoreDSN(paths *Paths) string {
	if c.Store.Driver == DriverDuckDB && c.Store.DSN == "" {
		return paths.StagingDB
	}
	if c.Store.Driver == DriverDuckDB && !filepath.IsAbs(c.Store.DSN) {
		return filepath.Join(paths.BaseDir, c.Store.DSN)
	}
	return c.Store.DSN
}

// MetricsPath returns the metrics textfile path
func (c *Config) MetricsPath(paths *Paths) string {
	if c.Telemetry.MetricsFile != "" {
		return c.Telemetry.MetricsFile
	}
	return paths.GetMetricsPath()
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   DefaultLogFormat,
			Output:   "both",
			FilePath: DefaultLogFile,
		},
		Store: StoreConfig{
			Driver: DriverDuckDB,
		},
		Build: BuildConfig{
			Countries:            append([]string(nil), DefaultCountries...),
			DefaultZone:          DefaultZone,
			Workers:              DefaultWorkers,
			MissingRateThreshold: DefaultMissingRateThreshold,
			MaxGapsPerEntry:      DefaultMaxGapsPerEntry,
			MaxSamples:           DefaultMaxSamples,
			LocalPadding:         DefaultLocalPadding,
			Policy:               domain.IberianException(),
			Sources:              DefaultSources(),
		},
		Export: ExportConfig{
			Format:        FormatParquet,
			PostgresTable: DefaultPanelTable,
		},
		Telemetry: TelemetryConfig{
			WriteMetrics: true,
		},
	}
}

// DefaultSources describes the staging schema created by store.CreateSchema
func DefaultSources() []SourceConfig {
	prices := store.TableSpec{
		Table:        store.TablePrices,
		TimeColumn:   "timestamp",
		KeyColumn:    "country",
		ValueColumn:  "price_eur_mwh",
		OffsetColumn: "utc_offset_s",
	}
	energy := prices
	energy.ValueColumn = "energy_mwh"

	sources := []SourceConfig{
		{Name: "prices", Kind: "country", Family: "price_eur_mwh", Timestamps: "local", Table: prices},
		{Name: "energy", Kind: "country", Family: "energy_mwh", Timestamps: "local", Table: energy},
	}

	for _, tech := range []string{"solar", "wind", "hydro", "nuclear"} {
		sources = append(sources, SourceConfig{
			Name:   "generation_" + tech,
			Kind:   "country",
			Family: "generation_mw",
			Column: "generation_mw_" + tech,
			Table: store.TableSpec{
				Table:        store.TableGen,
				TimeColumn:   "timestamp",
				KeyColumn:    "country",
				ValueColumn:  "generation_mw",
				FilterColumn: "technology",
				FilterValue:  tech,
			},
		})
	}

	sources = append(sources, SourceConfig{
		Name:   "flows",
		Kind:   "flow",
		Family: "flow_mw",
		Table: store.TableSpec{
			Table:             store.TableFlows,
			TimeColumn:        "timestamp",
			KeyColumn:         "country_from",
			CounterpartColumn: "country_to",
			ValueColumn:       "flow_mw",
		},
	})

	for _, v := range []string{"temperature_c", "wind_speed_100m", "solar_radiation"} {
		sources = append(sources, SourceConfig{
			Name:   "weather_" + v,
			Kind:   "location",
			Family: v,
			Table: store.TableSpec{
				Table:       store.TableWeather,
				TimeColumn:  "timestamp",
				KeyColumn:   "location",
				ValueColumn: v,
			},
		})
	}
	return sources
}
