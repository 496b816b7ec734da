package config

import "time"

// Application constants
const (
	AppName    = "MIBEL Panel"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces every environment variable, e.g. MIBEL_STORE_DSN.
	EnvPrefix = "MIBEL"

	// Store drivers
	DriverDuckDB   = "duckdb"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"

	// Export formats
	FormatParquet = "parquet"
	FormatCSV     = "csv"

	DefaultZone                 = "Europe/Madrid"
	DefaultWorkers              = 4
	DefaultMissingRateThreshold = 0.05
	DefaultMaxGapsPerEntry      = 20
	DefaultMaxSamples           = 100
	DefaultMaxEvents            = 1000
	DefaultLocalPadding         = 26 * time.Hour
	DefaultPanelTable           = "main_panel"

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultLogFile   = "logs/mibel.log"

	// OMIEWorkbookPattern matches the marginal price workbooks published by OMIE.
	OMIEWorkbookPattern = `(?i)^.*\.xlsx$`
)

// DefaultCountries is the country set built when none is configured.
var DefaultCountries = []string{"ES", "PT", "FR"}
