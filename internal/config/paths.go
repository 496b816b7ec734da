package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Paths contains every path the tools read or write.
// All directories hang off BaseDir:
//
//	<base>/
//	  ├── data/
//	  │   ├── raw/omie/      (OMIE workbooks picked up by the loader)
//	  │   ├── staging/       (DuckDB staging database)
//	  │   └── processed/     (panel artifacts and quality reports)
//	  └── logs/
type Paths struct {
	BaseDir      string
	DataDir      string
	RawDir       string
	OMIEDir      string
	StagingDir   string
	ProcessedDir string
	LogsDir      string

	// StagingDB is the default DuckDB file when no DSN is configured.
	StagingDB string
}

// NewPaths lays out the directory tree under base. An empty base resolves to
// the directory of the running executable.
func NewPaths(base string) (*Paths, error) {
	if base == "" {
		dir, err := executableDir()
		if err != nil {
			return nil, err
		}
		base = dir
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	dataDir := filepath.Join(base, "data")
	rawDir := filepath.Join(dataDir, "raw")
	stagingDir := filepath.Join(dataDir, "staging")

	return &Paths{
		BaseDir:      base,
		DataDir:      dataDir,
		RawDir:       rawDir,
		OMIEDir:      filepath.Join(rawDir, "omie"),
		StagingDir:   stagingDir,
		ProcessedDir: filepath.Join(dataDir, "processed"),
		LogsDir:      filepath.Join(base, "logs"),
		StagingDB:    filepath.Join(stagingDir, "mibel.duckdb"),
	}, nil
}

// GetPaths returns the paths relative to the executable location
func GetPaths() (*Paths, error) {
	return NewPaths("")
}

func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	// Resolve symlinks to get the actual executable location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}
	return filepath.Dir(exe), nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.RawDir,
		p.OMIEDir,
		p.StagingDir,
		p.ProcessedDir,
		p.LogsDir,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// PanelArtifactName returns the file name of a panel covering the inclusive
// day range [first, last], e.g. main_panel_20230101_20231231.parquet
func PanelArtifactName(first, last time.Time, ext string) string {
	return fmt.Sprintf("main_panel_%s_%s.%s", first.UTC().Format("20060102"), last.UTC().Format("20060102"), ext)
}

// GetPanelPath returns where a panel artifact is written
func (p *Paths) GetPanelPath(first, last time.Time, ext string) string {
	return filepath.Join(p.ProcessedDir, PanelArtifactName(first, last, ext))
}

// GetQualityReportPath returns the quality report written next to artifact
func (p *Paths) GetQualityReportPath(artifact string) string {
	return trimArtifactExt(artifact) + ".quality.json"
}

// GetCoveragePath returns the coverage table written next to artifact
func (p *Paths) GetCoveragePath(artifact string) string {
	return trimArtifactExt(artifact) + ".coverage.csv"
}

// GetMetricsPath returns the node-exporter textfile for a processor run
func (p *Paths) GetMetricsPath() string {
	return filepath.Join(p.ProcessedDir, "mibel_panel.prom")
}

// GetLogPath returns the path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// GetOMIEPath returns the path for a raw OMIE workbook
func (p *Paths) GetOMIEPath(filename string) string {
	return filepath.Join(p.OMIEDir, filename)
}

// trimArtifactExt strips the artifact extension, including a compression
// suffix such as .csv.sz
func trimArtifactExt(path string) string {
	path = strings.TrimSuffix(path, ".sz")
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs the resolved layout
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("data", p.DataDir),
			slog.String("omie", p.OMIEDir),
			slog.String("staging", p.StagingDir),
			slog.String("processed", p.ProcessedDir),
			slog.String("logs", p.LogsDir),
		),
		slog.String("staging_db", p.StagingDB))
}
