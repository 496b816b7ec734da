package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPaths(t *testing.T) {
	base := t.TempDir()
	paths, err := NewPaths(base)
	require.NoError(t, err)

	assert.Equal(t, base, paths.BaseDir)
	assert.Equal(t, filepath.Join(base, "data", "raw", "omie"), paths.OMIEDir)
	assert.Equal(t, filepath.Join(base, "data", "processed"), paths.ProcessedDir)
	assert.Equal(t, filepath.Join(base, "data", "staging", "mibel.duckdb"), paths.StagingDB)
	assert.Equal(t, filepath.Join(base, "logs"), paths.LogsDir)
}

func TestGetPaths_UsesExecutableDir(t *testing.T) {
	paths, err := GetPaths()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(paths.BaseDir))
}

func TestEnsureDirectories(t *testing.T) {
	paths, err := NewPaths(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())

	for _, dir := range []string{paths.OMIEDir, paths.StagingDir, paths.ProcessedDir, paths.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}
	// idempotent
	require.NoError(t, paths.EnsureDirectories())
}

func TestArtifactPaths(t *testing.T) {
	paths, err := NewPaths(t.TempDir())
	require.NoError(t, err)

	first := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "main_panel_20230101_20231231.parquet", PanelArtifactName(first, last, "parquet"))

	artifact := paths.GetPanelPath(first, last, "csv.sz")
	assert.Equal(t, filepath.Join(paths.ProcessedDir, "main_panel_20230101_20231231.csv.sz"), artifact)

	tests := []struct {
		artifact string
		quality  string
		coverage string
	}{
		{"/p/main_panel_a_b.parquet", "/p/main_panel_a_b.quality.json", "/p/main_panel_a_b.coverage.csv"},
		{"/p/main_panel_a_b.csv", "/p/main_panel_a_b.quality.json", "/p/main_panel_a_b.coverage.csv"},
		{"/p/main_panel_a_b.csv.sz", "/p/main_panel_a_b.quality.json", "/p/main_panel_a_b.coverage.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.artifact, func(t *testing.T) {
			assert.Equal(t, tt.quality, paths.GetQualityReportPath(tt.artifact))
			assert.Equal(t, tt.coverage, paths.GetCoveragePath(tt.artifact))
		})
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "x.txt")
	assert.False(t, FileExists(file))
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	assert.True(t, FileExists(file))
}
