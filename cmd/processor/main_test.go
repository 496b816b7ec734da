package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mibelpanel/internal/config"
	"mibelpanel/internal/exporter"
	"mibelpanel/internal/infrastructure"
	"mibelpanel/internal/store"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		check   func(t *testing.T, o options)
		wantErr bool
	}{
		{
			name: "single day",
			args: []string{"-start", "2023-03-26"},
			check: func(t *testing.T, o options) {
				assert.Equal(t, o.first, o.last)
				assert.Nil(t, o.compress)
				assert.Empty(t, o.countries)
			},
		},
		{
			name: "range with overrides",
			args: []string{"-start", "2023-03-01", "-end", "2023-03-31", "-countries", "es, pt", "-format", "csv", "-compress"},
			check: func(t *testing.T, o options) {
				assert.Equal(t, time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC), o.last)
				assert.Equal(t, []string{"ES", "PT"}, o.countries)
				assert.Equal(t, "csv", o.format)
				require.NotNil(t, o.compress)
				assert.True(t, *o.compress)
			},
		},
		{name: "missing start", args: nil, wantErr: true},
		{name: "bad start", args: []string{"-start", "26/03/2023"}, wantErr: true},
		{name: "bad end", args: []string{"-start", "2023-03-26", "-end", "tomorrow"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := parseFlags(tt.args, io.Discard)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, o)
		})
	}
}

// stagePrices writes one UTC day of Spanish prices the way the loader
// stages OMIE workbooks: local wall clock plus UTC offset.
func stagePrices(t *testing.T, paths *config.Paths, day time.Time) {
	t.Helper()
	ctx := context.Background()

	db, err := store.OpenDuckDB(paths.StagingDB)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, store.CreateSchema(ctx, db))

	var rows [][]any
	for h := 0; h < 24; h++ {
		local := day.Add(time.Duration(h+2) * time.Hour) // CEST
		rows = append(rows, []any{local, "ES", float64(h), nil, int32(7200)})
	}
	_, err = store.StageRows(ctx, db, store.TablePrices, rows)
	require.NoError(t, err)
}

func TestRun_CSV(t *testing.T) {
	infrastructure.ResetLoggerForTesting()
	t.Cleanup(infrastructure.ResetLoggerForTesting)

	base := t.TempDir()
	paths, err := config.NewPaths(base)
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())

	day := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	stagePrices(t, paths, day)

	cfgPath := filepath.Join(base, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
paths:
  base_dir: %q
logging:
  level: warn
  output: console
build:
  countries: [ES, PT]
export:
  format: csv
`, base)), 0644))

	var out bytes.Buffer
	err = run(context.Background(), options{configPath: cfgPath, first: day, last: day}, &out)
	require.NoError(t, err)

	artifact := paths.GetPanelPath(day, day, "csv")
	assert.Contains(t, out.String(), artifact)

	f, err := os.Open(artifact)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1+48)

	header := records[0]
	price := indexOf(header, "price_eur_mwh")
	require.GreaterOrEqual(t, price, 0)

	assert.Equal(t, []string{"2023-06-01T00:00:00Z", "ES"}, records[1][:2])
	assert.Equal(t, "0", records[1][price])
	assert.Equal(t, "23", records[24][price])
	assert.Equal(t, "PT", records[25][1])
	assert.Equal(t, "", records[25][price])
	assert.Equal(t, "1", records[1][indexOf(header, "policy_flag")])

	report, err := os.Open(paths.GetQualityReportPath(artifact))
	require.NoError(t, err)
	defer report.Close()
	quality, err := exporter.ReadQualityReport(report)
	require.NoError(t, err)
	assert.Equal(t, 48, quality.ExpectedRows)
	entry, ok := quality.Entry("price_eur_mwh", "PT")
	require.True(t, ok)
	assert.True(t, entry.Flagged)

	assert.FileExists(t, paths.GetCoveragePath(artifact))
	assert.FileExists(t, paths.GetMetricsPath())
}

func indexOf(values []string, want string) int {
	for i, v := range values {
		if v == want {
			return i
		}
	}
	return -1
}
