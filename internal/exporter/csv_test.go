package exporter

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "mibelpanel/internal/errors"
	"mibelpanel/internal/shared/testutil"
	"mibelpanel/pkg/contracts/domain"
)

func samplePanel() *domain.Panel {
	return testutil.NewPanelFixture(time.Date(2023, 3, 26, 0, 0, 0, 0, time.UTC), 4, "ES", "PT").
		WithColumn("price_eur_mwh", "prices").
		WithColumn("temperature_c", "weather").
		WithMarketColumn("ES_to_FR", "flows").
		WithPolicy(domain.IberianException()).
		WithValues(func(country string, instant time.Time, column int) sql.NullFloat64 {
			switch {
			case column == 1 && instant.Hour() == 2:
				return testutil.Missing
			case column == 2:
				return testutil.Value(1000 + float64(instant.Hour()))
			case country == "PT":
				return testutil.Value(float64(instant.Hour()) + 0.25)
			default:
				return testutil.Value(float64(instant.Hour()))
			}
		}).
		Build()
}

func readCSV(t *testing.T, r io.Reader) [][]string {
	t.Helper()
	records, err := csv.NewReader(r).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCSVWriter_WritePanel(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	path := filepath.Join(t.TempDir(), "main_panel_20230326_20230326.csv")
	panel := samplePanel()

	require.NoError(t, NewCSVWriter(false, logger).WritePanel(context.Background(), path, panel))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records := readCSV(t, f)

	require.Len(t, records, 1+len(panel.Rows))
	assert.Equal(t, PanelHeaders(panel), records[0])
	assert.Equal(t, []string{"2023-03-26T00:00:00Z", "ES", "0", "0", "1000", "0", "6", "85", "3", "2023", "1", "1", "1"}, records[1])

	// Row order is country-major.
	assert.Equal(t, "ES", records[4][1])
	assert.Equal(t, "PT", records[5][1])
	assert.Equal(t, "0.25", records[5][2])

	// Missing cells are empty, not zero.
	assert.Equal(t, "", records[3][3])
	assert.Equal(t, "", records[7][3])

	testutil.AssertLogContains(t, handler, slog.LevelInfo, "Panel written")
	testutil.AssertLogAttr(t, handler, "compressed", false)
}

func TestCSVWriter_Deterministic(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(false, nil)
	first := filepath.Join(dir, "a.csv")
	second := filepath.Join(dir, "b.csv")

	require.NoError(t, w.WritePanel(context.Background(), first, samplePanel()))
	require.NoError(t, w.WritePanel(context.Background(), second, samplePanel()))

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.False(t, bytes.HasPrefix(a, []byte{0xEF, 0xBB, 0xBF}))
}

func TestCSVWriter_Compressed(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "panel.csv")
	packed := filepath.Join(dir, "panel.csv.sz")
	panel := samplePanel()

	require.NoError(t, NewCSVWriter(false, nil).WritePanel(context.Background(), plain, panel))
	require.NoError(t, NewCSVWriter(true, nil).WritePanel(context.Background(), packed, panel))

	want, err := os.ReadFile(plain)
	require.NoError(t, err)

	f, err := os.Open(packed)
	require.NoError(t, err)
	defer f.Close()
	got, err := io.ReadAll(snappy.NewReader(f))
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestCSVWriter_ReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panel.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0644))

	require.NoError(t, NewCSVWriter(false, nil).WritePanel(context.Background(), path, samplePanel()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("timestamp,country,")))
}

func TestCSVWriter_Cancelled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "panel.csv")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewCSVWriter(false, nil).WritePanel(ctx, path, samplePanel())
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no partial or temporary file is left behind")
}

func TestCSVWriter_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "panel.csv")

	err := NewCSVWriter(false, nil).WritePanel(context.Background(), path, samplePanel())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypePersistence))
}

func TestCSVWriter_WriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w := NewCSVWriter(false, nil)

	err := w.WriteCSV(path, WriteOptions{
		Headers:   []string{"a", "b"},
		Records:   [][]string{{"1", "x,y"}, {"2", `"q"`}},
		BOMPrefix: true,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}))

	records := readCSV(t, bytes.NewReader(data[3:]))
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "x,y"}, {"2", `"q"`}}, records)
}
