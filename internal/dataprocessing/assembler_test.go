package dataprocessing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "mibelpanel/internal/errors"
	"mibelpanel/pkg/contracts/domain"
)

func dayTimeline(t *testing.T) *domain.Timeline {
	t.Helper()
	tl, err := BuildTimeline(utc(2023, 1, 1, 0), utc(2023, 1, 2, 0))
	require.NoError(t, err)
	return tl
}

func TestAssemble_CrossProductIsComplete(t *testing.T) {
	tl := dayTimeline(t)
	countries := []string{"ES", "PT"}

	// One sparse series and one empty series.
	prices := domain.Series{
		Family: "price_eur_mwh",
		Column: "price_eur_mwh",
		Records: []domain.NormalizedRecord{
			{Instant: utc(2023, 1, 1, 3), Key: "ES", Value: domain.Present(50)},
		},
	}
	empty := domain.Series{Family: "temperature_c", Column: "temperature_c"}

	panel, stats, err := NewAssembler(2, nil).Assemble(context.Background(), tl, countries, []domain.Series{prices, empty})
	require.NoError(t, err)

	require.Len(t, panel.Rows, 48)
	seen := make(map[string]bool)
	for _, row := range panel.Rows {
		key := fmt.Sprintf("%s|%s", row.Country, row.Instant)
		assert.False(t, seen[key], "duplicate row %s", key)
		seen[key] = true
		require.Len(t, row.Metrics, 2)
		assert.False(t, row.Metrics[1].Valid)
	}

	v, ok := panel.Value("ES", utc(2023, 1, 1, 3), "price_eur_mwh")
	require.True(t, ok)
	assert.True(t, v.Valid)
	assert.Equal(t, 50.0, v.Float64)

	v, ok = panel.Value("PT", utc(2023, 1, 1, 3), "price_eur_mwh")
	require.True(t, ok)
	assert.False(t, v.Valid)

	assert.Equal(t, 1, stats.Columns[0].Joined)
	assert.Equal(t, []string{"price_eur_mwh", "temperature_c"}, panel.ColumnNames())
}

func TestAssemble_RowOrderIsCountryMajor(t *testing.T) {
	tl := dayTimeline(t)
	panel, _, err := NewAssembler(0, nil).Assemble(context.Background(), tl, []string{"PT", "ES"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "PT", panel.Rows[0].Country)
	assert.Equal(t, utc(2023, 1, 1, 0), panel.Rows[0].Instant)
	assert.Equal(t, "PT", panel.Rows[23].Country)
	assert.Equal(t, "ES", panel.Rows[24].Country)
	assert.Equal(t, utc(2023, 1, 1, 0), panel.Rows[24].Instant)
}

func TestAssemble_MarketScopeBroadcasts(t *testing.T) {
	tl := dayTimeline(t)
	flow := domain.Series{
		Family: "flow_mw",
		Column: "ES_to_FR",
		Scope:  domain.ScopeMarket,
		Records: []domain.NormalizedRecord{
			{Instant: utc(2023, 1, 1, 0), Key: "ES_to_FR", Value: domain.Present(100)},
		},
	}

	panel, _, err := NewAssembler(1, nil).Assemble(context.Background(), tl, []string{"ES", "PT"}, []domain.Series{flow})
	require.NoError(t, err)

	for _, c := range []string{"ES", "PT"} {
		v, ok := panel.Value(c, utc(2023, 1, 1, 0), "ES_to_FR")
		require.True(t, ok)
		assert.Equal(t, 100.0, v.Float64, c)
	}
}

func TestAssemble_CountsDiscardedRecords(t *testing.T) {
	tl := dayTimeline(t)
	s := domain.Series{
		Family: "price_eur_mwh",
		Column: "price_eur_mwh",
		Records: []domain.NormalizedRecord{
			{Instant: utc(2022, 12, 31, 23), Key: "ES", Value: domain.Present(1)},
			{Instant: utc(2023, 1, 2, 0), Key: "ES", Value: domain.Present(1)},
			{Instant: utc(2023, 1, 1, 1), Key: "FR", Value: domain.Present(1)},
			{Instant: utc(2023, 1, 1, 1), Key: "ES", Value: domain.Present(1)},
		},
	}

	panel, stats, err := NewAssembler(0, nil).Assemble(context.Background(), tl, []string{"ES"}, []domain.Series{s})
	require.NoError(t, err)

	assert.Len(t, panel.Rows, 24)
	assert.Equal(t, 2, stats.OutOfRange())
	assert.Equal(t, 1, stats.InactiveKeys())
	assert.Equal(t, 1, stats.Columns[0].Joined)
}

func TestAssemble_DeterministicAcrossWorkerCounts(t *testing.T) {
	tl := dayTimeline(t)
	var series []domain.Series
	for c := 0; c < 8; c++ {
		s := domain.Series{Family: "m", Column: fmt.Sprintf("m%d", c)}
		for h := 0; h < 24; h += c + 1 {
			s.Records = append(s.Records, domain.NormalizedRecord{
				Instant: tl.At(h), Key: "ES", Value: domain.Present(float64(c*100 + h)),
			})
		}
		series = append(series, s)
	}

	serial, _, err := NewAssembler(1, nil).Assemble(context.Background(), tl, []string{"ES", "PT"}, series)
	require.NoError(t, err)
	parallel, _, err := NewAssembler(8, nil).Assemble(context.Background(), tl, []string{"ES", "PT"}, series)
	require.NoError(t, err)

	assert.Equal(t, serial.Columns, parallel.Columns)
	for i := range serial.Rows {
		assert.Equal(t, serial.Rows[i].Metrics, parallel.Rows[i].Metrics)
	}
}

func TestAssemble_Errors(t *testing.T) {
	tl := dayTimeline(t)

	t.Run("duplicate column", func(t *testing.T) {
		s := domain.Series{Column: "x"}
		_, _, err := NewAssembler(0, nil).Assemble(context.Background(), tl, []string{"ES"}, []domain.Series{s, s})
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	})

	t.Run("duplicate country", func(t *testing.T) {
		_, _, err := NewAssembler(0, nil).Assemble(context.Background(), tl, []string{"ES", "ES"}, nil)
		require.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := NewAssembler(0, nil).Assemble(ctx, tl, []string{"ES"}, []domain.Series{{Column: "x"}})
		require.ErrorIs(t, err, context.Canceled)
	})
}
