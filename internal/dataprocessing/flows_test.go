package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mibelpanel/pkg/contracts/domain"
)

func TestPivotFlows(t *testing.T) {
	at := utc(2023, 1, 1, 0)
	pivot, stats := PivotFlows("flows", []domain.FlowRecord{
		{Instant: at, Origin: "ES", Destination: "FR", Value: domain.Present(100)},
		{Instant: at, Origin: "FR", Destination: "ES", Value: domain.Present(5)},
		{Instant: utc(2023, 1, 1, 1), Origin: "PT", Destination: "ES", Value: domain.Present(30)},
	})

	assert.Equal(t, []string{"ES_to_FR", "FR_to_ES", "PT_to_ES"}, pivot.Columns)
	assert.Equal(t, 3, stats.Normalized)

	v, ok := pivot.Lookup("ES_to_FR", at)
	require.True(t, ok)
	assert.Equal(t, 100.0, v.Float64)

	v, ok = pivot.Lookup("FR_to_ES", at)
	require.True(t, ok)
	assert.Equal(t, 5.0, v.Float64)

	_, ok = pivot.Lookup("PT_to_ES", at)
	assert.False(t, ok, "PT_to_ES has no value at the first hour")
}

func TestPivotFlows_DuplicatePairKeepsLater(t *testing.T) {
	at := utc(2023, 1, 1, 0)
	pivot, stats := PivotFlows("flows", []domain.FlowRecord{
		{Instant: at, Origin: "ES", Destination: "FR", Value: domain.Present(100)},
		{Instant: at, Origin: "ES", Destination: "FR", Value: domain.Present(120)},
	})

	v, ok := pivot.Lookup("ES_to_FR", at)
	require.True(t, ok)
	assert.Equal(t, 120.0, v.Float64)
	assert.Equal(t, 1, stats.Count(domain.ReasonDuplicateResolved))
}

func TestPivotFlows_Series(t *testing.T) {
	pivot, _ := PivotFlows("flows", []domain.FlowRecord{
		{Instant: utc(2023, 1, 1, 2), Origin: "ES", Destination: "FR", Value: domain.Present(2)},
		{Instant: utc(2023, 1, 1, 1), Origin: "ES", Destination: "FR", Value: domain.Present(1)},
		{Instant: utc(2023, 1, 1, 1), Origin: "", Destination: "FR", Value: domain.Present(1)},
	})

	series := pivot.Series("flow_mw")
	require.Len(t, series, 1)
	assert.Equal(t, "ES_to_FR", series[0].Column)
	assert.Equal(t, "flow_mw", series[0].Family)
	assert.Equal(t, domain.ScopeMarket, series[0].Scope)
	require.Len(t, series[0].Records, 2)
	assert.Equal(t, utc(2023, 1, 1, 1), series[0].Records[0].Instant)
}

func TestFlowColumnName(t *testing.T) {
	assert.Equal(t, "ES_to_FR", FlowColumnName("ES", "FR"))
	assert.NotEqual(t, FlowColumnName("ES", "FR"), FlowColumnName("FR", "ES"))
}
