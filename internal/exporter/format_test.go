package exporter

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name  string
		value sql.NullFloat64
		want  string
	}{
		{"missing", sql.NullFloat64{}, ""},
		{"zero", sql.NullFloat64{Valid: true}, "0"},
		{"integer", sql.NullFloat64{Float64: 42, Valid: true}, "42"},
		{"fraction", sql.NullFloat64{Float64: 87.35, Valid: true}, "87.35"},
		{"negative", sql.NullFloat64{Float64: -3.5, Valid: true}, "-3.5"},
		{"large", sql.NullFloat64{Float64: 1e7, Valid: true}, "10000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.value))
		})
	}
}

func TestFormatInstant(t *testing.T) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Skip("tzdata not available")
	}
	local := time.Date(2023, 7, 1, 2, 0, 0, 0, madrid)
	assert.Equal(t, "2023-07-01T00:00:00Z", formatInstant(local))
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "7", formatInt(7))
	assert.Equal(t, "1", formatBool(true))
	assert.Equal(t, "0", formatBool(false))
	assert.Equal(t, "0.166667", formatRate(1.0/6))
}
