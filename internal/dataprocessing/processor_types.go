package dataprocessing

import (
	"log/slog"
	"time"

	"mibelpanel/internal/store"
)

// SourceKind says how a source's records reach the panel
type SourceKind string

const (
	// SourceCountry records are keyed by country and joined per country row.
	SourceCountry SourceKind = "country"
	// SourceLocation records are keyed by location and averaged per country.
	SourceLocation SourceKind = "location"
	// SourceFlow records are directed pairs pivoted into one column per pair.
	SourceFlow SourceKind = "flow"
)

// SourceSpec binds a staged table to a panel column family.
type SourceSpec struct {
	// Name identifies the source in diagnostics.
	Name   string
	Kind   SourceKind
	Family string
	// Column overrides the panel column name; it defaults to Family.
	// Flow sources ignore it and name one column per observed pair.
	Column string
	Table  store.TableSpec
}

// ColumnName returns the panel column for country and location sources
func (s SourceSpec) ColumnName() string {
	if s.Column != "" {
		return s.Column
	}
	return s.Family
}

// NormalizerOptions configures timestamp normalization
type NormalizerOptions struct {
	// DefaultZone is used for local records that carry no zone.
	DefaultZone string
	// MaxEvents caps the events kept per source; counts are always exact.
	MaxEvents int
	Logger    *slog.Logger
}

// QualityOptions configures diagnostics
type QualityOptions struct {
	// MissingRateThreshold flags coverage entries above this rate.
	MissingRateThreshold float64
	// MaxGapsPerEntry caps the gap list of each coverage entry.
	MaxGapsPerEntry int
	// MaxSamples caps the events copied into the report.
	MaxSamples int
}

// ProcessingOptions configures a Builder
type ProcessingOptions struct {
	Normalizer NormalizerOptions
	Quality    QualityOptions
	// Workers bounds concurrent series merges. Zero means one per series.
	Workers int
	// LocalPadding widens reads of wall-clock tables at both ends.
	LocalPadding time.Duration
}

// DefaultOptions returns default processing options
func DefaultOptions() ProcessingOptions {
	return ProcessingOptions{
		Normalizer: NormalizerOptions{
			DefaultZone: "Europe/Madrid",
			MaxEvents:   1000,
		},
		Quality: QualityOptions{
			MissingRateThreshold: 0.05,
			MaxGapsPerEntry:      20,
			MaxSamples:           100,
		},
		Workers:      4,
		LocalPadding: 26 * time.Hour,
	}
}
