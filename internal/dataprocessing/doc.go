// Package dataprocessing turns staged market and weather observations into a
// gapless hourly panel with one row per (UTC hour, country).
//
// # Architecture
//
// The pipeline runs as a sequence of stages:
//
// 1. Normalizer: converts absolute, local-with-offset and local wall-clock
// timestamps onto the UTC hour grid, resolving DST repeats and gaps
// 2. PivotFlows / AggregateLocations: reshape directed flows into one column
// per pair and weather stations into per-country means
// 3. BuildTimeline + Assembler: build the complete timeline × country
// skeleton and left-join every series onto it
// 4. EnrichFeatures: calendar features and the policy-window flag
// 5. Diagnose: per-column coverage and dropped-record counts
//
// Builder wires the stages together behind BuildPanel.
//
// # Usage
//
//	builder := dataprocessing.NewBuilder(reader, specs,
//	    dataprocessing.WithLogger(logger),
//	    dataprocessing.WithMetrics(metrics))
//	panel, report, err := builder.BuildPanel(ctx, domain.BuildRequest{
//	    Start:     start,
//	    End:       end,
//	    Countries: []string{"ES", "PT"},
//	    Policy:    domain.IberianException(),
//	})
//
// # Missing Data
//
// Missing cells hold an invalid sql.NullFloat64. Nothing is interpolated or
// carried forward; every gap shows up in the QualityReport instead.
//
// # DST Handling
//
// A wall-clock reading that occurs twice on the autumn change maps to the
// later instant and is counted as AMBIGUOUS_RESOLVED. A reading inside the
// spring-forward gap is dropped as SKIPPED_LOCAL_GAP. Explicit offsets are
// trusted as given.
//
// # Ingestion
//
// ParseOMIEFile reads OMIE day-ahead workbooks (DATE, CONCEPT, H1..H25)
// into local-with-offset records for the staging store.
package dataprocessing
