package dataprocessing

import (
	"database/sql"
	"sort"
	"time"

	"mibelpanel/pkg/contracts/domain"
)

// FlowColumnName names the wide column of a directed pair
func FlowColumnName(origin, destination string) string {
	return origin + "_to_" + destination
}

// FlowPivot holds directed flows pivoted to one column per observed pair.
type FlowPivot struct {
	// Columns is sorted lexicographically.
	Columns []string
	records map[string][]domain.NormalizedRecord
}

// Records returns the instant-keyed values of column, ordered by instant
func (p FlowPivot) Records(column string) []domain.NormalizedRecord {
	return p.records[column]
}

// Lookup returns the value of column at instant
func (p FlowPivot) Lookup(column string, instant time.Time) (sql.NullFloat64, bool) {
	recs := p.records[column]
	i := sort.Search(len(recs), func(i int) bool { return !recs[i].Instant.Before(instant) })
	if i < len(recs) && recs[i].Instant.Equal(instant) {
		return recs[i].Value, true
	}
	return sql.NullFloat64{}, false
}

// Series converts the pivot into market-scope series under family
func (p FlowPivot) Series(family string) []domain.Series {
	out := make([]domain.Series, len(p.Columns))
	for i, col := range p.Columns {
		out[i] = domain.Series{
			Family:  family,
			Column:  col,
			Scope:   domain.ScopeMarket,
			Records: p.records[col],
		}
	}
	return out
}

type flowKey struct {
	origin      string
	destination string
	unix        int64
}

// PivotFlows turns directed flows into one column per (origin, destination)
// pair. A pair that repeats at one instant keeps the later record and the
// discard is counted as a resolved duplicate.
func PivotFlows(source string, flows []domain.FlowRecord) (FlowPivot, NormalizeStats) {
	stats := newNormalizeStats(source, 0)
	latest := make(map[flowKey]domain.FlowRecord, len(flows))

	for _, f := range flows {
		stats.Read++
		if f.Origin == "" || f.Destination == "" {
			stats.record(domain.Event{
				Reason:    domain.ReasonMalformedFlowRecord,
				Source:    source,
				Key:       FlowColumnName(f.Origin, f.Destination),
				Timestamp: f.Instant,
			})
			continue
		}
		k := flowKey{origin: f.Origin, destination: f.Destination, unix: f.Instant.Unix()}
		if prev, ok := latest[k]; ok {
			stats.record(domain.Event{
				Reason:    domain.ReasonDuplicateResolved,
				Source:    source,
				Key:       FlowColumnName(prev.Origin, prev.Destination),
				Timestamp: prev.Instant,
				Instant:   prev.Instant,
			})
		}
		latest[k] = f
	}

	records := make(map[string][]domain.NormalizedRecord)
	for k, f := range latest {
		col := FlowColumnName(k.origin, k.destination)
		records[col] = append(records[col], domain.NormalizedRecord{
			Instant: f.Instant.UTC(),
			Key:     col,
			Value:   f.Value,
		})
	}

	columns := make([]string, 0, len(records))
	for col, recs := range records {
		sort.Slice(recs, func(i, j int) bool { return recs[i].Instant.Before(recs[j].Instant) })
		columns = append(columns, col)
	}
	sort.Strings(columns)
	stats.Normalized = len(latest)

	return FlowPivot{Columns: columns, records: records}, stats
}
