package store

import (
	"context"
	"slices"
	"sync"

	"mibelpanel/pkg/contracts/domain"
)

// MemoryReader serves records held in memory, keyed by table name. It
// applies the same range and key filtering as the SQL readers and is used
// for dry runs and tests.
type MemoryReader struct {
	mu     sync.RWMutex
	tables map[string][]domain.SourceRecord
}

// NewMemoryReader creates an empty reader
func NewMemoryReader() *MemoryReader {
	return &MemoryReader{tables: make(map[string][]domain.SourceRecord)}
}

// Put appends records to table. Records with Seq 0 are numbered by their
// position in the table, so callers should set Seq on all records of a
// table or on none.
func (m *MemoryReader) Put(table string, records ...domain.SourceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = append(m.tables[table], records...)
}

// Read implements Reader. Absolute records are filtered by instant, local
// ones by wall clock, as a SQL reader would see them.
func (m *MemoryReader) Read(ctx context.Context, spec TableSpec, rng TimeRange, keys []string) ([]domain.SourceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.SourceRecord
	for i, rec := range m.tables[spec.Table] {
		if !inRange(rec, rng) {
			continue
		}
		if len(keys) > 0 && !slices.Contains(keys, rec.Key) {
			continue
		}
		rec.Source = spec.Table
		if rec.Seq == 0 {
			rec.Seq = int64(i + 1)
		}
		if rec.Kind == domain.TimestampAbsolute {
			rec.Timestamp = rec.Timestamp.UTC()
		}
		out = append(out, rec)
	}
	return out, nil
}

func inRange(rec domain.SourceRecord, rng TimeRange) bool {
	if rec.Kind == domain.TimestampAbsolute {
		ts := rec.Timestamp
		return !ts.Before(rng.Start) && ts.Before(rng.End)
	}
	ts := wallClock(rec.Timestamp)
	return !ts.Before(wallClock(rng.Start)) && ts.Before(wallClock(rng.End))
}
