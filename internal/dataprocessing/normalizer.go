package dataprocessing

import (
	"errors"
	"log/slog"
	"sort"
	"time"

	"mibelpanel/pkg/contracts/domain"
)

// Resolution describes how a local wall-clock reading mapped onto UTC.
type Resolution int

const (
	// ResolvedUnique means the wall clock occurred exactly once.
	ResolvedUnique Resolution = iota
	// ResolvedAmbiguous means the wall clock occurred twice and the later instant was chosen.
	ResolvedAmbiguous
	// ResolvedGap means the wall clock never occurred.
	ResolvedGap
)

// ResolveLocal maps the wall-clock fields of wall onto a UTC instant in loc.
// Repeated readings resolve to the later of the two instants; readings that
// fall in a spring-forward gap return ResolvedGap and a zero time.
func ResolveLocal(wall time.Time, loc *time.Location) (time.Time, Resolution) {
	naive := wallAsUTC(wall)

	var valid []time.Time
	seen := make(map[int]bool, 3)
	for _, probe := range []time.Duration{-24 * time.Hour, 0, 24 * time.Hour} {
		_, offset := naive.Add(probe).In(loc).Zone()
		if seen[offset] {
			continue
		}
		seen[offset] = true

		candidate := naive.Add(-time.Duration(offset) * time.Second)
		if _, actual := candidate.In(loc).Zone(); actual == offset {
			valid = append(valid, candidate)
		}
	}

	switch len(valid) {
	case 0:
		return time.Time{}, ResolvedGap
	case 1:
		return valid[0], ResolvedUnique
	}
	latest := valid[0]
	for _, v := range valid[1:] {
		if v.After(latest) {
			latest = v
		}
	}
	return latest, ResolvedAmbiguous
}

// ResolveOffset maps a wall-clock reading with an explicit UTC offset onto UTC
func ResolveOffset(wall time.Time, offsetSeconds int) time.Time {
	return wallAsUTC(wall).Add(-time.Duration(offsetSeconds) * time.Second)
}

func wallAsUTC(wall time.Time) time.Time {
	y, mo, d := wall.Date()
	h, mi, s := wall.Clock()
	return time.Date(y, mo, d, h, mi, s, wall.Nanosecond(), time.UTC)
}

// NormalizeStats accumulates what happened to the records of one source.
// Padding counts records that resolved outside the build window; they are
// not part of Read and produce no events.
type NormalizeStats struct {
	Source     string
	Read       int
	Normalized int
	Padding    int
	Counts     map[domain.ReasonCode]int
	Events     []domain.Event
	maxEvents  int
}

func newNormalizeStats(source string, maxEvents int) NormalizeStats {
	return NormalizeStats{
		Source:    source,
		Counts:    make(map[domain.ReasonCode]int),
		maxEvents: maxEvents,
	}
}

func (s *NormalizeStats) record(ev domain.Event) {
	if s.Counts == nil {
		s.Counts = make(map[domain.ReasonCode]int)
	}
	s.Counts[ev.Reason]++
	if s.maxEvents <= 0 || len(s.Events) < s.maxEvents {
		s.Events = append(s.Events, ev)
	}
}

// Count returns how often reason occurred
func (s NormalizeStats) Count(reason domain.ReasonCode) int {
	return s.Counts[reason]
}

// Dropped returns the number of records that did not reach the output
func (s NormalizeStats) Dropped() int {
	return s.Read - s.Normalized
}

// Merge folds other into s, keeping s's source name
func (s *NormalizeStats) Merge(other NormalizeStats) {
	if s.Counts == nil {
		s.Counts = make(map[domain.ReasonCode]int)
	}
	s.Read += other.Read
	s.Normalized += other.Normalized
	s.Padding += other.Padding
	for reason, n := range other.Counts {
		s.Counts[reason] += n
	}
	for _, ev := range other.Events {
		if s.maxEvents > 0 && len(s.Events) >= s.maxEvents {
			break
		}
		s.Events = append(s.Events, ev)
	}
}

var errUnknownZone = errors.New("unknown time zone")

// Normalizer converts source timestamps onto the UTC hour grid. The
// optional window [windowStart, windowEnd) bounds the instants kept.
type Normalizer struct {
	opts        NormalizerOptions
	logger      *slog.Logger
	windowStart time.Time
	windowEnd   time.Time
}

// NewNormalizer creates a normalizer
func NewNormalizer(opts NormalizerOptions) *Normalizer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{opts: opts, logger: logger.With("component", "normalizer")}
}

// Within returns a copy of n that silently discards records resolving
// outside [start, end). Reads padded around the build range use it so the
// padding never shows up as events.
func (n *Normalizer) Within(start, end time.Time) *Normalizer {
	c := *n
	c.windowStart, c.windowEnd = start.UTC(), end.UTC()
	return &c
}

func (n *Normalizer) outsideWindow(instant time.Time) bool {
	if n.windowEnd.IsZero() {
		return false
	}
	return instant.Before(n.windowStart) || !instant.Before(n.windowEnd)
}

type resolvedRecord struct {
	instant time.Time
	record  domain.SourceRecord
	pos     int
}

type dedupKey struct {
	key         string
	counterpart string
	unix        int64
}

// Normalize converts records of one source into hourly UTC observations.
// Records that cannot be placed are dropped and counted by reason; when two
// records land on the same (key, instant) the later-received one is kept.
// The output is ordered by key, then instant.
func (n *Normalizer) Normalize(source string, records []domain.SourceRecord) ([]domain.NormalizedRecord, NormalizeStats) {
	resolved, stats := n.resolve(source, records)

	out := make([]domain.NormalizedRecord, len(resolved))
	for i, r := range resolved {
		out[i] = domain.NormalizedRecord{Instant: r.instant, Key: r.record.Key, Value: r.record.Value}
	}
	return out, stats
}

// NormalizeFlows is Normalize for directed-pair sources: Key is the origin
// and Counterpart the destination. Records without a destination are dropped.
func (n *Normalizer) NormalizeFlows(source string, records []domain.SourceRecord) ([]domain.FlowRecord, NormalizeStats) {
	resolved, stats := n.resolve(source, records)

	out := make([]domain.FlowRecord, 0, len(resolved))
	for _, r := range resolved {
		if r.record.Key == "" || r.record.Counterpart == "" {
			stats.record(domain.Event{
				Reason:    domain.ReasonMalformedFlowRecord,
				Source:    source,
				Key:       r.record.Key,
				Timestamp: r.record.Timestamp,
				Instant:   r.instant,
			})
			stats.Normalized--
			continue
		}
		out = append(out, domain.FlowRecord{
			Instant:     r.instant,
			Origin:      r.record.Key,
			Destination: r.record.Counterpart,
			Value:       r.record.Value,
		})
	}
	return out, stats
}

func (n *Normalizer) resolve(source string, records []domain.SourceRecord) ([]resolvedRecord, NormalizeStats) {
	stats := newNormalizeStats(source, n.opts.MaxEvents)
	zones := make(map[string]*time.Location)
	best := make(map[dedupKey]resolvedRecord, len(records))

	for pos, rec := range records {
		instant, reason, ok := n.toInstant(rec, zones)
		if n.outsideWindow(instant) {
			stats.Padding++
			continue
		}
		stats.Read++
		if reason != "" {
			ev := domain.Event{Reason: reason, Source: source, Key: rec.Key, Timestamp: rec.Timestamp}
			if ok {
				ev.Instant = instant
			}
			stats.record(ev)
		}
		if !ok {
			continue
		}
		if !onHour(instant) {
			stats.record(domain.Event{
				Reason:    domain.ReasonOffHourGrid,
				Source:    source,
				Key:       rec.Key,
				Timestamp: rec.Timestamp,
				Instant:   instant,
			})
			continue
		}

		current := resolvedRecord{instant: instant, record: rec, pos: pos}
		k := dedupKey{key: rec.Key, counterpart: rec.Counterpart, unix: instant.Unix()}
		prev, exists := best[k]
		if !exists {
			best[k] = current
			continue
		}

		// Later-received wins; the loser is the discarded record.
		winner, loser := prev, current
		if receivedAfter(current, prev) {
			winner, loser = current, prev
		}
		best[k] = winner
		stats.record(domain.Event{
			Reason:    domain.ReasonDuplicateResolved,
			Source:    source,
			Key:       loser.record.Key,
			Timestamp: loser.record.Timestamp,
			Instant:   instant,
		})
	}

	out := make([]resolvedRecord, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.record.Key != b.record.Key {
			return a.record.Key < b.record.Key
		}
		if a.record.Counterpart != b.record.Counterpart {
			return a.record.Counterpart < b.record.Counterpart
		}
		return a.instant.Before(b.instant)
	})
	stats.Normalized = len(out)

	if dropped := stats.Dropped(); dropped > 0 {
		n.logger.Debug("Records dropped during normalization",
			slog.String("source", source),
			slog.Int("read", stats.Read),
			slog.Int("dropped", dropped))
	}
	return out, stats
}

func receivedAfter(a, b resolvedRecord) bool {
	if a.record.Seq != b.record.Seq {
		return a.record.Seq > b.record.Seq
	}
	return a.pos > b.pos
}

// toInstant places rec on the UTC timeline. A non-empty reason is an event
// to report; dropped records return ok=false together with an approximate
// instant used only for the build window check.
func (n *Normalizer) toInstant(rec domain.SourceRecord, zones map[string]*time.Location) (instant time.Time, reason domain.ReasonCode, ok bool) {
	switch rec.Kind {
	case domain.TimestampLocalOffset:
		return ResolveOffset(rec.Timestamp, rec.OffsetSeconds), "", true

	case domain.TimestampLocal:
		name := rec.Zone
		if name == "" {
			name = n.opts.DefaultZone
		}
		loc, err := n.location(name, zones)
		if err != nil {
			return wallAsUTC(rec.Timestamp), domain.ReasonUnknownZone, false
		}

		instant, res := ResolveLocal(rec.Timestamp, loc)
		switch res {
		case ResolvedGap:
			y, mo, d := rec.Timestamp.Date()
			h, mi, sec := rec.Timestamp.Clock()
			return time.Date(y, mo, d, h, mi, sec, 0, loc).UTC(), domain.ReasonSkippedLocalGap, false
		case ResolvedAmbiguous:
			return instant, domain.ReasonAmbiguousResolved, true
		}
		return instant, "", true

	default:
		return rec.Timestamp.UTC().Round(0), "", true
	}
}

func (n *Normalizer) location(name string, cache map[string]*time.Location) (*time.Location, error) {
	if loc, ok := cache[name]; ok {
		if loc == nil {
			return nil, errUnknownZone
		}
		return loc, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		n.logger.Warn("Unknown time zone",
			slog.String("zone", name),
			slog.String("error", err.Error()))
		cache[name] = nil
		return nil, err
	}
	cache[name] = loc
	return loc, nil
}
