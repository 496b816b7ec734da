package dataprocessing

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"mibelpanel/pkg/contracts/domain"
)

// LocationGrouping maps a country code to the locations that represent it.
type LocationGrouping map[string][]string

// DefaultGrouping is the weather station layout of the Iberian market
func DefaultGrouping() LocationGrouping {
	return LocationGrouping{
		"ES": {"Madrid", "Barcelona", "Seville", "Bilbao"},
		"PT": {"Lisbon", "Porto"},
	}
}

// Locations returns every member location of countries, in grouping order
func (g LocationGrouping) Locations(countries []string) []string {
	var out []string
	for _, c := range countries {
		out = append(out, g[c]...)
	}
	return out
}

// memberships inverts the grouping; a location may belong to several countries
func (g LocationGrouping) memberships() map[string][]string {
	inv := make(map[string][]string)
	for country, members := range g {
		for _, m := range members {
			inv[m] = append(inv[m], country)
		}
	}
	return inv
}

// AggregationStats counts location records that could not be grouped
type AggregationStats struct {
	Ungrouped int
}

type countryInstant struct {
	country string
	unix    int64
}

// AggregateLocations collapses per-location records into one record per
// (country, instant): the unweighted mean of the members present at that
// instant. When every member reported at an instant is missing, the
// aggregate is the missing marker. Records of locations outside the grouping
// are ignored and counted.
func AggregateLocations(grouping LocationGrouping, records []domain.NormalizedRecord) ([]domain.NormalizedRecord, AggregationStats) {
	var stats AggregationStats
	members := grouping.memberships()

	values := make(map[countryInstant][]float64)
	instants := make(map[countryInstant]time.Time)
	for _, rec := range records {
		countries, ok := members[rec.Key]
		if !ok {
			stats.Ungrouped++
			continue
		}
		for _, c := range countries {
			k := countryInstant{country: c, unix: rec.Instant.Unix()}
			if _, seen := instants[k]; !seen {
				instants[k] = rec.Instant
				values[k] = nil
			}
			if rec.Value.Valid {
				values[k] = append(values[k], rec.Value.Float64)
			}
		}
	}

	out := make([]domain.NormalizedRecord, 0, len(instants))
	for k, instant := range instants {
		agg := domain.NormalizedRecord{Instant: instant, Key: k.country}
		if vals := values[k]; len(vals) > 0 {
			agg.Value = domain.Present(stat.Mean(vals, nil))
		}
		out = append(out, agg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].Instant.Before(out[j].Instant)
	})
	return out, stats
}
