package dataprocessing

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	apperrors "mibelpanel/internal/errors"
	"mibelpanel/pkg/contracts/domain"
)

// ColumnJoinStats counts how the records of one series were joined
type ColumnJoinStats struct {
	Column      string
	Joined      int
	OutOfRange  int
	InactiveKey int
}

// AssemblyStats is returned next to the panel
type AssemblyStats struct {
	Columns []ColumnJoinStats
}

// OutOfRange sums out-of-range records over all columns
func (s AssemblyStats) OutOfRange() int {
	n := 0
	for _, c := range s.Columns {
		n += c.OutOfRange
	}
	return n
}

// InactiveKeys sums records whose key is not an active country
func (s AssemblyStats) InactiveKeys() int {
	n := 0
	for _, c := range s.Columns {
		n += c.InactiveKey
	}
	return n
}

// Assembler left-joins series onto the timeline × country skeleton.
type Assembler struct {
	workers int
	logger  *slog.Logger
}

// NewAssembler creates an assembler. workers bounds concurrent merges; zero
// or less merges every series at once.
func NewAssembler(workers int, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{workers: workers, logger: logger.With("component", "assembler")}
}

// Assemble builds the full cross product of timeline and countries and
// joins every series onto it. Each (instant, country) pair gets exactly one
// row whether or not any series covers it; uncovered cells hold the missing
// marker. Column order follows the order of series.
func (a *Assembler) Assemble(ctx context.Context, timeline *domain.Timeline, countries []string, series []domain.Series) (*domain.Panel, AssemblyStats, error) {
	countryIndex := make(map[string]int, len(countries))
	for i, c := range countries {
		if c == "" {
			return nil, AssemblyStats{}, apperrors.NewValidationError("empty country code", nil)
		}
		if _, dup := countryIndex[c]; dup {
			return nil, AssemblyStats{}, apperrors.NewValidationError(fmt.Sprintf("duplicate country %q", c), nil)
		}
		countryIndex[c] = i
	}

	columns := make([]domain.Column, len(series))
	seen := make(map[string]bool, len(series))
	for i, s := range series {
		if seen[s.Column] {
			return nil, AssemblyStats{}, apperrors.NewValidationError(fmt.Sprintf("duplicate column %q", s.Column), nil)
		}
		seen[s.Column] = true
		columns[i] = domain.Column{Name: s.Column, Family: s.Family, Scope: s.Scope}
	}

	hours := timeline.Len()
	width := len(series)
	rows := make([]domain.PanelRow, len(countries)*hours)
	cells := make([]sql.NullFloat64, len(rows)*width)
	for ci, country := range countries {
		for ti := 0; ti < hours; ti++ {
			r := ci*hours + ti
			rows[r] = domain.PanelRow{
				Instant: timeline.At(ti),
				Country: country,
				Metrics: cells[r*width : (r+1)*width : (r+1)*width],
			}
		}
	}

	stats := AssemblyStats{Columns: make([]ColumnJoinStats, len(series))}

	// Each merge owns one column index, so goroutines never write the same cell.
	g, gctx := errgroup.WithContext(ctx)
	if a.workers > 0 {
		g.SetLimit(a.workers)
	}
	for col, s := range series {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			stats.Columns[col] = mergeSeries(rows, timeline, countryIndex, len(countries), col, s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, AssemblyStats{}, err
	}

	a.logger.DebugContext(ctx, "Panel assembled",
		slog.Int("rows", len(rows)),
		slog.Int("columns", width),
		slog.Int("out_of_range", stats.OutOfRange()),
		slog.Int("inactive_keys", stats.InactiveKeys()))

	return &domain.Panel{
		Timeline:  timeline,
		Countries: append([]string(nil), countries...),
		Columns:   columns,
		Rows:      rows,
	}, stats, nil
}

func mergeSeries(rows []domain.PanelRow, timeline *domain.Timeline, countryIndex map[string]int, nCountries, col int, s domain.Series) ColumnJoinStats {
	stats := ColumnJoinStats{Column: s.Column}
	hours := timeline.Len()

	for _, rec := range s.Records {
		ti, ok := timeline.Index(rec.Instant)
		if !ok {
			stats.OutOfRange++
			continue
		}

		if s.Scope == domain.ScopeMarket {
			for ci := 0; ci < nCountries; ci++ {
				rows[ci*hours+ti].Metrics[col] = rec.Value
			}
			stats.Joined++
			continue
		}

		ci, ok := countryIndex[rec.Key]
		if !ok {
			stats.InactiveKey++
			continue
		}
		rows[ci*hours+ti].Metrics[col] = rec.Value
		stats.Joined++
	}
	return stats
}
