package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/runnerr0/tabtime/internal/aggregate"
	"github.com/runnerr0/tabtime/internal/classify"
)

// Period selects a rollup.
type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodAll   Period = "all"
)

// ParsePeriod validates a period name.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case PeriodToday, PeriodWeek, PeriodAll:
		return p, nil
	default:
		return "", fmt.Errorf("unknown period %q (want today, week or all)", s)
	}
}

// Row is one site in a summary.
type Row struct {
	Host   string  `json:"host"`
	Millis int64   `json:"ms"`
	Share  float64 `json:"share"` // relative to the busiest site, 0..1
	Time   string  `json:"time"`
}

// Summary is a ranked view of one rollup.
type Summary struct {
	Period    Period `json:"period"`
	Key       string `json:"key,omitempty"`
	Sites     int    `json:"sites"`
	TotalMs   int64  `json:"total_ms"`
	Total     string `json:"total"`
	Rows      []Row  `json:"rows"`
	Truncated int    `json:"truncated,omitempty"`
}

// Summarize ranks totals by time spent, busiest first, ties broken by
// host. Hosts that are not attributable are dropped. A positive limit
// caps the rows; totals always cover every site.
func Summarize(period Period, key string, totals aggregate.HostTotals, limit int) Summary {
	hosts := lo.Filter(lo.Keys(totals), func(h string, _ int) bool {
		return classify.Attributable(h)
	})
	sort.Slice(hosts, func(i, j int) bool {
		a, b := totals[hosts[i]], totals[hosts[j]]
		if a != b {
			return a > b
		}
		return hosts[i] < hosts[j]
	})

	total := lo.SumBy(hosts, func(h string) int64 { return totals[h] })
	var top int64
	if len(hosts) > 0 {
		top = totals[hosts[0]]
	}

	format := FormatClock
	if period == PeriodAll {
		format = FormatHours
	}

	s := Summary{
		Period:  period,
		Key:     key,
		Sites:   len(hosts),
		TotalMs: total,
		Total:   format(total),
	}

	shown := hosts
	if limit > 0 && len(shown) > limit {
		s.Truncated = len(shown) - limit
		shown = shown[:limit]
	}
	s.Rows = lo.Map(shown, func(h string, _ int) Row {
		ms := totals[h]
		var share float64
		if top > 0 {
			share = float64(ms) / float64(top)
		}
		return Row{Host: h, Millis: ms, Share: share, Time: format(ms)}
	})
	return s
}

// Load reads the rollup for period at now and summarizes it. When key is
// empty the day or week containing now is used.
func Load(ctx context.Context, r Reader, cal aggregate.Calendar, period Period, key string, now time.Time, limit int) (Summary, error) {
	var (
		totals aggregate.HostTotals
		err    error
	)
	switch period {
	case PeriodToday:
		if key == "" {
			key = cal.DayKey(now)
		} else if _, err = aggregate.ParseKey(key); err != nil {
			return Summary{}, err
		}
		totals, err = r.GetDaily(ctx, key)
	case PeriodWeek:
		if key == "" {
			key = cal.WeekKey(now)
		} else if key, err = cal.WeekOf(key); err != nil {
			return Summary{}, err
		}
		totals, err = r.GetWeekly(ctx, key)
	case PeriodAll:
		key = ""
		totals, err = r.GetAllTime(ctx)
	default:
		return Summary{}, fmt.Errorf("unknown period %q", period)
	}
	if err != nil {
		return Summary{}, err
	}
	return Summarize(period, key, totals, limit), nil
}

// FormatClock renders ms as "Xh Ym", or "Ym" under an hour. Partial
// minutes are truncated.
func FormatClock(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	hours := ms / int64(time.Hour/time.Millisecond)
	minutes := (ms % int64(time.Hour/time.Millisecond)) / int64(time.Minute/time.Millisecond)
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// FormatHours renders ms as fractional hours with one decimal, "X.Yh".
func FormatHours(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	return fmt.Sprintf("%.1fh", float64(ms)/float64(time.Hour/time.Millisecond))
}
