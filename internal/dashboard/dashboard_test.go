package dashboard

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/tabtime/internal/aggregate"
	"github.com/runnerr0/tabtime/internal/storage"
)

// 2025-03-12 15:30 UTC, a Wednesday.
var day0 = time.Date(2025, 3, 12, 15, 30, 0, 0, time.UTC)

func utcCalendar() aggregate.Calendar {
	return aggregate.Calendar{Location: time.UTC, WeekStart: time.Sunday}
}

func seededStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()

	kv, err := storage.Open(":memory:", "memory")
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	ctx := context.Background()
	agg := aggregate.NewStore(kv, utcCalendar(), aggregate.DefaultRetention())
	_, err = agg.Load(ctx, day0)
	require.NoError(t, err)

	require.NoError(t, agg.Merge(ctx, "a.com", 90*60*1000, day0))
	require.NoError(t, agg.Merge(ctx, "b.com", 30*60*1000, day0))
	require.NoError(t, agg.Merge(ctx, "c.com", 5*60*1000, day0.AddDate(0, 0, -1)))
	return kv
}

func TestKVReader_ReadContract(t *testing.T) {
	ctx := context.Background()
	r := NewKVReader(seededStore(t))

	all, err := r.GetAllTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, aggregate.HostTotals{"a.com": 5400000, "b.com": 1800000, "c.com": 300000}, all)

	today, err := r.GetDaily(ctx, "2025-03-12")
	require.NoError(t, err)
	assert.Equal(t, aggregate.HostTotals{"a.com": 5400000, "b.com": 1800000}, today)

	week, err := r.GetWeekly(ctx, "2025-03-09")
	require.NoError(t, err)
	assert.Len(t, week, 3)

	missing, err := r.GetDaily(ctx, "2024-01-01")
	require.NoError(t, err)
	assert.Empty(t, missing)
	assert.NotNil(t, missing)
}

func TestKVReader_ClearAll(t *testing.T) {
	ctx := context.Background()
	kv := seededStore(t)
	r := NewKVReader(kv)

	require.NoError(t, r.ClearAll(ctx))

	all, err := r.GetAllTime(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	snap, err := r.Snapshot(ctx)
	require.NoError(t, err)
	assert.NotZero(t, snap.ClearedAt)
}

func TestSummarize_RanksAndFilters(t *testing.T) {
	totals := aggregate.HostTotals{
		"b.com":     1000,
		"a.com":     1000,
		"big.com":   4000,
		"":          999999,
		"unknown":   999999,
		"null":      999999,
		"undefined": 999999,
	}

	s := Summarize(PeriodToday, "2025-03-12", totals, 0)

	assert.Equal(t, 3, s.Sites)
	assert.Equal(t, int64(6000), s.TotalMs)
	require.Len(t, s.Rows, 3)
	assert.Equal(t, []string{"big.com", "a.com", "b.com"}, []string{s.Rows[0].Host, s.Rows[1].Host, s.Rows[2].Host})
	assert.Equal(t, 1.0, s.Rows[0].Share)
	assert.Equal(t, 0.25, s.Rows[1].Share)
}

func TestSummarize_Limit(t *testing.T) {
	totals := aggregate.HostTotals{"a.com": 3, "b.com": 2, "c.com": 1}

	s := Summarize(PeriodAll, "", totals, 2)

	assert.Equal(t, 3, s.Sites)
	assert.Equal(t, int64(6), s.TotalMs)
	assert.Len(t, s.Rows, 2)
	assert.Equal(t, 1, s.Truncated)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(PeriodWeek, "2025-03-09", nil, 10)
	assert.Equal(t, 0, s.Sites)
	assert.Empty(t, s.Rows)
	assert.Equal(t, "0m", s.Total)
}

func TestSummarize_FormatsByPeriod(t *testing.T) {
	totals := aggregate.HostTotals{"a.com": 5400000}

	assert.Equal(t, "1h 30m", Summarize(PeriodToday, "", totals, 0).Rows[0].Time)
	assert.Equal(t, "1.5h", Summarize(PeriodAll, "", totals, 0).Rows[0].Time)
}

func TestLoad_ResolvesKeys(t *testing.T) {
	ctx := context.Background()
	r := NewKVReader(seededStore(t))
	cal := utcCalendar()

	today, err := Load(ctx, r, cal, PeriodToday, "", day0, 0)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-12", today.Key)
	assert.Equal(t, 2, today.Sites)

	yesterday, err := Load(ctx, r, cal, PeriodToday, "2025-03-11", day0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, yesterday.Sites)

	week, err := Load(ctx, r, cal, PeriodWeek, "2025-03-14", day0, 0)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-09", week.Key, "any date selects its week")
	assert.Equal(t, 3, week.Sites)

	all, err := Load(ctx, r, cal, PeriodAll, "ignored", day0, 0)
	require.NoError(t, err)
	assert.Empty(t, all.Key)
	assert.Equal(t, int64(7500000), all.TotalMs)

	_, err = Load(ctx, r, cal, PeriodToday, "March 12", day0, 0)
	assert.Error(t, err)
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("week")
	require.NoError(t, err)
	assert.Equal(t, PeriodWeek, p)

	_, err = ParsePeriod("month")
	assert.Error(t, err)
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0m"},
		{59999, "0m"},
		{60000, "1m"},
		{59 * 60000, "59m"},
		{3600000, "1h 0m"},
		{3600000 + 25*60000 + 59999, "1h 25m"},
		{-5, "0m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatClock(tt.ms), "ms=%d", tt.ms)
	}
}

func TestFormatHours(t *testing.T) {
	assert.Equal(t, "0.0h", FormatHours(0))
	assert.Equal(t, "2.5h", FormatHours(9000000))
	assert.Equal(t, "0.1h", FormatHours(360000))
}

func TestRender(t *testing.T) {
	s := Summarize(PeriodToday, "2025-03-12", aggregate.HostTotals{"a.com": 7200000, "b.com": 3600000}, 0)

	out := Render(s)

	assert.Contains(t, out, "Day 2025-03-12")
	assert.Contains(t, out, "Total 3h 0m across 2 sites")
	assert.Contains(t, out, "a.com")
	assert.Contains(t, out, "2h 0m")
	assert.Contains(t, out, strings.Repeat("█", barWidth))
	assert.Contains(t, out, strings.Repeat("█", barWidth/2)+strings.Repeat("░", barWidth/2))
}

func TestRender_Empty(t *testing.T) {
	out := Render(Summarize(PeriodAll, "", nil, 0))
	assert.Contains(t, out, "All time")
	assert.Contains(t, out, "No data yet")
}
