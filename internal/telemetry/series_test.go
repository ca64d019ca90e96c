package telemetry

import "testing"

func TestBuildActivitySeries_BinCounts(t *testing.T) {
	now := int64(1_700_000_000_000)
	cases := []struct {
		name     string
		sessions []SessionRecord
	}{
		{name: "empty", sessions: nil},
		{name: "single", sessions: []SessionRecord{testSession("a", now-10*60_000, 100)}},
		{name: "old history", sessions: []SessionRecord{
			testSession("a", now-90*dayMs, 100),
			testSession("b", now-5*60_000, 100),
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			series := buildActivitySeries(tc.sessions, now)
			if len(series.Last1h) != 12 {
				t.Fatalf("last1h bins = %d, want 12", len(series.Last1h))
			}
			if len(series.Last24h) != 24 {
				t.Fatalf("last24h bins = %d, want 24", len(series.Last24h))
			}
			if len(series.Last7d) != 28 {
				t.Fatalf("last7d bins = %d, want 28", len(series.Last7d))
			}
			if len(series.AllTime) != 30 {
				t.Fatalf("allTime bins = %d, want 30", len(series.AllTime))
			}
		})
	}
}

func TestBuildSeries_EvenSpacing(t *testing.T) {
	now := int64(1_700_000_000_000)
	series := buildActivitySeries(nil, now)

	for _, points := range [][]ActivityPoint{series.Last1h, series.Last24h, series.Last7d, series.AllTime} {
		step := points[1].TS - points[0].TS
		for i := 1; i < len(points); i++ {
			if points[i].TS-points[i-1].TS != step {
				t.Fatalf("uneven bin spacing at %d: %d vs %d", i, points[i].TS-points[i-1].TS, step)
			}
		}
		if last := points[len(points)-1]; last.TS+step != now {
			t.Fatalf("series does not end at now: last bin start %d + %d != %d", last.TS, step, now)
		}
	}
}

func TestBuildSeries_CoverageMatchesBucket(t *testing.T) {
	now := int64(1_700_000_000_000)
	sessions := []SessionRecord{
		testSession("a", now-30*60_000, 120),
		testSession("b", now-5*hourMs, 300),
		testSession("c", now-23*hourMs, 50),
	}

	res := Aggregate(sessions, now)

	var sum int64
	for _, p := range res.ActivitySeries.Last24h {
		sum += p.Total
	}
	if sum != res.Buckets.Last24h.Total {
		t.Fatalf("series sum %d != bucket total %d", sum, res.Buckets.Last24h.Total)
	}
}

func TestBuildSeries_SkipsOutOfWindow(t *testing.T) {
	now := int64(1_700_000_000_000)
	sessions := []SessionRecord{
		testSession("old", now-2*hourMs, 100),  // outside the 1h window
		testSession("invalid", 0, 100),         // no usable timestamp
		testSession("future", now+hourMs, 100), // clock skew, skipped
		testSession("ok", now-60_000, 40),
	}

	points := buildSeries(sessions, now, last1hBinMs, binCount(hourMs, last1hBinMs))

	var total, count int64
	for _, p := range points {
		total += p.Total
		count += p.Sessions
	}
	if total != 40 || count != 1 {
		t.Fatalf("series folded out-of-window sessions: total=%d sessions=%d", total, count)
	}
}

func TestAllTimeBinMs_FloorAndDefault(t *testing.T) {
	now := int64(1_700_000_000_000)

	// No sessions: span defaults to 24h, ceil(24h/30) rounded up to a
	// 15-minute multiple is one hour.
	if got := allTimeBinMs(nil, now); got != hourMs {
		t.Fatalf("default bin = %d, want %d", got, hourMs)
	}

	// A tiny span still uses the minimum 1h span and the 15m floor.
	recent := []SessionRecord{testSession("a", now-60_000, 10)}
	if got := allTimeBinMs(recent, now); got != allTimeBinFloor {
		t.Fatalf("tiny-span bin = %d, want %d", got, allTimeBinFloor)
	}

	// 90 days of history: bins grow but the count stays fixed at 30.
	old := []SessionRecord{testSession("a", now-90*dayMs, 10)}
	bin := allTimeBinMs(old, now)
	if bin%allTimeBinFloor != 0 {
		t.Fatalf("bin %d is not a 15-minute multiple", bin)
	}
	if bin*allTimeBins < 90*dayMs {
		t.Fatalf("window %d does not cover the span", bin*allTimeBins)
	}
}
