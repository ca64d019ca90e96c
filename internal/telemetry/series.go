package telemetry

// Activity series bin layout. Fixed windows use fixed bin sizes; the
// all-time window picks a bin size so the chart always has exactly
// allTimeBins evenly-spaced points no matter how much history exists.
const (
	last1hBinMs  = 300_000    // 5 minutes
	last24hBinMs = hourMs     // 1 hour
	last7dBinMs  = 6 * hourMs // 6 hours

	allTimeBins      = 30
	allTimeBinFloor  = 900_000 // bin sizes round up to a 15-minute multiple
	allTimeMinSpanMs = hourMs
)

func buildActivitySeries(sessions []SessionRecord, now int64) ActivitySeries {
	return ActivitySeries{
		Last1h:  buildSeries(sessions, now, last1hBinMs, binCount(hourMs, last1hBinMs)),
		Last24h: buildSeries(sessions, now, last24hBinMs, binCount(dayMs, last24hBinMs)),
		Last7d:  buildSeries(sessions, now, last7dBinMs, binCount(weekMs, last7dBinMs)),
		AllTime: buildSeries(sessions, now, allTimeBinMs(sessions, now), allTimeBins),
	}
}

func binCount(windowMs, binMs int64) int {
	return int((windowMs + binMs - 1) / binMs)
}

// allTimeBinMs derives the dynamic bin size: span from the earliest valid
// session timestamp (defaulting to 24h when no session has one), divided
// into allTimeBins, rounded up to the 15-minute floor.
func allTimeBinMs(sessions []SessionRecord, now int64) int64 {
	var earliest int64
	for _, s := range sessions {
		if s.UpdatedAt <= 0 || s.UpdatedAt > now {
			continue
		}
		if earliest == 0 || s.UpdatedAt < earliest {
			earliest = s.UpdatedAt
		}
	}
	if earliest == 0 {
		earliest = now - dayMs
	}

	span := now - earliest
	if span < allTimeMinSpanMs {
		span = allTimeMinSpanMs
	}

	rawBin := (span + allTimeBins - 1) / allTimeBins
	return (rawBin + allTimeBinFloor - 1) / allTimeBinFloor * allTimeBinFloor
}

// buildSeries allocates bins zeroed points starting at now-bins*binMs and
// folds every in-window session into its bin. Sessions outside the window
// or without a usable timestamp are silently skipped.
func buildSeries(sessions []SessionRecord, now, binMs int64, bins int) []ActivityPoint {
	start := now - int64(bins)*binMs

	points := make([]ActivityPoint, bins)
	for i := range points {
		points[i].TS = start + int64(i)*binMs
	}

	for _, s := range sessions {
		ts := s.UpdatedAt
		if ts <= 0 || ts < start || ts > now {
			continue
		}
		idx := int((ts - start) / binMs)
		if idx < 0 || idx >= bins {
			continue
		}
		points[idx].Input += s.InputTokens
		points[idx].Output += s.OutputTokens
		points[idx].Total += s.TotalTokens
		points[idx].Sessions++
	}

	return points
}
