package telemetry

import (
	"math"
	"sort"
)

const (
	hourMs = 3_600_000
	dayMs  = 24 * hourMs
	weekMs = 7 * dayMs

	// maxRecentSessions caps the raw session list carried in the response.
	maxRecentSessions = 50
)

// Aggregate computes the full aggregation result over a session list.
// now is epoch milliseconds. The function is pure: it never mutates its
// input and repeated calls with the same arguments produce identical
// output, including slice ordering.
func Aggregate(sessions []SessionRecord, now int64) Result {
	sorted := make([]SessionRecord, len(sessions))
	copy(sorted, sessions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UpdatedAt > sorted[j].UpdatedAt
	})

	res := Result{
		ActivitySeriesByModel: make(map[string]ActivitySeries),
	}

	type costAcc struct {
		sum    float64
		priced bool
	}

	var (
		liveCost     costAcc
		peak         *PeakSession
		modelGroups  = make(map[string]*ModelRollup)
		agentGroups  = make(map[string]*AgentRollup)
		modelAgents  = make(map[string]map[string]struct{})
		agentModels  = make(map[string]map[string]struct{})
		modelCosts   = make(map[string]*costAcc)
		agentCosts   = make(map[string]*costAcc)
		uncovered    = make(map[string]*UncoveredModel)
		uncoveredCnt int64
	)

	for i := range sorted {
		s := &sorted[i]

		res.Totals.Sessions++
		res.Totals.InputTokens += s.InputTokens
		res.Totals.OutputTokens += s.OutputTokens
		res.Totals.CacheReadTokens += s.CacheReadTokens
		res.Totals.CacheWriteTokens += s.CacheWriteTokens
		res.Totals.TotalTokens += s.TotalTokens
		if !s.TotalTokensFresh {
			res.Totals.StaleSessions++
		}

		// Peak keeps the first encountered in sorted order on ties.
		if peak == nil || s.TotalTokens > peak.TotalTokens {
			peak = &PeakSession{
				Key:         s.Key,
				AgentID:     s.AgentID,
				Model:       s.Model,
				TotalTokens: s.TotalTokens,
				UpdatedAt:   s.UpdatedAt,
			}
		}

		age := now - s.UpdatedAt
		if age <= hourMs {
			res.Buckets.Last1h.add(s)
		}
		if age <= dayMs {
			res.Buckets.Last24h.add(s)
		}
		if age <= weekMs {
			res.Buckets.Last7d.add(s)
		}
		res.Buckets.AllTime.add(s)

		if s.EstimatedCostUSD != nil {
			liveCost.sum += *s.EstimatedCostUSD
			liveCost.priced = true
		} else {
			uncoveredCnt++
			key := s.FullModel
			if key == "" {
				key = modelKey(s.Model)
			}
			u := uncovered[key]
			if u == nil {
				u = &UncoveredModel{Model: key}
				uncovered[key] = u
			}
			u.Sessions++
			u.TotalTokens += s.TotalTokens
		}

		mkey := modelKey(s.Model)
		mg := modelGroups[mkey]
		if mg == nil {
			mg = &ModelRollup{Model: mkey}
			modelGroups[mkey] = mg
			modelAgents[mkey] = make(map[string]struct{})
			modelCosts[mkey] = &costAcc{}
		}
		mg.Sessions++
		mg.InputTokens += s.InputTokens
		mg.OutputTokens += s.OutputTokens
		mg.CacheReadTokens += s.CacheReadTokens
		mg.CacheWriteTokens += s.CacheWriteTokens
		mg.TotalTokens += s.TotalTokens
		if s.ContextTokens > mg.ContextTokens {
			mg.ContextTokens = s.ContextTokens
		}
		if s.UpdatedAt > mg.LastUsed {
			mg.LastUsed = s.UpdatedAt
		}
		if s.AgentID != "" {
			modelAgents[mkey][s.AgentID] = struct{}{}
		}
		if s.EstimatedCostUSD != nil {
			modelCosts[mkey].sum += *s.EstimatedCostUSD
			modelCosts[mkey].priced = true
		}

		akey := s.AgentID
		if akey == "" {
			akey = "unknown"
		}
		ag := agentGroups[akey]
		if ag == nil {
			ag = &AgentRollup{AgentID: akey}
			agentGroups[akey] = ag
			agentModels[akey] = make(map[string]struct{})
			agentCosts[akey] = &costAcc{}
		}
		ag.Sessions++
		ag.InputTokens += s.InputTokens
		ag.OutputTokens += s.OutputTokens
		ag.CacheReadTokens += s.CacheReadTokens
		ag.CacheWriteTokens += s.CacheWriteTokens
		ag.TotalTokens += s.TotalTokens
		if s.ContextTokens > ag.ContextTokens {
			ag.ContextTokens = s.ContextTokens
		}
		if s.UpdatedAt > ag.LastUsed {
			ag.LastUsed = s.UpdatedAt
		}
		agentModels[akey][mkey] = struct{}{}
		if s.EstimatedCostUSD != nil {
			agentCosts[akey].sum += *s.EstimatedCostUSD
			agentCosts[akey].priced = true
		}
	}

	res.PeakSession = peak

	covered := res.Totals.Sessions - uncoveredCnt
	res.LiveCost = LiveCost{
		CoveredSessions:   covered,
		UncoveredSessions: uncoveredCnt,
		CoveragePct:       coveragePct(covered, res.Totals.Sessions),
	}
	if liveCost.priced {
		res.LiveCost.EstimatedUSD = liveCost.sum
	}

	res.Pricing = PricingCoverage{
		CoveredSessions:   covered,
		UncoveredSessions: uncoveredCnt,
		CoveragePct:       res.LiveCost.CoveragePct,
		UncoveredModels:   sortedUncovered(uncovered),
	}

	res.ModelBreakdown = make([]ModelRollup, 0, len(modelGroups))
	for key, mg := range modelGroups {
		mg.Agents = sortedKeys(modelAgents[key])
		if acc := modelCosts[key]; acc.priced {
			sum := acc.sum
			mg.EstimatedCostUSD = &sum
		}
		if mg.Sessions > 0 && mg.ContextTokens > 0 {
			avg := float64(mg.TotalTokens) / float64(mg.Sessions)
			mg.AvgPercentUsed = int64(math.Round(avg / float64(mg.ContextTokens) * 100))
		}
		res.ModelBreakdown = append(res.ModelBreakdown, *mg)
	}
	sortRollupsByTokens(res.ModelBreakdown, func(r ModelRollup) (int64, string) {
		return r.TotalTokens, r.Model
	})

	res.AgentBreakdown = make([]AgentRollup, 0, len(agentGroups))
	for key, ag := range agentGroups {
		ag.Models = sortedKeys(agentModels[key])
		if acc := agentCosts[key]; acc.priced {
			sum := acc.sum
			ag.EstimatedCostUSD = &sum
		}
		res.AgentBreakdown = append(res.AgentBreakdown, *ag)
	}
	sortRollupsByTokens(res.AgentBreakdown, func(r AgentRollup) (int64, string) {
		return r.TotalTokens, r.AgentID
	})

	res.ActivitySeries = buildActivitySeries(sorted, now)
	for _, mg := range res.ModelBreakdown {
		res.ActivitySeriesByModel[mg.Model] = buildActivitySeries(filterByModel(sorted, mg.Model), now)
	}

	recent := sorted
	if len(recent) > maxRecentSessions {
		recent = recent[:maxRecentSessions]
	}
	res.RecentSessions = recent

	return res
}

func modelKey(model string) string {
	if model == "" {
		return "unknown"
	}
	return model
}

// coveragePct is defined as 100 for zero sessions to keep the dashboard
// free of NaN handling.
func coveragePct(covered, total int64) int64 {
	if total == 0 {
		return 100
	}
	return int64(math.Round(float64(covered) / float64(total) * 100))
}

func filterByModel(sessions []SessionRecord, model string) []SessionRecord {
	out := make([]SessionRecord, 0, len(sessions))
	for _, s := range sessions {
		if modelKey(s.Model) == model {
			out = append(out, s)
		}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedUncovered(models map[string]*UncoveredModel) []UncoveredModel {
	out := make([]UncoveredModel, 0, len(models))
	for _, u := range models {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sessions != out[j].Sessions {
			return out[i].Sessions > out[j].Sessions
		}
		return out[i].Model < out[j].Model
	})
	return out
}

func sortRollupsByTokens[T any](rollups []T, key func(T) (int64, string)) {
	sort.Slice(rollups, func(i, j int) bool {
		ti, ni := key(rollups[i])
		tj, nj := key(rollups[j])
		if ti != tj {
			return ti > tj
		}
		return ni < nj
	})
}
