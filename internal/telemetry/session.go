// Package telemetry implements the usage aggregation engine for the
// Mission Control dashboard. It consumes normalized session records from
// the gateway adapter and produces grand totals, fixed time-window buckets,
// per-model and per-agent rollups, evenly-binned activity series, and
// pricing coverage diagnostics. Aggregate is a pure function: the same
// session list and reference time always produce identical output.
package telemetry

// SessionRecord is a normalized snapshot of one live session as reported
// by the gateway. The dashboard never mutates sessions; a record is read
// once per request and optionally appended to the history store.
type SessionRecord struct {
	Key       string `json:"key"`
	AgentID   string `json:"agentId"`
	Model     string `json:"model"`
	FullModel string `json:"fullModel"`

	// UpdatedAt is epoch milliseconds of the last observed activity.
	UpdatedAt int64 `json:"updatedAt"`
	AgeMs     int64 `json:"ageMs"`

	InputTokens      int64 `json:"inputTokens"`
	OutputTokens     int64 `json:"outputTokens"`
	CacheReadTokens  int64 `json:"cacheReadTokens"`
	CacheWriteTokens int64 `json:"cacheWriteTokens"`
	TotalTokens      int64 `json:"totalTokens"`

	// TotalTokensFresh reports whether TotalTokens reflects the latest
	// turn. Stale totals are still aggregated but counted separately.
	TotalTokensFresh bool `json:"totalTokensFresh"`

	// ContextTokens is the model's context window as currently known.
	ContextTokens   int64   `json:"contextTokens"`
	PercentUsed     float64 `json:"percentUsed"`
	RemainingTokens int64   `json:"remainingTokens"`

	// EstimatedCostUSD is nil when pricing could not be resolved for
	// FullModel. nil is distinct from a true zero-cost session and is
	// excluded from every cost sum.
	EstimatedCostUSD *float64 `json:"estimatedCostUsd"`
}

// Totals holds the grand totals over every session in the request.
type Totals struct {
	Sessions         int64 `json:"sessions"`
	InputTokens      int64 `json:"inputTokens"`
	OutputTokens     int64 `json:"outputTokens"`
	CacheReadTokens  int64 `json:"cacheReadTokens"`
	CacheWriteTokens int64 `json:"cacheWriteTokens"`
	TotalTokens      int64 `json:"totalTokens"`
	StaleSessions    int64 `json:"staleSessions"`
}

// LiveCost summarizes the estimated spend across priced live sessions.
type LiveCost struct {
	EstimatedUSD      float64 `json:"estimatedUsd"`
	CoveredSessions   int64   `json:"coveredSessions"`
	UncoveredSessions int64   `json:"uncoveredSessions"`
	CoveragePct       int64   `json:"coveragePct"`
}

// Bucket is a monoid-like accumulator over a recent time window.
// Combining two buckets is pointwise addition.
type Bucket struct {
	Input    int64 `json:"input"`
	Output   int64 `json:"output"`
	Total    int64 `json:"total"`
	Sessions int64 `json:"sessions"`
}

func (b *Bucket) add(s *SessionRecord) {
	b.Input += s.InputTokens
	b.Output += s.OutputTokens
	b.Total += s.TotalTokens
	b.Sessions++
}

// Buckets are cumulative supersets, not mutually exclusive partitions:
// a session updated 10 minutes ago counts toward all four.
type Buckets struct {
	Last1h  Bucket `json:"last1h"`
	Last24h Bucket `json:"last24h"`
	Last7d  Bucket `json:"last7d"`
	AllTime Bucket `json:"allTime"`
}

// ActivityPoint is one time-bin in an activity series. TS is the bin
// start in epoch milliseconds.
type ActivityPoint struct {
	TS       int64 `json:"ts"`
	Input    int64 `json:"input"`
	Output   int64 `json:"output"`
	Total    int64 `json:"total"`
	Sessions int64 `json:"sessions"`
}

// ActivitySeries holds the four charting windows. Every series covers its
// window with pre-populated zeroed bins so consumers can chart without
// gap-filling.
type ActivitySeries struct {
	Last1h  []ActivityPoint `json:"last1h"`
	Last24h []ActivityPoint `json:"last24h"`
	Last7d  []ActivityPoint `json:"last7d"`
	AllTime []ActivityPoint `json:"allTime"`
}

// ModelRollup is the per-model aggregate over the request's session list.
type ModelRollup struct {
	Model            string   `json:"model"`
	Sessions         int64    `json:"sessions"`
	InputTokens      int64    `json:"inputTokens"`
	OutputTokens     int64    `json:"outputTokens"`
	CacheReadTokens  int64    `json:"cacheReadTokens"`
	CacheWriteTokens int64    `json:"cacheWriteTokens"`
	TotalTokens      int64    `json:"totalTokens"`
	ContextTokens    int64    `json:"contextTokens"` // max observed, not a sum
	LastUsed         int64    `json:"lastUsed"`
	EstimatedCostUSD *float64 `json:"estimatedCostUsd"`
	AvgPercentUsed   int64    `json:"avgPercentUsed"`
	Agents           []string `json:"agents"`
}

// AgentRollup is the per-agent aggregate over the request's session list.
type AgentRollup struct {
	AgentID          string   `json:"agentId"`
	Sessions         int64    `json:"sessions"`
	InputTokens      int64    `json:"inputTokens"`
	OutputTokens     int64    `json:"outputTokens"`
	CacheReadTokens  int64    `json:"cacheReadTokens"`
	CacheWriteTokens int64    `json:"cacheWriteTokens"`
	TotalTokens      int64    `json:"totalTokens"`
	ContextTokens    int64    `json:"contextTokens"`
	LastUsed         int64    `json:"lastUsed"`
	EstimatedCostUSD *float64 `json:"estimatedCostUsd"`
	Models           []string `json:"models"`
}

// PeakSession identifies the single session with the highest token usage.
type PeakSession struct {
	Key         string `json:"key"`
	AgentID     string `json:"agentId"`
	Model       string `json:"model"`
	TotalTokens int64  `json:"totalTokens"`
	UpdatedAt   int64  `json:"updatedAt"`
}

// UncoveredModel reports a model for which no price could be resolved.
type UncoveredModel struct {
	Model       string `json:"model"`
	Sessions    int64  `json:"sessions"`
	TotalTokens int64  `json:"totalTokens"`
}

// PricingCoverage reports what fraction of sessions received a cost
// estimate. CoveragePct is 100 when there are zero sessions.
type PricingCoverage struct {
	CoveredSessions   int64            `json:"coveredSessions"`
	UncoveredSessions int64            `json:"uncoveredSessions"`
	CoveragePct       int64            `json:"coveragePct"`
	UncoveredModels   []UncoveredModel `json:"uncoveredModels"`
}

// Result is the immutable output of Aggregate.
type Result struct {
	Totals                Totals
	LiveCost              LiveCost
	Buckets               Buckets
	ActivitySeries        ActivitySeries
	ActivitySeriesByModel map[string]ActivitySeries
	ModelBreakdown        []ModelRollup
	AgentBreakdown        []AgentRollup
	RecentSessions        []SessionRecord
	PeakSession           *PeakSession
	Pricing               PricingCoverage
}
