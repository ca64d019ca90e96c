package telemetry

import "fmt"

// maxSourceErrorLen bounds the error text carried in the diagnostics
// payload so one verbose failure cannot bloat the response.
const maxSourceErrorLen = 280

// SourceStatus reports whether a single external source was reachable
// during the request. Error is nil on success.
type SourceStatus struct {
	OK    bool    `json:"ok"`
	Error *string `json:"error"`
}

// Sources enumerates every external dependency the usage endpoint
// consults. Each is wrapped individually; one failure never aborts the
// others.
type Sources struct {
	Gateway      SourceStatus `json:"gateway"`
	Snapshots    SourceStatus `json:"snapshots"`
	Historical   SourceStatus `json:"historical"`
	ModelStatus  SourceStatus `json:"modelStatus"`
	AgentConfig  SourceStatus `json:"agentConfig"`
	SessionFiles SourceStatus `json:"sessionFiles"`
}

// AgentFailure records a per-agent session-file scan error. A missing
// agent directory is "no sessions", not a failure, and never lands here.
type AgentFailure struct {
	AgentID string `json:"agentId"`
	Error   string `json:"error"`
}

// Diagnostics is rebuilt fresh on every request and never persisted.
type Diagnostics struct {
	Sources      Sources         `json:"sources"`
	Pricing      PricingCoverage `json:"pricing"`
	FailedAgents []AgentFailure  `json:"failedAgents"`
	Warnings     []string        `json:"warnings"`
}

// SourceName selects a field of Sources for the collector.
type SourceName int

const (
	SourceGateway SourceName = iota
	SourceSnapshots
	SourceHistorical
	SourceModelStatus
	SourceAgentConfig
	SourceSessionFiles
)

// Collector accumulates per-source failures and warnings while the usage
// handler runs. All sources start out ok; a nil error leaves them ok.
type Collector struct {
	diag Diagnostics
}

func NewCollector() *Collector {
	c := &Collector{}
	for _, s := range []*SourceStatus{
		&c.diag.Sources.Gateway,
		&c.diag.Sources.Snapshots,
		&c.diag.Sources.Historical,
		&c.diag.Sources.ModelStatus,
		&c.diag.Sources.AgentConfig,
		&c.diag.Sources.SessionFiles,
	} {
		s.OK = true
	}
	c.diag.FailedAgents = []AgentFailure{}
	c.diag.Warnings = []string{}
	c.diag.Pricing.CoveragePct = 100
	c.diag.Pricing.UncoveredModels = []UncoveredModel{}
	return c
}

// SourceFailed marks a source unavailable and appends a human-readable
// warning. The downstream response still carries degraded data for the
// source; only the diagnostics change.
func (c *Collector) SourceFailed(name SourceName, err error, warning string) {
	status := c.source(name)
	status.OK = false
	msg := truncateError(err)
	status.Error = &msg
	if warning != "" {
		c.Warn(warning)
	}
}

func (c *Collector) source(name SourceName) *SourceStatus {
	switch name {
	case SourceGateway:
		return &c.diag.Sources.Gateway
	case SourceSnapshots:
		return &c.diag.Sources.Snapshots
	case SourceHistorical:
		return &c.diag.Sources.Historical
	case SourceModelStatus:
		return &c.diag.Sources.ModelStatus
	case SourceAgentConfig:
		return &c.diag.Sources.AgentConfig
	case SourceSessionFiles:
		return &c.diag.Sources.SessionFiles
	default:
		return &c.diag.Sources.Gateway
	}
}

// Warn appends one entry to the flat warning list.
func (c *Collector) Warn(msg string) {
	c.diag.Warnings = append(c.diag.Warnings, msg)
}

func (c *Collector) Warnf(format string, args ...any) {
	c.Warn(fmt.Sprintf(format, args...))
}

// AgentFailed records a non-ENOENT per-agent scan error. Scanning
// continues with the next agent.
func (c *Collector) AgentFailed(agentID string, err error) {
	c.diag.FailedAgents = append(c.diag.FailedAgents, AgentFailure{
		AgentID: agentID,
		Error:   truncateError(err),
	})
}

// SetPricing copies the coverage summary computed by the aggregation
// engine into the diagnostics payload.
func (c *Collector) SetPricing(cov PricingCoverage) {
	if cov.UncoveredModels == nil {
		cov.UncoveredModels = []UncoveredModel{}
	}
	c.diag.Pricing = cov
}

// Snapshot returns the collected diagnostics for response assembly.
func (c *Collector) Snapshot() Diagnostics {
	return c.diag
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxSourceErrorLen {
		msg = msg[:maxSourceErrorLen]
	}
	return msg
}
