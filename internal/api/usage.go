package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/openclaw/missionctl/internal/agentfs"
	"github.com/openclaw/missionctl/internal/config"
	"github.com/openclaw/missionctl/internal/gateway"
	"github.com/openclaw/missionctl/internal/history"
	"github.com/openclaw/missionctl/internal/pricing"
	"github.com/openclaw/missionctl/internal/telemetry"
)

const defaultHistoryDays = 30

// ModelConfig is the routing summary shown on the usage view. It comes
// from the gateway's model status when reachable, otherwise from the
// workspace config.
type ModelConfig struct {
	DefaultModel string            `json:"defaultModel"`
	Fallbacks    []string          `json:"fallbacks"`
	Aliases      map[string]string `json:"aliases"`
}

// UsageResponse is the full payload of GET /api/usage. Every field is
// present on every response; degraded sources contribute empty or null
// values plus a diagnostics warning, never a missing key.
type UsageResponse struct {
	Totals                telemetry.Totals                    `json:"totals"`
	LiveCost              telemetry.LiveCost                  `json:"liveCost"`
	Buckets               telemetry.Buckets                   `json:"buckets"`
	ActivitySeries        telemetry.ActivitySeries            `json:"activitySeries"`
	ActivitySeriesByModel map[string]telemetry.ActivitySeries `json:"activitySeriesByModel"`
	ModelBreakdown        []telemetry.ModelRollup             `json:"modelBreakdown"`
	AgentBreakdown        []telemetry.AgentRollup             `json:"agentBreakdown"`
	Sessions              []telemetry.SessionRecord           `json:"sessions"`
	PeakSession           *telemetry.PeakSession              `json:"peakSession"`
	ModelConfig           ModelConfig                         `json:"modelConfig"`
	AgentModels           map[string]string                   `json:"agentModels"`
	SessionFileSizes      []agentfs.AgentStorage              `json:"sessionFileSizes"`
	Historical            *history.Aggregate                  `json:"historical"`
	Diagnostics           telemetry.Diagnostics               `json:"diagnostics"`
}

// handleUsage assembles the usage analytics payload. Every external
// source is fetched best-effort and in parallel; a source failure turns
// into a diagnostics entry, never an HTTP error. Only a handler panic
// produces a 500.
func (s *Server) handleUsage(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now().UnixMilli()
	diag := telemetry.NewCollector()

	var (
		sessions      []telemetry.SessionRecord
		sessionsErr   error
		catalog       pricing.Catalog
		modelStatus   *gateway.ModelStatus
		modelErr      error
		workspace     *config.Workspace
		workspaceErr  error
		historical    *history.Aggregate
		historicalErr error
	)

	// Each goroutine writes its own variables and returns nil; failures
	// are folded into diagnostics after the barrier, keeping the
	// collector single-threaded.
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		sessions, sessionsErr = s.gateway.ListSessions(groupCtx)
		return nil
	})
	group.Go(func() error {
		if s.catalog != nil {
			catalog = s.catalog.Fetch(groupCtx)
		}
		return nil
	})
	group.Go(func() error {
		modelStatus, modelErr = s.gateway.ModelStatus(groupCtx)
		return nil
	})
	group.Go(func() error {
		workspace, workspaceErr = s.workspace.Load()
		return nil
	})
	group.Go(func() error {
		historical, historicalErr = s.store.AggregateHistory(groupCtx, defaultHistoryDays)
		return nil
	})
	_ = group.Wait()

	if sessionsErr != nil {
		sessions = nil
		diag.SourceFailed(telemetry.SourceGateway, sessionsErr,
			"live session telemetry unavailable, active sessions shown as zero")
	}
	if modelErr != nil {
		diag.SourceFailed(telemetry.SourceModelStatus, modelErr,
			"model routing status unavailable")
	}
	if workspaceErr != nil {
		diag.SourceFailed(telemetry.SourceAgentConfig, workspaceErr,
			"agent configuration unavailable, per-agent details omitted")
		// Without the agent list the session file scan cannot run either.
		diag.SourceFailed(telemetry.SourceSessionFiles,
			fmt.Errorf("session file scan skipped: %w", workspaceErr), "")
	}
	if historicalErr != nil {
		historical = nil
		diag.SourceFailed(telemetry.SourceHistorical, historicalErr,
			"historical aggregates unavailable")
	}

	agentModels := map[string]string{}
	sessionFileSizes := []agentfs.AgentStorage{}
	if workspace != nil {
		agentModels = workspace.AgentModels()
		agentIDs := workspace.AgentIDs()
		var failures []telemetry.AgentFailure
		sessionFileSizes, failures = agentfs.Scan(s.cfg.WorkspaceDir, agentIDs)
		for _, failure := range failures {
			diag.AgentFailed(failure.AgentID, errors.New(failure.Error))
		}
		if len(failures) > 0 {
			diag.SourceFailed(telemetry.SourceSessionFiles,
				fmt.Errorf("scan failed for %d of %d agents: %s", len(failures), len(agentIDs), failures[0].Error),
				fmt.Sprintf("session file scan failed for %d agent(s)", len(failures)))
		}
	}

	for i := range sessions {
		if sessions[i].EstimatedCostUSD == nil {
			sessions[i].EstimatedCostUSD = pricing.EstimateCost(
				sessions[i].FullModel,
				sessions[i].InputTokens,
				sessions[i].OutputTokens,
				sessions[i].CacheReadTokens,
				sessions[i].CacheWriteTokens,
				catalog,
			)
		}
	}

	if len(sessions) > 0 {
		if _, err := s.store.AppendSnapshots(ctx, sessions); err != nil {
			diag.SourceFailed(telemetry.SourceSnapshots, err,
				"session snapshots could not be persisted")
		}
	}

	result := telemetry.Aggregate(sessions, now)
	diag.SetPricing(result.Pricing)

	c.JSON(http.StatusOK, UsageResponse{
		Totals:                result.Totals,
		LiveCost:              result.LiveCost,
		Buckets:               result.Buckets,
		ActivitySeries:        result.ActivitySeries,
		ActivitySeriesByModel: result.ActivitySeriesByModel,
		ModelBreakdown:        result.ModelBreakdown,
		AgentBreakdown:        result.AgentBreakdown,
		Sessions:              result.RecentSessions,
		PeakSession:           result.PeakSession,
		ModelConfig:           buildModelConfig(modelStatus, workspace),
		AgentModels:           agentModels,
		SessionFileSizes:      sessionFileSizes,
		Historical:            historical,
		Diagnostics:           diag.Snapshot(),
	})
}

func buildModelConfig(status *gateway.ModelStatus, workspace *config.Workspace) ModelConfig {
	cfg := ModelConfig{Fallbacks: []string{}, Aliases: map[string]string{}}
	if status != nil {
		cfg.DefaultModel = status.DefaultModel
		if status.Fallbacks != nil {
			cfg.Fallbacks = status.Fallbacks
		}
		if status.Aliases != nil {
			cfg.Aliases = status.Aliases
		}
		return cfg
	}
	if workspace != nil {
		cfg.DefaultModel = workspace.DefaultModel
		if workspace.Fallbacks != nil {
			cfg.Fallbacks = workspace.Fallbacks
		}
	}
	return cfg
}
