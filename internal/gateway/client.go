// Package gateway is the adapter to the local agent-orchestration
// gateway's HTTP RPC surface. Gateway payloads are loosely shaped and
// change across gateway versions, so all parsing and validation happens
// here: nothing beyond this package ever sees raw gateway JSON, only
// typed records.
package gateway

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/openclaw/missionctl/internal/telemetry"
)

const (
	// DefaultTimeout bounds a single gateway RPC. There are no retries;
	// callers degrade to an empty session list on failure.
	DefaultTimeout = 12 * time.Second

	maxResponseBytes = 32 << 20
)

// Client talks to the gateway over its local HTTP RPC endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a gateway client. timeout <= 0 selects DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ListSessions fetches the gateway's active sessions and normalizes them
// into typed records. The gateway may return either a bare array or an
// object with a "sessions" field; entries missing derived fields get them
// computed here so the aggregation engine never re-derives anything.
func (c *Client) ListSessions(ctx context.Context) ([]telemetry.SessionRecord, error) {
	body, err := c.get(ctx, "/api/sessions")
	if err != nil {
		return nil, err
	}

	root := gjson.ParseBytes(body)
	list := root
	if root.IsObject() {
		list = root.Get("sessions")
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("unexpected sessions payload shape")
	}

	now := time.Now().UnixMilli()
	sessions := make([]telemetry.SessionRecord, 0, len(list.Array()))
	list.ForEach(func(_, raw gjson.Result) bool {
		sess, ok := normalizeSession(raw, now)
		if ok {
			sessions = append(sessions, sess)
		}
		return true
	})
	return sessions, nil
}

// normalizeSession converts one raw gateway session into a typed record.
// Entries without a key are dropped; everything else is tolerated with
// zero values.
func normalizeSession(raw gjson.Result, now int64) (telemetry.SessionRecord, bool) {
	key := firstString(raw, "key", "sessionKey", "id")
	if key == "" {
		return telemetry.SessionRecord{}, false
	}

	sess := telemetry.SessionRecord{
		Key:              key,
		AgentID:          firstString(raw, "agentId", "agent"),
		Model:            firstString(raw, "model"),
		FullModel:        firstString(raw, "fullModel", "modelFull"),
		UpdatedAt:        firstInt(raw, "updatedAt", "updated_at"),
		AgeMs:            firstInt(raw, "ageMs"),
		InputTokens:      firstInt(raw, "inputTokens", "tokens.input"),
		OutputTokens:     firstInt(raw, "outputTokens", "tokens.output"),
		CacheReadTokens:  firstInt(raw, "cacheReadTokens", "tokens.cacheRead"),
		CacheWriteTokens: firstInt(raw, "cacheWriteTokens", "tokens.cacheWrite"),
		TotalTokens:      firstInt(raw, "totalTokens", "tokens.total"),
		TotalTokensFresh: raw.Get("totalTokensFresh").Bool(),
		ContextTokens:    firstInt(raw, "contextTokens"),
	}
	if sess.FullModel == "" {
		sess.FullModel = sess.Model
	}
	if sess.TotalTokens == 0 {
		sess.TotalTokens = sess.InputTokens + sess.OutputTokens + sess.CacheReadTokens + sess.CacheWriteTokens
	}
	if sess.AgeMs == 0 && sess.UpdatedAt > 0 && now > sess.UpdatedAt {
		sess.AgeMs = now - sess.UpdatedAt
	}

	if pct := raw.Get("percentUsed"); pct.Exists() {
		sess.PercentUsed = pct.Float()
	} else if sess.ContextTokens > 0 {
		sess.PercentUsed = math.Round(float64(sess.TotalTokens)/float64(sess.ContextTokens)*100*10) / 10
	}
	if rem := raw.Get("remainingTokens"); rem.Exists() {
		sess.RemainingTokens = rem.Int()
	} else if sess.ContextTokens > 0 {
		sess.RemainingTokens = sess.ContextTokens - sess.TotalTokens
		if sess.RemainingTokens < 0 {
			sess.RemainingTokens = 0
		}
	}
	return sess, true
}

// ModelStatus describes the gateway's model routing state.
type ModelStatus struct {
	DefaultModel  string            `json:"defaultModel"`
	Fallbacks     []string          `json:"fallbacks"`
	Aliases       map[string]string `json:"aliases"`
	AuthProviders []ProviderStatus  `json:"authProviders"`
}

// ProviderStatus is one upstream auth provider's availability.
type ProviderStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// ModelStatus fetches the gateway's current default model, fallback
// chain, aliases, and auth provider availability.
func (c *Client) ModelStatus(ctx context.Context) (*ModelStatus, error) {
	body, err := c.get(ctx, "/api/models/status")
	if err != nil {
		return nil, err
	}

	root := gjson.ParseBytes(body)
	status := &ModelStatus{
		DefaultModel:  firstString(root, "defaultModel", "default"),
		Fallbacks:     []string{},
		Aliases:       map[string]string{},
		AuthProviders: []ProviderStatus{},
	}
	root.Get("fallbacks").ForEach(func(_, v gjson.Result) bool {
		if s := v.String(); s != "" {
			status.Fallbacks = append(status.Fallbacks, s)
		}
		return true
	})
	root.Get("aliases").ForEach(func(k, v gjson.Result) bool {
		status.Aliases[k.String()] = v.String()
		return true
	})
	root.Get("authProviders").ForEach(func(_, v gjson.Result) bool {
		name := firstString(v, "name", "provider")
		if name == "" {
			return true
		}
		status.AuthProviders = append(status.AuthProviders, ProviderStatus{
			Name:      name,
			Available: v.Get("available").Bool() || v.Get("ok").Bool(),
		})
		return true
	})
	return status, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d for %s", resp.StatusCode, path)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}
	return body, nil
}

func firstString(raw gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := raw.Get(p); v.Exists() {
			if s := v.String(); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstInt(raw gjson.Result, paths ...string) int64 {
	for _, p := range paths {
		if v := raw.Get(p); v.Exists() {
			return v.Int()
		}
	}
	return 0
}
