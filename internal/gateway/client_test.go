package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestListSessions_NormalizesWrappedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sessions":[
			{"key":"agent:main:s1","agentId":"main","model":"claude-opus-4",
			 "fullModel":"anthropic/claude-opus-4","updatedAt":1756700000000,
			 "inputTokens":1000,"outputTokens":500,"cacheReadTokens":200,
			 "cacheWriteTokens":100,"totalTokensFresh":true,"contextTokens":200000},
			{"id":"agent:main:s2","agent":"main","model":"claude-opus-4",
			 "tokens":{"input":10,"output":20,"total":30}},
			{"model":"no-key-entry"}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	sessions, err := client.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("len(sessions) = %d, want 2 (keyless entry dropped)", len(sessions))
	}

	first := sessions[0]
	if first.Key != "agent:main:s1" {
		t.Fatalf("Key = %q", first.Key)
	}
	// totalTokens absent: derived from the four counters.
	if first.TotalTokens != 1800 {
		t.Fatalf("TotalTokens = %d, want derived 1800", first.TotalTokens)
	}
	if !first.TotalTokensFresh {
		t.Fatal("TotalTokensFresh = false, want true")
	}
	if first.PercentUsed != 0.9 {
		t.Fatalf("PercentUsed = %v, want 0.9", first.PercentUsed)
	}
	if first.RemainingTokens != 198200 {
		t.Fatalf("RemainingTokens = %d, want 198200", first.RemainingTokens)
	}
	if first.AgeMs <= 0 {
		t.Fatalf("AgeMs = %d, want derived positive", first.AgeMs)
	}

	second := sessions[1]
	if second.Key != "agent:main:s2" || second.AgentID != "main" {
		t.Fatalf("alternate field names not normalized: %+v", second)
	}
	if second.TotalTokens != 30 || second.InputTokens != 10 {
		t.Fatalf("nested token object not read: %+v", second)
	}
	if second.FullModel != "claude-opus-4" {
		t.Fatalf("FullModel = %q, want model fallback", second.FullModel)
	}
}

func TestListSessions_BareArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"key":"s1","model":"m","inputTokens":5,"outputTokens":5}]`))
	}))
	defer server.Close()

	sessions, err := NewClient(server.URL, 0).ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 1 || sessions[0].TotalTokens != 10 {
		t.Fatalf("sessions = %+v", sessions)
	}
}

func TestListSessions_ErrorPaths(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := NewClient(server.URL, 0).ListSessions(context.Background()); err == nil {
		t.Fatal("expected error for 500 response")
	}

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer slow.Close()

	if _, err := NewClient(slow.URL, 20*time.Millisecond).ListSessions(context.Background()); err == nil {
		t.Fatal("expected timeout error")
	}

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"sessions"}`))
	}))
	defer bad.Close()

	if _, err := NewClient(bad.URL, 0).ListSessions(context.Background()); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestModelStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/models/status" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"defaultModel":"anthropic/claude-opus-4",
			"fallbacks":["anthropic/claude-sonnet-4","openai/gpt-4o"],
			"aliases":{"opus":"anthropic/claude-opus-4"},
			"authProviders":[{"name":"anthropic","available":true},{"name":"openai","ok":false}]
		}`))
	}))
	defer server.Close()

	status, err := NewClient(server.URL, 0).ModelStatus(context.Background())
	if err != nil {
		t.Fatalf("ModelStatus() error = %v", err)
	}
	if status.DefaultModel != "anthropic/claude-opus-4" {
		t.Fatalf("DefaultModel = %q", status.DefaultModel)
	}
	if len(status.Fallbacks) != 2 || status.Fallbacks[1] != "openai/gpt-4o" {
		t.Fatalf("Fallbacks = %v", status.Fallbacks)
	}
	if status.Aliases["opus"] != "anthropic/claude-opus-4" {
		t.Fatalf("Aliases = %v", status.Aliases)
	}
	if len(status.AuthProviders) != 2 || !status.AuthProviders[0].Available || status.AuthProviders[1].Available {
		t.Fatalf("AuthProviders = %+v", status.AuthProviders)
	}
}
