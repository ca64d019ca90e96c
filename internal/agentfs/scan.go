// Package agentfs reports on-disk session transcript sizes for each
// configured agent. Transcripts live under the workspace at
// agents/<id>/sessions/*.jsonl and grow with every turn; their totals
// are a cheap proxy for context pressure that the gateway itself does
// not report.
package agentfs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/openclaw/missionctl/internal/telemetry"
)

// AgentStorage summarizes the transcript footprint of one agent.
type AgentStorage struct {
	AgentID string `json:"agentId"`
	Files   int    `json:"files"`
	Bytes   int64  `json:"bytes"`
}

// Scan walks the session directories of the given agents under
// workspaceDir. An agent without a sessions directory gets a zero entry;
// that is the normal state for an agent that never ran. Any other error
// is recorded as a per-agent failure and scanning continues, so one bad
// directory does not hide the rest. Results are sorted by agent id.
func Scan(workspaceDir string, agentIDs []string) ([]AgentStorage, []telemetry.AgentFailure) {
	storage := make([]AgentStorage, 0, len(agentIDs))
	var failures []telemetry.AgentFailure

	for _, agentID := range agentIDs {
		entry := AgentStorage{AgentID: agentID}
		dir := filepath.Join(workspaceDir, "agents", agentID, "sessions")

		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				storage = append(storage, entry)
				continue
			}
			failures = append(failures, telemetry.AgentFailure{AgentID: agentID, Error: err.Error()})
			storage = append(storage, entry)
			continue
		}

		for _, dirEntry := range entries {
			if dirEntry.IsDir() {
				continue
			}
			name := dirEntry.Name()
			if !strings.HasSuffix(name, ".jsonl") {
				continue
			}
			// Soft-deleted transcripts keep their bytes on disk but no
			// longer count toward the agent's live footprint.
			if strings.Contains(name, ".deleted") {
				continue
			}
			info, err := dirEntry.Info()
			if err != nil {
				continue
			}
			entry.Files++
			entry.Bytes += info.Size()
		}
		storage = append(storage, entry)
	}

	sort.Slice(storage, func(i, j int) bool { return storage[i].AgentID < storage[j].AgentID })
	return storage, failures
}
