package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// AgentEntry is one configured agent in openclaw.json.
type AgentEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Model string `json:"model,omitempty"`
}

// Workspace is the typed view of openclaw.json. The file is owned by
// the gateway's tooling; this service only reads it.
type Workspace struct {
	Agents       []AgentEntry `json:"agents"`
	DefaultModel string       `json:"defaultModel"`
	Fallbacks    []string     `json:"fallbacks"`
}

// AgentIDs returns the configured agent ids, sorted.
func (w *Workspace) AgentIDs() []string {
	ids := make([]string, 0, len(w.Agents))
	for _, agent := range w.Agents {
		ids = append(ids, agent.ID)
	}
	sort.Strings(ids)
	return ids
}

// AgentModels returns per-agent model overrides. Agents without an
// override are omitted; they follow the workspace default chain.
func (w *Workspace) AgentModels() map[string]string {
	models := make(map[string]string)
	for _, agent := range w.Agents {
		if agent.Model != "" {
			models[agent.ID] = agent.Model
		}
	}
	return models
}

// WorkspaceProvider yields the current workspace config. Handlers call
// Load once per request instead of reading globals, so tests can inject
// a fixed workspace.
type WorkspaceProvider interface {
	Load() (*Workspace, error)
}

// WorkspaceFile reads openclaw.json from the workspace root on every
// Load, caching the parsed result until fsnotify reports a change. When
// watching is unavailable the cache is bypassed and each Load re-reads.
type WorkspaceFile struct {
	path string

	mu      sync.RWMutex
	cached  *Workspace
	watcher *fsnotify.Watcher
}

// NewWorkspaceFile creates a provider for workspaceDir/openclaw.json and
// starts a best-effort change watcher.
func NewWorkspaceFile(workspaceDir string) *WorkspaceFile {
	provider := &WorkspaceFile{path: filepath.Join(workspaceDir, "openclaw.json")}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.WithError(err).Debug("workspace watcher unavailable, reloading per request")
		return provider
	}
	// Watch the directory: editors replace the file, which drops a watch
	// on the file itself.
	if err := watcher.Add(workspaceDir); err != nil {
		log.WithError(err).Debug("workspace watcher unavailable, reloading per request")
		watcher.Close()
		return provider
	}
	provider.watcher = watcher
	go provider.watch()
	return provider
}

func (p *WorkspaceFile) watch() {
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != "openclaw.json" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				p.mu.Lock()
				p.cached = nil
				p.mu.Unlock()
				log.Debug("workspace config changed, cache invalidated")
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Debug("workspace watcher error")
		}
	}
}

// Load returns the current workspace config.
func (p *WorkspaceFile) Load() (*Workspace, error) {
	if p.watcher != nil {
		p.mu.RLock()
		cached := p.cached
		p.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}
	}

	workspace, err := p.read()
	if err != nil {
		return nil, err
	}

	if p.watcher != nil {
		p.mu.Lock()
		p.cached = workspace
		p.mu.Unlock()
	}
	return workspace, nil
}

// read parses openclaw.json tolerantly: the file carries many sections
// this service does not own, so only the fields it needs are extracted.
func (p *WorkspaceFile) read() (*Workspace, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace config: %w", err)
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("workspace config is not a JSON object")
	}

	workspace := &Workspace{Fallbacks: []string{}}
	workspace.DefaultModel = root.Get("models.default").String()
	root.Get("models.fallbacks").ForEach(func(_, v gjson.Result) bool {
		if s := v.String(); s != "" {
			workspace.Fallbacks = append(workspace.Fallbacks, s)
		}
		return true
	})

	root.Get("agents").ForEach(func(_, v gjson.Result) bool {
		id := v.Get("id").String()
		if id == "" {
			return true
		}
		workspace.Agents = append(workspace.Agents, AgentEntry{
			ID:    id,
			Name:  v.Get("name").String(),
			Model: v.Get("model").String(),
		})
		return true
	})
	return workspace, nil
}

// Close stops the change watcher.
func (p *WorkspaceFile) Close() error {
	if p.watcher == nil {
		return nil
	}
	return p.watcher.Close()
}

// StaticWorkspace is a fixed-value provider for tests and degraded mode.
type StaticWorkspace struct {
	Workspace *Workspace
	Err       error
}

func (s *StaticWorkspace) Load() (*Workspace, error) {
	return s.Workspace, s.Err
}
