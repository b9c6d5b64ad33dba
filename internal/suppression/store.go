package suppression

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/fawkes-platform/smart-alerting/internal/models"
	"github.com/fawkes-platform/smart-alerting/pkg/logger"
)

// RuleStore holds the active suppression rules. Disk rules come from YAML
// files in a directory, one rule per file, loaded in file-name order; API
// rules are kept in memory only and survive disk reloads.
//
// Readers get an immutable snapshot; every mutation replaces the slice
// wholesale under the lock.
type RuleStore struct {
	mu    sync.RWMutex
	rules []*models.SuppressionRule

	dir    string
	logger logger.Logger
}

func NewRuleStore(dir string, log logger.Logger) *RuleStore {
	return &RuleStore{dir: dir, logger: log}
}

// Load reads every *.yaml/*.yml file in the rules directory. A missing
// directory is created and seeded with disabled example rules so operators
// have a template to copy. Unreadable files are logged and skipped; one bad
// file never blocks the rest.
func (s *RuleStore) Load() error {
	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		if err := s.writeExampleRules(); err != nil {
			return fmt.Errorf("seed rules directory: %w", err)
		}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read rules directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var loaded []*models.SuppressionRule
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		rule, err := s.loadFile(path)
		if err != nil {
			s.logger.Error("Skipping unreadable rule file", "file", path, "error", err)
			continue
		}
		loaded = append(loaded, rule)
	}

	s.mu.Lock()
	// Keep API-created rules (no file path) across reloads.
	for _, r := range s.rules {
		if r.FilePath == "" {
			loaded = append(loaded, r)
		}
	}
	s.rules = loaded
	s.mu.Unlock()

	s.logger.Info("Loaded suppression rules", "count", len(loaded), "dir", s.dir)
	return nil
}

func (s *RuleStore) loadFile(path string) (*models.SuppressionRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rule models.SuppressionRule
	if err := yaml.Unmarshal(data, &rule); err != nil {
		return nil, err
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.Name == "" {
		rule.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	rule.FilePath = path
	return &rule, nil
}

// Watch reloads the store whenever the rules directory changes. Blocks until
// the watcher fails or stop is closed; run it on its own goroutine.
func (s *RuleStore) Watch(stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create rules watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watch rules directory: %w", err)
	}
	s.logger.Info("Watching rules directory", "dir", s.dir)

	// Editors fire bursts of events per save; coalesce them.
	var pending <-chan time.Time
	for {
		select {
		case <-stop:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			ext := filepath.Ext(event.Name)
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			pending = time.After(200 * time.Millisecond)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("Rules watcher error", "error", err)
		case <-pending:
			pending = nil
			if err := s.Load(); err != nil {
				s.logger.Error("Rules reload failed", "error", err)
			}
		}
	}
}

// List returns a snapshot of the active rules in evaluation order.
func (s *RuleStore) List() []*models.SuppressionRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.SuppressionRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Get returns a rule by id, or nil.
func (s *RuleStore) Get(id string) *models.SuppressionRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rules {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Add registers an API-created rule and returns it with its assigned id.
func (s *RuleStore) Add(rule *models.SuppressionRule) *models.SuppressionRule {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	s.mu.Lock()
	next := make([]*models.SuppressionRule, 0, len(s.rules)+1)
	next = append(next, s.rules...)
	next = append(next, rule)
	s.rules = next
	s.mu.Unlock()
	return rule
}

// Update replaces the rule with the same id. Returns false when no rule with
// that id exists.
func (s *RuleStore) Update(rule *models.SuppressionRule) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rules {
		if r.ID == rule.ID {
			rule.FilePath = r.FilePath
			next := make([]*models.SuppressionRule, len(s.rules))
			copy(next, s.rules)
			next[i] = rule
			s.rules = next
			return true
		}
	}
	return false
}

// Delete removes the rule with the given id. Returns false when absent.
func (s *RuleStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rules {
		if r.ID == id {
			next := make([]*models.SuppressionRule, 0, len(s.rules)-1)
			next = append(next, s.rules[:i]...)
			next = append(next, s.rules[i+1:]...)
			s.rules = next
			return true
		}
	}
	return false
}

// writeExampleRules seeds a fresh rules directory with disabled templates.
func (s *RuleStore) writeExampleRules() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	disabled := false
	examples := []struct {
		file string
		rule models.SuppressionRule
	}{
		{
			file: "example-maintenance.yaml",
			rule: models.SuppressionRule{
				Name:     "weekly-db-maintenance",
				Type:     models.RuleTypeMaintenanceWindow,
				Enabled:  &disabled,
				Schedule: "0 2 * * 0",
				Duration: 7200,
				Services: []string{"postgres"},
			},
		},
		{
			file: "example-known-issue.yaml",
			rule: models.SuppressionRule{
				Name:         "known-flaky-healthcheck",
				Type:         models.RuleTypeKnownIssue,
				Enabled:      &disabled,
				AlertPattern: "HealthCheckTimeout.*",
				TicketURL:    "https://jira.example.com/browse/OPS-1234",
			},
		},
	}

	for _, ex := range examples {
		data, err := yaml.Marshal(&ex.rule)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(s.dir, ex.file), data, 0o644); err != nil {
			return err
		}
	}
	s.logger.Info("Seeded example suppression rules", "dir", s.dir)
	return nil
}
