package core

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// RunRecord is the outcome of the latest run of a job.
type RunRecord struct {
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Status   string        `json:"status"`
	Error    string        `json:"error,omitempty"`
}

type HistoryManager struct {
	// JobName -> last run
	Jobs map[string]RunRecord `json:"jobs"`
	Path string
	mu   sync.RWMutex
}

func NewHistoryManager(path string) *HistoryManager {
	return &HistoryManager{
		Jobs: make(map[string]RunRecord),
		Path: path,
	}
}

func (hm *HistoryManager) Load() error {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	data, err := os.ReadFile(hm.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	return json.Unmarshal(data, &hm.Jobs)
}

func (hm *HistoryManager) Save() error {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	data, err := json.MarshalIndent(hm.Jobs, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(hm.Path, data, 0644)
}

func (hm *HistoryManager) Record(job string, rec RunRecord) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.Jobs[job] = rec
}

func (hm *HistoryManager) Last(job string) (RunRecord, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	rec, ok := hm.Jobs[job]
	return rec, ok
}
