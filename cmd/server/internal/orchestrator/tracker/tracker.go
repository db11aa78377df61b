// Package tracker accumulates per-request performance accounting: wall-clock
// timestamps, per-stage timing windows, and counters for API calls, token
// usage, and cache activity. One tracker is created per request and discarded
// with the response.
package tracker

import (
	"sync"
	"time"

	"github.com/scoutlabs/orchestrator/cmd/server/internal/models"
)

type stageWindow struct {
	start time.Time
	end   time.Time
}

// Tracker is safe for concurrent use; parallel agents record counters while a
// stage is in flight.
type Tracker struct {
	mu          sync.Mutex
	startTime   time.Time
	stageTimes  map[string]stageWindow
	apiCalls    int
	tokenUsage  int
	cacheHits   int
	cacheMisses int
}

// New creates a tracker anchored at the current time.
func New() *Tracker {
	return &Tracker{
		startTime:  time.Now(),
		stageTimes: make(map[string]stageWindow),
	}
}

// StartStage opens the timing window for a stage.
func (t *Tracker) StartStage(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stageTimes[name] = stageWindow{start: time.Now()}
}

// EndStage closes the timing window for a stage. Ending a stage that was
// never started is a no-op.
func (t *Tracker) EndStage(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.stageTimes[name]
	if !ok {
		return
	}
	w.end = time.Now()
	t.stageTimes[name] = w
}

// RecordAPICall increments the outbound call counter.
func (t *Tracker) RecordAPICall() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.apiCalls++
}

// AddTokenUsage adds tokens reported by an agent response.
func (t *Tracker) AddTokenUsage(tokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokenUsage += tokens
}

// RecordCacheHit increments the cache hit counter.
func (t *Tracker) RecordCacheHit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cacheHits++
}

// RecordCacheMiss increments the cache miss counter.
func (t *Tracker) RecordCacheMiss() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cacheMisses++
}

// TotalElapsedMs returns wall-clock milliseconds since the tracker was
// created.
func (t *Tracker) TotalElapsedMs() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Since(t.startTime).Milliseconds()
}

// StageElapsedMs returns per-stage elapsed milliseconds for every stage with
// a closed window; open windows are measured against now.
func (t *Tracker) StageElapsedMs() map[string]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]int64, len(t.stageTimes))
	for name, w := range t.stageTimes {
		end := w.end
		if end.IsZero() {
			end = time.Now()
		}
		out[name] = end.Sub(w.start).Milliseconds()
	}
	return out
}

// Report snapshots the tracker into the response-embedded performance block.
func (t *Tracker) Report() models.PerformanceReport {
	stageTimings := t.StageElapsedMs()

	t.mu.Lock()
	defer t.mu.Unlock()
	return models.PerformanceReport{
		TotalTimeMs:    time.Since(t.startTime).Milliseconds(),
		StageTimingsMs: stageTimings,
		APICalls:       t.apiCalls,
		TokenUsage:     t.tokenUsage,
		CacheHits:      t.cacheHits,
		CacheMisses:    t.cacheMisses,
	}
}
