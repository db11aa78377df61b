package tracker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageTiming(t *testing.T) {
	trk := New()

	trk.StartStage("query_generation")
	time.Sleep(10 * time.Millisecond)
	trk.EndStage("query_generation")

	elapsed := trk.StageElapsedMs()
	require.Contains(t, elapsed, "query_generation")
	assert.GreaterOrEqual(t, elapsed["query_generation"], int64(10))
}

func TestOpenStageWindowMeasuredToNow(t *testing.T) {
	trk := New()

	trk.StartStage("visualization")
	time.Sleep(5 * time.Millisecond)

	elapsed := trk.StageElapsedMs()
	assert.GreaterOrEqual(t, elapsed["visualization"], int64(5))
}

func TestEndUnknownStageIsNoOp(t *testing.T) {
	trk := New()
	trk.EndStage("never_started")
	assert.Empty(t, trk.StageElapsedMs())
}

func TestCountersAccumulate(t *testing.T) {
	trk := New()

	trk.RecordAPICall()
	trk.RecordAPICall()
	trk.AddTokenUsage(100)
	trk.AddTokenUsage(50)
	trk.RecordCacheHit()
	trk.RecordCacheMiss()
	trk.RecordCacheMiss()

	report := trk.Report()
	assert.Equal(t, 2, report.APICalls)
	assert.Equal(t, 150, report.TokenUsage)
	assert.Equal(t, 1, report.CacheHits)
	assert.Equal(t, 2, report.CacheMisses)
	assert.GreaterOrEqual(t, report.TotalTimeMs, int64(0))
}

func TestConcurrentCounterUpdates(t *testing.T) {
	trk := New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			trk.RecordAPICall()
			trk.AddTokenUsage(10)
		}()
	}
	wg.Wait()

	report := trk.Report()
	assert.Equal(t, 20, report.APICalls)
	assert.Equal(t, 200, report.TokenUsage)
}
