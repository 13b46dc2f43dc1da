package tester

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(elapsed time.Duration) Snapshot {
	start := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	return Snapshot{
		StartTime:    start,
		TotalThreads: 2,
		ThreadStats: map[int]LiveStats{
			1: {StartTime: start, LastUpdate: start.Add(elapsed)},
			2: {StartTime: start, LastUpdate: start.Add(elapsed / 2)},
		},
		ThreadRequests: map[int][]Summary{},
	}
}

func TestComputeSampleWeightedAverage(t *testing.T) {
	// Worker 1: two completed requests averaging 100ms; worker 2: one
	// request at 200ms. Weighted avg = (100*2 + 200*1)/3 = 133.33.
	snap := testSnapshot(10 * time.Second)
	snap.ThreadRequests = map[int][]Summary{
		1: {
			{TotalResponseTime: 90, TPOT: 9, TokenCount: 30, ChunkCount: 3},
			{TotalResponseTime: 110, TPOT: 11, TokenCount: 50, ChunkCount: 5},
		},
		2: {
			{TotalResponseTime: 200, TPOT: 20, TokenCount: 20, ChunkCount: 2},
		},
	}
	snap.Requests = 3
	snap.Success = 3

	sample, ok := ComputeSample(snap, time.Now())
	require.True(t, ok)

	assert.InDelta(t, 133.333, sample.AvgResponseTime, 0.01)
	assert.InDelta(t, (10.0*2+20.0*1)/3, sample.TPOT, 0.01)
	// 100 completed tokens over 10s of elapsed time.
	assert.InDelta(t, 10.0, sample.TokensPerSecond, 0.01)
	assert.Equal(t, 10, sample.TotalChunks)
	assert.Equal(t, 2, sample.ActiveThreads)
	assert.Equal(t, 2, sample.TotalThreads)
	assert.InDelta(t, 100.0, sample.SuccessRate, 0.001)
}

func TestComputeSampleWarmupFallback(t *testing.T) {
	// No completed requests yet: estimates derive from live counters.
	snap := testSnapshot(1 * time.Second)
	ls1 := snap.ThreadStats[1]
	ls1.Chunks = 5
	ls1.Tokens = 11
	snap.ThreadStats[1] = ls1

	sample, ok := ComputeSample(snap, time.Now())
	require.True(t, ok)

	assert.InDelta(t, 1000.0/5, sample.AvgResponseTime, 0.01)
	assert.InDelta(t, 1000.0/10, sample.TPOT, 0.01)
	assert.InDelta(t, 11.0, sample.TokensPerSecond, 0.01)
	assert.Equal(t, 5, sample.TotalChunks)
	assert.Equal(t, 0.0, sample.SuccessRate)
}

func TestComputeSampleNoTokensNoDivideByZero(t *testing.T) {
	snap := testSnapshot(0)

	sample, ok := ComputeSample(snap, time.Now())
	require.True(t, ok)
	// Elapsed and chunk count are both clamped to 1, so the warm-up
	// estimate degenerates to 1ms instead of dividing by zero.
	assert.Equal(t, 1.0, sample.AvgResponseTime)
	assert.Equal(t, 0.0, sample.TPOT)
	assert.Equal(t, 0.0, sample.TokensPerSecond)
}

func TestComputeSampleNoThreads(t *testing.T) {
	_, ok := ComputeSample(Snapshot{}, time.Now())
	assert.False(t, ok)
}

func TestAggregatorRecordsSamples(t *testing.T) {
	reg := NewRegistry(1)
	reg.RegisterThread(1)
	reg.RecordChunk(1, 2)

	agg := NewAggregator(reg, false)
	agg.Start()
	time.Sleep(2500 * time.Millisecond)
	agg.Stop(time.Second)

	ts := reg.TimeSeries()
	require.NotEmpty(t, ts)
	assert.Equal(t, 2, ts[0].TotalTokens)
	assert.Equal(t, 1, ts[0].ActiveThreads)
}
