package tester

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCountersUnderConcurrency(t *testing.T) {
	const workers = 8
	const perWorker = 200

	reg := NewRegistry(workers)

	var wg sync.WaitGroup
	for id := 1; id <= workers; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			reg.RegisterThread(id)
			for i := 0; i < perWorker; i++ {
				res := &Result{ThreadID: id, TotalResponseTime: float64(i)}
				if i%4 == 0 {
					res.Error = "HTTP 500: boom"
				}
				reg.RecordResult(res)
			}
		}(id)
	}
	wg.Wait()

	requests, success, fail := reg.Counts()
	assert.Equal(t, workers*perWorker, requests)
	assert.Equal(t, requests, success+fail)

	snap := reg.TakeSnapshot()
	assert.Len(t, snap.ThreadStats, workers)

	// Each successful result corresponds to exactly one summary entry.
	total := 0
	for _, reqs := range snap.ThreadRequests {
		total += len(reqs)
	}
	assert.Equal(t, success, total)
}

func TestRegistryLiveStats(t *testing.T) {
	reg := NewRegistry(2)
	reg.RegisterThread(1)

	reg.RecordChunk(1, 3)
	reg.RecordChunk(1, 2)

	snap := reg.TakeSnapshot()
	ls, ok := snap.ThreadStats[1]
	require.True(t, ok)
	assert.Equal(t, 2, ls.Chunks)
	assert.Equal(t, 5, ls.Tokens)
	assert.False(t, ls.LastUpdate.Before(ls.StartTime))
}

func TestRegistrySnapshotIsACopy(t *testing.T) {
	reg := NewRegistry(1)
	reg.RegisterThread(1)
	reg.RecordResult(&Result{ThreadID: 1, TotalResponseTime: 100})

	snap := reg.TakeSnapshot()
	snap.ThreadRequests[1][0].TotalResponseTime = 999
	snap.ThreadStats[1] = LiveStats{}

	fresh := reg.TakeSnapshot()
	assert.Equal(t, 100.0, fresh.ThreadRequests[1][0].TotalResponseTime)
	assert.False(t, fresh.ThreadStats[1].StartTime.IsZero())
}

func TestRegistryTimeSeriesAppend(t *testing.T) {
	reg := NewRegistry(1)
	reg.AppendSample(AggregateSample{TotalRequests: 1})
	reg.AppendSample(AggregateSample{TotalRequests: 2})

	ts := reg.TimeSeries()
	require.Len(t, ts, 2)
	assert.Equal(t, 1, ts[0].TotalRequests)
	assert.Equal(t, 2, ts[1].TotalRequests)
}
