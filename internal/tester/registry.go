package tester

import (
	"sync"
	"time"
)

// Registry is the single shared aggregate of cross-worker state for one
// test run. Every field is guarded by mu; critical sections are kept
// short and never span a network call.
type Registry struct {
	mu sync.Mutex

	startTime    time.Time
	totalThreads int

	threadStats    map[int]*LiveStats
	threadRequests map[int][]Summary

	requests int
	success  int
	fail     int

	timeSeries []AggregateSample
}

// Snapshot is a consistent copy of the registry state, taken under the
// lock so derived metrics can be computed outside of it.
type Snapshot struct {
	StartTime      time.Time
	TotalThreads   int
	ThreadStats    map[int]LiveStats
	ThreadRequests map[int][]Summary
	Requests       int
	Success        int
	Fail           int
}

// NewRegistry creates the registry for a run with the given worker count.
func NewRegistry(totalThreads int) *Registry {
	if totalThreads < 1 {
		totalThreads = 1
	}
	return &Registry{
		startTime:      time.Now(),
		totalThreads:   totalThreads,
		threadStats:    make(map[int]*LiveStats),
		threadRequests: make(map[int][]Summary),
	}
}

// RegisterThread records a worker's start before its first iteration.
func (g *Registry) RegisterThread(id int) {
	now := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.threadStats[id] = &LiveStats{
		StartTime:  now,
		LastUpdate: now,
	}
}

// RecordChunk updates a worker's live stats for one content delta.
// Called once per delta, not once per network read.
func (g *Registry) RecordChunk(id, tokens int) {
	now := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	ls, ok := g.threadStats[id]
	if !ok {
		ls = &LiveStats{StartTime: g.startTime}
		g.threadStats[id] = ls
	}
	ls.Chunks++
	ls.Tokens += tokens
	ls.LastUpdate = now
}

// TouchThread refreshes a worker's last-update timestamp; workers call
// this on exit so the elapsed-time computation covers their full life.
func (g *Registry) TouchThread(id int) {
	now := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	if ls, ok := g.threadStats[id]; ok {
		ls.LastUpdate = now
	}
}

// RecordResult counts one completed request. Successful results also get
// their compact summary appended to the worker's completed-request list.
func (g *Registry) RecordResult(res *Result) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests++
	if res.Success() {
		g.success++
		g.threadRequests[res.ThreadID] = append(g.threadRequests[res.ThreadID], res.summarize())
	} else {
		g.fail++
	}
}

// Counts returns the running request counters.
func (g *Registry) Counts() (requests, success, fail int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests, g.success, g.fail
}

// TakeSnapshot copies all registry state out under the lock.
func (g *Registry) TakeSnapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	snap := Snapshot{
		StartTime:      g.startTime,
		TotalThreads:   g.totalThreads,
		ThreadStats:    make(map[int]LiveStats, len(g.threadStats)),
		ThreadRequests: make(map[int][]Summary, len(g.threadRequests)),
		Requests:       g.requests,
		Success:        g.success,
		Fail:           g.fail,
	}
	for id, ls := range g.threadStats {
		snap.ThreadStats[id] = *ls
	}
	for id, reqs := range g.threadRequests {
		rs := make([]Summary, len(reqs))
		copy(rs, reqs)
		snap.ThreadRequests[id] = rs
	}
	return snap
}

// AppendSample records one aggregator tick into the time series.
func (g *Registry) AppendSample(s AggregateSample) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.timeSeries = append(g.timeSeries, s)
}

// TimeSeries returns a copy of the recorded samples.
func (g *Registry) TimeSeries() []AggregateSample {
	g.mu.Lock()
	defer g.mu.Unlock()
	ts := make([]AggregateSample, len(g.timeSeries))
	copy(ts, g.timeSeries)
	return ts
}

// TotalThreads returns the configured worker count.
func (g *Registry) TotalThreads() int {
	return g.totalThreads
}

// StartTime returns the moment the registry was initialized.
func (g *Registry) StartTime() time.Time {
	return g.startTime
}
