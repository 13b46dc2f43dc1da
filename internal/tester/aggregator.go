package tester

import (
	"fmt"
	"strings"
	"time"
)

const aggregateInterval = 1 * time.Second

// Aggregator periodically folds the registry's live and completed-request
// state into system-level samples. It runs in its own goroutine and only
// holds the registry lock for the duration of a snapshot copy.
type Aggregator struct {
	registry *Registry
	verbose  bool

	stopCh chan struct{}
	doneCh chan struct{}

	headerPrinted bool
}

// NewAggregator creates an aggregator over the run's registry. When
// verbose is true each tick also prints one status line.
func NewAggregator(reg *Registry, verbose bool) *Aggregator {
	return &Aggregator{
		registry: reg,
		verbose:  verbose,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the periodic sampling loop.
func (a *Aggregator) Start() {
	go a.loop()
}

// Stop signals the loop to end and waits for it, bounded by grace.
func (a *Aggregator) Stop(grace time.Duration) {
	close(a.stopCh)
	select {
	case <-a.doneCh:
	case <-time.After(grace):
	}
}

func (a *Aggregator) loop() {
	defer close(a.doneCh)

	ticker := time.NewTicker(aggregateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.tick()
		}
	}
}

func (a *Aggregator) tick() {
	snap := a.registry.TakeSnapshot()
	sample, ok := ComputeSample(snap, time.Now())
	if !ok {
		return
	}
	a.registry.AppendSample(sample)

	if !a.verbose {
		return
	}
	if !a.headerPrinted {
		line := strings.Repeat("-", 180)
		fmt.Println("\n" + line)
		fmt.Printf("%-10s %-18s %12s %22s %22s %22s %14s\n",
			"时间", "线程数(活跃/总)", "数据块", "平均响应时间(ms)", "TPOT(ms/token)", "Tokens/s", "成功率(%)")
		fmt.Println(line)
		a.headerPrinted = true
	}
	fmt.Printf("%-10s %-18s %12d %22.2f %22.2f %22.2f %14.2f\n",
		sample.TimeStr,
		fmt.Sprintf("%d/%d", sample.ActiveThreads, sample.TotalThreads),
		sample.TotalChunks,
		sample.AvgResponseTime,
		sample.TPOT,
		sample.TokensPerSecond,
		sample.SuccessRate)
}

// ComputeSample derives one system-level sample from a registry snapshot.
// It returns false when no worker has registered yet.
//
// Once any worker has completed requests, per-worker means are weighted
// by that worker's completed-request count; before the first completion
// the sample falls back to estimates from the live chunk/token counters.
func ComputeSample(snap Snapshot, now time.Time) (AggregateSample, bool) {
	if len(snap.ThreadStats) == 0 {
		return AggregateSample{}, false
	}

	var earliestStart, latestUpdate time.Time
	liveChunks := 0
	liveTokens := 0
	for _, ls := range snap.ThreadStats {
		if earliestStart.IsZero() || ls.StartTime.Before(earliestStart) {
			earliestStart = ls.StartTime
		}
		if ls.LastUpdate.After(latestUpdate) {
			latestUpdate = ls.LastUpdate
		}
		liveChunks += ls.Chunks
		liveTokens += ls.Tokens
	}

	elapsedMs := msBetween(earliestStart, latestUpdate)
	if elapsedMs < 1 {
		elapsedMs = 1
	}

	var avgResponseTime, tpot, tokensPerSecond float64
	completedChunks := 0
	completedRequests := 0
	completedTokens := 0

	// Per-worker means over completed requests, then a request-weighted
	// combination across workers.
	var weightedResponse, weightedTPOT float64
	for _, reqs := range snap.ThreadRequests {
		if len(reqs) == 0 {
			continue
		}
		var sumResponse, sumTPOT float64
		for _, r := range reqs {
			sumResponse += r.TotalResponseTime
			sumTPOT += r.TPOT
			completedChunks += r.ChunkCount
			completedTokens += r.TokenCount
		}
		// Per-worker mean, weighted by that worker's request count.
		n := float64(len(reqs))
		meanResponse := sumResponse / n
		meanTPOT := sumTPOT / n
		weightedResponse += meanResponse * n
		weightedTPOT += meanTPOT * n
		completedRequests += len(reqs)
	}

	if completedRequests > 0 {
		avgResponseTime = weightedResponse / float64(completedRequests)
		tpot = weightedTPOT / float64(completedRequests)
		tokensPerSecond = float64(completedTokens) * 1000.0 / elapsedMs
	} else {
		// Warm-up: no request has completed yet, estimate from live counters.
		chunkDenom := liveChunks
		if chunkDenom < 1 {
			chunkDenom = 1
		}
		avgResponseTime = elapsedMs / float64(chunkDenom)
		if liveTokens > 1 {
			tpot = elapsedMs / float64(liveTokens-1)
		}
		tokensPerSecond = float64(liveTokens) * 1000.0 / elapsedMs
	}

	displayChunks := completedChunks
	if displayChunks == 0 {
		displayChunks = liveChunks
	}

	successRate := 0.0
	if snap.Requests > 0 {
		successRate = float64(snap.Success) / float64(snap.Requests) * 100.0
	}

	return AggregateSample{
		Timestamp:       latestUpdate,
		TimeStr:         now.Format("15:04:05"),
		ActiveThreads:   len(snap.ThreadStats),
		TotalThreads:    snap.TotalThreads,
		TotalChunks:     displayChunks,
		TotalTokens:     liveTokens,
		AvgResponseTime: avgResponseTime,
		TPOT:            tpot,
		TokensPerSecond: tokensPerSecond,
		SuccessRate:     successRate,
		TotalRequests:   snap.Requests,
		SuccessRequests: snap.Success,
	}, true
}
