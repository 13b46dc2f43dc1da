package tester

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// worker is the loop one goroutine runs for the duration of the test.
// It registers itself in the registry, then repeats: pull the next query
// and credential, run one streaming request, record the outcome. The
// stop signal is checked between iterations only; an in-flight request
// finishes or times out on its own.
func (r *Runner) worker(id int, endTime time.Time) {
	defer r.wg.Done()

	r.registry.RegisterThread(id)
	defer r.registry.TouchThread(id)

	hasDeadline := !endTime.IsZero()

	for {
		select {
		case <-r.stopCh:
			return
		default:
		}
		if hasDeadline && !time.Now().Before(endTime) {
			return
		}

		apiKey := r.nextAPIKey()
		if apiKey == "" {
			// Out of credentials: this worker stops, the run continues.
			r.log.Warn("线程无可用 API Key，提前退出", zap.Int("thread", id))
			return
		}

		// The request context is independent of the stop signal so an
		// in-flight request can complete after the test window expires.
		res := r.client.TestStreaming(context.Background(), r.queries.Next(), apiKey, id, r.registry)
		res.ThreadID = id

		r.resultsMu.Lock()
		r.results = append(r.results, res)
		r.resultsMu.Unlock()

		r.registry.RecordResult(res)

		if !hasDeadline {
			// Single-shot mode: one request per worker.
			return
		}
	}
}

// nextAPIKey returns the credential for the next request: the rotating
// key provider when configured, the static key otherwise.
func (r *Runner) nextAPIKey() string {
	if r.apiKeys != nil {
		return r.apiKeys.Next()
	}
	return r.staticKey
}
