package tester

import (
	"time"
)

// Result holds everything measured for one streaming request.
// It is owned by the worker that produced it until it is appended to the
// shared results list; after that it is read-only.
type Result struct {
	ThreadID int    // 1-based worker id
	Query    string // query text sent with the request

	ConversationID string // extracted from SSE payloads, if present
	MessageID      string // extracted from SSE payloads, if present
	StatusCode     int    // HTTP response code (0 if the request never connected)

	// Raw timestamps. The zero value means "not observed".
	RequestStart time.Time
	ConnectEnd   time.Time // response headers received
	FirstByte    time.Time // first non-empty line of the response body
	FirstToken   time.Time // first content delta
	LastByte     time.Time // last line of the response body
	RequestEnd   time.Time

	ChunkCount int    // number of content deltas received
	TokenCount int    // estimated tokens across all deltas
	FullAnswer string // concatenated delta text

	Error string // error description; empty means success

	// Derived metrics, all in milliseconds except Throughput (tokens/s).
	ConnectTime       float64
	TTFB              float64
	TTFT              float64
	TPOT              float64
	StreamingDuration float64
	Throughput        float64
	TotalResponseTime float64

	// One entry per estimated token, used for the TPOT calculation.
	tokenTimes []time.Time
}

// Success reports whether the request completed without error.
func (r *Result) Success() bool {
	return r.Error == ""
}

// Summary is the compact per-request record kept in the registry for
// the per-thread weighted aggregation.
type Summary struct {
	TTFT              float64
	TPOT              float64
	TTFB              float64
	Throughput        float64
	TotalResponseTime float64
	TokenCount        int
	ChunkCount        int
}

// summarize extracts the compact record from a completed result.
func (r *Result) summarize() Summary {
	return Summary{
		TTFT:              r.TTFT,
		TPOT:              r.TPOT,
		TTFB:              r.TTFB,
		Throughput:        r.Throughput,
		TotalResponseTime: r.TotalResponseTime,
		TokenCount:        r.TokenCount,
		ChunkCount:        r.ChunkCount,
	}
}

// LiveStats is the per-worker progress snapshot, overwritten on every
// content delta the worker receives.
type LiveStats struct {
	StartTime  time.Time
	Chunks     int
	Tokens     int
	LastUpdate time.Time
}

// AggregateSample is one system-level measurement appended by the
// aggregator every tick. Never mutated after creation.
type AggregateSample struct {
	Timestamp       time.Time
	TimeStr         string // HH:MM:SS, used in console output and reports
	ActiveThreads   int
	TotalThreads    int
	TotalChunks     int
	TotalTokens     int
	AvgResponseTime float64 // ms, request-weighted once completions exist
	TPOT            float64 // ms/token
	TokensPerSecond float64
	SuccessRate     float64 // percent
	TotalRequests   int
	SuccessRequests int
}

// Stats holds the distribution summary for one metric.
type Stats struct {
	Mean float64
	Min  float64
	Max  float64
	P90  float64
	P95  float64
	P99  float64
}

// MetricStats groups the post-run distribution summaries of the
// metrics tracked per request.
type MetricStats struct {
	TTFT         Stats
	TPOT         Stats
	TTFB         Stats
	Throughput   Stats
	ResponseTime Stats
}

// RunReport is the handover structure the report renderers consume
// after the run ends: the full result collection, the recorded time
// series and the post-run percentile summaries, plus run metadata.
type RunReport struct {
	Host        string
	Port        int
	ModelName   string
	ThreadCount int
	DurationSec int
	GeneratedAt time.Time

	Results    []*Result
	TimeSeries []AggregateSample
	Stats      *MetricStats
}

// ActualDuration returns the wall time between the earliest request
// start and the latest request end, in seconds.
func (rr *RunReport) ActualDuration() float64 {
	var start, end time.Time
	for _, r := range rr.Results {
		if start.IsZero() || r.RequestStart.Before(start) {
			start = r.RequestStart
		}
		if r.RequestEnd.After(end) {
			end = r.RequestEnd
		}
	}
	if start.IsZero() || end.IsZero() {
		return 0
	}
	return end.Sub(start).Seconds()
}

// SuccessCount returns how many results completed without error.
func (rr *RunReport) SuccessCount() int {
	n := 0
	for _, r := range rr.Results {
		if r.Success() {
			n++
		}
	}
	return n
}

// msBetween returns b-a in milliseconds with microsecond precision.
func msBetween(a, b time.Time) float64 {
	return float64(b.Sub(a).Microseconds()) / 1000.0
}
