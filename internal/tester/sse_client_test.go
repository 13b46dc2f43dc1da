package tester

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient points an SSEClient at an httptest server.
func newTestClient(t *testing.T, server *httptest.Server) *SSEClient {
	t.Helper()

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	client, err := NewSSEClient(&ClientConfig{
		Host:    u.Hostname(),
		Port:    port,
		Path:    "/v1/chat-messages",
		APIKey:  "app-test",
		User:    "tester",
		Timeout: 5 * time.Second,
	}, nil)
	require.NoError(t, err)
	return client
}

// sseHandler streams the given lines with a short delay between writes.
func sseHandler(t *testing.T, lines []string, delay time.Duration) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer app-test", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "streaming", req["response_mode"])

		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n", line)
			flusher.Flush()
			time.Sleep(delay)
		}
	}
}

func TestStreamingSuccess(t *testing.T) {
	lines := []string{
		`data: {"conversation_id":"conv-1","message_id":"msg-1","answer":"A"}`,
		``,
		`data: {"answer":"B"}`,
		``,
		`data: [DONE]`,
	}
	server := httptest.NewServer(sseHandler(t, lines, 20*time.Millisecond))
	defer server.Close()

	client := newTestClient(t, server)
	res := client.TestStreaming(context.Background(), "你好", "", 1, nil)

	require.Empty(t, res.Error)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 2, res.ChunkCount)
	assert.Equal(t, 2, res.TokenCount)
	assert.Equal(t, "AB", res.FullAnswer)
	assert.Equal(t, "conv-1", res.ConversationID)
	assert.Equal(t, "msg-1", res.MessageID)

	// TPOT = (t2-t1)/(tokens-1); the two deltas are ~40ms apart.
	assert.Greater(t, res.TPOT, 0.0)

	// Timestamp-derived metrics are non-negative and ordered.
	assert.GreaterOrEqual(t, res.TTFB, 0.0)
	assert.GreaterOrEqual(t, res.TTFT, res.TTFB)
	assert.GreaterOrEqual(t, res.TotalResponseTime, res.TTFT)
	assert.Greater(t, res.StreamingDuration, 0.0)
	assert.Greater(t, res.Throughput, 0.0)
}

func TestStreamingHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "service overloaded")
	}))
	defer server.Close()

	client := newTestClient(t, server)
	res := client.TestStreaming(context.Background(), "你好", "", 1, nil)

	require.NotEmpty(t, res.Error)
	assert.Contains(t, res.Error, "HTTP 503")
	assert.Contains(t, res.Error, "service overloaded")
	assert.Equal(t, 0, res.ChunkCount)
	assert.Equal(t, 0, res.TokenCount)
	assert.Equal(t, 0.0, res.TTFT)
	assert.Equal(t, 0.0, res.TPOT)
	assert.Greater(t, res.TotalResponseTime, 0.0)
}

func TestStreamingMalformedChunksAreSkipped(t *testing.T) {
	lines := []string{
		`data: {not json at all`,
		`data: {"answer":"hello world"}`,
		`: comment line`,
		`data: `,
		`data: [DONE]`,
	}
	server := httptest.NewServer(sseHandler(t, lines, time.Millisecond))
	defer server.Close()

	client := newTestClient(t, server)
	res := client.TestStreaming(context.Background(), "hi", "", 1, nil)

	require.Empty(t, res.Error)
	assert.Equal(t, 1, res.ChunkCount)
	assert.Equal(t, 2, res.TokenCount)
	assert.Equal(t, "hello world", res.FullAnswer)
}

func TestStreamingEventsWithoutAnswerAreNotContent(t *testing.T) {
	lines := []string{
		`data: {"event":"workflow_started","conversation_id":"conv-9"}`,
		`data: {"answer":"ok"}`,
		`data: [DONE]`,
	}
	server := httptest.NewServer(sseHandler(t, lines, time.Millisecond))
	defer server.Close()

	client := newTestClient(t, server)
	res := client.TestStreaming(context.Background(), "hi", "", 1, nil)

	require.Empty(t, res.Error)
	assert.Equal(t, 1, res.ChunkCount)
	assert.Equal(t, "conv-9", res.ConversationID)
	// TTFB comes from the first event, TTFT only from the first delta.
	assert.GreaterOrEqual(t, res.TTFT, res.TTFB)
}

func TestStreamingEmptyDeltaCountsChunkNotToken(t *testing.T) {
	lines := []string{
		`data: {"answer":""}`,
		`data: {"answer":"hi"}`,
		`data: [DONE]`,
	}
	server := httptest.NewServer(sseHandler(t, lines, 20*time.Millisecond))
	defer server.Close()

	client := newTestClient(t, server)
	res := client.TestStreaming(context.Background(), "hi", "", 1, nil)

	require.Empty(t, res.Error)
	assert.Equal(t, 2, res.ChunkCount)
	assert.Equal(t, 1, res.TokenCount)
	// The first token timestamp comes from the non-empty delta, so TTFT
	// sits well past the first byte of the empty one.
	assert.Greater(t, res.TTFT, res.TTFB+10.0)
}

func TestStreamingTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := newTestClient(t, server)
	res := client.TestStreaming(context.Background(), "hi", "", 1, nil)

	require.NotEmpty(t, res.Error)
	assert.Contains(t, res.Error, "request failed")
	assert.Equal(t, 0, res.StatusCode)
	assert.GreaterOrEqual(t, res.TotalResponseTime, 0.0)
}

func TestStreamingUpdatesLiveStats(t *testing.T) {
	lines := []string{
		`data: {"answer":"你好"}`,
		`data: {"answer":"世界"}`,
		`data: [DONE]`,
	}
	server := httptest.NewServer(sseHandler(t, lines, time.Millisecond))
	defer server.Close()

	reg := NewRegistry(1)
	reg.RegisterThread(7)

	client := newTestClient(t, server)
	res := client.TestStreaming(context.Background(), "你好", "", 7, reg)
	require.Empty(t, res.Error)

	snap := reg.TakeSnapshot()
	ls := snap.ThreadStats[7]
	assert.Equal(t, 2, ls.Chunks)
	assert.Equal(t, 4, ls.Tokens)
}

func TestTokenCountZeroImpliesZeroTPOT(t *testing.T) {
	// Single token: no inter-token gap exists, TPOT must be zero.
	lines := []string{
		`data: {"answer":"hi"}`,
		`data: [DONE]`,
	}
	server := httptest.NewServer(sseHandler(t, lines, time.Millisecond))
	defer server.Close()

	client := newTestClient(t, server)
	res := client.TestStreaming(context.Background(), "hi", "", 1, nil)

	require.Empty(t, res.Error)
	assert.Equal(t, 1, res.TokenCount)
	assert.Equal(t, 0.0, res.TPOT)
	assert.Greater(t, res.TTFT, 0.0)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "Bearer app-x", bearerToken("app-x"))
	assert.Equal(t, "Bearer app-x", bearerToken("Bearer app-x"))
}
