package tester

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/proxy"
)

const dataPrefix = "data: "

// ClientConfig carries everything the SSE client needs to reach the
// target endpoint.
type ClientConfig struct {
	Host           string
	Port           int
	Path           string // e.g. /v1/chat-messages
	TLS            bool
	APIKey         string
	User           string
	ConversationID string
	FileURL        string
	Timeout        time.Duration

	// Optional SOCKS5 proxy in front of the target.
	Socks5        string
	ProxyUsername string
	ProxyPassword string
}

// SSEClient issues streaming chat requests and measures their timing.
// One client is shared by all workers; the underlying http.Client is
// safe for concurrent use.
type SSEClient struct {
	client  *http.Client
	baseURL string
	cfg     *ClientConfig
	log     *zap.Logger
}

type chatFile struct {
	Type           string `json:"type"`
	TransferMethod string `json:"transfer_method"`
	URL            string `json:"url"`
}

type chatRequest struct {
	Inputs         map[string]string `json:"inputs"`
	Query          string            `json:"query"`
	ResponseMode   string            `json:"response_mode"`
	ConversationID string            `json:"conversation_id"`
	User           string            `json:"user"`
	Files          []chatFile        `json:"files"`
}

// sseEvent is the subset of the SSE payload the tester cares about.
// Answer is a pointer so a present-but-empty delta can be told apart
// from an absent field.
type sseEvent struct {
	ConversationID string  `json:"conversation_id"`
	MessageID      string  `json:"message_id"`
	Answer         *string `json:"answer"`
}

// NewSSEClient creates a streaming client, optionally dialing through a
// SOCKS5 proxy.
func NewSSEClient(cfg *ClientConfig, log *zap.Logger) (*SSEClient, error) {
	if log == nil {
		log = zap.NewNop()
	}

	baseDialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	dialFunc := baseDialer.DialContext
	if cfg.Socks5 != "" {
		var auth *proxy.Auth
		if cfg.ProxyUsername != "" || cfg.ProxyPassword != "" {
			auth = &proxy.Auth{User: cfg.ProxyUsername, Password: cfg.ProxyPassword}
		}
		s5, err := proxy.SOCKS5("tcp", cfg.Socks5, auth, baseDialer)
		if err != nil {
			return nil, fmt.Errorf("failed to create socks5 dialer: %w", err)
		}
		dialFunc = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := s5.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return s5.Dial(network, addr)
		}
	}

	transport := &http.Transport{
		DialContext: dialFunc,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
		MaxIdleConnsPerHost:   64,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	scheme := "http"
	if cfg.TLS {
		scheme = "https"
	}

	return &SSEClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		baseURL: fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port),
		cfg:     cfg,
		log:     log,
	}, nil
}

// bearerToken normalizes an API key into an Authorization header value,
// leaving keys that already carry the Bearer prefix untouched.
func bearerToken(key string) string {
	if strings.HasPrefix(key, "Bearer ") {
		return key
	}
	return "Bearer " + key
}

// TestStreaming issues one streaming request and returns a fully
// populated Result. It never panics or returns an error: every failure
// mode ends up in Result.Error with whatever timestamps were captured.
// When reg is non-nil the worker's live stats are updated once per
// content delta.
func (c *SSEClient) TestStreaming(ctx context.Context, query, apiKeyOverride string, threadID int, reg *Registry) *Result {
	res := &Result{
		ThreadID: threadID,
		Query:    query,
	}

	apiKey := apiKeyOverride
	if apiKey == "" {
		apiKey = c.cfg.APIKey
	}

	files := []chatFile{}
	if c.cfg.FileURL != "" {
		files = append(files, chatFile{
			Type:           "image",
			TransferMethod: "remote_url",
			URL:            c.cfg.FileURL,
		})
	}
	body := chatRequest{
		Inputs:         map[string]string{"query": query},
		Query:          query,
		ResponseMode:   "streaming",
		ConversationID: c.cfg.ConversationID,
		User:           c.cfg.User,
		Files:          files,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		res.Error = fmt.Sprintf("failed to encode request body: %v", err)
		return res
	}

	url := c.baseURL + c.cfg.Path
	res.RequestStart = time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		res.Error = fmt.Sprintf("failed to create request: %v", err)
		res.RequestEnd = time.Now()
		res.finalize()
		return res
	}
	req.Header.Set("Authorization", bearerToken(apiKey))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	c.log.Debug("发送流式请求",
		zap.Int("thread", threadID),
		zap.String("url", url),
		zap.String("query", query))

	resp, err := c.client.Do(req)
	if err != nil {
		res.Error = fmt.Sprintf("request failed: %v", err)
		res.RequestEnd = time.Now()
		res.finalize()
		return res
	}
	defer resp.Body.Close()

	res.ConnectEnd = time.Now()
	res.StatusCode = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errText, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		res.Error = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(errText))
		res.RequestEnd = time.Now()
		res.finalize()
		c.log.Debug("请求返回错误状态",
			zap.Int("thread", threadID),
			zap.Int("status", resp.StatusCode))
		return res
	}

	c.readStream(resp.Body, threadID, reg, res)

	res.RequestEnd = time.Now()
	res.finalize()

	c.log.Debug("流式响应接收完成",
		zap.Int("thread", threadID),
		zap.Int("chunks", res.ChunkCount),
		zap.Int("tokens", res.TokenCount),
		zap.Float64("ttft_ms", res.TTFT),
		zap.Float64("tpot_ms", res.TPOT))

	return res
}

// readStream consumes the SSE body line by line, stamping timestamps and
// accumulating content deltas. Malformed payload lines are skipped, a
// mid-stream transport error ends the stream with Error set.
func (c *SSEClient) readStream(body io.Reader, threadID int, reg *Registry, res *Result) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		now := time.Now()

		if res.FirstByte.IsZero() && line != "" {
			res.FirstByte = now
		}
		res.LastByte = now

		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		data := line[len(dataPrefix):]
		if trimmed := strings.TrimSpace(data); trimmed == "" || trimmed == "[DONE]" {
			continue
		}

		var ev sseEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			// Malformed chunks are tolerated, not fatal.
			c.log.Debug("跳过无法解析的数据块", zap.Int("thread", threadID), zap.String("data", data))
			continue
		}

		if ev.ConversationID != "" {
			res.ConversationID = ev.ConversationID
		}
		if ev.MessageID != "" {
			res.MessageID = ev.MessageID
		}

		if ev.Answer == nil {
			continue
		}

		// An empty delta counts as a chunk but carries no tokens, so it
		// must not stamp the first-token time.
		chunkTokens := EstimateTokens(*ev.Answer)
		if chunkTokens > 0 && res.FirstToken.IsZero() {
			res.FirstToken = now
		}
		for i := 0; i < chunkTokens; i++ {
			res.tokenTimes = append(res.tokenTimes, now)
		}
		res.TokenCount += chunkTokens
		res.ChunkCount++
		res.FullAnswer += *ev.Answer

		if reg != nil {
			reg.RecordChunk(threadID, chunkTokens)
		}
	}

	if err := scanner.Err(); err != nil {
		res.Error = fmt.Sprintf("stream read failed: %v", err)
	}
}

// finalize derives the timing metrics once streaming has ended, for
// success and failure alike.
func (r *Result) finalize() {
	if !r.ConnectEnd.IsZero() {
		r.ConnectTime = msBetween(r.RequestStart, r.ConnectEnd)
	}
	if !r.FirstByte.IsZero() {
		r.TTFB = msBetween(r.RequestStart, r.FirstByte)
		r.StreamingDuration = msBetween(r.FirstByte, r.LastByte)
	}
	if !r.FirstToken.IsZero() {
		r.TTFT = msBetween(r.RequestStart, r.FirstToken)
	}
	if r.TokenCount > 1 && len(r.tokenTimes) >= 2 {
		first := r.tokenTimes[0]
		last := r.tokenTimes[len(r.tokenTimes)-1]
		r.TPOT = msBetween(first, last) / float64(r.TokenCount-1)
	}
	if r.StreamingDuration > 0 && r.TokenCount > 0 {
		r.Throughput = float64(r.TokenCount) / r.StreamingDuration * 1000.0
	}
	r.TotalResponseTime = msBetween(r.RequestStart, r.RequestEnd)
}
