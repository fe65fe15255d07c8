// Package llm wraps the external completion endpoint. The endpoint is
// unreliable on both axes: transport (may fail or time out, retried here
// with backoff) and content (may return off-schema text, which is the
// parser's and the worker's concern, never retried here).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.openai.com"
	defaultTimeout = 90 * time.Second

	maxAttempts = 3
)

// Request carries one completion call.
type Request struct {
	System      string
	User        string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Completer abstracts the completion endpoint so workers stay testable and
// a pre-recorded result set can stand in for live model output.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// HTTPDoer allows tests to fake HTTP transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CompletionError is raised after the transport retry budget is exhausted.
type CompletionError struct {
	Model    string
	Attempts int
	Err      error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion failed after %d attempts (model=%s): %v", e.Attempts, e.Model, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Client calls a chat-completions endpoint with bounded retries and
// exponential backoff (1s, 2s, 4s between attempts by default).
type Client struct {
	apiKey      string
	baseURL     string
	httpClient  HTTPDoer
	logger      *zap.Logger
	backoffBase time.Duration
}

// NewClient creates a client with sane defaults. A nil doer gets a real
// HTTP client with a request timeout; timeouts feed the retry path as
// transient failures.
func NewClient(apiKey, baseURL string, doer HTTPDoer, logger *zap.Logger) *Client {
	cleanBaseURL := strings.TrimSpace(baseURL)
	if cleanBaseURL == "" {
		cleanBaseURL = defaultBaseURL
	}
	if doer == nil {
		doer = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey:      strings.TrimSpace(apiKey),
		baseURL:     strings.TrimRight(cleanBaseURL, "/"),
		httpClient:  doer,
		logger:      logger,
		backoffBase: time.Second,
	}
}

// WithBackoffBase overrides the first backoff interval. Tests shorten it.
func (c *Client) WithBackoffBase(d time.Duration) *Client {
	c.backoffBase = d
	return c
}

// Complete runs one completion with up to 3 transport attempts. Every
// attempt, success or failure, emits a structured log record. Content-level
// problems in the returned text are not the client's concern.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := time.Now()
		content, tokens, err := c.callOnce(ctx, req)
		latency := time.Since(start)

		if err == nil {
			c.logger.Info("llm call ok",
				zap.String("model", req.Model),
				zap.Int("attempt", attempt),
				zap.Int64("latency_ms", latency.Milliseconds()),
				zap.Int("tokens", tokens),
			)
			return content, nil
		}

		lastErr = err
		c.logger.Error("llm call failed",
			zap.String("model", req.Model),
			zap.Int("attempt", attempt),
			zap.Int64("latency_ms", latency.Milliseconds()),
			zap.Error(err),
		)

		if attempt == maxAttempts {
			break
		}
		// 1s, 2s, 4s
		backoff := c.backoffBase << (attempt - 1)
		select {
		case <-ctx.Done():
			return "", &CompletionError{Model: req.Model, Attempts: attempt, Err: ctx.Err()}
		case <-time.After(backoff):
		}
	}

	return "", &CompletionError{Model: req.Model, Attempts: maxAttempts, Err: lastErr}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatCompletionsResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) callOnce(ctx context.Context, req Request) (string, int, error) {
	payload, err := json.Marshal(chatCompletionsRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", 0, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope chatCompletionsResponse
		if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
			return "", 0, fmt.Errorf("completion status=%d: %s", resp.StatusCode, envelope.Error.Message)
		}
		return "", 0, fmt.Errorf("completion status=%d", resp.StatusCode)
	}

	var parsed chatCompletionsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", 0, fmt.Errorf("empty choices")
	}

	message := parsed.Choices[0].Message
	if strings.TrimSpace(message.Refusal) != "" {
		return "", 0, fmt.Errorf("model refusal: %s", strings.TrimSpace(message.Refusal))
	}
	if strings.TrimSpace(message.Content) == "" {
		return "", 0, fmt.Errorf("empty content")
	}
	return message.Content, parsed.Usage.TotalTokens, nil
}
