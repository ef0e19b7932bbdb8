package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"plantdiag/internal/logging"
)

var tracer = otel.Tracer("plantdiag.oracle")

// Ollama is a Completer backed by an Ollama server's /api/chat endpoint.
type Ollama struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Option configures an HTTP-backed Completer during construction.
type Option func(*clientConfig) error

type clientConfig struct {
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
	limit      rate.Limit
	burst      int
	apiKey     string
}

func buildConfig(opts []Option) (*clientConfig, error) {
	cfg := &clientConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{}
	}
	if cfg.timeout > 0 {
		cfg.httpClient.Timeout = cfg.timeout
	}
	if cfg.logger == nil {
		cfg.logger = logging.Discard()
	}
	return cfg, nil
}

func (cfg *clientConfig) limiter() *rate.Limiter {
	if cfg.limit <= 0 {
		return nil
	}
	burst := cfg.burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(cfg.limit, burst)
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *clientConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithTimeout sets a timeout on the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		if d < 0 {
			return fmt.Errorf("oracle: negative timeout %s", d)
		}
		cfg.timeout = d
		return nil
	}
}

// WithRateLimit caps the request rate. A zero limit disables limiting.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(cfg *clientConfig) error {
		if limit < 0 {
			return fmt.Errorf("oracle: negative rate limit")
		}
		cfg.limit = limit
		cfg.burst = burst
		return nil
	}
}

// WithAPIKey sets the key sent to OpenAI-compatible services. Ignored by Ollama.
func WithAPIKey(key string) Option {
	return func(cfg *clientConfig) error {
		cfg.apiKey = key
		return nil
	}
}

// NewOllama creates a Completer for the given Ollama server and model.
func NewOllama(baseURL, model string, opts ...Option) (*Ollama, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("oracle: ollama baseURL is required")
	}
	if model == "" {
		return nil, fmt.Errorf("oracle: model is required")
	}
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	return &Ollama{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		httpClient: cfg.httpClient,
		limiter:    cfg.limiter(),
		logger:     cfg.logger,
	}, nil
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

// Complete implements Completer. The server is asked for JSON output.
func (o *Ollama) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, span := tracer.Start(ctx, "Ollama.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))

	text, err := o.complete(ctx, system, user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("llm.response_bytes", len(text)))
	return text, nil
}

func (o *Ollama) complete(ctx context.Context, system, user string) (string, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return "", transportError("chat", err)
		}
	}

	body, err := json.Marshal(ollamaChatRequest{
		Model: o.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Format: "json",
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	url := o.baseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", transportError("chat", err)
	}
	req.Header.Set("Content-Type", "application/json")

	o.logger.DebugContext(ctx, "oracle request", "backend", "ollama", "model", o.model, "url", url)
	start := time.Now()
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", transportError("chat", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError("chat", err)
	}
	o.logger.DebugContext(ctx, "oracle response", "backend", "ollama", "status", resp.StatusCode, "elapsed", time.Since(start))

	var chat ollamaChatResponse
	decodeErr := json.Unmarshal(respBody, &chat)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(respBody))
		if decodeErr == nil && chat.Error != "" {
			msg = chat.Error
		}
		return "", statusError("chat", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return "", formatError("chat", decodeErr)
	}
	if chat.Error != "" {
		return "", statusError("chat", resp.StatusCode, chat.Error)
	}
	return chat.Message.Content, nil
}
