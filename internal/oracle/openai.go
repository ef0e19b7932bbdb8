package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

// OpenAI is a Completer backed by an OpenAI-compatible chat completion API.
type OpenAI struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewOpenAI creates a Completer. An empty baseURL uses the public OpenAI endpoint.
func NewOpenAI(baseURL, model string, opts ...Option) (*OpenAI, error) {
	if model == "" {
		return nil, fmt.Errorf("oracle: model is required")
	}
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	oc := openai.DefaultConfig(cfg.apiKey)
	if baseURL != "" {
		oc.BaseURL = baseURL
	}
	oc.HTTPClient = cfg.httpClient
	return &OpenAI{
		client:  openai.NewClientWithConfig(oc),
		model:   model,
		limiter: cfg.limiter(),
		logger:  cfg.logger,
	}, nil
}

// Complete implements Completer.
func (o *OpenAI) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, span := tracer.Start(ctx, "OpenAI.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))

	text, err := o.complete(ctx, system, user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return text, nil
}

func (o *OpenAI) complete(ctx context.Context, system, user string) (string, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return "", transportError("chat", err)
		}
	}

	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	o.logger.DebugContext(ctx, "oracle request", "backend", "openai", "model", o.model)
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", statusError("chat", apiErr.HTTPStatusCode, apiErr.Message)
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return "", statusError("chat", reqErr.HTTPStatusCode, reqErr.Error())
		}
		return "", transportError("chat", err)
	}
	if len(resp.Choices) == 0 {
		return "", formatError("chat", errors.New("no choices in completion"))
	}
	return resp.Choices[0].Message.Content, nil
}
