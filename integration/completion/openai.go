package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/easygocv/admission/core/retry"
)

// OpenAI model constants.
const (
	OpenAIGPT4oMini = "gpt-4o-mini"
	OpenAIGPT4o     = "gpt-4o"
)

// OpenAI implements the Completer interface using OpenAI's chat
// completions API.
type OpenAI struct {
	client   openaisdk.Client
	model    string
	fallback string
	baseURL  string
	httpc    *http.Client
}

// OpenAIOption is a functional option for configuring OpenAI.
type OpenAIOption func(*OpenAI)

// WithOpenAIModel sets the model to use.
func WithOpenAIModel(model string) OpenAIOption {
	return func(o *OpenAI) {
		o.model = model
	}
}

// WithOpenAIFallbackModel sets a model to retry with once when the
// primary model fails with a retryable error.
func WithOpenAIFallbackModel(model string) OpenAIOption {
	return func(o *OpenAI) {
		o.fallback = model
	}
}

// WithOpenAIBaseURL points the client at an OpenAI-compatible endpoint.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(o *OpenAI) {
		o.baseURL = url
	}
}

// WithOpenAIHTTPClient sets a custom HTTP client.
func WithOpenAIHTTPClient(client *http.Client) OpenAIOption {
	return func(o *OpenAI) {
		o.httpc = client
	}
}

// NewOpenAI creates a new OpenAI completer. The SDK's built-in retries
// are disabled; the admission pipeline's retry executor owns the retry
// schedule.
func NewOpenAI(apiKey string, opts ...OpenAIOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, ErrInvalidAPIKey
	}

	o := &OpenAI{
		model: OpenAIGPT4oMini, // Cheapest model that handles document rewriting well
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.model == "" {
		return nil, fmt.Errorf("%w: empty model name", ErrInvalidModel)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(o.baseURL))
	}
	if o.httpc != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(o.httpc))
	}
	o.client = openaisdk.NewClient(clientOpts...)

	return o, nil
}

// Complete runs one chat completion. When a fallback model is
// configured, a retryable failure of the primary model is retried once
// on the fallback before the error surfaces.
func (o *OpenAI) Complete(ctx context.Context, req Request) (Result, error) {
	result, err := o.complete(ctx, o.model, req)
	if err == nil || o.fallback == "" || ClassifyOpenAI(err) != retry.ClassRetryableUpstream {
		return result, err
	}
	return o.complete(ctx, o.fallback, req)
}

func (o *OpenAI) complete(ctx context.Context, model string, req Request) (Result, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.UserMessage(req.Prompt),
		},
	}
	if req.System != "" {
		params.Messages = append([]openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(req.System),
		}, params.Messages...)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openaisdk.Float(req.Temperature)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Result{}, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Result{}, ErrNoCompletion
	}

	return Result{
		Text:  resp.Choices[0].Message.Content,
		Model: model,
	}, nil
}

// ClassifyOpenAI buckets an OpenAI API failure for the retry executor.
// Throttling, timeouts, server errors, and transport failures are
// retryable; any other HTTP status means the request itself was bad.
func ClassifyOpenAI(err error) retry.Class {
	var apiErr *openaisdk.Error
	if !errors.As(err, &apiErr) {
		// Transport-level failure: connection reset, DNS, timeout.
		return retry.ClassRetryableUpstream
	}

	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests,
		apiErr.StatusCode == http.StatusRequestTimeout,
		apiErr.StatusCode >= 500:
		return retry.ClassRetryableUpstream
	default:
		return retry.ClassCallerError
	}
}
