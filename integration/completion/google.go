package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/easygocv/admission/core/retry"
)

// Google model constants.
const (
	GoogleGemini2Flash = "gemini-2.0-flash"
	GoogleGemini15Pro  = "gemini-1.5-pro"
)

// Google implements the Completer interface using Google's Generative
// AI API.
type Google struct {
	client   *genai.Client
	model    string
	backend  genai.Backend
	project  string
	location string
}

// GoogleOption is a functional option for configuring Google.
type GoogleOption func(*Google)

// WithGoogleModel sets the model to use.
func WithGoogleModel(model string) GoogleOption {
	return func(g *Google) {
		g.model = model
	}
}

// WithGoogleBackend sets the backend to use (Gemini API or Vertex AI).
func WithGoogleBackend(backend genai.Backend) GoogleOption {
	return func(g *Google) {
		g.backend = backend
	}
}

// WithGoogleProject sets the GCP project ID for Vertex AI.
func WithGoogleProject(project string) GoogleOption {
	return func(g *Google) {
		g.project = project
	}
}

// WithGoogleLocation sets the GCP location/region for Vertex AI.
func WithGoogleLocation(location string) GoogleOption {
	return func(g *Google) {
		g.location = location
	}
}

// NewGoogle creates a new Google completer with Gemini API and API key
// authentication.
func NewGoogle(ctx context.Context, apiKey string, opts ...GoogleOption) (*Google, error) {
	if apiKey == "" {
		return nil, ErrInvalidAPIKey
	}

	g := &Google{
		model:   GoogleGemini2Flash,
		backend: genai.BackendGeminiAPI,
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.model == "" {
		return nil, fmt.Errorf("%w: empty model name", ErrInvalidModel)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:   apiKey,
		Backend:  g.backend,
		Project:  g.project,
		Location: g.location,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClientCreationFailed, err)
	}
	g.client = client

	return g, nil
}

// Complete runs one generation call.
func (g *Google) Complete(ctx context.Context, req Request) (Result, error) {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(req.Temperature))
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), config)
	if err != nil {
		return Result{}, fmt.Errorf("content generation failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return Result{}, ErrNoCompletion
	}

	return Result{
		Text:  text,
		Model: g.model,
	}, nil
}

// ClassifyGoogle buckets a Google AI API failure for the retry
// executor following the same policy as ClassifyOpenAI.
func ClassifyGoogle(err error) retry.Class {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return retry.ClassRetryableUpstream
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests,
		apiErr.Code == http.StatusRequestTimeout,
		apiErr.Code >= 500:
		return retry.ClassRetryableUpstream
	default:
		return retry.ClassCallerError
	}
}
