package completion

import "context"

// Completer produces text completions from an upstream AI provider.
type Completer interface {
	// Complete runs one completion request and returns the generated text.
	Complete(ctx context.Context, req Request) (Result, error)
}

// Request describes one completion call.
type Request struct {
	// System is the system prompt establishing the assistant's role.
	System string
	// Prompt is the user prompt.
	Prompt string
	// MaxTokens bounds the completion length. Zero uses the provider
	// default.
	MaxTokens int
	// Temperature controls sampling randomness. Zero uses the provider
	// default.
	Temperature float64
}

// Result is one produced completion.
type Result struct {
	// Text is the generated completion.
	Text string
	// Model is the model that actually served the request, which may be
	// the fallback.
	Model string
}

// Bind adapts a completer and a fixed request into the thunk shape the
// admission pipeline executes.
func Bind(c Completer, req Request) func(context.Context) (Result, error) {
	return func(ctx context.Context) (Result, error) {
		return c.Complete(ctx, req)
	}
}
