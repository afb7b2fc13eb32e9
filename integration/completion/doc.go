// Package completion provides a unified interface and provider
// implementations for text completions from AI providers, plus the
// failure classifiers the retry executor needs to tell transient
// upstream malfunction from unfixable caller errors.
//
// # Basic Usage
//
//	completer, err := completion.NewOpenAI(os.Getenv("OPENAI_API_KEY"),
//		completion.WithOpenAIModel(completion.OpenAIGPT4oMini),
//		completion.WithOpenAIFallbackModel(completion.OpenAIGPT4o),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := completer.Complete(ctx, completion.Request{
//		System:    "You improve resumes.",
//		Prompt:    doc,
//		MaxTokens: 1024,
//	})
//
// # Use With the Admission Pipeline
//
// Bind adapts a completer into the thunk shape the pipeline executes,
// and each provider's classifier plugs into the retry executor:
//
//	executor, _ := retry.New(retry.DefaultConfig(), guard, completion.ClassifyOpenAI)
//
//	outcome, err := pipeline.Admit(ctx, admission.Request[completion.Result]{
//		UserID:      userID,
//		Operation:   "optimize",
//		Fingerprint: fp,
//		Thunk:       completion.Bind(completer, req),
//	})
//
// # Provider Switching
//
//	func newCompleter(ctx context.Context, provider string) (completion.Completer, error) {
//		switch provider {
//		case "openai":
//			return completion.NewOpenAI(os.Getenv("OPENAI_API_KEY"))
//		case "google":
//			return completion.NewGoogle(ctx, os.Getenv("GOOGLE_API_KEY"))
//		default:
//			return nil, fmt.Errorf("unsupported provider: %s", provider)
//		}
//	}
package completion
