package completion

import "errors"

var (
	// ErrInvalidAPIKey indicates an invalid or missing API key.
	ErrInvalidAPIKey = errors.New("invalid or missing API key")

	// ErrInvalidModel indicates an empty or unusable model name.
	ErrInvalidModel = errors.New("invalid model")

	// ErrNoCompletion indicates the provider returned no choices.
	ErrNoCompletion = errors.New("no completion returned")

	// ErrClientCreationFailed indicates a failure in creating the API client.
	ErrClientCreationFailed = errors.New("failed to create API client")
)
