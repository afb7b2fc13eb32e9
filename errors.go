package admission

import "errors"

var (
	// ErrInvalidConfig indicates unusable pipeline parameters.
	ErrInvalidConfig = errors.New("invalid admission configuration")

	// ErrInvalidRequest indicates a malformed admission request: empty
	// user id, malformed fingerprint, or a nil upstream thunk. Such
	// requests are caller bugs and never enter the pipeline.
	ErrInvalidRequest = errors.New("invalid admission request")

	// ErrMissingComponent indicates the pipeline was constructed without
	// one of its required components.
	ErrMissingComponent = errors.New("missing pipeline component")

	// ErrSharedFlightFailed is the failure cause reported to callers that
	// waited on another request's upstream call when that call was
	// abandoned.
	ErrSharedFlightFailed = errors.New("shared upstream call failed")
)
