package fingerprint

import "errors"

var (
	// ErrUnhashablePayload indicates the payload could not be rendered as
	// canonical JSON.
	ErrUnhashablePayload = errors.New("payload cannot be fingerprinted")
)
