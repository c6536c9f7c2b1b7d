package llm

import "errors"

var (
	// ErrMissingAPIKey is returned before any request is made when no
	// credential is configured. Fatal to the caller; never retried.
	ErrMissingAPIKey = errors.New("missing OPENAI_API_KEY")
	// ErrUpstream is returned when the remote embedding or completion
	// service fails. Callers decide whether the failure is retrieable.
	ErrUpstream = errors.New("upstream service error")
)
