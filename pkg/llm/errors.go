package llm

import "fmt"

// CompletionRequestError reports a transport or HTTP-status failure from
// the chat completion endpoint. Body holds the raw response body when one
// was received.
type CompletionRequestError struct {
	Err  error
	Body string
}

func (e *CompletionRequestError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("chat completion request failed: %v (response: %s)", e.Err, e.Body)
	}
	return fmt.Sprintf("chat completion request failed: %v", e.Err)
}

func (e *CompletionRequestError) Unwrap() error {
	return e.Err
}
