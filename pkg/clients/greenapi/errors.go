package greenapi

import "fmt"

// HTTPError reports a response outside the 2xx range.
type HTTPError struct {
	StatusCode int
	StatusText string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.StatusText)
}

// ParseError reports a response body that is not valid JSON.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid JSON response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NetworkError reports a failure before any response was obtained.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }
