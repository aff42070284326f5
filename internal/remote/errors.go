package remote

import "fmt"

// ApplicationError means the request reached the service and was rejected
// with a definitive answer. It is a decided outcome and must never be retried
// automatically.
type ApplicationError struct {
	Status  int
	Code    string
	Message string
}

func (e *ApplicationError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote rejected request: %s (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("remote rejected request: HTTP %d: %s", e.Status, e.Message)
}

func (e *ApplicationError) Retryable() bool { return false }

// TransportError means the request never got a definitive answer: timeout,
// DNS failure, connection reset, TLS failure, or an unreadable response.
// It is the only outcome eligible for cache fallback or retry.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return "remote transport failure: " + e.Cause.Error()
}

func (e *TransportError) Unwrap() error { return e.Cause }

func (e *TransportError) Retryable() bool { return true }
