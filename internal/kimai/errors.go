package kimai

import "fmt"

// ErrorKind identifies the failure class of an API call
type ErrorKind int

const (
	ErrNotConfigured ErrorKind = iota
	ErrInvalidURL
	ErrInvalidResponse
	ErrUnauthorized
	ErrForbidden
	ErrNotFound
	ErrServer
	ErrDecoding
	ErrNetwork
	ErrUnknown
)

// APIError is the closed error taxonomy for all client operations.
// StatusCode is set for HTTP-status failures, Detail for transport and
// decoding failures.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	switch e.Kind {
	case ErrNotConfigured:
		return "API not configured: set the server URL and token"
	case ErrInvalidURL:
		return "invalid server URL"
	case ErrInvalidResponse:
		return fmt.Sprintf("unexpected response (HTTP %d)", e.StatusCode)
	case ErrUnauthorized:
		return "invalid API token"
	case ErrForbidden:
		return "access denied"
	case ErrNotFound:
		return "resource not found"
	case ErrServer:
		return fmt.Sprintf("server error (HTTP %d)", e.StatusCode)
	case ErrDecoding:
		return fmt.Sprintf("failed to decode response: %s", e.Detail)
	case ErrNetwork:
		return fmt.Sprintf("network error: %s", e.Detail)
	default:
		return fmt.Sprintf("unknown error: %s", e.Detail)
	}
}

func newStatusError(kind ErrorKind, statusCode int) *APIError {
	return &APIError{Kind: kind, StatusCode: statusCode}
}

func newDetailError(kind ErrorKind, detail string) *APIError {
	return &APIError{Kind: kind, Detail: detail}
}

// statusToError maps a non-2xx HTTP status to the taxonomy
func statusToError(statusCode int) *APIError {
	switch {
	case statusCode == 401:
		return newStatusError(ErrUnauthorized, statusCode)
	case statusCode == 403:
		return newStatusError(ErrForbidden, statusCode)
	case statusCode == 404:
		return newStatusError(ErrNotFound, statusCode)
	case statusCode >= 500 && statusCode <= 599:
		return newStatusError(ErrServer, statusCode)
	default:
		return newStatusError(ErrInvalidResponse, statusCode)
	}
}
