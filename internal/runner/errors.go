package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/openai/openai-go/v3"
)

// ErrEmptyPrompt is returned before any network call when the prompt is blank.
var ErrEmptyPrompt = errors.New("prompt must not be empty")

// ErrorKind names the cause of a failed remote call.
type ErrorKind string

const (
	KindAuth       ErrorKind = "auth"
	KindRateLimit  ErrorKind = "rate_limit"
	KindBadRequest ErrorKind = "bad_request"
	KindNotFound   ErrorKind = "not_found"
	KindServer     ErrorKind = "server"
	KindNetwork    ErrorKind = "network"
	KindCanceled   ErrorKind = "canceled"
	KindMalformed  ErrorKind = "malformed"
	KindUnknown    ErrorKind = "unknown"
)

// CallError is the single error value returned for any failed remote call.
// Every kind is fatal to the invocation; Kind only refines the report.
type CallError struct {
	Kind       ErrorKind
	StatusCode int
	// Message is the API's own explanation when it sent one.
	Message string
	Err     error
}

func (e *CallError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s error (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s error (HTTP %d %s)", e.Kind, e.StatusCode, http.StatusText(e.StatusCode))
	case e.Err != nil:
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s error", e.Kind)
	}
}

func (e *CallError) Unwrap() error { return e.Err }

// classify maps an SDK or transport error onto a CallError.
func classify(err error) *CallError {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &CallError{
			Kind:       kindForStatus(apiErr.StatusCode),
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
	}

	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		netErr    net.Error
	)
	switch {
	case errors.Is(err, context.Canceled):
		return &CallError{Kind: KindCanceled, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &CallError{Kind: KindNetwork, Err: err}
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, io.ErrUnexpectedEOF):
		return &CallError{Kind: KindMalformed, Err: err}
	case errors.As(err, &netErr):
		return &CallError{Kind: KindNetwork, Err: err}
	}
	return &CallError{Kind: KindUnknown, Err: err}
}

func kindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusTooManyRequests:
		return KindRateLimit
	case code == http.StatusNotFound:
		return KindNotFound
	case code >= 500:
		return KindServer
	case code >= 400:
		return KindBadRequest
	}
	return KindUnknown
}
