package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/kbukum/remworker/errors"
	"github.com/kbukum/remworker/resilience"
)

// Kind classifies a failed sidecar call.
type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindConnection Kind = "connection"
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindRateLimit  Kind = "rate_limit"
	// KindRejected is any other 4xx: the sidecar refused this input, so
	// resending it will not help.
	KindRejected Kind = "rejected"
	KindServer   Kind = "server"
	// KindRequest means the request could not be built.
	KindRequest Kind = "request"
	// KindDecode means a 2xx body did not match the expected shape.
	KindDecode Kind = "decode"
)

const maxDetail = 300

// Error is a failed call. StatusCode is 0 when no response arrived.
type Error struct {
	Kind       Kind
	StatusCode int
	// Detail is the sidecar's own message when it sent one.
	Detail string
	Body   []byte
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("httpclient: ")
	b.WriteString(string(e.Kind))
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	switch {
	case e.Detail != "":
		b.WriteString(": " + e.Detail)
	case e.Err != nil:
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the same request may succeed later.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindConnection, KindRateLimit:
		return true
	case KindServer:
		return e.StatusCode != http.StatusNotImplemented
	default:
		return false
	}
}

func transportError(timedOut bool, err error) *Error {
	if timedOut {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindConnection, Err: err}
}

func requestError(err error) *Error {
	return &Error{Kind: KindRequest, Err: err}
}

// statusError returns nil for 2xx.
func statusError(status int, body []byte) *Error {
	if status >= 200 && status < 300 {
		return nil
	}
	e := &Error{StatusCode: status, Body: body, Detail: detail(body)}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindAuth
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		e.Kind = KindTimeout
	case status >= 400 && status < 500:
		e.Kind = KindRejected
	default:
		e.Kind = KindServer
	}
	return e
}

// detail pulls the message out of the error bodies the sidecars send:
// {"detail": ...} from FastAPI, {"error": ...} from Ollama, or plain text.
func detail(body []byte) string {
	var doc struct {
		Detail  any    `json:"detail"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	var msg string
	if json.Unmarshal(body, &doc) == nil {
		switch d := doc.Detail.(type) {
		case string:
			msg = d
		case nil:
		default:
			raw, _ := json.Marshal(d)
			msg = string(raw)
		}
		if msg == "" {
			msg = doc.Error
		}
		if msg == "" {
			msg = doc.Message
		}
	} else {
		msg = string(body)
	}
	msg = strings.TrimSpace(msg)
	if len(msg) > maxDetail {
		msg = msg[:maxDetail] + "..."
	}
	return msg
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable is the default retry predicate.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}

// AppError converts a call failure into the service error taxonomy.
func AppError(service string, err error) *apperrors.AppError {
	if err == nil {
		return nil
	}
	switch KindOf(err) {
	case KindTimeout:
		return apperrors.Timeout(service).WithCause(err)
	case KindConnection:
		return apperrors.ConnectionFailed(service).WithCause(err)
	case KindRateLimit:
		return apperrors.ServiceUnavailable(service).WithCause(err)
	case KindRejected, KindRequest:
		return apperrors.InvalidInput(service, err.Error()).WithCause(err)
	default:
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return apperrors.ServiceUnavailable(service).WithCause(err)
		}
		return apperrors.ExternalServiceError(service, err)
	}
}
