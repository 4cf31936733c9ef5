package geniidata

import (
	"errors"
)

var (
	ErrNotFound      = errors.New("holders page not found")
	ErrQuotaExceeded = errors.New("api quota exceeded")
	ErrTransport     = errors.New("holders request failed")
)

// OutcomeKind tags the result of one page request.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeNotFound
	OutcomeQuotaExceeded
	OutcomeTransportError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeQuotaExceeded:
		return "quota_exceeded"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of a single holders page request.
// Payload is only set for OutcomeSuccess and holds the decoded JSON body
// (objects as map[string]any, numbers as json.Number).
type Outcome struct {
	Kind       OutcomeKind
	Payload    any
	StatusCode int
	Err        error
}

func Success(payload any) Outcome {
	return Outcome{Kind: OutcomeSuccess, Payload: payload, StatusCode: 200}
}

// NotFound, QuotaExceeded and TransportError fall back to the matching sentinel when err is nil.
func NotFound(err error) Outcome {
	if err == nil {
		err = ErrNotFound
	}
	return Outcome{Kind: OutcomeNotFound, StatusCode: 404, Err: err}
}

func QuotaExceeded(err error) Outcome {
	if err == nil {
		err = ErrQuotaExceeded
	}
	return Outcome{Kind: OutcomeQuotaExceeded, Err: err}
}

func TransportError(err error) Outcome {
	if err == nil {
		err = ErrTransport
	}
	return Outcome{Kind: OutcomeTransportError, Err: err}
}
