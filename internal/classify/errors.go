package classify

import (
	"errors"
	"fmt"
)

// Kind names the failure class of a classification request
type Kind string

const (
	KindTransport Kind = "transport"   // request never completed
	KindStatus    Kind = "http_status" // service answered with a non-2xx status
	KindDecode    Kind = "decode"      // body was not the expected JSON
	KindCategory  Kind = "category"    // labels missing, unknown, or unmapped
	KindPending   Kind = "pending"     // service queued the job instead of answering
	KindCircuit   Kind = "circuit"     // breaker open, request not sent
)

// Error is the explicit failure result of a classification request
type Error struct {
	Kind       Kind   `json:"kind"`
	StatusCode int    `json:"status_code,omitempty"`
	Hash       string `json:"hash,omitempty"` // job hash for pending results
	Err        error  `json:"-"`
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindPending:
		return fmt.Sprintf("classification pending (job %s)", e.Hash)
	case e.StatusCode > 0:
		return fmt.Sprintf("classification %s error (HTTP %d): %v", e.Kind, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("classification %s error: %v", e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Reason returns a short message suitable for the lookup display
func (e *Error) Reason() string {
	switch e.Kind {
	case KindTransport:
		return "could not reach the classification service"
	case KindStatus:
		return fmt.Sprintf("classification service returned HTTP %d", e.StatusCode)
	case KindDecode:
		return "classification service sent an unreadable response"
	case KindCategory:
		return "classification service sent an unknown bias or extent"
	case KindPending:
		return "classification still processing, try again with --job " + e.Hash
	case KindCircuit:
		return "classification service temporarily unavailable"
	default:
		return "classification failed"
	}
}

// KindOf extracts the failure kind from err, or "" when err is not a classification error
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
