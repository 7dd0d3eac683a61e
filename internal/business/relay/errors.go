package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/weiwei-tsao/form-relay/apps/api/pkg/model"
)

// Messages returned verbatim to callers.
const (
	MsgMissingToken       = "Missing captcha token"
	MsgMissingEmail       = "Missing email"
	MsgVerificationFailed = "Captcha validation failed"
	MsgSubmissionFailed   = "Submission failed"
	MsgUnexpected         = "Internal server error"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindVerification
	KindRelay
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindVerification:
		return "verification"
	case KindRelay:
		return "relay"
	default:
		return "unexpected"
	}
}

// HTTPStatus maps the failure kind to the status code returned to the caller.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindVerification:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a terminal pipeline failure.
type Error struct {
	Kind    Kind
	Message string
	// Details carries the verification service payload for caller-side debugging.
	Details json.RawMessage
	// Verdict is set for relay failures.
	Verdict *model.RelayVerdict
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ValidationError reports malformed or missing input.
func ValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// UnexpectedError wraps a failure nobody planned for. The cause is kept for
// logs; callers only ever see MsgUnexpected.
func UnexpectedError(err error) *Error {
	return &Error{Kind: KindUnexpected, Message: MsgUnexpected, Err: err}
}

// AsError extracts a pipeline *Error from err, treating anything else as unexpected.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return UnexpectedError(err)
}
