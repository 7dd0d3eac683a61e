package model

import (
	"encoding/json"
	"time"
)

// SubmissionRequest is a parsed inbound form submission.
type SubmissionRequest struct {
	Email             string `json:"email"`
	VerificationToken string `json:"g-recaptcha-response"`
	RemoteIP          string `json:"-"`
}

// VerificationOutcome is the result of checking a token with the verification service.
type VerificationOutcome struct {
	Passed      bool            `json:"passed"`
	RawResponse json.RawMessage `json:"rawResponse,omitempty"`
}

// RelayAttempt captures one request/response pair against the downstream form processor.
type RelayAttempt struct {
	Method         string `json:"method"`
	URL            string `json:"url"`
	StatusCode     int    `json:"statusCode"`
	LocationHeader string `json:"location,omitempty"`
	BodySnippet    string `json:"bodySnippet,omitempty"`
	PageTitle      string `json:"pageTitle,omitempty"`
	Error          string `json:"error,omitempty"`
	DurationMs     int64  `json:"durationMs"`
}

// HasLocation reports whether the downstream response carried a Location header.
func (a RelayAttempt) HasLocation() bool {
	return a.LocationHeader != ""
}

// Outcome is the classification of a relay chain.
type Outcome int

const (
	OutcomeRejected Outcome = iota
	OutcomeAccepted
	OutcomeIndeterminate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeIndeterminate:
		return "indeterminate"
	default:
		return "rejected"
	}
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// RelayVerdict is the interpreted result of a relay, with every hop made to reach it.
type RelayVerdict struct {
	Outcome Outcome        `json:"outcome"`
	Reason  string         `json:"reason,omitempty"`
	Hops    []RelayAttempt `json:"hops"`
}

// Accepted reports whether the downstream processor took the submission.
func (v RelayVerdict) Accepted() bool {
	return v.Outcome == OutcomeAccepted
}

// OutcomeStats is the counter document kept in the `relay_stats` collection.
type OutcomeStats struct {
	Accepted           int64     `json:"accepted" firestore:"accepted"`
	Rejected           int64     `json:"rejected" firestore:"rejected"`
	Indeterminate      int64     `json:"indeterminate" firestore:"indeterminate"`
	VerificationFailed int64     `json:"verificationFailed" firestore:"verificationFailed"`
	ValidationFailed   int64     `json:"validationFailed" firestore:"validationFailed"`
	LastUpdated        time.Time `json:"lastUpdated,omitempty" firestore:"lastUpdated,omitempty"`
}
