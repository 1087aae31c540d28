package routing

import (
	"fmt"
	"strings"

	"github.com/lnoutbound/engine/payments"
	"github.com/lnoutbound/engine/route"
)

// APIErrorKind classifies the ways the external SendPaymentAlongPathFunc
// collaborator can reject a single path.
type APIErrorKind uint8

const (
	APIErrorMisuse APIErrorKind = iota
	APIErrorInvalidRoute
	APIErrorChannelUnavailable
	APIErrorMonitorUpdateInProgress
)

// APIError is returned by SendPaymentAlongPathFunc and Router.FindRoute.
// MonitorUpdateInProgress gets special treatment in payRouteInternal: it
// is an error, but the HTLC is nonetheless considered in flight.
type APIError struct {
	Kind APIErrorKind
	Msg string
}

func (e *APIError) Error() string {
	return e.Msg
}

func apiMisuseErrorf(format string, args...interface{}) *APIError {
	return &APIError{Kind: APIErrorMisuse, Msg: fmt.Sprintf(format, args...)}
}

func invalidRouteError(msg string) *APIError {
	return &APIError{Kind: APIErrorInvalidRoute, Msg: msg}
}

// ParameterError is a pre-flight rejection: no state was created, and the
// caller may freely resend after fixing the parameter.
type ParameterError struct {
	Cause *APIError
}

func (e *ParameterError) Error() string {
	return e.Cause.Error()
}

func (e *ParameterError) Unwrap() error {
	return e.Cause
}

// PathParameterError reports a per-path validation failure. No state was
// created; the results are ordered the same as the route's paths, with a
// nil entry for paths that passed validation.
type PathParameterError struct {
	Results []error
}

func (e *PathParameterError) Error() string {
	return "one or more paths failed validation"
}

// AllFailedResendSafeError reports that every path errored without
// committing any HTLC. When it is returned from one of the Send* entry
// points the payment entry has been reaped and the caller may resend the
// full amount; RetryPaymentWithRoute leaves the entry registered.
type AllFailedResendSafeError struct {
	Errors []*APIError
}

func (e *AllFailedResendSafeError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("all paths failed: %s", strings.Join(msgs, "; "))
}

// DuplicatePaymentError reports that payment ID is already in use in the
// registry.
type DuplicatePaymentError struct {
	ID payments.ID
}

func (e *DuplicatePaymentError) Error() string {
	return fmt.Sprintf("payment id %s is already in use", e.ID)
}

// PartialFailureError reports that at least one path committed an HTLC
// while at least one did not. The caller must not resend the full amount;
// FailedPathsRetry, when non-nil, describes how to top up the remainder.
type PartialFailureError struct {
	Results []error
	FailedPathsRetry *route.RouteParameters
	PaymentID payments.ID
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("payment %s partially failed", e.PaymentID)
}
