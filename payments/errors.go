package payments

import "errors"

var (
	// ErrLegacyNotRetryable describes a retry attempted against a Legacy
	// payment (persisted before the retry era). No function in this
	// module returns it; routing.RetryPaymentWithRoute reports that case
	// as a ParameterError with its own message.
	ErrLegacyNotRetryable = errors.New("payments: unable to retry a " +
		"payment that predates retry support")

	// ErrAlreadyFulfilled describes a retry attempted against an
	// already-fulfilled payment. No function in this module returns it;
	// routing.RetryPaymentWithRoute reports that case as a ParameterError
	// with its own message.
	ErrAlreadyFulfilled = errors.New("payments: payment already completed")

	// ErrAlreadyAbandoned describes a retry attempted against an
	// already-abandoned payment. No function in this module returns it;
	// routing.RetryPaymentWithRoute reports that case as a ParameterError
	// with its own message.
	ErrAlreadyAbandoned = errors.New("payments: payment already abandoned " +
		"(with some HTLCs still pending)")

	// ErrNotAbandonable is returned by MarkAbandoned when called on a
	// Legacy or Fulfilled payment; neither variant may be abandoned.
	ErrNotAbandonable = errors.New("payments: payment cannot be abandoned " +
		"in its current state")
)
