// Package payments holds the outbound-payment domain model: the
// PendingOutboundPayment state machine, the PaymentAttempts/Retry policy
// pair, and the events the engine emits. It plays the role lnd's payments
// package (payment.go) plays for MPPayment, reworked around a
// session-priv-set bookkeeping model instead of per-attempt DB rows.
package payments

import "encoding/hex"

// idSize is the length in bytes of every opaque identifier in this package.
const idSize = 32

// ID is the caller-chosen identity of one logical payment. Uniqueness
// across live registry state is enforced at insertion
// (routing.DuplicatePaymentError).
type ID [idSize]byte

// String returns the hex encoding of the id.
func (p ID) String() string {
	return hex.EncodeToString(p[:])
}

// Secret is the recipient-issued nonce that accompanies a multi-path
// payment, binding its shards together at the receiving end.
type Secret [idSize]byte

// String returns the hex encoding of the secret.
func (s Secret) String() string {
	return hex.EncodeToString(s[:])
}

// SessionPriv is the per-path onion session secret: the engine's unique
// identifier for one HTLC attempt within a payment.
type SessionPriv [idSize]byte
