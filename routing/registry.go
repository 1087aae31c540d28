// Package routing implements the send/retry/claim/fail orchestration over
// the payments registry: OutboundPayments owns a concurrent map of
// payments.ID to *payments.PendingOutboundPayment, guarded by a single
// mutex, plus the collaborator contracts (Router, EntropySource,
// NodeSigner, SendPaymentAlongPathFunc) needed to drive sends and retries.
// It plays the role channeldb.KVPaymentDB/payment_control.go plays for
// lnd's payment lifecycle, reworked around this engine's in-memory
// session-priv-set model.
package routing

import (
	"sync"

	"github.com/lightningnetwork/lnd/clock"
	fn "github.com/lightningnetwork/lnd/fn/v2"

	"github.com/lnoutbound/engine/payments"
)

// Config bundles the node-wide parameters OutboundPayments needs but
// doesn't own: a monotonic clock (absent on environments without one) and
// the secret used to derive probe payment hashes.
type Config struct {
	// Clock provides Retry.IsRetryableNow and invoice-expiry checks with
	// wall-clock time. A None clock degrades Timeout-strategy retries to
	// "never retryable" and skips the invoice-expiry pre-check.
	Clock fn.Option[clock.Clock]

	// ProbingCookieSecret seeds the synthetic payment hash SendProbe
	// constructs, so FailHTLC can recognize a probe by recomputing it.
	ProbingCookieSecret [32]byte
}

// OutboundPayments is the shared registry of live outbound payments,
// guarded by a single mutex.
type OutboundPayments struct {
	mu sync.Mutex
	pending map[payments.ID]*payments.PendingOutboundPayment

	clock fn.Option[clock.Clock]
	probingCookieSecret [32]byte
}

// New returns an empty registry.
func New(cfg Config) *OutboundPayments {
	return &OutboundPayments{
		pending: make(map[payments.ID]*payments.PendingOutboundPayment),
		clock: cfg.Clock,
		probingCookieSecret: cfg.ProbingCookieSecret,
	}
}

// HasPendingPayments reports whether any payment is currently tracked.
// Exposed for callers wiring up shutdown/drain logic, and useful for a
// metrics/health endpoint.
func (o *OutboundPayments) HasPendingPayments() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending) > 0
}
