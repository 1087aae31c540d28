package routing

import (
	"sync"

	"github.com/lightningnetwork/lnd/queue"
	"github.com/lightningnetwork/lnd/ticker"

	"github.com/lnoutbound/engine/payments"
	"github.com/lnoutbound/engine/route"
)

// CheckRetryPayments scans the registry for payments whose retry strategy
// currently permits an automatic retry, retrying one candidate at a time
// until none remain. The registry lock is never held across a
// Router/SendPaymentAlongPathFunc call: each pass takes the lock only long
// enough to pick a candidate, mirroring RetryPaymentWithRoute and
// payRouteInternal's own lock discipline.
func (o *OutboundPayments) CheckRetryPayments(router Router,
	firstHops FirstHopsFunc, computeInFlightHtlcs ComputeInFlightHtlcsFunc,
	entropy EntropySource, nodeSigner NodeSigner, bestBlockHeight uint32,
	sendAlongPath SendPaymentAlongPathFunc) {

	for {
		paymentID, routeParams, ok := o.nextRetryCandidate()
		if !ok {
			return
		}

		err := o.payInternal(paymentID, nil, routeParams, router, firstHops(),
			computeInFlightHtlcs, entropy, nodeSigner, bestBlockHeight,
			sendAlongPath)
		if err != nil {
			log.Errorf("retrying payment %s failed: %v", paymentID, err)
		}
	}
}

// nextRetryCandidate picks one Retryable payment that IsAutoRetryableNow and
// still has PaymentParameters on file, and derives the RouteParameters for
// its remaining, unrouted amount. A payment with no stored parameters (one
// sent via SendPayment with RouteParameters that carry no PaymentParams,
// say) has nothing for an automatic retry to reuse and is left for a caller
// to retry explicitly instead.
func (o *OutboundPayments) nextRetryCandidate() (payments.ID, *route.RouteParameters, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for id, payment := range o.pending {
		if !payment.IsAutoRetryableNow(o.clock) {
			continue
		}

		if payment.PendingAmtMSat() >= payment.TotalMSat() {
			continue
		}
		remaining := payment.TotalMSat() - payment.PendingAmtMSat()

		params := payment.PaymentParameters()
		if params == nil {
			continue
		}

		var cltvDelta uint16
		params.FinalCLTVExpiryDelta.WhenSome(func(d uint16) { cltvDelta = d })

		return id, &route.RouteParameters{
			PaymentParams: params,
			FinalValueMSat: remaining,
			FinalCLTVExpiryDelta: cltvDelta,
		}, true
	}

	return payments.ID{}, nil, false
}

// Driver runs CheckRetryPayments in the background, on a periodic ticker and
// on demand whenever WakeUp is called (wired to a PendingHTLCsForwardable
// event by the caller). Combining a ticker with a coalescing wake queue
// mirrors the pattern lnd's htlcswitch uses to drive its own background
// loops.
type Driver struct {
	outbound *OutboundPayments

	ticker ticker.Ticker
	wake *queue.ConcurrentQueue[struct{}]

	router Router
	firstHops FirstHopsFunc
	computeInFlightHtlcs ComputeInFlightHtlcsFunc
	entropy EntropySource
	nodeSigner NodeSigner
	bestBlockHeight func() uint32
	sendAlongPath SendPaymentAlongPathFunc

	quit chan struct{}
	wg sync.WaitGroup
}

// NewDriver builds a Driver. t controls the periodic scan interval; the
// caller owns its lifetime otherwise (it is Resume()d/Stop()ped by
// Start/Stop).
func NewDriver(outbound *OutboundPayments, t ticker.Ticker, router Router,
	firstHops FirstHopsFunc, computeInFlightHtlcs ComputeInFlightHtlcsFunc,
	entropy EntropySource, nodeSigner NodeSigner, bestBlockHeight func() uint32,
	sendAlongPath SendPaymentAlongPathFunc) *Driver {

	return &Driver{
		outbound: outbound,
		ticker: t,
		wake: queue.NewConcurrentQueue[struct{}](1),
		router: router,
		firstHops: firstHops,
		computeInFlightHtlcs: computeInFlightHtlcs,
		entropy: entropy,
		nodeSigner: nodeSigner,
		bestBlockHeight: bestBlockHeight,
		sendAlongPath: sendAlongPath,
		quit: make(chan struct{}),
	}
}

// Start launches the background scan loop.
func (d *Driver) Start() {
	d.wake.Start()
	d.ticker.Resume()

	d.wg.Add(1)
	go d.run()
}

// Stop halts the background scan loop and waits for it to exit.
func (d *Driver) Stop() {
	close(d.quit)
	d.wg.Wait()
	d.ticker.Stop()
	d.wake.Stop()
}

// WakeUp schedules an immediate scan pass, without waiting for the next
// ticker interval. Non-blocking: a wake-up already queued is sufficient, so
// a full queue is dropped rather than blocking the caller (typically the
// HTLC-forwarding path emitting PendingHTLCsForwardable).
func (d *Driver) WakeUp() {
	select {
	case d.wake.ChanIn() <- struct{}{}:
	default:
	}
}

func (d *Driver) run() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ticker.Ticks():
			d.scan()

		case <-d.wake.ChanOut():
			d.scan()

		case <-d.quit:
			return
		}
	}
}

func (d *Driver) scan() {
	d.outbound.CheckRetryPayments(d.router, d.firstHops, d.computeInFlightHtlcs,
		d.entropy, d.nodeSigner, d.bestBlockHeight(), d.sendAlongPath)
}
