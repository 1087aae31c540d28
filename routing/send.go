package routing

import (
	"errors"
	"strings"

	"github.com/lightningnetwork/lnd/clock"
	fn "github.com/lightningnetwork/lnd/fn/v2"

	"github.com/lnoutbound/engine/lntypes"
	"github.com/lnoutbound/engine/payments"
	"github.com/lnoutbound/engine/route"
)

const retryOverflowPercent = 10

// initialSendInfo carries the parameters that only apply the first time a
// payment is sent, as opposed to on a subsequent automatic retry pass.
type initialSendInfo struct {
	paymentHash     lntypes.Hash
	paymentSecret   fn.Option[payments.Secret]
	keysendPreimage fn.Option[lntypes.Preimage]
	retryStrategy   payments.Retry
}

// SendPayment registers a new Retryable payment and dispatches it.
func (o *OutboundPayments) SendPayment(paymentHash lntypes.Hash,
	paymentSecret fn.Option[payments.Secret], paymentID payments.ID,
	retryStrategy payments.Retry, routeParams *route.RouteParameters,
	router Router, firstHops []ChannelHint,
	computeInFlightHtlcs ComputeInFlightHtlcsFunc, entropy EntropySource,
	nodeSigner NodeSigner, bestBlockHeight uint32,
	sendAlongPath SendPaymentAlongPathFunc) error {

	err := o.payInternal(paymentID, &initialSendInfo{
		paymentHash: paymentHash,
		paymentSecret: paymentSecret,
		retryStrategy: retryStrategy,
	}, routeParams, router, firstHops, computeInFlightHtlcs, entropy,
		nodeSigner, bestBlockHeight, sendAlongPath)

	if err != nil {
		o.removeOutboundIfAllFailed(paymentID, err)
	}
	return err
}

// SendPaymentWithRoute registers and dispatches a payment over a
// caller-supplied route, skipping route finding entirely — the pre-routed
// counterpart of SendPayment.
func (o *OutboundPayments) SendPaymentWithRoute(rt *route.Route,
	paymentHash lntypes.Hash, paymentSecret fn.Option[payments.Secret],
	paymentID payments.ID, entropy EntropySource, nodeSigner NodeSigner,
	bestBlockHeight uint32, sendAlongPath SendPaymentAlongPathFunc) error {

	privs, err := o.addNewPendingPayment(paymentHash, paymentSecret, paymentID,
		fn.None[lntypes.Preimage](), rt, fn.None[payments.Retry](), nil,
		entropy, bestBlockHeight)
	if err != nil {
		return err
	}

	err = o.payRouteInternal(rt, paymentHash, paymentSecret,
		fn.None[lntypes.Preimage](), paymentID, fn.None[route.MilliSatoshi](),
		privs, nodeSigner, bestBlockHeight, sendAlongPath)
	if err != nil {
		o.removeOutboundIfAllFailed(paymentID, err)
	}
	return err
}

// SendSpontaneousPayment generates (or accepts) a preimage, derives its
// hash, and sends it like a regular payment carrying that preimage so
// retries reuse the same hash.
func (o *OutboundPayments) SendSpontaneousPayment(
	paymentPreimage fn.Option[lntypes.Preimage], paymentID payments.ID,
	retryStrategy payments.Retry, routeParams *route.RouteParameters,
	router Router, firstHops []ChannelHint,
	computeInFlightHtlcs ComputeInFlightHtlcsFunc, entropy EntropySource,
	nodeSigner NodeSigner, bestBlockHeight uint32,
	sendAlongPath SendPaymentAlongPathFunc) (lntypes.Hash, error) {

	preimage := lntypes.Preimage(entropy.GetSecureRandomBytes())
	paymentPreimage.WhenSome(func(p lntypes.Preimage) { preimage = p })
	paymentHash := preimage.Hash()

	err := o.payInternal(paymentID, &initialSendInfo{
		paymentHash: paymentHash,
		paymentSecret: fn.None[payments.Secret](),
		keysendPreimage: fn.Some(preimage),
		retryStrategy: retryStrategy,
	}, routeParams, router, firstHops, computeInFlightHtlcs, entropy,
		nodeSigner, bestBlockHeight, sendAlongPath)

	if err != nil {
		o.removeOutboundIfAllFailed(paymentID, err)
	}
	return paymentHash, err
}

// SendSpontaneousPaymentWithRoute is the pre-routed counterpart of
// SendSpontaneousPayment.
func (o *OutboundPayments) SendSpontaneousPaymentWithRoute(rt *route.Route,
	paymentPreimage fn.Option[lntypes.Preimage], paymentID payments.ID,
	entropy EntropySource, nodeSigner NodeSigner, bestBlockHeight uint32,
	sendAlongPath SendPaymentAlongPathFunc) (lntypes.Hash, error) {

	preimage := lntypes.Preimage(entropy.GetSecureRandomBytes())
	paymentPreimage.WhenSome(func(p lntypes.Preimage) { preimage = p })
	paymentHash := preimage.Hash()

	privs, err := o.addNewPendingPayment(paymentHash, fn.None[payments.Secret](),
		paymentID, fn.Some(preimage), rt, fn.None[payments.Retry](), nil,
		entropy, bestBlockHeight)
	if err != nil {
		return lntypes.Hash{}, err
	}

	err = o.payRouteInternal(rt, paymentHash, fn.None[payments.Secret](),
		fn.Some(preimage), paymentID, fn.None[route.MilliSatoshi](), privs,
		nodeSigner, bestBlockHeight, sendAlongPath)
	if err != nil {
		o.removeOutboundIfAllFailed(paymentID, err)
		return lntypes.Hash{}, err
	}
	return paymentHash, nil
}

// SendProbe sends a synthetic, deliberately unclaimable payment over hops
// to learn route liquidity.
func (o *OutboundPayments) SendProbe(hops route.Path, entropy EntropySource,
	nodeSigner NodeSigner, bestBlockHeight uint32,
	sendAlongPath SendPaymentAlongPathFunc) (lntypes.Hash, payments.ID, error) {

	idBytes := entropy.GetSecureRandomBytes()
	paymentID := payments.ID(idBytes)
	paymentHash := ProbingCookieFromID(paymentID, o.probingCookieSecret)

	if len(hops) < 2 {
		return lntypes.Hash{}, payments.ID{}, &ParameterError{
			Cause: apiMisuseErrorf("no need probing a path with less than two hops"),
		}
	}

	rt := &route.Route{Paths: []route.Path{hops}}
	privs, err := o.addNewPendingPayment(paymentHash, fn.None[payments.Secret](),
		paymentID, fn.None[lntypes.Preimage](), rt, fn.None[payments.Retry](),
		nil, entropy, bestBlockHeight)
	if err != nil {
		return lntypes.Hash{}, payments.ID{}, err
	}

	err = o.payRouteInternal(rt, paymentHash, fn.None[payments.Secret](),
		fn.None[lntypes.Preimage](), paymentID, fn.None[route.MilliSatoshi](),
		privs, nodeSigner, bestBlockHeight, sendAlongPath)
	if err != nil {
		o.removeOutboundIfAllFailed(paymentID, err)
		return lntypes.Hash{}, payments.ID{}, err
	}
	return paymentHash, paymentID, nil
}

// payInternal finds a route and dispatches, retrying on
// AllFailedResendSafeError (bounded by the payment's own retry strategy)
// and on a PartialFailureError's FailedPathsRetry.
func (o *OutboundPayments) payInternal(paymentID payments.ID,
	initial *initialSendInfo, routeParams *route.RouteParameters,
	router Router, firstHops []ChannelHint,
	computeInFlightHtlcs ComputeInFlightHtlcsFunc, entropy EntropySource,
	nodeSigner NodeSigner, bestBlockHeight uint32,
	sendAlongPath SendPaymentAlongPathFunc) error {

	if hasExpired(routeParams, o.clock) {
		return &ParameterError{
			Cause: apiMisuseErrorf("invoice expired for payment id %s", paymentID),
		}
	}

	ourNodeID, err := nodeSigner.NodeID()
	if err != nil {
		return &ParameterError{
			Cause: apiMisuseErrorf("failed to get node id: %v", err),
		}
	}

	rt, err := router.FindRoute(ourNodeID, routeParams, firstHops,
		computeInFlightHtlcs())
	if err != nil {
		return &ParameterError{
			Cause: apiMisuseErrorf("failed to find a route for payment %s: %v",
				paymentID, err),
		}
	}

	var res error
	if initial != nil {
		privs, err := o.addNewPendingPayment(initial.paymentHash,
			initial.paymentSecret, paymentID, initial.keysendPreimage, rt,
			fn.Some(initial.retryStrategy), routeParams.PaymentParams, entropy,
			bestBlockHeight)
		if err != nil {
			return err
		}
		res = o.payRouteInternal(rt, initial.paymentHash, initial.paymentSecret,
			initial.keysendPreimage, paymentID, fn.None[route.MilliSatoshi](),
			privs, nodeSigner, bestBlockHeight, sendAlongPath)
	} else {
		res = o.RetryPaymentWithRoute(rt, paymentID, entropy, nodeSigner,
			bestBlockHeight, sendAlongPath)
	}

	var allFailed *AllFailedResendSafeError
	if errors.As(res, &allFailed) {
		retryRes := o.payInternal(paymentID, nil, routeParams, router, firstHops,
			computeInFlightHtlcs, entropy, nodeSigner, bestBlockHeight,
			sendAlongPath)
		log.Infof("result retrying payment id %s: %v", paymentID, retryRes)

		var paramErr *ParameterError
		if errors.As(retryRes, &paramErr) &&
			strings.HasPrefix(paramErr.Cause.Msg, "retries exhausted") {
			return res
		}
		return retryRes
	}

	var partial *PartialFailureError
	if errors.As(res, &partial) {
		if partial.FailedPathsRetry != nil {
			// Some paths already committed; we must not surface an error
			// here even if the top-up retry itself fails, or the caller
			// could resend and over-pay.
			retryRes := o.payInternal(paymentID, nil, partial.FailedPathsRetry,
				router, firstHops, computeInFlightHtlcs, entropy, nodeSigner,
				bestBlockHeight, sendAlongPath)
			log.Infof("result retrying payment id %s: %v", paymentID, retryRes)
		}
		return nil
	}

	return res
}

// RetryPaymentWithRoute manually retries paymentID over a caller-chosen
// route, generating a fresh session secret per path.
func (o *OutboundPayments) RetryPaymentWithRoute(rt *route.Route,
	paymentID payments.ID, entropy EntropySource, nodeSigner NodeSigner,
	bestBlockHeight uint32, sendAlongPath SendPaymentAlongPathFunc) error {

	for _, path := range rt.Paths {
		if len(path) == 0 {
			return &ParameterError{Cause: apiMisuseErrorf("length-0 path in route")}
		}
	}

	privs := make([]payments.SessionPriv, len(rt.Paths))
	for i := range rt.Paths {
		privs[i] = entropy.GetSecureRandomBytes()
	}

	o.mu.Lock()

	payment, ok := o.pending[paymentID]
	if !ok {
		o.mu.Unlock()
		return &ParameterError{
			Cause: apiMisuseErrorf("payment with id %s not found", paymentID),
		}
	}

	switch payment.Status() {
	case payments.StatusLegacy:
		o.mu.Unlock()
		return &ParameterError{Cause: apiMisuseErrorf(
			"unable to retry payments that were initially sent without " +
				"retry support")}

	case payments.StatusFulfilled:
		o.mu.Unlock()
		return &ParameterError{Cause: apiMisuseErrorf("payment already completed")}

	case payments.StatusAbandoned:
		o.mu.Unlock()
		return &ParameterError{Cause: apiMisuseErrorf(
			"payment already abandoned (with some HTLCs still pending)")}
	}

	var retryAmt route.MilliSatoshi
	for _, path := range rt.Paths {
		retryAmt += path.Last().FeeMSat
	}
	pendingAmt := payment.PendingAmtMSat()
	total := payment.TotalMSat()
	if uint64(retryAmt)+uint64(pendingAmt) > uint64(total)*(100+retryOverflowPercent)/100 {
		o.mu.Unlock()
		return &ParameterError{Cause: apiMisuseErrorf(
			"retry amount of %d would put pending amount (currently: %d) "+
				"more than 10%% over total payment amount of %d",
			retryAmt, pendingAmt, total)}
	}

	if !payment.IsRetryableNow(o.clock) {
		o.mu.Unlock()
		return &ParameterError{
			Cause: apiMisuseErrorf("retries exhausted for payment id %s", paymentID),
		}
	}

	var paymentHash lntypes.Hash
	payment.PaymentHash().WhenSome(func(h lntypes.Hash) { paymentHash = h })
	paymentSecret := payment.PaymentSecret()
	keysendPreimage := payment.KeysendPreimage()

	payment.IncrementAttempts()
	for i, path := range rt.Paths {
		payment.Insert(privs[i], path)
	}
	o.mu.Unlock()

	return o.payRouteInternal(rt, paymentHash, paymentSecret, keysendPreimage,
		paymentID, fn.Some(total), privs, nodeSigner, bestBlockHeight,
		sendAlongPath)
}

// addNewPendingPayment registers a fresh Retryable payment with one
// session per path, failing with DuplicatePaymentError if paymentID is
// already live.
func (o *OutboundPayments) addNewPendingPayment(paymentHash lntypes.Hash,
	paymentSecret fn.Option[payments.Secret], paymentID payments.ID,
	keysendPreimage fn.Option[lntypes.Preimage], rt *route.Route,
	retryStrategy fn.Option[payments.Retry], paymentParams *route.PaymentParameters,
	entropy EntropySource, bestBlockHeight uint32) ([]payments.SessionPriv, error) {

	for _, path := range rt.Paths {
		if len(path) == 0 {
			return nil, &ParameterError{Cause: apiMisuseErrorf("length-0 path in route")}
		}
	}

	privs := make([]payments.SessionPriv, len(rt.Paths))
	for i := range rt.Paths {
		privs[i] = entropy.GetSecureRandomBytes()
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.pending[paymentID]; exists {
		return nil, &DuplicatePaymentError{ID: paymentID}
	}

	payment := payments.NewRetryable(paymentHash, paymentSecret, keysendPreimage,
		paymentParams, retryStrategy, rt.TotalAmount(), bestBlockHeight, o.clock)

	for i, path := range rt.Paths {
		payment.Insert(privs[i], path)
	}

	o.pending[paymentID] = payment
	return privs, nil
}

// payRouteInternal validates and dispatches rt's paths, classifying the
// aggregate result as a full success, a partial failure, or an
// all-failed-resend-safe error.
func (o *OutboundPayments) payRouteInternal(rt *route.Route,
	paymentHash lntypes.Hash, paymentSecret fn.Option[payments.Secret],
	keysendPreimage fn.Option[lntypes.Preimage], paymentID payments.ID,
	recvValueMSat fn.Option[route.MilliSatoshi],
	onionSessionPrivs []payments.SessionPriv, nodeSigner NodeSigner,
	bestBlockHeight uint32, sendAlongPath SendPaymentAlongPathFunc) error {

	if len(rt.Paths) < 1 {
		return &ParameterError{
			Cause: invalidRouteError("there must be at least one path to send over"),
		}
	}
	if paymentSecret.IsNone() && len(rt.Paths) > 1 {
		return &ParameterError{
			Cause: apiMisuseErrorf("payment secret is required for multi-path payments"),
		}
	}

	ourNodeID, err := nodeSigner.NodeID()
	if err != nil {
		return &ParameterError{Cause: apiMisuseErrorf("failed to get node id: %v", err)}
	}

	var totalValue route.MilliSatoshi
	pathErrs := make([]error, len(rt.Paths))
	anyPathErr := false
	for i, path := range rt.Paths {
		if len(path) < 1 || len(path) > route.MaxHopsPerPath {
			pathErrs[i] = invalidRouteError("path didn't go anywhere/had bogus size")
			anyPathErr = true
			continue
		}

		loopsThroughUs := false
		for idx, hop := range path {
			if idx != len(path)-1 && hop.PubKey.IsEqual(ourNodeID) {
				pathErrs[i] = invalidRouteError(
					"path went through us but wasn't a simple rebalance loop to us")
				anyPathErr = true
				loopsThroughUs = true
				break
			}
		}
		if loopsThroughUs {
			continue
		}

		totalValue += path.Last().FeeMSat
	}
	if anyPathErr {
		return &PathParameterError{Results: pathErrs}
	}

	recvValueMSat.WhenSome(func(v route.MilliSatoshi) { totalValue = v })

	curHeight := bestBlockHeight + 1
	results := make([]error, len(rt.Paths))
	for i, path := range rt.Paths {
		sessionPriv := onionSessionPrivs[i]
		pathErr := sendAlongPath(path, rt.PaymentParams, paymentHash,
			paymentSecret, totalValue, curHeight, paymentID, keysendPreimage,
			sessionPriv)

		if pathErr != nil && !isMonitorUpdateInProgress(pathErr) {
			o.mu.Lock()
			if payment, ok := o.pending[paymentID]; ok {
				payment.Remove(sessionPriv, path)
			}
			o.mu.Unlock()
		}
		results[i] = pathErr
	}

	var (
		hasOK, hasErr bool
		pendingAmtUnsent route.MilliSatoshi
		maxUnsentCLTVExpiry uint16
	)
	for i, res := range results {
		path := rt.Paths[i]
		switch {
		case res == nil:
			hasOK = true

		case isMonitorUpdateInProgress(res):
			hasOK = true
			hasErr = true

		default:
			hasErr = true
			pendingAmtUnsent += path.Last().FeeMSat
			if path.Last().CLTVExpiryDelta > maxUnsentCLTVExpiry {
				maxUnsentCLTVExpiry = path.Last().CLTVExpiryDelta
			}
		}
	}

	switch {
	case hasErr && hasOK:
		var failedRetry *route.RouteParameters
		if pendingAmtUnsent != 0 && rt.PaymentParams != nil {
			delta := maxUnsentCLTVExpiry
			rt.PaymentParams.FinalCLTVExpiryDelta.WhenSome(func(d uint16) {
				delta = d
			})
			failedRetry = &route.RouteParameters{
				PaymentParams: rt.PaymentParams,
				FinalValueMSat: pendingAmtUnsent,
				FinalCLTVExpiryDelta: delta,
			}
		}
		return &PartialFailureError{
			Results: results,
			FailedPathsRetry: failedRetry,
			PaymentID: paymentID,
		}

	case hasErr:
		apiErrs := make([]*APIError, 0, len(results))
		for _, res := range results {
			var apiErr *APIError
			if errors.As(res, &apiErr) {
				apiErrs = append(apiErrs, apiErr)
			}
		}
		return &AllFailedResendSafeError{Errors: apiErrs}

	default:
		return nil
	}
}

func isMonitorUpdateInProgress(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == APIErrorMonitorUpdateInProgress
}

// removeOutboundIfAllFailed reaps the payment entry when every path failed
// outright, so the caller isn't expected to call AbandonPayment.
func (o *OutboundPayments) removeOutboundIfAllFailed(paymentID payments.ID, err error) {
	var allFailed *AllFailedResendSafeError
	if errors.As(err, &allFailed) {
		o.mu.Lock()
		delete(o.pending, paymentID)
		o.mu.Unlock()
	}
}

// hasExpired reports whether routeParams' invoice expiry has passed. With
// no clock configured, expiry is never checked.
func hasExpired(routeParams *route.RouteParameters, clk fn.Option[clock.Clock]) bool {
	if routeParams.PaymentParams == nil {
		return false
	}

	expired := false
	clk.WhenSome(func(c clock.Clock) {
		routeParams.PaymentParams.ExpiryTime.WhenSome(func(t int64) {
			if c.Now().Unix() > t {
				expired = true
			}
		})
	})
	return expired
}
