// Package paymentdb persists payments.PendingOutboundPayment using a
// TLV-tagged variant layout: a leading discriminant byte selects the
// variant, followed by a tlv.Stream of that variant's fields. It plays the
// role channeldb/mp_payment.go plays for lnd's MPPayment, reworked around
// this engine's session-priv-set model instead of per-attempt DB rows.
package paymentdb

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/lightningnetwork/lnd/tlv"
	fn "github.com/lightningnetwork/lnd/fn/v2"

	"github.com/lnoutbound/engine/lntypes"
	"github.com/lnoutbound/engine/payments"
	"github.com/lnoutbound/engine/route"
)

var byteOrder = binary.BigEndian

// Field tags within the TLV stream that follows the discriminant byte. The
// retry strategy and attempt counter are deliberately never assigned a
// tag: they are not persisted.
const (
	tagSessionPrivs tlv.Type = 1
	tagPaymentHash tlv.Type = 2
	tagPaymentParamsExpiry tlv.Type = 3
	tagPaymentParamsCLTVDelta tlv.Type = 4
	tagPaymentParamsFailedSCIDs tlv.Type = 5
	tagPaymentSecret tlv.Type = 6
	tagKeysendPreimage tlv.Type = 7
	tagPendingAmtMSat tlv.Type = 8
	tagPendingFeeMSat tlv.Type = 9
	tagTotalMSat tlv.Type = 10
	tagStartingBlockHeight tlv.Type = 11
	tagTimerTicksWithoutHTLCs tlv.Type = 12
)

// Serialize writes p's discriminant byte followed by its TLV-encoded
// fields.
func Serialize(w io.Writer, p *payments.PendingOutboundPayment) error {
	if _, err := w.Write([]byte{byte(p.Status())}); err != nil {
		return err
	}

	sessionPrivBytes := encodeSessionPrivs(p.SessionPrivs())
	records := []tlv.Record{
		tlv.MakePrimitiveRecord(tagSessionPrivs, &sessionPrivBytes),
	}

	p.PaymentHash().WhenSome(func(h lntypes.Hash) {
		hashCopy := h
		records = append(records,
			tlv.MakePrimitiveRecord(tagPaymentHash, (*[32]byte)(&hashCopy)))
	})

	if p.Status() == payments.StatusFulfilled {
		ticks := p.TimerTicksWithoutHTLCs()
		records = append(records,
			tlv.MakePrimitiveRecord(tagTimerTicksWithoutHTLCs, &ticks))
	}

	if p.Status() == payments.StatusRetryable {
		if params := p.PaymentParameters(); params != nil {
			params.ExpiryTime.WhenSome(func(t int64) {
				v := uint64(t)
				records = append(records,
					tlv.MakePrimitiveRecord(tagPaymentParamsExpiry, &v))
			})
			params.FinalCLTVExpiryDelta.WhenSome(func(d uint16) {
				dCopy := d
				records = append(records,
					tlv.MakePrimitiveRecord(tagPaymentParamsCLTVDelta, &dCopy))
			})
			if len(params.PreviouslyFailedChannels) > 0 {
				scidBytes := encodeSCIDs(params.PreviouslyFailedChannels)
				records = append(records,
					tlv.MakePrimitiveRecord(tagPaymentParamsFailedSCIDs, &scidBytes))
			}
		}

		p.PaymentSecret().WhenSome(func(s payments.Secret) {
			sCopy := s
			records = append(records,
				tlv.MakePrimitiveRecord(tagPaymentSecret, (*[32]byte)(&sCopy)))
		})

		p.KeysendPreimage().WhenSome(func(pre lntypes.Preimage) {
			preCopy := pre
			records = append(records,
				tlv.MakePrimitiveRecord(tagKeysendPreimage, (*[32]byte)(&preCopy)))
		})

		pendingAmt := p.PendingAmtMSat()
		records = append(records,
			tlv.MakePrimitiveRecord(tagPendingAmtMSat, (*uint64)(&pendingAmt)))

		p.PendingFeeMSat().WhenSome(func(fee route.MilliSatoshi) {
			feeCopy := fee
			records = append(records,
				tlv.MakePrimitiveRecord(tagPendingFeeMSat, (*uint64)(&feeCopy)))
		})

		total := p.TotalMSat()
		records = append(records,
			tlv.MakePrimitiveRecord(tagTotalMSat, (*uint64)(&total)))

		height := p.StartingBlockHeight()
		records = append(records,
			tlv.MakePrimitiveRecord(tagStartingBlockHeight, &height))
	}

	tlv.SortRecords(records)

	stream, err := tlv.NewStream(records...)
	if err != nil {
		return err
	}

	return stream.Encode(w)
}

// Deserialize reads a discriminant byte and its TLV-encoded fields back
// into a PendingOutboundPayment. The retry strategy is always absent on a
// freshly loaded Retryable payment (not persisted), and the timer-ticks
// counter defaults to 0 when absent.
func Deserialize(r io.Reader) (*payments.PendingOutboundPayment, error) {
	var discriminant [1]byte
	if _, err := io.ReadFull(r, discriminant[:]); err != nil {
		return nil, err
	}
	status := payments.Status(discriminant[0])

	var (
		sessionPrivBytes []byte
		paymentHash lntypes.Hash
		expiry uint64
		cltvDelta uint16
		failedSCIDBytes []byte
		paymentSecret payments.Secret
		keysendPreimage lntypes.Preimage
		pendingAmtMSat uint64
		pendingFeeMSat uint64
		totalMSat uint64
		startingBlockHeight uint32
		timerTicks uint8
	)

	records := []tlv.Record{
		tlv.MakePrimitiveRecord(tagSessionPrivs, &sessionPrivBytes),
		tlv.MakePrimitiveRecord(tagPaymentHash, (*[32]byte)(&paymentHash)),
		tlv.MakePrimitiveRecord(tagPaymentParamsExpiry, &expiry),
		tlv.MakePrimitiveRecord(tagPaymentParamsCLTVDelta, &cltvDelta),
		tlv.MakePrimitiveRecord(tagPaymentParamsFailedSCIDs, &failedSCIDBytes),
		tlv.MakePrimitiveRecord(tagPaymentSecret, (*[32]byte)(&paymentSecret)),
		tlv.MakePrimitiveRecord(tagKeysendPreimage, (*[32]byte)(&keysendPreimage)),
		tlv.MakePrimitiveRecord(tagPendingAmtMSat, &pendingAmtMSat),
		tlv.MakePrimitiveRecord(tagPendingFeeMSat, &pendingFeeMSat),
		tlv.MakePrimitiveRecord(tagTotalMSat, &totalMSat),
		tlv.MakePrimitiveRecord(tagStartingBlockHeight, &startingBlockHeight),
		tlv.MakePrimitiveRecord(tagTimerTicksWithoutHTLCs, &timerTicks),
	}
	tlv.SortRecords(records)

	stream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, err
	}

	parsedTypes, err := stream.DecodeWithParsedTypes(r)
	if err != nil {
		return nil, err
	}

	sessionPrivs, err := decodeSessionPrivs(sessionPrivBytes)
	if err != nil {
		return nil, fmt.Errorf("paymentdb: decoding session privs: %w", err)
	}

	_, hasHash := parsedTypes[tagPaymentHash]

	switch status {
	case payments.StatusLegacy:
		return payments.NewLegacy(sessionPrivs), nil

	case payments.StatusFulfilled:
		hash := fn.None[lntypes.Hash]()
		if hasHash {
			hash = fn.Some(paymentHash)
		}
		return payments.NewFulfilledFromParts(sessionPrivs, hash, timerTicks), nil

	case payments.StatusAbandoned:
		if !hasHash {
			return nil, fmt.Errorf("paymentdb: abandoned payment missing " +
				"payment hash")
		}
		return payments.NewAbandonedFromParts(sessionPrivs, paymentHash), nil

	case payments.StatusRetryable:
		if !hasHash {
			return nil, fmt.Errorf("paymentdb: retryable payment missing " +
				"payment hash")
		}

		params := &route.PaymentParameters{
			PreviouslyFailedChannels: decodeSCIDs(failedSCIDBytes),
		}
		if _, ok := parsedTypes[tagPaymentParamsExpiry]; ok {
			params.ExpiryTime = fn.Some(int64(expiry))
		}
		if _, ok := parsedTypes[tagPaymentParamsCLTVDelta]; ok {
			params.FinalCLTVExpiryDelta = fn.Some(cltvDelta)
		}

		secret := fn.None[payments.Secret]()
		if _, ok := parsedTypes[tagPaymentSecret]; ok {
			secret = fn.Some(paymentSecret)
		}

		preimage := fn.None[lntypes.Preimage]()
		if _, ok := parsedTypes[tagKeysendPreimage]; ok {
			preimage = fn.Some(keysendPreimage)
		}

		feeOpt := fn.None[route.MilliSatoshi]()
		if _, ok := parsedTypes[tagPendingFeeMSat]; ok {
			feeOpt = fn.Some(route.MilliSatoshi(pendingFeeMSat))
		}

		return payments.NewRetryableFromParts(
			sessionPrivs, paymentHash, params, secret, preimage,
			route.MilliSatoshi(pendingAmtMSat), feeOpt,
			route.MilliSatoshi(totalMSat), startingBlockHeight,
		), nil

	default:
		return nil, fmt.Errorf("paymentdb: unknown discriminant byte %d",
			discriminant[0])
	}
}

func decodeSessionPrivs(raw []byte) ([]payments.SessionPriv, error) {
	const entrySize = 32
	if len(raw)%entrySize != 0 {
		return nil, fmt.Errorf("session priv blob has invalid length %d",
			len(raw))
	}

	out := make([]payments.SessionPriv, 0, len(raw)/entrySize)
	for i := 0; i < len(raw); i += entrySize {
		var sp payments.SessionPriv
		copy(sp[:], raw[i:i+entrySize])
		out = append(out, sp)
	}
	return out, nil
}

func encodeSessionPrivs(privs []payments.SessionPriv) []byte {
	out := make([]byte, 0, len(privs)*32)
	for _, sp := range privs {
		out = append(out, sp[:]...)
	}
	return out
}

func decodeSCIDs(raw []byte) []uint64 {
	if len(raw) == 0 {
		return nil
	}
	out := make([]uint64, 0, len(raw)/8)
	for i := 0; i+8 <= len(raw); i += 8 {
		out = append(out, byteOrder.Uint64(raw[i:i+8]))
	}
	return out
}

func encodeSCIDs(scids []uint64) []byte {
	out := make([]byte, len(scids)*8)
	for i, scid := range scids {
		byteOrder.PutUint64(out[i*8:i*8+8], scid)
	}
	return out
}
