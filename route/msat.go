package route

import "strconv"

// MilliSatoshi is a thousandth of a satoshi, the unit amounts are tracked
// in throughout the payment engine. It mirrors
// github.com/lightningnetwork/lnd/lnwire.MilliSatoshi, kept local to avoid
// an otherwise unnecessary dependency on the wire package.
type MilliSatoshi uint64

// String returns the string representation of the amount, suffixed with the
// unit.
func (m MilliSatoshi) String() string {
	return strconv.FormatUint(uint64(m), 10) + " mSAT"
}
