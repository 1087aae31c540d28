package routing

import "github.com/btcsuite/btclog/v2"

// log is the package-wide logger, set to a no-op implementation until the
// caller supplies a real one via UseLogger.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-wide logger used by this package. Called by a
// higher-level subsystem on startup, following the convention the rest of
// the engine's dependency stack (clock, queue, ticker) leaves to their
// callers rather than reaching for a global singleton.
func UseLogger(logger btclog.Logger) {
	log = logger
}
