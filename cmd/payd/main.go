// Command payd wires together the outbound payment engine with a minimal
// logging and signal-handling harness. The route-finding, wallet, and
// channel-layer collaborators it constructs here are stand-ins: a real
// deployment embeds package routing directly and supplies its own Router,
// NodeSigner, and SendPaymentAlongPathFunc from its
// existing channel graph and link layer.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btclog/v2"
	"github.com/lightningnetwork/lnd/clock"
	fn "github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/ticker"

	"github.com/lnoutbound/engine/lntypes"
	"github.com/lnoutbound/engine/payments"
	"github.com/lnoutbound/engine/route"
	"github.com/lnoutbound/engine/routing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.DebugLevel)
	routing.UseLogger(logger)

	var probingSecret [32]byte
	if cfg.ProbingCookieSecretHex != "" {
		if err := decodeProbingSecret(cfg.ProbingCookieSecretHex, &probingSecret); err != nil {
			return fmt.Errorf("invalid probingcookiesecret: %w", err)
		}
	} else if _, err := rand.Read(probingSecret[:]); err != nil {
		return fmt.Errorf("generating probing cookie secret: %w", err)
	}

	registry := routing.New(routing.Config{
		Clock: fn.Some[clock.Clock](clock.NewDefaultClock()),
		ProbingCookieSecret: probingSecret,
	})

	events := payments.NewEventQueue()
	_ = events

	driver := routing.NewDriver(
		registry,
		ticker.New(cfg.RetryScanPeriod),
		unwiredRouter{},
		unwiredFirstHops,
		unwiredInFlightHtlcs,
		cryptoRandEntropySource{},
		unwiredNodeSigner{},
		func() uint32 { return 0 },
		unwiredSendAlongPath,
	)
	driver.Start()
	defer driver.Stop()

	logger.Infof("payd started, retry scan period %s", cfg.RetryScanPeriod)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Infof("payd shutting down")
	return nil
}

func newLogger(level string) btclog.Logger {
	backend := btclog.NewDefaultHandler(os.Stdout)
	logger := btclog.NewSLogger(backend, "PAYD")
	logger.SetLevel(parseLevel(level))
	return logger
}

func parseLevel(level string) btclog.Level {
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		return btclog.LevelInfo
	}
	return lvl
}

func decodeProbingSecret(hexStr string, out *[32]byte) error {
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return err
	}
	if len(b) != 32 {
		return fmt.Errorf("must be exactly 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return nil
}

// cryptoRandEntropySource satisfies routing.EntropySource with the standard
// library's cryptographically secure randomness.
type cryptoRandEntropySource struct{}

func (cryptoRandEntropySource) GetSecureRandomBytes() [32]byte {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return b
}

// The collaborators below are integration points a real deployment
// replaces wholesale.

type unwiredRouter struct{}

func (unwiredRouter) FindRoute(*btcec.PublicKey, *route.RouteParameters,
	[]routing.ChannelHint, route.InFlightHtlcs) (*route.Route, error) {

	return nil, fmt.Errorf("no router wired up; embed package routing directly")
}

type unwiredNodeSigner struct{}

func (unwiredNodeSigner) NodeID() (*btcec.PublicKey, error) {
	return nil, fmt.Errorf("no node signer wired up; embed package routing directly")
}

func unwiredFirstHops() []routing.ChannelHint {
	return nil
}

func unwiredInFlightHtlcs() route.InFlightHtlcs {
	return route.NewInFlightHtlcs()
}

func unwiredSendAlongPath(route.Path, *route.PaymentParameters, lntypes.Hash,
	fn.Option[payments.Secret], route.MilliSatoshi, uint32, payments.ID,
	fn.Option[lntypes.Preimage], payments.SessionPriv) error {

	return fmt.Errorf("no channel layer wired up; embed package routing directly")
}
