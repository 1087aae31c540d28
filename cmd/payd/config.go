package main

import (
	"os"
	"path/filepath"
	"time"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "payd.conf"
	defaultLogLevel = "info"
	defaultRetryAttempts = 5
	defaultRetryTimeout = 0
	defaultRetryScanPeriod = 30 * time.Second
)

// config holds every ambient, flag-configurable knob this daemon exposes:
// one struct, parsed once at startup, with `long`/`description` struct
// tags and a sensible zero value.
type config struct {
	ConfigFile string `long:"configfile" description:"Path to a config file that overrides these defaults"`

	DebugLevel string `long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical}"`

	ProbingCookieSecretHex string `long:"probingcookiesecret" description:"Hex-encoded 32-byte secret used to derive probe payment hashes. Randomly generated on startup if unset."`

	RetryScanPeriod time.Duration `long:"retryscanperiod" description:"How often the background retry driver re-scans for automatically-retryable payments"`

	DefaultRetryAttempts uint64 `long:"defaultretryattempts" description:"Default maximum retry attempt count. payd issues no payments itself, and nothing in payd reads this value"`
}

// defaultConfig returns a config with every default applied, before flags
// or a config file are parsed.
func defaultConfig() *config {
	return &config{
		DebugLevel: defaultLogLevel,
		RetryScanPeriod: defaultRetryScanPeriod,
		DefaultRetryAttempts: defaultRetryAttempts,
	}
}

// loadConfig parses command-line flags over the defaults and then, if
// --configfile names an existing file, overlays that file's values on top.
// No file is read when --configfile is unset.
func loadConfig() (*config, error) {
	preCfg := defaultConfig()

	if _, err := flags.NewParser(preCfg, flags.Default).Parse(); err != nil {
		return nil, err
	}

	if preCfg.ConfigFile != "" {
		cfgPath, err := filepath.Abs(preCfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(cfgPath); err == nil {
			if err := flags.IniParse(cfgPath, preCfg); err != nil {
				return nil, err
			}
		}
	}

	return preCfg, nil
}
