// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"

	"github.com/bitc-go/bitc/internal/peergroup"
	"github.com/bitc-go/bitc/internal/statedir"
)

// appVersion is bumped on release; surfaced by -v/--version.
const appVersion = "0.1.0"

// config holds every command-line option the original client exposed
// (original_source/src/main.c's bitc_usage), translated into go-flags
// struct tags the way the teacher's own daemon flags are declared.
type config struct {
	ConfigFile string `short:"c" long:"config" description:"config file to use (accepted; the file is not read)" default:""`
	Daemon     bool   `short:"d" long:"daemon" description:"daemon mode: no interactive UI"`
	NumPeers   int    `short:"n" long:"numPeers" description:"number of peers to connect to" default:"5"`
	Test       string `short:"t" long:"test" description:"test suite name (accepted; no test suite is run)"`
	TestNet    bool   `short:"T" long:"testnet" description:"connect to testnet3 instead of mainnet"`
	Version    bool   `short:"v" long:"version" description:"display version and exit"`
	DataDir    string `long:"datadir" description:"state directory" default:""`
	DebugLevel string `long:"debuglevel" description:"logging level: trace, debug, info, warn, error, critical" default:"info"`
}

// loadConfig parses command-line flags, applying the same defaults the
// original client's getopt_long table did.
func loadConfig() (*config, []string, error) {
	cfg := config{}
	parser := flags.NewParser(&cfg, flags.Default)
	remaining, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, nil, err
	}

	if cfg.Version {
		fmt.Printf("bitc version %s\n", appVersion)
		os.Exit(0)
	}

	if cfg.NumPeers <= 0 {
		cfg.NumPeers = peergroup.DefaultTargetPeers
	}

	return &cfg, remaining, nil
}

// openStateDir opens the state directory cfg names, or the default
// ~/.bitc if DataDir is empty.
func openStateDir(cfg *config) (*statedir.Dir, error) {
	if cfg.DataDir == "" {
		return statedir.Default()
	}
	return statedir.Open(cfg.DataDir)
}
