// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/decred/slog"
	"github.com/jrick/logrotate"

	"github.com/bitc-go/bitc/internal/addrmgr"
	"github.com/bitc-go/bitc/internal/headerchain"
	"github.com/bitc-go/bitc/internal/peer"
	"github.com/bitc-go/bitc/internal/peergroup"
	"github.com/bitc-go/bitc/internal/reactor"
	"github.com/bitc-go/bitc/internal/wallet"
)

// backendLog is the rotating-file log backend every subsystem logger is
// carved out of, following the same one-backend-many-subsystems layout
// the teacher's own daemon uses.
var backendLog = slog.NewBackend(os.Stdout)

// subsystem loggers, one per package that logs, wired via each package's
// own SetLogger hook.
var (
	logChain  = backendLog.Logger("CHAN")
	logAddr   = backendLog.Logger("ADDR")
	logPeer   = backendLog.Logger("PEER")
	logPeerG  = backendLog.Logger("PEGR")
	logReact  = backendLog.Logger("RCTR")
	logWallet = backendLog.Logger("WLLT")
)

// initLogRotator creates a rotating log file at logFile (kept small via
// logrotate, the teacher's own log-rotation dependency) and directs
// backendLog's output there in addition to stdout.
func initLogRotator(logFile string) error {
	if err := os.MkdirAll(filepath.Dir(logFile), 0700); err != nil {
		return err
	}
	rotator, err := logrotate.NewFile(logFile)
	if err != nil {
		return err
	}
	backendLog = slog.NewBackend(io.MultiWriter(os.Stdout, rotator))
	wireSubsystemLoggers()
	return nil
}

// wireSubsystemLoggers (re)installs every subsystem logger on the
// current backendLog and pushes it into each package via SetLogger.
func wireSubsystemLoggers() {
	logChain = backendLog.Logger("CHAN")
	logAddr = backendLog.Logger("ADDR")
	logPeer = backendLog.Logger("PEER")
	logPeerG = backendLog.Logger("PEGR")
	logReact = backendLog.Logger("RCTR")
	logWallet = backendLog.Logger("WLLT")

	headerchain.SetLogger(logChain)
	addrmgr.SetLogger(logAddr)
	peer.SetLogger(logPeer)
	peergroup.SetLogger(logPeerG)
	reactor.SetLogger(logReact)
	wallet.SetLogger(logWallet)
	// bloomfilter has no logger: it is a pure codec, errors surface to
	// its caller rather than being logged internally.

	setLogLevel(currentLogLevel)
}

var currentLogLevel = slog.LevelInfo

// setLogLevel applies level to every subsystem logger.
func setLogLevel(level slog.Level) {
	currentLogLevel = level
	for _, l := range []slog.Logger{logChain, logAddr, logPeer, logPeerG, logReact, logWallet} {
		l.SetLevel(level)
	}
}

// parseLogLevel maps a config string to a slog.Level, defaulting to Info
// for an unrecognized value.
func parseLogLevel(s string) slog.Level {
	switch s {
	case "trace":
		return slog.LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "critical":
		return slog.LevelCritical
	default:
		return slog.LevelInfo
	}
}
