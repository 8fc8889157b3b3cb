// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command bitcd runs THE CORE as a headless SPV daemon: it syncs block
// headers from its peers, tracks a locally held wallet's transactions via
// a Bloom filter, and exposes its three notification buses for whatever
// glue (terminal UI, RPC endpoint) a caller wires in. The terminal UI,
// RPC/status endpoint, and config/contacts file parsing are explicitly
// out of this daemon's scope (spec.md §1); this command only assembles
// and drives the protocol engine itself.
package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bitc-go/bitc/internal/addrmgr"
	"github.com/bitc-go/bitc/internal/bloomfilter"
	"github.com/bitc-go/bitc/internal/chaincfg"
	"github.com/bitc-go/bitc/internal/chainhash"
	"github.com/bitc-go/bitc/internal/events"
	"github.com/bitc-go/bitc/internal/headerchain"
	"github.com/bitc-go/bitc/internal/peergroup"
	"github.com/bitc-go/bitc/internal/reactor"
	"github.com/bitc-go/bitc/internal/socksdialer"
	"github.com/bitc-go/bitc/internal/statedir"
	"github.com/bitc-go/bitc/internal/wallet"
	"github.com/bitc-go/bitc/internal/workerpool"
)

// protocolVersion is the wire protocol version THE CORE advertises in its
// version message (BIP37 filterload support requires >= 70001).
const protocolVersion uint32 = 70001

// userAgent identifies this client to its peers.
const userAgent = "/bitc-go:" + appVersion + "/"

// addrMgrMaxSize bounds the in-memory/persisted address book.
const addrMgrMaxSize = 20000

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "bitc:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	dir, err := openStateDir(cfg)
	if err != nil {
		return fmt.Errorf("open state directory: %w", err)
	}
	unlock, err := dir.Lock()
	if err != nil {
		return err
	}
	defer unlock()

	if err := initLogRotator(filepath.Join(dir.Path(), "bitc.log")); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	setLogLevel(parseLogLevel(cfg.DebugLevel))

	params := chaincfg.MainNetParams()
	if cfg.TestNet {
		params = chaincfg.TestNet3Params()
	}

	n, err := newNode(cfg, dir, params)
	if err != nil {
		return err
	}
	defer n.shutdown()

	n.start()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()
	logChain.Info("shutdown requested")
	return nil
}

// node bundles every subsystem a running daemon wires together: the
// header chain, address book, reactor, worker pool, peer group, and
// wallet (spec.md §4's component list).
type node struct {
	reactor *reactor.Reactor
	pool    *workerpool.Pool
	chain   *headerchain.Chain
	addrs   *addrmgr.Manager
	peers   *peergroup.Group
	wlt     *wallet.Wallet
	txdb    *wallet.TxDB

	numPeers int
}

func newNode(cfg *config, dir *statedir.Dir, params *chaincfg.Params) (*node, error) {
	chain, err := headerchain.Open(dir.HeadersPath(), params, headerchain.Events{
		OnNewTip: func(hash chainhash.Hash, height int64) {
			logChain.Infof("new tip %s at height %d", hash, height)
		},
		OnReorg: func(ev headerchain.ReorgEvent) {
			logChain.Infof("reorg: %d disconnected, %d connected, new tip %s at %d",
				len(ev.DisconnectedHashes), len(ev.ConnectedHashes), ev.NewTipHash, ev.NewTipHeight)
		},
		OnOrphan: func(hash chainhash.Hash) {
			logChain.Debugf("buffered orphan header %s", hash)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open header chain: %w", err)
	}

	addrs, err := addrmgr.Load(dir.PeersPath(), addrMgrMaxSize)
	if err != nil {
		return nil, fmt.Errorf("load address book: %w", err)
	}

	txdb, err := wallet.OpenTxDB(dir.TxDBPath())
	if err != nil {
		return nil, fmt.Errorf("open tx database: %w", err)
	}

	store := wallet.NewStore(dir.WalletPath())
	wlt := wallet.New(store, params.PubKeyHashAddrID, chain, nil, events.WalletEvents{
		OnBalanceChange: func(bal int64) {
			logWallet.Infof("balance updated: %d satoshis", bal)
		},
		OnNewObservation: func(txid chainhash.Hash) {
			logWallet.Infof("new observed transaction %s", txid)
		},
		OnConfirmationChange: func(txid chainhash.Hash, depth int64) {
			logWallet.Infof("%s now has %d confirmations", txid, depth)
		},
		OnBroadcastFailure: func(txid chainhash.Hash, reason string) {
			logWallet.Warnf("broadcast of %s failed: rejected by 2/3 of ready peers (%s)", txid, reason)
		},
	})
	wlt.SetTxDB(txdb)
	if err := wlt.Load(); err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}

	react := reactor.New(4096)
	pool := workerpool.New(workerpool.DefaultSize)
	wlt.SetWorkerPool(pool)

	peers := peergroup.New(peergroup.Config{
		Net:          params.Net,
		ProtocolVer:  protocolVersion,
		UserAgent:    userAgent,
		Services:     0,
		TargetPeers:  cfg.NumPeers,
		MinPeersInit: peergroup.MinPeersInit,
		Dial:         dialer(),
		Reactor:      react,
		Chain:        chain,
		AddrMgr:      addrs,
		Callbacks: peergroup.Callbacks{
			OnTx:          wlt.OnTx,
			OnMerkleBlock: wlt.OnMerkleBlock,
			OnReject:      wlt.OnReject,
		},
	})
	wlt.SetBroadcaster(peers)

	return &node{
		reactor:  react,
		pool:     pool,
		chain:    chain,
		addrs:    addrs,
		peers:    peers,
		wlt:      wlt,
		txdb:     txdb,
		numPeers: cfg.NumPeers,
	}, nil
}

// dialer returns the outbound dial function peergroup uses: a plain TCP
// dial, or a SOCKS5 tunnel if BITC_SOCKS_PROXY is set (spec.md §6 lists
// the SOCKS5 dialer as an external collaborator the core depends on only
// through this function-shaped interface).
func dialer() func(network, addr string) (net.Conn, error) {
	if proxyAddr := os.Getenv("BITC_SOCKS_PROXY"); proxyAddr != "" {
		d := socksdialer.New(proxyAddr, "", "")
		return d.Dial
	}
	return net.Dial
}

func (n *node) start() {
	go n.reactor.Run(context.Background())

	n.reactor.Post(func() {
		scripts := n.wlt.WatchedScripts()
		filter := bloomfilter.NewFilter(uint32(len(scripts))+10, randomTweak(), 0.0001)
		for _, s := range scripts {
			filter.Add(s)
		}
		n.peers.SetFilter(filter)

		n.peers.Start(func() int {
			if n.chain.BestHeight() < 1000 {
				return peergroup.MinPeersInit
			}
			return n.numPeers
		})
	})
}

// SubmitTx builds, signs, and broadcasts a payment to recipient for
// amountSatoshis at feeRateSatPerKB, running on the reactor goroutine like
// every other wallet mutation (spec.md §4.5 submit_tx). The actual signing
// work runs on the worker pool via wlt.SubmitTx -> signWithPool.
func (n *node) SubmitTx(recipient string, amountSatoshis, feeRateSatPerKB int64) (chainhash.Hash, error) {
	type result struct {
		txid chainhash.Hash
		err  error
	}
	done := make(chan result, 1)
	n.reactor.Post(func() {
		txid, err := n.wlt.SubmitTx(recipient, amountSatoshis, feeRateSatPerKB)
		done <- result{txid, err}
	})
	r := <-done
	return r.txid, r.err
}

func (n *node) shutdown() {
	n.peers.Shutdown(5 * time.Second)
	n.pool.Shutdown()
	n.reactor.Shutdown()
	if err := n.chain.Close(); err != nil {
		logChain.Warnf("close header chain: %v", err)
	}
	if err := n.addrs.Save(); err != nil {
		logAddr.Warnf("save address book: %v", err)
	}
	if err := n.txdb.Close(); err != nil {
		logWallet.Warnf("close tx database: %v", err)
	}
}

// randomTweak samples the per-session Bloom filter tweak (spec.md §4.3:
// each peer's filterload should carry an unpredictable nonce so
// independent observers can't correlate address ownership by filter
// tweak reuse).
func randomTweak() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint32(b[:])
}
