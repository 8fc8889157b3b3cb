// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peergroup orchestrates THE CORE's concurrent connections to N
// Bitcoin peers (spec.md §4.3 "Peer group responsibilities"): dialing up
// to the target count, electing and rotating a header-sync peer,
// multiplexing getdata requests, rebroadcasting pending wallet
// transactions, and bookkeeping misbehavior bans.
package peergroup

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/bitc-go/bitc/internal/addrmgr"
	"github.com/bitc-go/bitc/internal/bloomfilter"
	"github.com/bitc-go/bitc/internal/chainhash"
	"github.com/bitc-go/bitc/internal/headerchain"
	"github.com/bitc-go/bitc/internal/peer"
	"github.com/bitc-go/bitc/internal/reactor"
	"github.com/bitc-go/bitc/internal/wire"
	"github.com/decred/dcrd/lru"
	"github.com/decred/slog"
)

var log = slog.Disabled

// SetLogger sets the package-level logger used by peergroup.
func SetLogger(logger slog.Logger) { log = logger }

// DefaultTargetPeers and MinPeersInit are spec.md §4.3's defaults: "N
// active peers (default 5)" and "temporarily expand to minPeersInit (50)
// to accelerate initial header sync."
const (
	DefaultTargetPeers    = 5
	MinPeersInit          = 50
	SyncProgressTimeout   = 30 * time.Second
	PerPeerInflightCap    = 16
	BroadcastRetryPeriod  = 15 * time.Minute
	OrphanParentRequestTO = 60 * time.Second
)

// Callbacks lets the peer group's owner (the node context assembled in
// cmd/bitcd) react to inv/tx/merkleblock traffic without peergroup
// importing the wallet package directly.
type Callbacks struct {
	OnTx          func(tx *wire.MsgTx)
	OnMerkleBlock func(mb *wire.MsgMerkleBlock, matched []chainhash.Hash)
	OnReject      func(p *peer.Peer, msg *wire.MsgReject)
}

// Config bundles a Group's fixed parameters.
type Config struct {
	Net          wire.BitcoinNet
	ProtocolVer  uint32
	UserAgent    string
	Services     wire.ServiceFlag
	TargetPeers  int
	MinPeersInit int
	Dial         func(network, addr string) (net.Conn, error)
	Reactor      *reactor.Reactor
	Chain        *headerchain.Chain
	AddrMgr      *addrmgr.Manager
	Callbacks    Callbacks
}

type peerState struct {
	p  *peer.Peer
	na *wire.NetAddress
}

// Group owns and drives every connected Peer.
type Group struct {
	cfg Config
	mu  sync.Mutex

	peers map[string]*peerState
	bans  map[string]time.Time

	syncPeerAddr string
	lastSyncProg time.Time

	filter *bloomfilter.Filter

	pendingBroadcast map[chainhash.Hash]*wire.MsgTx

	// seenInv remembers recently announced inventory hashes so an item
	// relayed by several peers in quick succession is only getdata'd
	// once (spec.md §4.3 inv handling).
	seenInv *lru.Cache
}

// seenInvCacheSize bounds the recently-seen inventory cache; it only
// needs to outlive the handful of seconds peers take to relay the same
// announcement to each other.
const seenInvCacheSize = 5000

// New returns an idle Group; call Start to begin dialing.
func New(cfg Config) *Group {
	if cfg.TargetPeers == 0 {
		cfg.TargetPeers = DefaultTargetPeers
	}
	if cfg.MinPeersInit == 0 {
		cfg.MinPeersInit = MinPeersInit
	}
	return &Group{
		cfg:              cfg,
		peers:            make(map[string]*peerState),
		bans:             make(map[string]time.Time),
		pendingBroadcast: make(map[chainhash.Hash]*wire.MsgTx),
		seenInv:          lru.NewCache(seenInvCacheSize),
	}
}

// SetFilter installs the Bloom filter announced to every peer on
// handshake (spec.md §4.3: "On handshake, send filterload with a filter
// covering all wallet pubkeys and script hashes").
func (g *Group) SetFilter(f *bloomfilter.Filter) {
	g.mu.Lock()
	g.filter = f
	g.mu.Unlock()
}

// Start begins the connection-maintenance loop: dial up to the initial
// target (MinPeersInit if the chain is far behind, else TargetPeers),
// and schedule periodic maintenance.
func (g *Group) Start(candidateTarget func() int) {
	g.maintainConnections(candidateTarget())
	g.scheduleMaintenance(candidateTarget)
	g.scheduleBroadcastRetry()
}

func (g *Group) scheduleMaintenance(candidateTarget func() int) {
	g.cfg.Reactor.ScheduleAfter(5*time.Second, func() {
		g.maintainConnections(candidateTarget())
		g.scheduleMaintenance(candidateTarget)
	})
}

func (g *Group) scheduleBroadcastRetry() {
	g.cfg.Reactor.ScheduleAfter(BroadcastRetryPeriod, func() {
		g.rebroadcastPending()
		g.scheduleBroadcastRetry()
	})
}

// maintainConnections dials fresh addresses from the address book until
// target active peers are reached.
func (g *Group) maintainConnections(target int) {
	g.mu.Lock()
	active := len(g.peers)
	g.mu.Unlock()

	for i := active; i < target; i++ {
		na := g.cfg.AddrMgr.GetAddress()
		if na == nil {
			return
		}
		g.dial(na)
	}
}

func (g *Group) dial(na *wire.NetAddress) {
	addr := net.JoinHostPort(na.IP.String(), strconv.Itoa(int(na.Port)))

	g.mu.Lock()
	if until, ok := g.bans[addr]; ok && time.Now().Before(until) {
		g.mu.Unlock()
		return
	}
	if _, ok := g.peers[addr]; ok {
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()

	g.cfg.AddrMgr.MarkAttempt(na)

	go func() {
		conn, err := g.cfg.Dial("tcp", addr)
		if err != nil {
			log.Debugf("peergroup: dial %s failed: %v", addr, err)
			return
		}
		g.cfg.Reactor.Post(func() { g.onConnected(conn, na) })
	}()
}

func (g *Group) onConnected(conn net.Conn, na *wire.NetAddress) {
	addr := conn.RemoteAddr().String()

	p := peer.New(conn, peer.Config{
		Net:         g.cfg.Net,
		UserAgent:   g.cfg.UserAgent,
		ProtocolVer: g.cfg.ProtocolVer,
		Services:    g.cfg.Services,
		BestHeight:  int32(g.cfg.Chain.BestHeight()),
		Events: peer.Events{
			OnStateChange: g.onPeerStateChange,
			OnMessage:     g.onPeerMessage,
			OnMisbehavior: g.onPeerMisbehavior,
			OnDisconnect:  g.onPeerDisconnect,
		},
		PostToReactor: g.cfg.Reactor.Post,
	})

	g.mu.Lock()
	g.peers[addr] = &peerState{p: p, na: na}
	g.mu.Unlock()

	go p.ReadLoop()
	if err := p.Start(func(d time.Duration, fn func()) { g.cfg.Reactor.ScheduleAfter(d, fn) }); err != nil {
		p.Disconnect()
	}
}

func (g *Group) onPeerStateChange(p *peer.Peer, from, to peer.State) {
	if to == peer.StateReady {
		g.onPeerReady(p)
	}
}

func (g *Group) onPeerReady(p *peer.Peer) {
	g.mu.Lock()
	ps, ok := g.peers[p.Addr()]
	if ok {
		g.cfg.AddrMgr.MarkSuccess(ps.na)
	}
	f := g.filter
	noSyncPeer := g.syncPeerAddr == ""
	g.mu.Unlock()
	if !ok {
		return
	}

	if f != nil {
		_ = p.Send(f.MsgFilterLoad())
	}
	_ = p.Send(&wire.MsgSendHeaders{})
	_ = p.Send(&wire.MsgGetAddr{})

	if noSyncPeer {
		g.electSyncPeer(p)
	} else {
		g.requestHeaders(p)
	}
}

// electSyncPeer designates p as the single peer driving header sync
// (spec.md §4.3: "Elect one peer as the header-sync peer").
func (g *Group) electSyncPeer(p *peer.Peer) {
	g.mu.Lock()
	g.syncPeerAddr = p.Addr()
	g.lastSyncProg = time.Now()
	g.mu.Unlock()
	g.requestHeaders(p)
	g.armSyncProgressTimer()
}

func (g *Group) armSyncProgressTimer() {
	g.cfg.Reactor.ScheduleAfter(SyncProgressTimeout, func() {
		g.mu.Lock()
		stale := time.Since(g.lastSyncProg) >= SyncProgressTimeout
		syncAddr := g.syncPeerAddr
		g.mu.Unlock()
		if !stale {
			g.armSyncProgressTimer()
			return
		}
		g.rotateSyncPeer(syncAddr)
	})
}

func (g *Group) rotateSyncPeer(staleAddr string) {
	g.mu.Lock()
	g.syncPeerAddr = ""
	var candidate *peer.Peer
	for addr, ps := range g.peers {
		if addr != staleAddr && ps.p.State() == peer.StateReady {
			candidate = ps.p
			break
		}
	}
	g.mu.Unlock()

	if ps, ok := g.peerState(staleAddr); ok {
		ps.p.Score(10, "no header-sync progress for 30s")
	}
	if candidate != nil {
		g.electSyncPeer(candidate)
	}
}

func (g *Group) peerState(addr string) (*peerState, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ps, ok := g.peers[addr]
	return ps, ok
}

// requestHeaders sends getheaders built from the chain's current locator
// to p (spec.md §4.3 "Header sync protocol").
func (g *Group) requestHeaders(p *peer.Peer) {
	locator := g.cfg.Chain.LocatorHashes()
	gh := wire.NewMsgGetHeaders()
	for i := range locator {
		h := locator[i]
		gh.AddBlockLocatorHash(&h)
	}
	_ = p.Send(gh)
}

func (g *Group) onPeerMessage(p *peer.Peer, msg wire.Message) {
	switch m := msg.(type) {
	case *wire.MsgHeaders:
		g.onHeaders(p, m)
	case *wire.MsgInv:
		g.onInv(p, m)
	case *wire.MsgTx:
		if g.cfg.Callbacks.OnTx != nil {
			g.cfg.Callbacks.OnTx(m)
		}
	case *wire.MsgMerkleBlock:
		g.onMerkleBlock(p, m)
	case *wire.MsgAddr:
		for _, na := range m.AddrList {
			g.cfg.AddrMgr.AddAddress(na)
		}
	case *wire.MsgReject:
		if g.cfg.Callbacks.OnReject != nil {
			g.cfg.Callbacks.OnReject(p, m)
		}
	}
}

func (g *Group) onHeaders(p *peer.Peer, m *wire.MsgHeaders) {
	g.mu.Lock()
	isSyncPeer := g.syncPeerAddr == p.Addr()
	g.mu.Unlock()
	if !isSyncPeer {
		return
	}

	accepted := 0
	for _, h := range m.Headers {
		result, err := g.cfg.Chain.AcceptHeader(h)
		if err != nil {
			if err == headerchain.ErrInvalidProofOfWork {
				// Bad PoW is not an ordinary malformed-header mistake;
				// score it straight to the ban threshold (spec.md §8
				// Scenario 3: "peer disconnected with score 100").
				p.Score(peer.BanThreshold, err.Error())
			} else {
				p.Score(peer.ScoreInvalidHeader, err.Error())
			}
			continue
		}
		if result == headerchain.ResultAccepted {
			accepted++
		}
	}

	if accepted > 0 {
		g.mu.Lock()
		g.lastSyncProg = time.Now()
		g.mu.Unlock()
	}

	if accepted > 0 && len(m.Headers) < 2000 {
		// Sync window complete; keep this peer as sync peer for future
		// incremental announcements, nothing further to request now.
		return
	}
	if len(m.Headers) > 0 {
		g.requestHeaders(p)
	}
}

func (g *Group) onInv(p *peer.Peer, m *wire.MsgInv) {
	getdata := wire.NewMsgGetData()
	for _, inv := range m.InvList {
		if g.seenInv.Contains(inv.Hash) {
			continue
		}
		switch inv.Type {
		case wire.InvTypeBlock:
			getdata.AddInvVect(&wire.InvVect{Type: wire.InvTypeFilteredBlock, Hash: inv.Hash})
		case wire.InvTypeTx:
			getdata.AddInvVect(&wire.InvVect{Type: wire.InvTypeTx, Hash: inv.Hash})
		default:
			continue
		}
		g.seenInv.Add(inv.Hash)
	}
	if len(getdata.InvList) == 0 {
		return
	}
	if p.Inflight() >= PerPeerInflightCap {
		return
	}
	p.IncInflight()
	_ = p.Send(getdata)
}

func (g *Group) onMerkleBlock(p *peer.Peer, mb *wire.MsgMerkleBlock) {
	p.DecInflight()
	matched, err := bloomfilter.VerifyMerkleBlock(mb)
	if err != nil {
		p.Score(peer.ScoreMerkleMismatch, "merkle root mismatch")
		return
	}
	if g.cfg.Callbacks.OnMerkleBlock != nil {
		g.cfg.Callbacks.OnMerkleBlock(mb, matched)
	}
}

func (g *Group) onPeerMisbehavior(p *peer.Peer, points, total int, reason string) {
	log.Debugf("peergroup: %s misbehavior +%d (total %d): %s", p.Addr(), points, total, reason)
	if total >= peer.BanThreshold {
		g.Ban(p.Addr())
	}
}

func (g *Group) onPeerDisconnect(p *peer.Peer) {
	addr := p.Addr()
	g.mu.Lock()
	delete(g.peers, addr)
	wasSyncPeer := g.syncPeerAddr == addr
	if wasSyncPeer {
		g.syncPeerAddr = ""
	}
	g.mu.Unlock()

	if wasSyncPeer {
		g.reelectSyncPeer()
	}
}

func (g *Group) reelectSyncPeer() {
	g.mu.Lock()
	var candidate *peer.Peer
	for _, ps := range g.peers {
		if ps.p.State() == peer.StateReady {
			candidate = ps.p
			break
		}
	}
	g.mu.Unlock()
	if candidate != nil {
		g.electSyncPeer(candidate)
	}
}

// Ban marks addr as banned for BanDuration (spec.md §4.3: "≥100 points
// disconnects and bans the endpoint for 24 h").
func (g *Group) Ban(addr string) {
	g.mu.Lock()
	g.bans[addr] = time.Now().Add(peer.BanDuration)
	g.mu.Unlock()
}

// Broadcast sends tx to every READY peer and tracks it for rebroadcast
// until confirmed or evicted (spec.md §4.3, §4.4 step 5).
func (g *Group) Broadcast(tx *wire.MsgTx) {
	g.mu.Lock()
	g.pendingBroadcast[tx.TxHash()] = tx
	peersSnapshot := make([]*peer.Peer, 0, len(g.peers))
	for _, ps := range g.peers {
		if ps.p.State() == peer.StateReady {
			peersSnapshot = append(peersSnapshot, ps.p)
		}
	}
	g.mu.Unlock()

	for _, p := range peersSnapshot {
		_ = p.Send(tx)
	}
}

// ConfirmBroadcast removes a transaction from the pending rebroadcast
// set once it is observed in a connected block.
func (g *Group) ConfirmBroadcast(txid chainhash.Hash) {
	g.mu.Lock()
	delete(g.pendingBroadcast, txid)
	g.mu.Unlock()
}

func (g *Group) rebroadcastPending() {
	g.mu.Lock()
	txs := make([]*wire.MsgTx, 0, len(g.pendingBroadcast))
	for _, tx := range g.pendingBroadcast {
		txs = append(txs, tx)
	}
	g.mu.Unlock()
	for _, tx := range txs {
		g.Broadcast(tx)
	}
}

// ReadyCount returns the number of peers currently in state READY.
func (g *Group) ReadyCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, ps := range g.peers {
		if ps.p.State() == peer.StateReady {
			n++
		}
	}
	return n
}

// Shutdown transitions every peer to CLOSING and waits up to the given
// budget for all to reach CLOSED (spec.md §5, scenario 6).
func (g *Group) Shutdown(budget time.Duration) {
	g.mu.Lock()
	peersSnapshot := make([]*peer.Peer, 0, len(g.peers))
	for _, ps := range g.peers {
		peersSnapshot = append(peersSnapshot, ps.p)
	}
	g.mu.Unlock()

	for _, p := range peersSnapshot {
		p.Disconnect()
	}

	deadline := time.Now().Add(budget)
	for time.Now().Before(deadline) {
		if g.activeCount() == 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (g *Group) activeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.peers)
}
