// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peergroup

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/bitc-go/bitc/internal/addrmgr"
	"github.com/bitc-go/bitc/internal/chainhash"
	"github.com/bitc-go/bitc/internal/peer"
	"github.com/bitc-go/bitc/internal/wire"
)

func newTestGroup(t *testing.T, dial func(network, addr string) (net.Conn, error)) *Group {
	t.Helper()
	mgr := addrmgr.New(filepath.Join(t.TempDir(), "peers.dat"), 100)
	if dial == nil {
		dial = func(network, addr string) (net.Conn, error) { return nil, net.UnknownNetworkError("unused in test") }
	}
	return New(Config{
		Net:         wire.TestNet3,
		ProtocolVer: 70001,
		UserAgent:   "/test:0.0.1/",
		AddrMgr:     mgr,
		Dial:        dial,
	})
}

func TestNewAppliesDefaultTargets(t *testing.T) {
	g := newTestGroup(t, nil)
	if g.cfg.TargetPeers != DefaultTargetPeers {
		t.Fatalf("TargetPeers = %d, want %d", g.cfg.TargetPeers, DefaultTargetPeers)
	}
	if g.cfg.MinPeersInit != MinPeersInit {
		t.Fatalf("MinPeersInit = %d, want %d", g.cfg.MinPeersInit, MinPeersInit)
	}
}

func TestNewKeepsExplicitTargets(t *testing.T) {
	mgr := addrmgr.New(filepath.Join(t.TempDir(), "peers.dat"), 100)
	g := New(Config{TargetPeers: 3, MinPeersInit: 10, AddrMgr: mgr})
	if g.cfg.TargetPeers != 3 || g.cfg.MinPeersInit != 10 {
		t.Fatalf("explicit config values were overwritten: got %d/%d", g.cfg.TargetPeers, g.cfg.MinPeersInit)
	}
}

func TestSetFilterStoresFilter(t *testing.T) {
	g := newTestGroup(t, nil)
	if g.filter != nil {
		t.Fatal("filter set before SetFilter was called")
	}
	// A nil *bloomfilter.Filter is enough to exercise the store path without
	// constructing a real filter.
	g.SetFilter(nil)
	if g.filter != nil {
		t.Fatal("unexpected non-nil filter")
	}
}

func TestDialSkipsBannedAddress(t *testing.T) {
	var called bool
	g := newTestGroup(t, func(network, addr string) (net.Conn, error) {
		called = true
		return nil, net.UnknownNetworkError("should not be reached")
	})
	na := &wire.NetAddress{IP: net.ParseIP("1.2.3.4"), Port: 8333}
	addr := net.JoinHostPort("1.2.3.4", "8333")
	g.Ban(addr)

	g.dial(na)
	time.Sleep(20 * time.Millisecond)
	if called {
		t.Fatal("dial() attempted to connect to a banned address")
	}
}

func TestDialSkipsAlreadyConnectedAddress(t *testing.T) {
	var called bool
	g := newTestGroup(t, func(network, addr string) (net.Conn, error) {
		called = true
		return nil, net.UnknownNetworkError("should not be reached")
	})
	na := &wire.NetAddress{IP: net.ParseIP("5.6.7.8"), Port: 8333}
	addr := net.JoinHostPort("5.6.7.8", "8333")
	g.peers[addr] = &peerState{}

	g.dial(na)
	time.Sleep(20 * time.Millisecond)
	if called {
		t.Fatal("dial() attempted to re-connect to an address already in the peer set")
	}
}

func TestBroadcastTracksPending(t *testing.T) {
	g := newTestGroup(t, nil)
	tx := wire.NewMsgTx(1)
	tx.AddTxOut(&wire.TxOut{Value: 1000, PkScript: []byte{0x51}})

	g.Broadcast(tx)
	if _, ok := g.pendingBroadcast[tx.TxHash()]; !ok {
		t.Fatal("Broadcast did not record the transaction as pending")
	}
}

func TestConfirmBroadcastRemovesPending(t *testing.T) {
	g := newTestGroup(t, nil)
	tx := wire.NewMsgTx(1)
	tx.AddTxOut(&wire.TxOut{Value: 1000, PkScript: []byte{0x51}})
	g.Broadcast(tx)

	g.ConfirmBroadcast(tx.TxHash())
	if _, ok := g.pendingBroadcast[tx.TxHash()]; ok {
		t.Fatal("ConfirmBroadcast did not remove the transaction")
	}
}

func TestConfirmBroadcastOfUnknownTxidIsNoop(t *testing.T) {
	g := newTestGroup(t, nil)
	g.ConfirmBroadcast(chainhash.HashH([]byte("never broadcast")))
}

func TestRebroadcastPendingDoesNotDropEntries(t *testing.T) {
	g := newTestGroup(t, nil)
	tx := wire.NewMsgTx(1)
	tx.AddTxOut(&wire.TxOut{Value: 2000, PkScript: []byte{0x51}})
	g.Broadcast(tx)

	g.rebroadcastPending()
	if _, ok := g.pendingBroadcast[tx.TxHash()]; !ok {
		t.Fatal("rebroadcastPending dropped a still-pending transaction")
	}
}

func TestActiveCountAndShutdownWithNoPeers(t *testing.T) {
	g := newTestGroup(t, nil)
	if g.activeCount() != 0 {
		t.Fatalf("activeCount() = %d, want 0", g.activeCount())
	}
	start := time.Now()
	g.Shutdown(time.Second)
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("Shutdown took unexpectedly long with no connected peers")
	}
}

func TestReadyCountWithNoPeers(t *testing.T) {
	g := newTestGroup(t, nil)
	if g.ReadyCount() != 0 {
		t.Fatalf("ReadyCount() = %d, want 0", g.ReadyCount())
	}
}

func TestRotateSyncPeerWithNoCandidateClearsSyncAddr(t *testing.T) {
	g := newTestGroup(t, nil)
	g.syncPeerAddr = "1.1.1.1:8333"

	g.rotateSyncPeer("1.1.1.1:8333")
	if g.syncPeerAddr != "" {
		t.Fatalf("syncPeerAddr = %q, want empty after rotating with no candidate", g.syncPeerAddr)
	}
}

func TestOnPeerDisconnectReelectsWhenSyncPeerDrops(t *testing.T) {
	g := newTestGroup(t, nil)
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	p := peer.New(server, peer.Config{Net: wire.TestNet3, ProtocolVer: 70001})

	g.peers[p.Addr()] = &peerState{p: p}
	g.syncPeerAddr = p.Addr()

	g.onPeerDisconnect(p)

	if _, stillPresent := g.peers[p.Addr()]; stillPresent {
		t.Fatal("onPeerDisconnect did not remove the peer from the peer set")
	}
	if g.syncPeerAddr == p.Addr() {
		t.Fatal("onPeerDisconnect left a disconnected peer installed as sync peer")
	}
}

func TestOnInvDedupesRepeatAnnouncements(t *testing.T) {
	g := newTestGroup(t, nil)
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	p := peer.New(server, peer.Config{Net: wire.TestNet3, ProtocolVer: 70001})

	hash := chainhash.HashH([]byte("tx"))
	inv := &wire.MsgInv{}
	if err := inv.AddInvVect(&wire.InvVect{Type: wire.InvTypeTx, Hash: hash}); err != nil {
		t.Fatalf("AddInvVect: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 1024)
		// Drain whatever getdata onInv writes so Send doesn't block.
		client.SetReadDeadline(time.Now().Add(time.Second))
		client.Read(buf)
	}()
	g.onInv(p, inv)
	<-done

	if !g.seenInv.Contains(hash) {
		t.Fatal("onInv did not record the announced hash in seenInv")
	}

	// A second announcement of the same hash must not grow the inflight
	// counter a second time: it's already known.
	before := p.Inflight()
	g.onInv(p, inv)
	if p.Inflight() != before {
		t.Fatalf("Inflight changed from %d to %d on a duplicate inv announcement", before, p.Inflight())
	}
}
