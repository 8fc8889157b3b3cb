// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package events defines the three notification buses THE CORE exposes
// to external UI/RPC collaborators (spec.md §6: chain_events,
// wallet_events, peer_events). Each bus is a set of typed callbacks
// invoked only from the reactor goroutine, so subscribers never need
// their own locking to read the payload.
package events

import "github.com/bitc-go/bitc/internal/chainhash"

// ReorgEvent describes a best-chain replacement, carrying only hashes and
// heights per spec.md §6 ("Payloads carry hashes and heights only").
type ReorgEvent struct {
	Disconnected []chainhash.Hash
	Connected    []chainhash.Hash
	NewTipHeight int64
	NewTipHash   chainhash.Hash
}

// ChainEvents is the collaborator-facing chain notification bus.
type ChainEvents struct {
	OnNewTip func(hash chainhash.Hash, height int64)
	OnReorg  func(ev ReorgEvent)
	OnOrphan func(hash chainhash.Hash)
}

// FireNewTip invokes OnNewTip if set.
func (c ChainEvents) FireNewTip(hash chainhash.Hash, height int64) {
	if c.OnNewTip != nil {
		c.OnNewTip(hash, height)
	}
}

// FireReorg invokes OnReorg if set.
func (c ChainEvents) FireReorg(ev ReorgEvent) {
	if c.OnReorg != nil {
		c.OnReorg(ev)
	}
}

// FireOrphan invokes OnOrphan if set.
func (c ChainEvents) FireOrphan(hash chainhash.Hash) {
	if c.OnOrphan != nil {
		c.OnOrphan(hash)
	}
}

// WalletEvents is the collaborator-facing wallet notification bus.
type WalletEvents struct {
	OnBalanceChange      func(newBalance int64)
	OnNewObservation     func(txid chainhash.Hash)
	OnConfirmationChange func(txid chainhash.Hash, depth int64)
	// OnBroadcastFailure fires once a broadcast transaction has been
	// rejected by at least two-thirds of the currently ready peers
	// (spec.md §4.4 Failure).
	OnBroadcastFailure func(txid chainhash.Hash, reason string)
}

// FireBalanceChange invokes OnBalanceChange if set.
func (w WalletEvents) FireBalanceChange(newBalance int64) {
	if w.OnBalanceChange != nil {
		w.OnBalanceChange(newBalance)
	}
}

// FireNewObservation invokes OnNewObservation if set.
func (w WalletEvents) FireNewObservation(txid chainhash.Hash) {
	if w.OnNewObservation != nil {
		w.OnNewObservation(txid)
	}
}

// FireConfirmationChange invokes OnConfirmationChange if set.
func (w WalletEvents) FireConfirmationChange(txid chainhash.Hash, depth int64) {
	if w.OnConfirmationChange != nil {
		w.OnConfirmationChange(txid, depth)
	}
}

// FireBroadcastFailure invokes OnBroadcastFailure if set.
func (w WalletEvents) FireBroadcastFailure(txid chainhash.Hash, reason string) {
	if w.OnBroadcastFailure != nil {
		w.OnBroadcastFailure(txid, reason)
	}
}

// PeerEvents is the collaborator-facing peer lifecycle notification bus.
type PeerEvents struct {
	OnConnect    func(addr string)
	OnDisconnect func(addr string)
	OnBan        func(addr string, reason string)
}

// FireConnect invokes OnConnect if set.
func (p PeerEvents) FireConnect(addr string) {
	if p.OnConnect != nil {
		p.OnConnect(addr)
	}
}

// FireDisconnect invokes OnDisconnect if set.
func (p PeerEvents) FireDisconnect(addr string) {
	if p.OnDisconnect != nil {
		p.OnDisconnect(addr)
	}
}

// FireBan invokes OnBan if set.
func (p PeerEvents) FireBan(addr, reason string) {
	if p.OnBan != nil {
		p.OnBan(addr, reason)
	}
}
