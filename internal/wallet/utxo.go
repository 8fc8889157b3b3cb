// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"sync"

	"github.com/bitc-go/bitc/internal/chainhash"
	"github.com/bitc-go/bitc/internal/wire"
)

// Output is one output the wallet has observed paying one of its own
// addresses, tracked from the merkleblock/tx pair that announced it
// through to either confirmation depth or spend (spec.md §3 "UTXO
// entry").
type Output struct {
	Txid       chainhash.Hash
	Vout       uint32
	PkScript   []byte
	Value      int64
	SpentBy    *chainhash.Hash // nil while unspent
	BlockHash  chainhash.Hash  // zero hash while unconfirmed (mempool-only observation)
	Height     int64           // -1 while unconfirmed
}

// IsSpent reports whether this output has a recorded spending txid.
func (o *Output) IsSpent() bool { return o.SpentBy != nil }

// IsConfirmed reports whether this output has been seen in a block.
func (o *Output) IsConfirmed() bool { return o.Height >= 0 }

// Ledger is the wallet's UTXO set: every output ever observed paying a
// wallet address, spent or not, confirmed or not.
type Ledger struct {
	mu      sync.Mutex
	outputs map[wire.OutPoint]*Output
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{outputs: make(map[wire.OutPoint]*Output)}
}

// AddOutput records a newly observed output, overwriting any existing
// record with the same outpoint (so a later confirmation can update the
// Height/BlockHash of an output first seen unconfirmed).
func (l *Ledger) AddOutput(o *Output) {
	l.mu.Lock()
	defer l.mu.Unlock()
	op := wire.OutPoint{Hash: o.Txid, Index: o.Vout}
	l.outputs[op] = o
}

// MarkSpent records that outpoint op was spent by spendingTxid.
func (l *Ledger) MarkSpent(op wire.OutPoint, spendingTxid chainhash.Hash) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if o, ok := l.outputs[op]; ok {
		h := spendingTxid
		o.SpentBy = &h
	}
}

// SetConfirmed updates an output's confirmation height and containing
// block once the merkleblock announcing it arrives.
func (l *Ledger) SetConfirmed(op wire.OutPoint, blockHash chainhash.Hash, height int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if o, ok := l.outputs[op]; ok {
		o.BlockHash = blockHash
		o.Height = height
	}
}

// Spendable returns every unspent output, confirmed or not.
func (l *Ledger) Spendable() []*Output {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Output, 0, len(l.outputs))
	for _, o := range l.outputs {
		if !o.IsSpent() {
			out = append(out, o)
		}
	}
	return out
}

// Balance sums the value of every unspent, confirmed-to-at-least-minConf
// output, given the chain's current best height.
func (l *Ledger) Balance(bestHeight, minConf int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total int64
	for _, o := range l.outputs {
		if o.IsSpent() {
			continue
		}
		if minConf > 0 {
			if !o.IsConfirmed() || bestHeight-o.Height+1 < minConf {
				continue
			}
		}
		total += o.Value
	}
	return total
}

// Get returns the output at op, if the ledger has one.
func (l *Ledger) Get(op wire.OutPoint) (*Output, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.outputs[op]
	return o, ok
}
