// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet implements THE CORE's key management, Bloom-filtered
// SPV transaction tracking, UTXO accounting, and outbound transaction
// construction (spec.md §4.4).
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bitc-go/bitc/internal/bcrypto"
	"github.com/bitc-go/bitc/internal/chainhash"
	"github.com/bitc-go/bitc/internal/events"
	"github.com/bitc-go/bitc/internal/peer"
	"github.com/bitc-go/bitc/internal/wire"
	"github.com/bitc-go/bitc/internal/workerpool"
	"github.com/decred/slog"
)

var log = slog.Disabled

// SetLogger sets the package-level logger used by wallet.
func SetLogger(logger slog.Logger) { log = logger }

// MinConfirmations is the default confirmation depth Balance reports
// against (spec.md §4.4 "confirmed balance").
const MinConfirmations = 1

// Broadcaster is the subset of peergroup.Group the wallet needs to submit
// transactions to the network, kept as an interface so wallet doesn't
// import peergroup (avoiding a dependency cycle; peergroup's callbacks
// feed the wallet, the wallet feeds back into peergroup.Broadcast).
type Broadcaster interface {
	Broadcast(tx *wire.MsgTx)
	ReadyCount() int
}

// HeightLookup resolves a block hash to its indexed height, satisfied by
// *headerchain.Chain.
type HeightLookup interface {
	HeaderHeight(hash chainhash.Hash) (int64, bool)
	BestHeight() int64
}

// Wallet ties together the key set, the UTXO ledger, and the chain/peer
// collaborators a running SPV client needs to track balance and send
// coins (spec.md §4.4). All of its methods are meant to run on the
// reactor goroutine, matching the peer group callbacks that drive it.
type Wallet struct {
	mu          sync.RWMutex
	keys        map[string]*Key // keyed by hex-encoded Hash160
	versionByte byte

	ledger *Ledger
	store  *Store
	txdb   *TxDB // nil until SetTxDB; Load/OnTx/confirmTx persist through it when set

	chain   HeightLookup
	bcaster Broadcaster
	events  events.WalletEvents

	// pool, when set, runs every ECDSA signing operation submit_tx
	// issues; nil only in tests that drive SignTx/Send directly with
	// their own sign closure (spec.md §4.5).
	pool *workerpool.Pool

	// blockOfTxid remembers, per txid, which block a merkleblock claimed
	// it matched in — so OnTx can tie the follow-up wire.MsgTx (BIP37
	// sends merkleblock then each matched tx as a separate message) back
	// to a confirmation height once it arrives.
	blockOfTxid map[chainhash.Hash]chainhash.Hash

	// rejectedBy tracks, per pending broadcast txid, which peer
	// addresses have sent a reject for it, so OnReject can detect the
	// two-thirds-of-ready-peers threshold of spec.md §4.4 Failure.
	rejectedBy map[chainhash.Hash]map[string]bool
}

// New returns an empty wallet for the network identified by versionByte
// (chaincfg.Params.PubKeyHashAddrID), persisting keys through store and
// reporting notifications on evs.
func New(store *Store, versionByte byte, chain HeightLookup, bcaster Broadcaster, evs events.WalletEvents) *Wallet {
	return &Wallet{
		keys:        make(map[string]*Key),
		versionByte: versionByte,
		ledger:      NewLedger(),
		store:       store,
		chain:       chain,
		bcaster:     bcaster,
		events:      evs,
		blockOfTxid: make(map[chainhash.Hash]chainhash.Hash),
		rejectedBy:  make(map[chainhash.Hash]map[string]bool),
	}
}

// SetBroadcaster wires the peer group the wallet submits outbound
// transactions through. Callers typically construct the Wallet before
// the peer group (whose callbacks reference the wallet), then call this
// once the peer group exists.
func (w *Wallet) SetBroadcaster(b Broadcaster) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bcaster = b
}

// SetWorkerPool wires the bounded worker pool submit_tx hands signing
// jobs to, so ECDSA signing runs off whatever goroutine called submit_tx
// (spec.md §4.5).
func (w *Wallet) SetWorkerPool(pool *workerpool.Pool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pool = pool
}

// SetTxDB wires the persistent UTXO store Load and every ledger mutation
// write through, so a restart recovers known outputs without rescanning
// from genesis (spec.md §6 "txdb").
func (w *Wallet) SetTxDB(db *TxDB) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.txdb = db
}

// Load reads persisted keys from the store and, if a TxDB is wired,
// every previously observed output back into the in-memory ledger.
func (w *Wallet) Load() error {
	keys, err := w.store.Load()
	if err != nil {
		return err
	}
	w.mu.Lock()
	for _, k := range keys {
		w.keys[hash160Key(k.Hash160())] = k
	}
	txdb := w.txdb
	w.mu.Unlock()

	if txdb == nil {
		return nil
	}
	outs, err := txdb.LoadAll()
	if err != nil {
		return fmt.Errorf("wallet: load txdb: %w", err)
	}
	for _, o := range outs {
		w.ledger.AddOutput(o)
	}
	return nil
}

// persistOutput writes o to the wired TxDB, if any. A failure here is
// logged rather than propagated: the in-memory ledger (the source of
// truth for the running process) already has the update, and a future
// restart that misses this one persisted write re-learns it from peers.
func (w *Wallet) persistOutput(o *Output) {
	w.mu.RLock()
	txdb := w.txdb
	w.mu.RUnlock()
	if txdb == nil {
		return
	}
	if err := txdb.Put(o); err != nil {
		log.Warnf("wallet: txdb persist of %s:%d failed: %v", o.Txid, o.Vout, err)
	}
}

// Save persists the current key set.
func (w *Wallet) Save() error {
	w.mu.RLock()
	keys := make([]*Key, 0, len(w.keys))
	for _, k := range w.keys {
		keys = append(keys, k)
	}
	w.mu.RUnlock()
	return w.store.Save(keys, w.versionByte)
}

// NewAddress generates a fresh key under label, persists it, and returns
// its Base58Check address (spec.md §4.4 "Address derivation").
func (w *Wallet) NewAddress(label string) (string, error) {
	k, err := w.newKey(label)
	if err != nil {
		return "", err
	}
	return k.Address(w.versionByte), nil
}

// newKey generates and persists a fresh key, returning the Key itself
// (NewAddress wraps this for callers that only need the address string).
func (w *Wallet) newKey(label string) (*Key, error) {
	k, err := NewRandomKey(label)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.keys[hash160Key(k.Hash160())] = k
	w.mu.Unlock()
	if err := w.Save(); err != nil {
		return nil, err
	}
	return k, nil
}

// WatchedScripts returns the set of scriptPubKeys the wallet currently
// watches for, used to build (or rebuild) the Bloom filter given to the
// peer group via SetFilter.
func (w *Wallet) WatchedScripts() [][]byte {
	w.mu.RLock()
	defer w.mu.RUnlock()
	scripts := make([][]byte, 0, len(w.keys))
	for _, k := range w.keys {
		scripts = append(scripts, k.PubKeyHashScript())
	}
	return scripts
}

func (w *Wallet) keyForHash160(h160 []byte) (*Key, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	k, ok := w.keys[hash160Key(h160)]
	return k, ok
}

func (w *Wallet) keyForScript(pkScript []byte) (*Key, bool) {
	h160, ok := ExtractPubKeyHash(pkScript)
	if !ok {
		return nil, false
	}
	return w.keyForHash160(h160)
}

func hash160Key(h160 []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(h160)*2)
	for i, b := range h160 {
		out[i*2] = hextable[b>>4]
		out[i*2+1] = hextable[b&0x0f]
	}
	return string(out)
}

// OnTx handles a tx message arriving from the peer group: it records any
// output paying a wallet address as a new (possibly unconfirmed) UTXO,
// marks any wallet-owned input it spends as spent, and fires
// OnNewObservation. If this tx was already announced as matched by a
// merkleblock, the output is recorded confirmed at that block's height.
func (w *Wallet) OnTx(tx *wire.MsgTx) {
	txid := tx.TxHash()

	for _, in := range tx.TxIn {
		w.ledger.MarkSpent(in.PreviousOutPoint, txid)
		if o, ok := w.ledger.Get(in.PreviousOutPoint); ok {
			w.persistOutput(o)
		}
	}

	matchedAny := false
	for i, out := range tx.TxOut {
		h160, ok := ExtractPubKeyHash(out.PkScript)
		if !ok {
			continue
		}
		if _, owned := w.keyForHash160(h160); !owned {
			continue
		}
		matchedAny = true
		o := &Output{
			Txid:     txid,
			Vout:     uint32(i),
			PkScript: out.PkScript,
			Value:    out.Value,
			Height:   -1,
		}
		w.ledger.AddOutput(o)
		w.persistOutput(o)
	}

	w.mu.Lock()
	blockHash, haveBlock := w.blockOfTxid[txid]
	if haveBlock {
		delete(w.blockOfTxid, txid)
	}
	w.mu.Unlock()

	if matchedAny {
		w.events.FireNewObservation(txid)
	}
	if haveBlock && w.chain != nil {
		if height, ok := w.chain.HeaderHeight(blockHash); ok {
			w.confirmTx(tx, txid, blockHash, height)
		}
	}

	if matchedAny || haveBlock {
		w.events.FireBalanceChange(w.Balance())
	}
}

func (w *Wallet) confirmTx(tx *wire.MsgTx, txid, blockHash chainhash.Hash, height int64) {
	for i := range tx.TxOut {
		op := wire.OutPoint{Hash: txid, Index: uint32(i)}
		if o, ok := w.ledger.Get(op); ok {
			w.ledger.SetConfirmed(op, blockHash, height)
			w.persistOutput(o)
		}
	}
	best := w.chain.BestHeight()
	w.events.FireConfirmationChange(txid, best-height+1)
}

// OnMerkleBlock handles a verified merkleblock from the peer group,
// remembering which txids it claims matched so the follow-up tx messages
// can be tied back to this block's height once they arrive.
func (w *Wallet) OnMerkleBlock(mb *wire.MsgMerkleBlock, matched []chainhash.Hash) {
	if len(matched) == 0 {
		return
	}
	blockHash := mb.Header.BlockHash()
	w.mu.Lock()
	for _, txid := range matched {
		w.blockOfTxid[txid] = blockHash
	}
	w.mu.Unlock()
}

// OnReject tracks a reject message against its txid, firing
// OnBroadcastFailure once at least two-thirds of the currently ready
// peers have rejected the same transaction (spec.md §4.4 Failure: "A
// broadcast rejected by reject messages from ≥⅔ of current peers is
// surfaced as failed").
func (w *Wallet) OnReject(p *peer.Peer, msg *wire.MsgReject) {
	if msg.Cmd != wire.CmdTx {
		return
	}

	w.mu.Lock()
	rejectors, ok := w.rejectedBy[msg.Hash]
	if !ok {
		rejectors = make(map[string]bool)
		w.rejectedBy[msg.Hash] = rejectors
	}
	rejectors[p.Addr()] = true
	count := len(rejectors)
	w.mu.Unlock()

	ready := 1
	if w.bcaster != nil {
		if n := w.bcaster.ReadyCount(); n > 0 {
			ready = n
		}
	}
	if count*3 >= ready*2 {
		w.mu.Lock()
		delete(w.rejectedBy, msg.Hash)
		w.mu.Unlock()
		w.events.FireBroadcastFailure(msg.Hash, msg.Reason)
	}
}

// Balance returns the confirmed (MinConfirmations deep) spendable balance.
func (w *Wallet) Balance() int64 {
	best := int64(0)
	if w.chain != nil {
		best = w.chain.BestHeight()
	}
	return w.ledger.Balance(best, MinConfirmations)
}

// UnconfirmedBalance returns the spendable balance including outputs
// that haven't yet been seen in a block.
func (w *Wallet) UnconfirmedBalance() int64 {
	return w.ledger.Balance(0, 0)
}

// ErrNotReady is returned by Send when the wallet has no broadcaster
// wired (e.g. no peers connected yet).
var ErrNotReady = errors.New("wallet: no broadcaster configured")

// Send builds, signs, and broadcasts a transaction paying payments at
// feeRate satoshis per kilobyte, sending change back to a freshly
// derived wallet address. sign performs the actual ECDSA signing
// (spec.md §4.5: callers normally route it through the worker pool via
// signWithPool, which is what SubmitTx does).
func (w *Wallet) Send(payments []PaymentRequest, feeRate int64, sign func(key *Key, hash []byte) []byte) (*wire.MsgTx, error) {
	if w.bcaster == nil {
		return nil, ErrNotReady
	}
	changeKey, err := w.newKey("change")
	if err != nil {
		return nil, err
	}

	tx, err := BuildTx(w.ledger, payments, changeKey.PubKeyHashScript(), feeRate)
	if err != nil {
		return nil, err
	}

	prevScripts := make([][]byte, len(tx.TxIn))
	for i, in := range tx.TxIn {
		prevOut, ok := w.ledger.Get(in.PreviousOutPoint)
		if !ok {
			return nil, errors.New("wallet: selected input vanished from ledger")
		}
		prevScripts[i] = prevOut.PkScript
	}

	if err := SignTx(tx, prevScripts, w.keyForScript, sign); err != nil {
		return nil, err
	}

	txid := tx.TxHash()
	for _, in := range tx.TxIn {
		w.ledger.MarkSpent(in.PreviousOutPoint, txid)
		if o, ok := w.ledger.Get(in.PreviousOutPoint); ok {
			w.persistOutput(o)
		}
	}
	for i, out := range tx.TxOut {
		if h160, ok := ExtractPubKeyHash(out.PkScript); ok {
			if _, owned := w.keyForHash160(h160); owned {
				o := &Output{
					Txid: txid, Vout: uint32(i),
					PkScript: out.PkScript, Value: out.Value, Height: -1,
				}
				w.ledger.AddOutput(o)
				w.persistOutput(o)
			}
		}
	}

	w.bcaster.Broadcast(tx)
	w.events.FireBalanceChange(w.Balance())
	return tx, nil
}

// signWithPool returns a sign closure that submits each ECDSA signing
// operation to pool and blocks for its result, keeping the actual
// elliptic-curve math off the caller's goroutine (spec.md §4.5 "CPU-heavy
// work ... handed to the worker pool"). Falls back to signing inline if
// no pool has been wired (e.g. in tests).
func (w *Wallet) signWithPool() func(key *Key, hash []byte) []byte {
	pool := w.pool
	if pool == nil {
		return func(key *Key, hash []byte) []byte {
			return bcrypto.Sign(key.Priv, hash)
		}
	}
	var jobID uint64
	return func(key *Key, hash []byte) []byte {
		jobID++
		v, err := pool.SubmitWait(jobID, func(ctx context.Context) (interface{}, error) {
			return bcrypto.Sign(key.Priv, hash), nil
		})
		if err != nil {
			return nil
		}
		return v.([]byte)
	}
}

// SubmitTx is the submit_tx operation of spec.md §6: decode recipient's
// Base58Check address, build and sign a transaction paying it
// amountSatoshis at feeRate satoshis per kilobyte (DefaultFeePerKB if
// feeRate is 0), broadcast it, and return its txid.
func (w *Wallet) SubmitTx(recipient string, amountSatoshis, feeRate int64) (chainhash.Hash, error) {
	payload, _, err := bcrypto.Base58CheckDecode(recipient)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("wallet: bad recipient address: %w", err)
	}
	if len(payload) != 20 {
		return chainhash.Hash{}, fmt.Errorf("wallet: recipient address does not decode to a 20-byte hash")
	}

	payments := []PaymentRequest{{PkScript: p2pkhScript(payload), Value: amountSatoshis}}
	tx, err := w.Send(payments, feeRate, w.signWithPool())
	if err != nil {
		return chainhash.Hash{}, err
	}
	return tx.TxHash(), nil
}

