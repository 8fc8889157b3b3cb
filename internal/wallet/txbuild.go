// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"errors"
	"sort"

	"github.com/bitc-go/bitc/internal/bcrypto"
	"github.com/bitc-go/bitc/internal/wire"
)

// maxTxInSequenceNum is the default, non-RBF-signaling sequence number
// every input BuildTx creates carries.
const maxTxInSequenceNum = 0xffffffff

// DustThreshold is the minimum value (in satoshis) a change output may
// carry; a smaller change amount is folded into the fee instead (spec.md
// §4.4 "546-satoshi dust threshold").
const DustThreshold = 546

// DefaultFeePerKB is the flat fee rate THE CORE falls back to when a
// caller of submit_tx doesn't name one, since it has no access to a fee
// estimator over the SPV interface (spec.md §4.4 "a fixed fee rate, no
// fee estimation"; spec.md §6 submit_tx's fee_rate parameter overrides
// this per call).
const DefaultFeePerKB int64 = 1000

var (
	// ErrInsufficientFunds is returned when the ledger's spendable
	// outputs can't cover amount plus fee.
	ErrInsufficientFunds = errors.New("wallet: insufficient funds")
	// ErrNoOutputs is returned when BuildTx is asked to pay nothing.
	ErrNoOutputs = errors.New("wallet: no outputs requested")
)

// PaymentRequest is one (scriptPubKey, value) pair BuildTx should pay.
type PaymentRequest struct {
	PkScript []byte
	Value    int64
}

// selectCoins performs greedy largest-first selection over spendable
// (spec.md §4.4 "greedy largest-first coin selection"), returning enough
// inputs to cover target and the sum selected.
func selectCoins(spendable []*Output, target int64) ([]*Output, int64, error) {
	sorted := make([]*Output, len(spendable))
	copy(sorted, spendable)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value > sorted[j].Value })

	var chosen []*Output
	var sum int64
	for _, o := range sorted {
		if sum >= target {
			break
		}
		chosen = append(chosen, o)
		sum += o.Value
	}
	if sum < target {
		return nil, 0, ErrInsufficientFunds
	}
	return chosen, sum, nil
}

// estimateSize estimates a legacy transaction's serialized size for fee
// calculation, using the standard per-input/per-output byte budgets for a
// P2PKH input's scriptSig (signature + pubkey push) rather than a real
// serialization pass.
func estimateSize(nIn, nOut int) int64 {
	const (
		baseSize  = 10 // version + varint in/out counts + locktime, rounded
		inputSize = 148
		outSize   = 34
	)
	return int64(baseSize + nIn*inputSize + nOut*outSize)
}

// BuildTx assembles an unsigned legacy transaction paying payments from
// ledger's spendable outputs, adding a change output back to changeScript
// if the leftover exceeds DustThreshold (spec.md §4.4 "Outbound
// transaction construction"). The returned tx has its TxIn.SignatureScript
// fields empty; call SignTx to finish it.
func BuildTx(ledger *Ledger, payments []PaymentRequest, changeScript []byte, feePerKB int64) (*wire.MsgTx, error) {
	if len(payments) == 0 {
		return nil, ErrNoOutputs
	}
	if feePerKB <= 0 {
		feePerKB = DefaultFeePerKB
	}
	var requested int64
	for _, p := range payments {
		requested += p.Value
	}

	spendable := ledger.Spendable()

	// First pass: estimate the fee assuming no change output, then
	// reselect with the change output counted in case a change output
	// ends up needed (spec.md's fixed-fee-rate design tolerates this
	// two-pass approximation rather than an iterative fee/size solver).
	target := requested + estimateFee(len(spendable), len(payments), feePerKB)
	chosen, sum, err := selectCoins(spendable, target)
	if err != nil {
		return nil, err
	}

	fee := estimateFee(len(chosen), len(payments)+1, feePerKB)
	change := sum - requested - fee
	if change < DustThreshold {
		// Below the dust threshold: fold it into the fee instead of
		// creating a change output (spec.md §4.4).
		fee = estimateFee(len(chosen), len(payments), feePerKB)
		if sum-requested-fee < 0 {
			// The narrower (no-change) fee still isn't covered by what
			// was selected; reselect against the new target.
			chosen, sum, err = selectCoins(spendable, requested+fee)
			if err != nil {
				return nil, err
			}
		}
		change = 0
	}

	tx := wire.NewMsgTx(1)
	for _, o := range chosen {
		tx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: wire.OutPoint{Hash: o.Txid, Index: o.Vout},
			Sequence:         maxTxInSequenceNum,
		})
	}
	for _, p := range payments {
		tx.AddTxOut(&wire.TxOut{Value: p.Value, PkScript: p.PkScript})
	}
	if change > 0 {
		tx.AddTxOut(&wire.TxOut{Value: change, PkScript: changeScript})
	}
	return tx, nil
}

func estimateFee(nIn, nOut int, feePerKB int64) int64 {
	size := estimateSize(nIn, nOut)
	return (size * feePerKB) / 1000
}

// calcLegacySigHash computes the legacy (pre-segwit) SIGHASH_ALL digest
// for input idx of tx spending a previous output carrying prevScript,
// per the original Bitcoin signature-hash algorithm: every other input's
// script is blanked, the signing input's script is set to prevScript, and
// the sighash type is appended before double-SHA-256 (spec.md Non-goals
// excludes a general script interpreter, so only the ALL case THE CORE's
// wallet produces is implemented).
func calcLegacySigHash(tx *wire.MsgTx, idx int, prevScript []byte, hashType uint32) ([]byte, error) {
	if idx < 0 || idx >= len(tx.TxIn) {
		return nil, errors.New("wallet: sighash index out of range")
	}
	sigTx := tx.Copy()
	for i := range sigTx.TxIn {
		if i == idx {
			sigTx.TxIn[i].SignatureScript = prevScript
		} else {
			sigTx.TxIn[i].SignatureScript = nil
		}
	}

	var buf bytes.Buffer
	if err := sigTx.BtcEncode(&buf, 0); err != nil {
		return nil, err
	}
	var hashTypeBuf [4]byte
	hashTypeBuf[0] = byte(hashType)
	hashTypeBuf[1] = byte(hashType >> 8)
	hashTypeBuf[2] = byte(hashType >> 16)
	hashTypeBuf[3] = byte(hashType >> 24)
	buf.Write(hashTypeBuf[:])

	sum := bcrypto.DoubleSha256(buf.Bytes())
	return sum[:], nil
}

// SignTx signs every input of tx in place, looking up each input's prior
// scriptPubKey and signing key through keyForScript. sign performs the
// actual ECDSA signing operation; callers normally pass a closure that
// submits to the worker pool and blocks for the result, so signature
// generation runs off the reactor goroutine (spec.md §4.5 "CPU-heavy
// work ... handed to the worker pool").
func SignTx(tx *wire.MsgTx, prevScripts [][]byte, keyForScript func(pkScript []byte) (*Key, bool), sign func(key *Key, hash []byte) []byte) error {
	for i := range tx.TxIn {
		prevScript := prevScripts[i]
		key, ok := keyForScript(prevScript)
		if !ok {
			return errors.New("wallet: no signing key for input")
		}
		if key.Priv == nil {
			return ErrWatchOnly
		}
		hash, err := calcLegacySigHash(tx, i, prevScript, wire.SigHashAll)
		if err != nil {
			return err
		}
		derSig := sign(key, hash)
		sigScript := buildSigScript(derSig, wire.SigHashAll, key.Pub.SerializeCompressed())
		tx.TxIn[i].SignatureScript = sigScript
	}
	return nil
}

func buildSigScript(derSig []byte, hashType uint32, compressedPub []byte) []byte {
	sigWithType := append(append([]byte{}, derSig...), byte(hashType))
	script := make([]byte, 0, 2+len(sigWithType)+1+len(compressedPub))
	script = append(script, byte(len(sigWithType)))
	script = append(script, sigWithType...)
	script = append(script, byte(len(compressedPub)))
	script = append(script, compressedPub...)
	return script
}
