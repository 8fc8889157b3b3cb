// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/bitc-go/bitc/internal/chainhash"
)

// maxTxInPerMessage and maxTxOutPerMessage bound the number of legacy
// transaction inputs/outputs this client will decode from an untrusted
// peer, derived from the 32 MiB payload ceiling and the minimum possible
// encoded size of an input/output.
const (
	maxTxInPerMessage  = (MaxMessagePayload / 41) + 1
	maxTxOutPerMessage = (MaxMessagePayload / 9) + 1
)

// SigHashAll is the only sighash type THE CORE's wallet produces, per
// spec.md §4.4 ("legacy sighash (SIGHASH_ALL)").
const SigHashAll uint32 = 1

// OutPoint identifies a single previous transaction output being spent.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// NewOutPoint returns a new outpoint for hash and index.
func NewOutPoint(hash *chainhash.Hash, index uint32) *OutPoint {
	return &OutPoint{Hash: *hash, Index: index}
}

func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.Hash, o.Index)
}

// TxIn is a legacy transaction input.
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript  []byte
	Sequence         uint32
}

// TxOut is a transaction output.
type TxOut struct {
	Value    int64
	PkScript []byte
}

// MsgTx is a legacy (pre-segwit) Bitcoin transaction, the only form THE
// CORE constructs or verifies (spec.md Non-goals excludes script execution
// beyond what signature verification requires).
type MsgTx struct {
	Version  int32
	TxIn     []*TxIn
	TxOut    []*TxOut
	LockTime uint32
}

func readOutPoint(r io.Reader, op *OutPoint) error {
	if err := readElement(r, &op.Hash); err != nil {
		return err
	}
	return readElement(r, &op.Index)
}

func writeOutPoint(w io.Writer, op *OutPoint) error {
	if err := writeElement(w, op.Hash); err != nil {
		return err
	}
	return writeElement(w, op.Index)
}

func readTxIn(r io.Reader, ti *TxIn) error {
	if err := readOutPoint(r, &ti.PreviousOutPoint); err != nil {
		return err
	}
	script, err := ReadVarBytes(r, MaxMessagePayload, "txin signature script")
	if err != nil {
		return err
	}
	ti.SignatureScript = script
	return readElement(r, &ti.Sequence)
}

func writeTxIn(w io.Writer, ti *TxIn) error {
	if err := writeOutPoint(w, &ti.PreviousOutPoint); err != nil {
		return err
	}
	if err := WriteVarBytes(w, ti.SignatureScript); err != nil {
		return err
	}
	return writeElement(w, ti.Sequence)
}

func readTxOut(r io.Reader, to *TxOut) error {
	if err := readElement(r, &to.Value); err != nil {
		return err
	}
	script, err := ReadVarBytes(r, MaxMessagePayload, "txout pk script")
	if err != nil {
		return err
	}
	to.PkScript = script
	return nil
}

func writeTxOut(w io.Writer, to *TxOut) error {
	if err := writeElement(w, to.Value); err != nil {
		return err
	}
	return WriteVarBytes(w, to.PkScript)
}

func (msg *MsgTx) BtcDecode(r io.Reader, pver uint32) error {
	if err := readElement(r, &msg.Version); err != nil {
		return err
	}
	inCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if inCount > maxTxInPerMessage {
		return messageError("MsgTx.BtcDecode", "too many input transactions to fit into max message size")
	}
	txIns := make([]*TxIn, 0, inCount)
	for i := uint64(0); i < inCount; i++ {
		ti := &TxIn{}
		if err := readTxIn(r, ti); err != nil {
			return err
		}
		txIns = append(txIns, ti)
	}
	msg.TxIn = txIns

	outCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if outCount > maxTxOutPerMessage {
		return messageError("MsgTx.BtcDecode", "too many output transactions to fit into max message size")
	}
	txOuts := make([]*TxOut, 0, outCount)
	for i := uint64(0); i < outCount; i++ {
		to := &TxOut{}
		if err := readTxOut(r, to); err != nil {
			return err
		}
		txOuts = append(txOuts, to)
	}
	msg.TxOut = txOuts

	return readElement(r, &msg.LockTime)
}

func (msg *MsgTx) BtcEncode(w io.Writer, pver uint32) error {
	if err := writeElement(w, msg.Version); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(msg.TxIn))); err != nil {
		return err
	}
	for _, ti := range msg.TxIn {
		if err := writeTxIn(w, ti); err != nil {
			return err
		}
	}
	if err := WriteVarInt(w, uint64(len(msg.TxOut))); err != nil {
		return err
	}
	for _, to := range msg.TxOut {
		if err := writeTxOut(w, to); err != nil {
			return err
		}
	}
	return writeElement(w, msg.LockTime)
}

func (msg *MsgTx) Command() string { return CmdTx }

func (msg *MsgTx) MaxPayloadLength(pver uint32) uint32 { return MaxMessagePayload }

// SerializeSize returns the number of bytes the serialized transaction
// occupies.
func (msg *MsgTx) SerializeSize() int {
	var buf bytes.Buffer
	_ = msg.BtcEncode(&buf, 0)
	return buf.Len()
}

// Bytes returns the legacy wire serialization of the transaction.
func (msg *MsgTx) Bytes() []byte {
	var buf bytes.Buffer
	_ = msg.BtcEncode(&buf, 0)
	return buf.Bytes()
}

// TxHash returns the double-SHA-256 identifier of the transaction.
func (msg *MsgTx) TxHash() chainhash.Hash {
	return chainhash.HashH(msg.Bytes())
}

// Copy returns a deep copy of msg, used when building the per-input
// sighash preimage (inputs other than the one being signed have their
// scriptSig blanked).
func (msg *MsgTx) Copy() *MsgTx {
	c := &MsgTx{Version: msg.Version, LockTime: msg.LockTime}
	for _, ti := range msg.TxIn {
		script := make([]byte, len(ti.SignatureScript))
		copy(script, ti.SignatureScript)
		c.TxIn = append(c.TxIn, &TxIn{
			PreviousOutPoint: ti.PreviousOutPoint,
			SignatureScript:  script,
			Sequence:         ti.Sequence,
		})
	}
	for _, to := range msg.TxOut {
		script := make([]byte, len(to.PkScript))
		copy(script, to.PkScript)
		c.TxOut = append(c.TxOut, &TxOut{Value: to.Value, PkScript: script})
	}
	return c
}

// AddTxIn adds an input to the transaction.
func (msg *MsgTx) AddTxIn(ti *TxIn) {
	msg.TxIn = append(msg.TxIn, ti)
}

// AddTxOut adds an output to the transaction.
func (msg *MsgTx) AddTxOut(to *TxOut) {
	msg.TxOut = append(msg.TxOut, to)
}

// NewMsgTx returns an empty transaction of the given protocol version.
func NewMsgTx(version int32) *MsgTx {
	return &MsgTx{Version: version}
}
