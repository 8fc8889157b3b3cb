// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"testing"

	"github.com/bitc-go/bitc/internal/chainhash"
)

func TestVarIntRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 252, 253, 0xffff, 0x10000, 0xffffffff, 0x100000000} {
		var buf bytes.Buffer
		if err := WriteVarInt(&buf, v); err != nil {
			t.Fatalf("WriteVarInt(%d): %v", v, err)
		}
		if buf.Len() != VarIntSerializeSize(v) {
			t.Fatalf("wrote %d bytes for %d, VarIntSerializeSize says %d", buf.Len(), v, VarIntSerializeSize(v))
		}
		got, err := ReadVarInt(&buf)
		if err != nil {
			t.Fatalf("ReadVarInt(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip of %d produced %d", v, got)
		}
	}
}

func TestVarBytesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := []byte{1, 2, 3, 4, 5}
	if err := WriteVarBytes(&buf, want); err != nil {
		t.Fatalf("WriteVarBytes: %v", err)
	}
	got, err := ReadVarBytes(&buf, 1024, "test field")
	if err != nil {
		t.Fatalf("ReadVarBytes: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestVarBytesRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteVarInt(&buf, 1000)
	if _, err := ReadVarBytes(&buf, 10, "test field"); err == nil {
		t.Fatal("ReadVarBytes accepted a length over maxAllowed")
	}
}

func TestMsgTxEncodeDecodeRoundTrip(t *testing.T) {
	tx := NewMsgTx(1)
	var prevHash chainhash.Hash
	prevHash[0] = 7
	tx.AddTxIn(&TxIn{
		PreviousOutPoint: OutPoint{Hash: prevHash, Index: 0},
		SignatureScript:  []byte{0x01, 0x02},
		Sequence:         0xffffffff,
	})
	tx.AddTxOut(&TxOut{Value: 5000, PkScript: []byte{0x76, 0xa9}})

	var buf bytes.Buffer
	if err := tx.BtcEncode(&buf, 0); err != nil {
		t.Fatalf("BtcEncode: %v", err)
	}

	var decoded MsgTx
	if err := decoded.BtcDecode(&buf, 0); err != nil {
		t.Fatalf("BtcDecode: %v", err)
	}
	if decoded.Version != tx.Version || decoded.LockTime != tx.LockTime {
		t.Fatal("version/locktime did not round-trip")
	}
	if len(decoded.TxIn) != 1 || decoded.TxIn[0].PreviousOutPoint.Hash != prevHash {
		t.Fatal("txin did not round-trip")
	}
	if len(decoded.TxOut) != 1 || decoded.TxOut[0].Value != 5000 {
		t.Fatal("txout did not round-trip")
	}
	if decoded.TxHash() != tx.TxHash() {
		t.Fatal("TxHash differs between original and decoded transaction")
	}
}

func TestMsgTxCopyIsIndependent(t *testing.T) {
	tx := NewMsgTx(1)
	tx.AddTxIn(&TxIn{SignatureScript: []byte{0x01}})
	clone := tx.Copy()
	clone.TxIn[0].SignatureScript[0] = 0xff
	if tx.TxIn[0].SignatureScript[0] == 0xff {
		t.Fatal("Copy shares backing storage with the original")
	}
}

func TestWriteReadMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	ping := &MsgPing{Nonce: 123456789}
	if _, err := WriteMessageN(&buf, ping, 0, TestNet3); err != nil {
		t.Fatalf("WriteMessageN: %v", err)
	}

	_, msg, _, err := ReadMessageN(&buf, 0, TestNet3)
	if err != nil {
		t.Fatalf("ReadMessageN: %v", err)
	}
	got, ok := msg.(*MsgPing)
	if !ok {
		t.Fatalf("decoded message type = %T, want *MsgPing", msg)
	}
	if got.Nonce != ping.Nonce {
		t.Fatalf("Nonce = %d, want %d", got.Nonce, ping.Nonce)
	}
}

func TestReadMessageRejectsWrongNetwork(t *testing.T) {
	var buf bytes.Buffer
	if _, err := WriteMessageN(&buf, &MsgPing{Nonce: 1}, 0, MainNet); err != nil {
		t.Fatalf("WriteMessageN: %v", err)
	}
	if _, _, _, err := ReadMessageN(&buf, 0, TestNet3); err == nil {
		t.Fatal("ReadMessageN accepted a message framed for the wrong network")
	}
}

func TestReadMessageRejectsCorruptedChecksum(t *testing.T) {
	var buf bytes.Buffer
	if _, err := WriteMessageN(&buf, &MsgPing{Nonce: 1}, 0, TestNet3); err != nil {
		t.Fatalf("WriteMessageN: %v", err)
	}
	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xff // corrupt the last payload byte without touching the header
	if _, _, _, err := ReadMessageN(bytes.NewReader(raw), 0, TestNet3); err == nil {
		t.Fatal("ReadMessageN accepted a message with a corrupted payload")
	}
}

func TestBitcoinNetString(t *testing.T) {
	if MainNet.String() != "mainnet" {
		t.Fatalf("MainNet.String() = %q, want mainnet", MainNet.String())
	}
	if TestNet3.String() != "testnet3" {
		t.Fatalf("TestNet3.String() = %q, want testnet3", TestNet3.String())
	}
}
