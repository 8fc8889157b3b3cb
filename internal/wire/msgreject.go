// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/bitc-go/bitc/internal/chainhash"
)

// RejectCode represents a numeric value by which a remote peer indicates
// why a message was rejected.
type RejectCode uint8

// Reject code values used by the reference protocol.
const (
	RejectMalformed       RejectCode = 0x01
	RejectInvalid         RejectCode = 0x10
	RejectObsolete        RejectCode = 0x11
	RejectDuplicate       RejectCode = 0x12
	RejectNonstandard     RejectCode = 0x40
	RejectDust            RejectCode = 0x41
	RejectInsufficientFee RejectCode = 0x42
	RejectCheckpoint      RejectCode = 0x43
)

// MsgReject tells the sender why one of its previous messages was
// rejected; spec.md §4.4 uses this to detect a broadcast tx rejected by a
// majority of peers.
type MsgReject struct {
	Cmd    string
	Code   RejectCode
	Reason string
	Hash   chainhash.Hash
}

func (msg *MsgReject) BtcDecode(r io.Reader, pver uint32) error {
	cmd, err := ReadVarString(r, CommandSize)
	if err != nil {
		return err
	}
	msg.Cmd = cmd
	var code uint8
	if err := readElement(r, &code); err != nil {
		return err
	}
	msg.Code = RejectCode(code)
	reason, err := ReadVarString(r, 256)
	if err != nil {
		return err
	}
	msg.Reason = reason
	if msg.Cmd == CmdBlock || msg.Cmd == CmdTx {
		if err := readElement(r, &msg.Hash); err != nil {
			return err
		}
	}
	return nil
}

func (msg *MsgReject) BtcEncode(w io.Writer, pver uint32) error {
	if err := WriteVarString(w, msg.Cmd); err != nil {
		return err
	}
	if err := writeElement(w, uint8(msg.Code)); err != nil {
		return err
	}
	if err := WriteVarString(w, msg.Reason); err != nil {
		return err
	}
	if msg.Cmd == CmdBlock || msg.Cmd == CmdTx {
		return writeElement(w, msg.Hash)
	}
	return nil
}

func (msg *MsgReject) Command() string { return CmdReject }

func (msg *MsgReject) MaxPayloadLength(pver uint32) uint32 {
	return uint32(CommandSize) + 1 + 256 + chainhash.HashSize + 8
}
