// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"

	"github.com/bitc-go/bitc/internal/chainhash"
)

// InvType identifies the kind of object an inventory vector refers to.
type InvType uint32

const (
	// InvTypeError is an unrecognized inventory type.
	InvTypeError InvType = 0
	// InvTypeTx identifies an unconfirmed transaction.
	InvTypeTx InvType = 1
	// InvTypeBlock identifies a full block.
	InvTypeBlock InvType = 2
	// InvTypeFilteredBlock requests a merkleblock instead of a full block,
	// used for Bloom-filtered SPV sync (spec.md §4.3).
	InvTypeFilteredBlock InvType = 3
)

func (t InvType) String() string {
	switch t {
	case InvTypeTx:
		return "MSG_TX"
	case InvTypeBlock:
		return "MSG_BLOCK"
	case InvTypeFilteredBlock:
		return "MSG_FILTERED_BLOCK"
	default:
		return fmt.Sprintf("Unknown InvType (%d)", uint32(t))
	}
}

// InvVect is a single inventory vector: a type tag plus the hash it refers
// to.
type InvVect struct {
	Type InvType
	Hash chainhash.Hash
}

// maxInvPerMsg is the maximum count of inventory vectors per inv/getdata/
// notfound message.
const maxInvPerMsg = 50000

// invVectSize is the wire size of a single InvVect: 4-byte type + 32-byte hash.
const invVectSize = 4 + chainhash.HashSize

func readInvVect(r io.Reader, iv *InvVect) error {
	var t uint32
	if err := readElement(r, &t); err != nil {
		return err
	}
	iv.Type = InvType(t)
	return readElement(r, &iv.Hash)
}

func writeInvVect(w io.Writer, iv *InvVect) error {
	if err := writeElement(w, uint32(iv.Type)); err != nil {
		return err
	}
	return writeElement(w, iv.Hash)
}

func readInvList(r io.Reader) ([]*InvVect, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if count > maxInvPerMsg {
		str := fmt.Sprintf("too many inventory vectors [count %d, max %d]",
			count, maxInvPerMsg)
		return nil, messageError("readInvList", str)
	}
	list := make([]*InvVect, 0, count)
	for i := uint64(0); i < count; i++ {
		iv := &InvVect{}
		if err := readInvVect(r, iv); err != nil {
			return nil, err
		}
		list = append(list, iv)
	}
	return list, nil
}

func writeInvList(w io.Writer, list []*InvVect) error {
	if len(list) > maxInvPerMsg {
		str := fmt.Sprintf("too many inventory vectors [count %d, max %d]",
			len(list), maxInvPerMsg)
		return messageError("writeInvList", str)
	}
	if err := WriteVarInt(w, uint64(len(list))); err != nil {
		return err
	}
	for _, iv := range list {
		if err := writeInvVect(w, iv); err != nil {
			return err
		}
	}
	return nil
}

// MsgInv announces objects a peer has available; the receiver decides
// which to request via getdata.
type MsgInv struct {
	InvList []*InvVect
}

func (msg *MsgInv) BtcDecode(r io.Reader, pver uint32) error {
	list, err := readInvList(r)
	if err != nil {
		return err
	}
	msg.InvList = list
	return nil
}

func (msg *MsgInv) BtcEncode(w io.Writer, pver uint32) error {
	return writeInvList(w, msg.InvList)
}

func (msg *MsgInv) Command() string { return CmdInv }

func (msg *MsgInv) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(maxInvPerMsg)) + maxInvPerMsg*invVectSize
}

// AddInvVect appends iv, matching btcd/dcrd's helper style.
func (msg *MsgInv) AddInvVect(iv *InvVect) error {
	if len(msg.InvList)+1 > maxInvPerMsg {
		return messageError("MsgInv.AddInvVect", "too many inventory vectors in message")
	}
	msg.InvList = append(msg.InvList, iv)
	return nil
}

// MsgGetData requests the full objects named by InvList: MSG_TX for an
// unconfirmed transaction, MSG_FILTERED_BLOCK for a merkleblock.
type MsgGetData struct {
	InvList []*InvVect
}

func (msg *MsgGetData) BtcDecode(r io.Reader, pver uint32) error {
	list, err := readInvList(r)
	if err != nil {
		return err
	}
	msg.InvList = list
	return nil
}

func (msg *MsgGetData) BtcEncode(w io.Writer, pver uint32) error {
	return writeInvList(w, msg.InvList)
}

func (msg *MsgGetData) Command() string { return CmdGetData }

func (msg *MsgGetData) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(maxInvPerMsg)) + maxInvPerMsg*invVectSize
}

// AddInvVect appends iv to the getdata request.
func (msg *MsgGetData) AddInvVect(iv *InvVect) error {
	if len(msg.InvList)+1 > maxInvPerMsg {
		return messageError("MsgGetData.AddInvVect", "too many inventory vectors in message")
	}
	msg.InvList = append(msg.InvList, iv)
	return nil
}

// NewMsgGetData returns an empty getdata message.
func NewMsgGetData() *MsgGetData {
	return &MsgGetData{InvList: make([]*InvVect, 0, 8)}
}

// MsgNotFound is sent in reply to getdata for objects the peer no longer
// has.
type MsgNotFound struct {
	InvList []*InvVect
}

func (msg *MsgNotFound) BtcDecode(r io.Reader, pver uint32) error {
	list, err := readInvList(r)
	if err != nil {
		return err
	}
	msg.InvList = list
	return nil
}

func (msg *MsgNotFound) BtcEncode(w io.Writer, pver uint32) error {
	return writeInvList(w, msg.InvList)
}

func (msg *MsgNotFound) Command() string { return CmdNotFound }

func (msg *MsgNotFound) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(maxInvPerMsg)) + maxInvPerMsg*invVectSize
}
