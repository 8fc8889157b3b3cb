// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"
)

// MaxAddrPerMsg is the maximum number of addresses in a single addr
// message, matching the limit the reference Bitcoin protocol enforces.
const MaxAddrPerMsg = 1000

// MsgAddr announces candidate peer endpoints for the address book.
type MsgAddr struct {
	AddrList []*NetAddress
}

func (msg *MsgAddr) BtcDecode(r io.Reader, pver uint32) error {
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > MaxAddrPerMsg {
		str := fmt.Sprintf("too many addresses for message [count %d, max %d]",
			count, MaxAddrPerMsg)
		return messageError("MsgAddr.BtcDecode", str)
	}
	addrList := make([]*NetAddress, 0, count)
	for i := uint64(0); i < count; i++ {
		na := &NetAddress{}
		if err := readNetAddress(r, na, true); err != nil {
			return err
		}
		addrList = append(addrList, na)
	}
	msg.AddrList = addrList
	return nil
}

func (msg *MsgAddr) BtcEncode(w io.Writer, pver uint32) error {
	if len(msg.AddrList) > MaxAddrPerMsg {
		str := fmt.Sprintf("too many addresses for message [count %d, max %d]",
			len(msg.AddrList), MaxAddrPerMsg)
		return messageError("MsgAddr.BtcEncode", str)
	}
	if err := WriteVarInt(w, uint64(len(msg.AddrList))); err != nil {
		return err
	}
	for _, na := range msg.AddrList {
		if err := writeNetAddress(w, na, true); err != nil {
			return err
		}
	}
	return nil
}

func (msg *MsgAddr) Command() string { return CmdAddr }

func (msg *MsgAddr) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(MaxAddrPerMsg)) + MaxAddrPerMsg*(maxNetAddressPayload+4)
}

// AddAddress appends na to the message, bounded by MaxAddrPerMsg.
func (msg *MsgAddr) AddAddress(na *NetAddress) error {
	if len(msg.AddrList)+1 > MaxAddrPerMsg {
		return messageError("MsgAddr.AddAddress", "too many addresses in message")
	}
	msg.AddrList = append(msg.AddrList, na)
	return nil
}

// NewMsgAddr returns an empty addr message ready to have addresses added.
func NewMsgAddr() *MsgAddr {
	return &MsgAddr{AddrList: make([]*NetAddress, 0, MaxAddrPerMsg)}
}
