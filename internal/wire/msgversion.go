// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MaxUserAgentLen is the maximum allowed length for the user agent field
// carried in a version message.
const MaxUserAgentLen = 256

// MsgVersion implements the version handshake message.
type MsgVersion struct {
	ProtocolVersion int32
	Services        ServiceFlag
	Timestamp       int64
	AddrRecv        NetAddress
	AddrFrom        NetAddress
	Nonce           uint64
	UserAgent       string
	LastBlock       int32
	DisableRelayTx  bool
}

func (msg *MsgVersion) BtcDecode(r io.Reader, pver uint32) error {
	if err := readElement(r, &msg.ProtocolVersion); err != nil {
		return err
	}
	var services uint64
	if err := readElement(r, &services); err != nil {
		return err
	}
	msg.Services = ServiceFlag(services)
	if err := readElement(r, &msg.Timestamp); err != nil {
		return err
	}
	if err := readNetAddress(r, &msg.AddrRecv, false); err != nil {
		return err
	}
	if err := readNetAddress(r, &msg.AddrFrom, false); err != nil {
		return err
	}
	if err := readElement(r, &msg.Nonce); err != nil {
		return err
	}
	ua, err := ReadVarString(r, MaxUserAgentLen)
	if err != nil {
		return err
	}
	msg.UserAgent = ua
	if err := readElement(r, &msg.LastBlock); err != nil {
		return err
	}
	// RelayTx byte is optional on older peers; absence means relay on.
	var relay bool
	if err := readElement(r, &relay); err == nil {
		msg.DisableRelayTx = !relay
	} else if err != io.EOF {
		return err
	}
	return nil
}

func (msg *MsgVersion) BtcEncode(w io.Writer, pver uint32) error {
	if err := writeElement(w, msg.ProtocolVersion); err != nil {
		return err
	}
	if err := writeElement(w, uint64(msg.Services)); err != nil {
		return err
	}
	if err := writeElement(w, msg.Timestamp); err != nil {
		return err
	}
	if err := writeNetAddress(w, &msg.AddrRecv, false); err != nil {
		return err
	}
	if err := writeNetAddress(w, &msg.AddrFrom, false); err != nil {
		return err
	}
	if err := writeElement(w, msg.Nonce); err != nil {
		return err
	}
	if err := WriteVarString(w, msg.UserAgent); err != nil {
		return err
	}
	if err := writeElement(w, msg.LastBlock); err != nil {
		return err
	}
	return writeElement(w, !msg.DisableRelayTx)
}

func (msg *MsgVersion) Command() string { return CmdVersion }

func (msg *MsgVersion) MaxPayloadLength(pver uint32) uint32 {
	return 4 + 8 + 8 + maxNetAddressPayload*2 + 8 + (MaxUserAgentLen + 9) + 4 + 1
}

// MsgVerAck acknowledges a version message; it carries no payload.
type MsgVerAck struct{}

func (msg *MsgVerAck) BtcDecode(r io.Reader, pver uint32) error { return nil }
func (msg *MsgVerAck) BtcEncode(w io.Writer, pver uint32) error { return nil }
func (msg *MsgVerAck) Command() string                          { return CmdVerAck }
func (msg *MsgVerAck) MaxPayloadLength(pver uint32) uint32       { return 0 }

// MsgGetAddr requests known peer addresses; it carries no payload.
type MsgGetAddr struct{}

func (msg *MsgGetAddr) BtcDecode(r io.Reader, pver uint32) error { return nil }
func (msg *MsgGetAddr) BtcEncode(w io.Writer, pver uint32) error { return nil }
func (msg *MsgGetAddr) Command() string                          { return CmdGetAddr }
func (msg *MsgGetAddr) MaxPayloadLength(pver uint32) uint32       { return 0 }

// MsgSendHeaders requests that new blocks be announced via headers
// messages rather than inv; it carries no payload.
type MsgSendHeaders struct{}

func (msg *MsgSendHeaders) BtcDecode(r io.Reader, pver uint32) error { return nil }
func (msg *MsgSendHeaders) BtcEncode(w io.Writer, pver uint32) error { return nil }
func (msg *MsgSendHeaders) Command() string                          { return CmdSendHeaders }
func (msg *MsgSendHeaders) MaxPayloadLength(pver uint32) uint32       { return 0 }
