// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wire implements the Bitcoin peer-to-peer wire protocol: message
// framing, the variable-length integer/string encodings, and the message
// types a THE CORE peer exchanges (spec.md §4.2).
package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/bitc-go/bitc/internal/bcrypto"
)

// BitcoinNet is the magic number identifying a Bitcoin network.
type BitcoinNet uint32

const (
	// MainNet is the main Bitcoin network magic.
	MainNet BitcoinNet = 0xd9b4bef9
	// TestNet3 is the testnet3 magic.
	TestNet3 BitcoinNet = 0x0709110b
)

func (n BitcoinNet) String() string {
	switch n {
	case MainNet:
		return "mainnet"
	case TestNet3:
		return "testnet3"
	default:
		return fmt.Sprintf("unknown net 0x%08x", uint32(n))
	}
}

// ServiceFlag identifies the services advertised by a peer.
type ServiceFlag uint64

const (
	// SFNodeNetwork indicates a peer can serve full blocks.
	SFNodeNetwork ServiceFlag = 1 << 0
	// SFNodeBloom indicates a peer supports filterload/filteradd/filterclear.
	SFNodeBloom ServiceFlag = 1 << 2
)

// Command strings, NUL-padded to 12 bytes on the wire.
const (
	CmdVersion     = "version"
	CmdVerAck      = "verack"
	CmdPing        = "ping"
	CmdPong        = "pong"
	CmdAddr        = "addr"
	CmdGetAddr     = "getaddr"
	CmdInv         = "inv"
	CmdGetData     = "getdata"
	CmdNotFound    = "notfound"
	CmdGetHeaders  = "getheaders"
	CmdHeaders     = "headers"
	CmdTx          = "tx"
	CmdBlock       = "block"
	CmdMerkleBlock = "merkleblock"
	CmdFilterLoad  = "filterload"
	CmdFilterAdd   = "filteradd"
	CmdFilterClear = "filterclear"
	CmdReject      = "reject"
	CmdSendHeaders = "sendheaders"
)

// MaxMessagePayload is the maximum bytes a message payload can be, per
// spec.md §4.2 ("Maximum payload is 32 MiB; larger -> disconnect").
const MaxMessagePayload = 32 * 1024 * 1024

// MessageHeaderSize is the 24-byte size of a message frame header:
// 4-byte magic + 12-byte command + 4-byte length + 4-byte checksum.
const MessageHeaderSize = 24

// CommandSize is the fixed, NUL-padded size of the command field.
const CommandSize = 12

// Message is implemented by every p2p message type.
type Message interface {
	BtcDecode(r io.Reader, pver uint32) error
	BtcEncode(w io.Writer, pver uint32) error
	Command() string
	MaxPayloadLength(pver uint32) uint32
}

// ErrUnknownCommand is the sentinel ReadMessageN returns, unwrapped, for
// commands not in the supported set; per spec.md §4.2 these are logged and discarded,
// never fatal to the connection.
var ErrUnknownCommand = fmt.Errorf("unknown command")

// makeEmptyMessage constructs the zero value for a known command string.
func makeEmptyMessage(command string) (Message, error) {
	switch command {
	case CmdVersion:
		return &MsgVersion{}, nil
	case CmdVerAck:
		return &MsgVerAck{}, nil
	case CmdPing:
		return &MsgPing{}, nil
	case CmdPong:
		return &MsgPong{}, nil
	case CmdAddr:
		return &MsgAddr{}, nil
	case CmdGetAddr:
		return &MsgGetAddr{}, nil
	case CmdInv:
		return &MsgInv{}, nil
	case CmdGetData:
		return &MsgGetData{}, nil
	case CmdNotFound:
		return &MsgNotFound{}, nil
	case CmdGetHeaders:
		return &MsgGetHeaders{}, nil
	case CmdHeaders:
		return &MsgHeaders{}, nil
	case CmdTx:
		return &MsgTx{}, nil
	case CmdBlock:
		return &MsgBlock{}, nil
	case CmdMerkleBlock:
		return &MsgMerkleBlock{}, nil
	case CmdFilterLoad:
		return &MsgFilterLoad{}, nil
	case CmdFilterAdd:
		return &MsgFilterAdd{}, nil
	case CmdFilterClear:
		return &MsgFilterClear{}, nil
	case CmdReject:
		return &MsgReject{}, nil
	case CmdSendHeaders:
		return &MsgSendHeaders{}, nil
	default:
		return nil, ErrUnknownCommand
	}
}

// messageHeader is the 24-byte frame prefix preceding every payload.
type messageHeader struct {
	magic    BitcoinNet
	command  string
	length   uint32
	checksum [4]byte
}

func readMessageHeader(r io.Reader) (*messageHeader, int, error) {
	var hb [MessageHeaderSize]byte
	n, err := io.ReadFull(r, hb[:])
	if err != nil {
		return nil, n, err
	}
	hdr := &messageHeader{}
	hdr.magic = BitcoinNet(littleEndian.Uint32(hb[0:4]))
	var cmd [CommandSize]byte
	copy(cmd[:], hb[4:16])
	hdr.command = string(bytes.TrimRight(cmd[:], "\x00"))
	hdr.length = littleEndian.Uint32(hb[16:20])
	copy(hdr.checksum[:], hb[20:24])
	return hdr, n, nil
}

func writeMessageHeader(w io.Writer, net BitcoinNet, command string, payload []byte) (int, error) {
	var buf [MessageHeaderSize]byte
	littleEndian.PutUint32(buf[0:4], uint32(net))
	var cmd [CommandSize]byte
	copy(cmd[:], command)
	copy(buf[4:16], cmd[:])
	littleEndian.PutUint32(buf[16:20], uint32(len(payload)))
	chk := bcrypto.DoubleSha256(payload)
	copy(buf[20:24], chk[:4])
	return w.Write(buf[:])
}

// WriteMessageN writes msg to w as a complete framed message for the given
// network and protocol version, returning the number of bytes written.
func WriteMessageN(w io.Writer, msg Message, pver uint32, net BitcoinNet) (int, error) {
	var payloadBuf bytes.Buffer
	if err := msg.BtcEncode(&payloadBuf, pver); err != nil {
		return 0, err
	}
	payload := payloadBuf.Bytes()
	lenp := uint32(len(payload))
	if lenp > MaxMessagePayload {
		str := fmt.Sprintf("message payload is too large - encoded "+
			"%d bytes, but maximum message payload is %d bytes",
			lenp, MaxMessagePayload)
		return 0, messageError("WriteMessage", str)
	}
	if mpl := msg.MaxPayloadLength(pver); lenp > mpl {
		str := fmt.Sprintf("message payload is too large - encoded "+
			"%d bytes, but maximum payload size for messages of "+
			"type [%s] is %d", lenp, msg.Command(), mpl)
		return 0, messageError("WriteMessage", str)
	}

	n, err := writeMessageHeader(w, net, msg.Command(), payload)
	if err != nil {
		return n, err
	}
	n2, err := w.Write(payload)
	return n + n2, err
}

// ReadMessageN reads one complete framed message from r, disconnect-worthy
// errors (bad magic, bad checksum, oversize payload) are returned as
// *MessageError so the caller can distinguish them from I/O errors; an
// unknown command yields ErrUnknownCommand alongside the raw payload, with
// the whole frame already consumed, so the caller can log-and-discard per
// spec.md §4.2.
func ReadMessageN(r io.Reader, pver uint32, net BitcoinNet) (int, Message, []byte, error) {
	totalBytes := 0
	hdr, n, err := readMessageHeader(r)
	totalBytes += n
	if err != nil {
		return totalBytes, nil, nil, err
	}
	if hdr.magic != net {
		str := fmt.Sprintf("message from other network [%s]", hdr.magic)
		return totalBytes, nil, nil, messageError("ReadMessage", str)
	}
	if !isValidCommand(hdr.command) {
		str := fmt.Sprintf("invalid command [%q]", hdr.command)
		return totalBytes, nil, nil, messageError("ReadMessage", str)
	}
	if hdr.length > MaxMessagePayload {
		str := fmt.Sprintf("message payload is too large - header "+
			"indicates %d bytes, but max message payload is %d bytes",
			hdr.length, MaxMessagePayload)
		return totalBytes, nil, nil, messageError("ReadMessage", str)
	}

	payload := make([]byte, hdr.length)
	n, err = io.ReadFull(r, payload)
	totalBytes += n
	if err != nil {
		return totalBytes, nil, nil, err
	}

	checksum := bcrypto.DoubleSha256(payload)
	if !bytes.Equal(checksum[:4], hdr.checksum[:]) {
		str := fmt.Sprintf("payload checksum failed - header "+
			"indicates %x, but actual checksum is %x", hdr.checksum, checksum[:4])
		return totalBytes, nil, nil, messageError("ReadMessage", str)
	}

	msg, err := makeEmptyMessage(hdr.command)
	if err != nil {
		return totalBytes, nil, payload, err
	}
	if mpl := msg.MaxPayloadLength(pver); hdr.length > mpl {
		str := fmt.Sprintf("message payload is too large for message "+
			"type [%s] - header indicates %d bytes, max is %d",
			hdr.command, hdr.length, mpl)
		return totalBytes, nil, nil, messageError("ReadMessage", str)
	}

	pr := bytes.NewReader(payload)
	if err := msg.BtcDecode(pr, pver); err != nil {
		return totalBytes, nil, nil, err
	}
	return totalBytes, msg, payload, nil
}

func isValidCommand(cmd string) bool {
	if len(cmd) == 0 || len(cmd) > CommandSize {
		return false
	}
	for _, r := range cmd {
		if r < 0x20 || r > 0x7e {
			return false
		}
	}
	return true
}
