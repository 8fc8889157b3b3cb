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

// BlockHeaderSize is the 80-byte on-wire size of a block header.
const BlockHeaderSize = 80

// BlockHeader is the 80-byte Bitcoin block header of spec.md §3.
type BlockHeader struct {
	Version    int32
	PrevBlock  chainhash.Hash
	MerkleRoot chainhash.Hash
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
}

// BlockHash returns the double-SHA-256 hash identifying the header.
func (h *BlockHeader) BlockHash() chainhash.Hash {
	buf := make([]byte, 0, BlockHeaderSize)
	buf = appendHeader(buf, h)
	return chainhash.HashH(buf)
}

func appendHeader(buf []byte, h *BlockHeader) []byte {
	var tmp [BlockHeaderSize]byte
	littleEndian.PutUint32(tmp[0:4], uint32(h.Version))
	copy(tmp[4:36], h.PrevBlock[:])
	copy(tmp[36:68], h.MerkleRoot[:])
	littleEndian.PutUint32(tmp[68:72], h.Timestamp)
	littleEndian.PutUint32(tmp[72:76], h.Bits)
	littleEndian.PutUint32(tmp[76:80], h.Nonce)
	return append(buf, tmp[:]...)
}

// Serialize writes the 80-byte wire encoding of the header to w.
func (h *BlockHeader) Serialize(w io.Writer) error {
	buf := appendHeader(make([]byte, 0, BlockHeaderSize), h)
	_, err := w.Write(buf)
	return err
}

// Deserialize reads the 80-byte wire encoding of a header from r.
func (h *BlockHeader) Deserialize(r io.Reader) error {
	var buf [BlockHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	h.Version = int32(littleEndian.Uint32(buf[0:4]))
	copy(h.PrevBlock[:], buf[4:36])
	copy(h.MerkleRoot[:], buf[36:68])
	h.Timestamp = littleEndian.Uint32(buf[68:72])
	h.Bits = littleEndian.Uint32(buf[72:76])
	h.Nonce = littleEndian.Uint32(buf[76:80])
	return nil
}

func (h *BlockHeader) btcDecode(r io.Reader) error { return h.Deserialize(r) }
func (h *BlockHeader) btcEncode(w io.Writer) error { return h.Serialize(w) }

// maxBlockLocatorsPerMsg bounds a getheaders locator.
const maxBlockLocatorsPerMsg = 500

// MsgGetHeaders requests headers starting after the best-matching locator
// entry, up to stop (the zero hash means "as many as the peer has", bounded
// to 2000 by the responder).
type MsgGetHeaders struct {
	ProtocolVersion    uint32
	BlockLocatorHashes []*chainhash.Hash
	HashStop           chainhash.Hash
}

func (msg *MsgGetHeaders) BtcDecode(r io.Reader, pver uint32) error {
	if err := readElement(r, &msg.ProtocolVersion); err != nil {
		return err
	}
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > maxBlockLocatorsPerMsg {
		str := fmt.Sprintf("too many block locator hashes [count %d, max %d]",
			count, maxBlockLocatorsPerMsg)
		return messageError("MsgGetHeaders.BtcDecode", str)
	}
	locators := make([]*chainhash.Hash, 0, count)
	for i := uint64(0); i < count; i++ {
		hash := &chainhash.Hash{}
		if err := readElement(r, hash); err != nil {
			return err
		}
		locators = append(locators, hash)
	}
	msg.BlockLocatorHashes = locators
	return readElement(r, &msg.HashStop)
}

func (msg *MsgGetHeaders) BtcEncode(w io.Writer, pver uint32) error {
	if len(msg.BlockLocatorHashes) > maxBlockLocatorsPerMsg {
		str := fmt.Sprintf("too many block locator hashes [count %d, max %d]",
			len(msg.BlockLocatorHashes), maxBlockLocatorsPerMsg)
		return messageError("MsgGetHeaders.BtcEncode", str)
	}
	if err := writeElement(w, msg.ProtocolVersion); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(msg.BlockLocatorHashes))); err != nil {
		return err
	}
	for _, hash := range msg.BlockLocatorHashes {
		if err := writeElement(w, *hash); err != nil {
			return err
		}
	}
	return writeElement(w, msg.HashStop)
}

func (msg *MsgGetHeaders) Command() string { return CmdGetHeaders }

func (msg *MsgGetHeaders) MaxPayloadLength(pver uint32) uint32 {
	return 4 + uint32(VarIntSerializeSize(maxBlockLocatorsPerMsg)) +
		maxBlockLocatorsPerMsg*chainhash.HashSize + chainhash.HashSize
}

// AddBlockLocatorHash appends a locator entry.
func (msg *MsgGetHeaders) AddBlockLocatorHash(hash *chainhash.Hash) error {
	if len(msg.BlockLocatorHashes)+1 > maxBlockLocatorsPerMsg {
		return messageError("MsgGetHeaders.AddBlockLocatorHash", "too many block locator hashes")
	}
	msg.BlockLocatorHashes = append(msg.BlockLocatorHashes, hash)
	return nil
}

// NewMsgGetHeaders returns an empty getheaders request.
func NewMsgGetHeaders() *MsgGetHeaders {
	return &MsgGetHeaders{BlockLocatorHashes: make([]*chainhash.Hash, 0, maxBlockLocatorsPerMsg)}
}

// maxHeadersPerMsg is the largest batch of headers a single message may
// carry; per spec.md §4.3 a batch under this size marks sync complete.
const maxHeadersPerMsg = 2000

// MsgHeaders carries a batch of headers, each followed by a txn-count
// varint that is always zero in a headers-only response.
type MsgHeaders struct {
	Headers []*BlockHeader
}

func (msg *MsgHeaders) BtcDecode(r io.Reader, pver uint32) error {
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > maxHeadersPerMsg {
		str := fmt.Sprintf("too many headers for message [count %d, max %d]",
			count, maxHeadersPerMsg)
		return messageError("MsgHeaders.BtcDecode", str)
	}
	headers := make([]*BlockHeader, 0, count)
	for i := uint64(0); i < count; i++ {
		bh := &BlockHeader{}
		if err := bh.btcDecode(r); err != nil {
			return err
		}
		txCount, err := ReadVarInt(r)
		if err != nil {
			return err
		}
		if txCount != 0 {
			return messageError("MsgHeaders.BtcDecode", "headers message should not have transactions")
		}
		headers = append(headers, bh)
	}
	msg.Headers = headers
	return nil
}

func (msg *MsgHeaders) BtcEncode(w io.Writer, pver uint32) error {
	if len(msg.Headers) > maxHeadersPerMsg {
		str := fmt.Sprintf("too many headers for message [count %d, max %d]",
			len(msg.Headers), maxHeadersPerMsg)
		return messageError("MsgHeaders.BtcEncode", str)
	}
	if err := WriteVarInt(w, uint64(len(msg.Headers))); err != nil {
		return err
	}
	for _, bh := range msg.Headers {
		if err := bh.btcEncode(w); err != nil {
			return err
		}
		if err := WriteVarInt(w, 0); err != nil {
			return err
		}
	}
	return nil
}

func (msg *MsgHeaders) Command() string { return CmdHeaders }

func (msg *MsgHeaders) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(maxHeadersPerMsg)) + maxHeadersPerMsg*(BlockHeaderSize+1)
}

// AddBlockHeader appends bh.
func (msg *MsgHeaders) AddBlockHeader(bh *BlockHeader) error {
	if len(msg.Headers)+1 > maxHeadersPerMsg {
		return messageError("MsgHeaders.AddBlockHeader", "too many headers in message")
	}
	msg.Headers = append(msg.Headers, bh)
	return nil
}
