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

// maxFlagsPerMerkleBlock bounds the flag byte-string of a merkleblock
// message; it can never exceed the hash count since each leaf contributes
// at most a couple of flag bits.
const maxFlagsPerMerkleBlock = MaxMessagePayload / 8

// MsgMerkleBlock delivers a header plus a partial Merkle tree proving
// which transactions matched the peer's Bloom filter (spec.md §4.3, §9
// open question: the partial-tree walk itself lives in
// internal/bloomfilter as its own tested primitive).
type MsgMerkleBlock struct {
	Header       BlockHeader
	Transactions uint32
	Hashes       []*chainhash.Hash
	Flags        []byte
}

func (msg *MsgMerkleBlock) BtcDecode(r io.Reader, pver uint32) error {
	if err := msg.Header.btcDecode(r); err != nil {
		return err
	}
	if err := readElement(r, &msg.Transactions); err != nil {
		return err
	}
	hashCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	hashes := make([]*chainhash.Hash, 0, hashCount)
	for i := uint64(0); i < hashCount; i++ {
		hash := &chainhash.Hash{}
		if err := readElement(r, hash); err != nil {
			return err
		}
		hashes = append(hashes, hash)
	}
	msg.Hashes = hashes

	flags, err := ReadVarBytes(r, maxFlagsPerMerkleBlock, "merkle block flags")
	if err != nil {
		return err
	}
	msg.Flags = flags
	return nil
}

func (msg *MsgMerkleBlock) BtcEncode(w io.Writer, pver uint32) error {
	if err := msg.Header.btcEncode(w); err != nil {
		return err
	}
	if err := writeElement(w, msg.Transactions); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(msg.Hashes))); err != nil {
		return err
	}
	for _, hash := range msg.Hashes {
		if err := writeElement(w, *hash); err != nil {
			return err
		}
	}
	return WriteVarBytes(w, msg.Flags)
}

func (msg *MsgMerkleBlock) Command() string { return CmdMerkleBlock }

func (msg *MsgMerkleBlock) MaxPayloadLength(pver uint32) uint32 { return MaxMessagePayload }

// MaxFilterLoadHashFuncs is the largest permitted hash-function count in a
// filterload message.
const MaxFilterLoadHashFuncs = 50

// MaxFilterLoadFilterSize is the largest permitted Bloom filter bit-array
// size, matching the reference implementation's cap.
const MaxFilterLoadFilterSize = 36000

// BloomUpdateType controls how matched outputs update a peer-side filter;
// THE CORE only ever asks peers to leave the filter unchanged.
type BloomUpdateType uint8

// BloomUpdateNone is the only update mode THE CORE's filterload uses.
const BloomUpdateNone BloomUpdateType = 0

// MsgFilterLoad installs the Bloom filter descriptor of spec.md §4.3 on
// the receiving peer.
type MsgFilterLoad struct {
	Filter    []byte
	HashFuncs uint32
	Tweak     uint32
	Flags     BloomUpdateType
}

func (msg *MsgFilterLoad) BtcDecode(r io.Reader, pver uint32) error {
	filter, err := ReadVarBytes(r, MaxFilterLoadFilterSize, "filterload filter")
	if err != nil {
		return err
	}
	msg.Filter = filter
	if err := readElement(r, &msg.HashFuncs); err != nil {
		return err
	}
	if msg.HashFuncs > MaxFilterLoadHashFuncs {
		str := fmt.Sprintf("too many filter hash functions [count %d, max %d]",
			msg.HashFuncs, MaxFilterLoadHashFuncs)
		return messageError("MsgFilterLoad.BtcDecode", str)
	}
	if err := readElement(r, &msg.Tweak); err != nil {
		return err
	}
	var flags uint8
	if err := readElement(r, &flags); err != nil {
		return err
	}
	msg.Flags = BloomUpdateType(flags)
	return nil
}

func (msg *MsgFilterLoad) BtcEncode(w io.Writer, pver uint32) error {
	if err := WriteVarBytes(w, msg.Filter); err != nil {
		return err
	}
	if err := writeElement(w, msg.HashFuncs); err != nil {
		return err
	}
	if err := writeElement(w, msg.Tweak); err != nil {
		return err
	}
	return writeElement(w, uint8(msg.Flags))
}

func (msg *MsgFilterLoad) Command() string { return CmdFilterLoad }

func (msg *MsgFilterLoad) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(MaxFilterLoadFilterSize)) + MaxFilterLoadFilterSize + 9
}

// MsgFilterAdd appends a single element to the peer's installed filter
// (used when a freshly derived change address is added mid-session).
type MsgFilterAdd struct {
	Data []byte
}

func (msg *MsgFilterAdd) BtcDecode(r io.Reader, pver uint32) error {
	data, err := ReadVarBytes(r, 520, "filteradd data")
	if err != nil {
		return err
	}
	msg.Data = data
	return nil
}

func (msg *MsgFilterAdd) BtcEncode(w io.Writer, pver uint32) error {
	return WriteVarBytes(w, msg.Data)
}

func (msg *MsgFilterAdd) Command() string                    { return CmdFilterAdd }
func (msg *MsgFilterAdd) MaxPayloadLength(pver uint32) uint32 { return 523 }

// MsgFilterClear removes the installed Bloom filter, reverting the peer to
// unfiltered relay; it carries no payload.
type MsgFilterClear struct{}

func (msg *MsgFilterClear) BtcDecode(r io.Reader, pver uint32) error { return nil }
func (msg *MsgFilterClear) BtcEncode(w io.Writer, pver uint32) error { return nil }
func (msg *MsgFilterClear) Command() string                          { return CmdFilterClear }
func (msg *MsgFilterClear) MaxPayloadLength(pver uint32) uint32       { return 0 }
