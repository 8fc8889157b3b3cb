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

// maxTxPerBlock bounds the number of transactions decoded from a single
// block message.
const maxTxPerBlock = (MaxMessagePayload / 60) + 1

// MsgBlock is a full block: a header plus its transactions. THE CORE never
// requests full blocks for wallet-relevant data (it asks for merkleblock
// instead), but still needs to decode one if a peer sends it unsolicited.
type MsgBlock struct {
	Header       BlockHeader
	Transactions []*MsgTx
}

func (msg *MsgBlock) BtcDecode(r io.Reader, pver uint32) error {
	if err := msg.Header.btcDecode(r); err != nil {
		return err
	}
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > maxTxPerBlock {
		str := fmt.Sprintf("too many transactions to fit into a block [count %d, max %d]",
			count, maxTxPerBlock)
		return messageError("MsgBlock.BtcDecode", str)
	}
	txs := make([]*MsgTx, 0, count)
	for i := uint64(0); i < count; i++ {
		tx := &MsgTx{}
		if err := tx.BtcDecode(r, pver); err != nil {
			return err
		}
		txs = append(txs, tx)
	}
	msg.Transactions = txs
	return nil
}

func (msg *MsgBlock) BtcEncode(w io.Writer, pver uint32) error {
	if err := msg.Header.btcEncode(w); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(msg.Transactions))); err != nil {
		return err
	}
	for _, tx := range msg.Transactions {
		if err := tx.BtcEncode(w, pver); err != nil {
			return err
		}
	}
	return nil
}

func (msg *MsgBlock) Command() string                    { return CmdBlock }
func (msg *MsgBlock) MaxPayloadLength(pver uint32) uint32 { return MaxMessagePayload }

// BlockHash returns the hash of the block's header.
func (msg *MsgBlock) BlockHash() chainhash.Hash { return msg.Header.BlockHash() }
