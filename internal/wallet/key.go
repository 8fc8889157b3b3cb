// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet implements THE CORE's key management, Bloom-filtered
// SPV transaction tracking, UTXO accounting, and outbound transaction
// construction (spec.md §4.4).
package wallet

import (
	"errors"

	"github.com/bitc-go/bitc/internal/bcrypto"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Key is a single wallet keypair (spec.md §3 "Wallet key"). The private
// scalar is held only in process memory for the wallet's lifetime; it is
// never written to disk except inside the encrypted blob in wallet.cfg.
type Key struct {
	Priv  *secp256k1.PrivateKey
	Pub   *secp256k1.PublicKey
	Label string
}

// ErrWatchOnly is returned by any operation needing a private key when
// the wallet holds only public keys (spec.md §4.4: "a wallet can also be
// in watch-only mode with no private keys present").
var ErrWatchOnly = errors.New("wallet: operation requires a private key, wallet is watch-only")

// NewRandomKey samples a fresh secp256k1 keypair via a cryptographically
// secure random scalar (spec.md §4.4 "Address derivation").
func NewRandomKey(label string) (*Key, error) {
	priv, err := bcrypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return &Key{Priv: priv, Pub: priv.PubKey(), Label: label}, nil
}

// Hash160 returns RIPEMD160(SHA256(compressed pubkey)), the value a
// P2PKH address and scriptPubKey are built from.
func (k *Key) Hash160() []byte {
	return bcrypto.Hash160(k.Pub.SerializeCompressed())
}

// Address returns the Base58Check P2PKH address for this key on the
// network identified by versionByte (0x00 mainnet, 0x6f testnet3, per
// spec.md §4.4).
func (k *Key) Address(versionByte byte) string {
	return bcrypto.Base58CheckEncode(k.Hash160(), versionByte)
}

// PubKeyHashScript returns the standard P2PKH scriptPubKey
// (OP_DUP OP_HASH160 <20-byte-hash> OP_EQUALVERIFY OP_CHECKSIG) paying
// this key.
func (k *Key) PubKeyHashScript() []byte {
	return p2pkhScript(k.Hash160())
}

const (
	opDup         = 0x76
	opHash160     = 0xa9
	opData20      = 0x14
	opEqualVerify = 0x88
	opCheckSig    = 0xac
)

// p2pkhScript builds the standard pay-to-pubkey-hash script for a
// 20-byte hash.
func p2pkhScript(hash160 []byte) []byte {
	script := make([]byte, 0, 25)
	script = append(script, opDup, opHash160, opData20)
	script = append(script, hash160...)
	script = append(script, opEqualVerify, opCheckSig)
	return script
}

// ExtractPubKeyHash returns the 20-byte hash inside a standard P2PKH
// script, and whether script matched that shape.
func ExtractPubKeyHash(script []byte) ([]byte, bool) {
	if len(script) != 25 ||
		script[0] != opDup || script[1] != opHash160 || script[2] != opData20 ||
		script[23] != opEqualVerify || script[24] != opCheckSig {
		return nil, false
	}
	return script[3:23], true
}
