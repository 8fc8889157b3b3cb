// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package bcrypto gathers the crypto primitives THE CORE needs: SHA-256,
// RIPEMD-160, HMAC-SHA512, ECDSA over secp256k1, and Base58Check. The
// wallet file's AES and PBKDF2 steps are not here; internal/wallet does
// them itself, and it also uses the secp256k1 key types directly.
//
// The underlying secp256k1 implementation
// (github.com/decred/dcrd/dcrec/secp256k1) is safe for concurrent use
// without caller-supplied locks, so unlike the source project's OpenSSL
// integration there is no numbered lock-slot array to maintain here; see
// DESIGN.md for the reasoning.
package bcrypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"errors"

	"github.com/EXCCoin/base58"
	"github.com/decred/dcrd/crypto/ripemd160"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// ErrInvalidSignature is returned when an ECDSA signature fails to verify
// against the claimed public key and message digest.
var ErrInvalidSignature = errors.New("bcrypto: ECDSA signature did not verify")

// ErrBadChecksum is returned by Base58CheckDecode when the embedded
// checksum does not match the decoded payload.
var ErrBadChecksum = errors.New("bcrypto: base58check checksum mismatch")

// Sha256 returns the single SHA-256 digest of b.
func Sha256(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// DoubleSha256 returns SHA-256(SHA-256(b)), the digest used for header and
// transaction hashes and for Base58Check checksums.
func DoubleSha256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

// Hash160 returns RIPEMD-160(SHA-256(b)), the digest embedded in a P2PKH
// scriptPubKey and Base58Check address.
func Hash160(b []byte) []byte {
	sum := sha256.Sum256(b)
	h := ripemd160.New()
	h.Write(sum[:])
	return h.Sum(nil)
}

// HMACSHA512 computes HMAC-SHA512(key, data), the MAC used by BIP32-style
// key derivation.
func HMACSHA512(key, data []byte) []byte {
	mac := hmac.New(sha512.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// GeneratePrivateKey samples a cryptographically secure random scalar in
// [1, n-1] and returns the corresponding secp256k1 key pair.
func GeneratePrivateKey() (*secp256k1.PrivateKey, error) {
	return secp256k1.GeneratePrivateKey()
}

// PrivKeyFromBytes parses a 32-byte big-endian scalar into a private key,
// deriving its public point.
func PrivKeyFromBytes(b []byte) *secp256k1.PrivateKey {
	return secp256k1.PrivKeyFromBytes(b)
}

// Sign produces a deterministic (RFC 6979) ECDSA signature over hash using
// priv, returning the DER encoding used in a legacy scriptSig.
func Sign(priv *secp256k1.PrivateKey, hash []byte) []byte {
	sig := ecdsa.Sign(priv, hash)
	return sig.Serialize()
}

// Verify parses a DER signature and checks it against pubKey and hash.
func Verify(pubKey *secp256k1.PublicKey, hash, derSig []byte) error {
	sig, err := ecdsa.ParseDERSignature(derSig)
	if err != nil {
		return err
	}
	if !sig.Verify(hash, pubKey) {
		return ErrInvalidSignature
	}
	return nil
}

// Base58CheckEncode encodes payload with the given version byte and an
// appended double-SHA-256 checksum.
func Base58CheckEncode(payload []byte, version byte) string {
	return base58.CheckEncode(payload, version)
}

// Base58CheckDecode reverses Base58CheckEncode, validating the checksum.
func Base58CheckDecode(encoded string) (payload []byte, version byte, err error) {
	payload, version, err = base58.CheckDecode(encoded)
	if err != nil {
		return nil, 0, ErrBadChecksum
	}
	return payload, version, nil
}
