// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bufio"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bitc-go/bitc/internal/bcrypto"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/pbkdf2"
)

// storeVersion is the wallet.cfg text-record format version (spec.md §6).
const storeVersion = 1

const (
	pbkdf2Iterations = 100000
	saltSize         = 16
	keySize          = 32 // AES-256
)

var (
	// ErrBadPassphrase is returned by Load when the passphrase fails to
	// decrypt the private-key blob (detected via a trailing checksum,
	// spec.md §6 "malformed wallet file" error kind).
	ErrBadPassphrase = errors.New("wallet: incorrect passphrase or corrupt wallet file")
	// ErrUnsupportedVersion is returned when wallet.cfg carries a record
	// version this build doesn't understand.
	ErrUnsupportedVersion = errors.New("wallet: unsupported wallet file version")
)

// Store persists a set of wallet keys to a single wallet.cfg file: a
// versioned line-oriented text format, one line per key, holding the
// public material in the clear and the private scalar (if any) inside a
// passphrase-encrypted blob (spec.md §6 "wallet.cfg format"). A wallet
// with no passphrase set stores private keys in the clear, matching the
// original client's unencrypted-by-default behavior; SetPassphrase
// upgrades a store to encrypted on the next Save.
type Store struct {
	path       string
	passphrase []byte // nil: keys are stored unencrypted
}

// NewStore returns a Store that reads and writes path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// SetPassphrase sets (or clears, with nil) the passphrase future Save
// calls encrypt private keys under.
func (s *Store) SetPassphrase(passphrase []byte) { s.passphrase = passphrase }

// Save writes every key in keys to path, atomically via a temp-file
// rename.
func (s *Store) Save(keys []*Key, versionByte byte) error {
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "version %d\n", storeVersion)
	for _, k := range keys {
		line, err := s.encodeKey(k, versionByte)
		if err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
		if _, err := w.WriteString(line + "\n"); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) encodeKey(k *Key, versionByte byte) (string, error) {
	pub := k.Pub.SerializeCompressed()
	if k.Priv == nil {
		return fmt.Sprintf("key %s watch %s", k.Label, base64.StdEncoding.EncodeToString(pub)), nil
	}

	privBytes := k.Priv.Serialize()
	if s.passphrase == nil {
		return fmt.Sprintf("key %s plain %s %s", k.Label,
			base64.StdEncoding.EncodeToString(pub),
			base64.StdEncoding.EncodeToString(privBytes)), nil
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	blob, err := encryptPriv(privBytes, s.passphrase, salt)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("key %s enc %s %s %s", k.Label,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(pub),
		base64.StdEncoding.EncodeToString(blob)), nil
}

// Load reads every key from path, decrypting any passphrase-protected
// private keys with s.passphrase.
func (s *Store) Load() ([]*Key, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var keys []*Key
	sc := bufio.NewScanner(f)
	seenVersion := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "version":
			if len(fields) != 2 || fields[1] != fmt.Sprint(storeVersion) {
				return nil, ErrUnsupportedVersion
			}
			seenVersion = true
		case "key":
			k, err := s.decodeKeyLine(fields)
			if err != nil {
				return nil, err
			}
			keys = append(keys, k)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !seenVersion && len(keys) > 0 {
		return nil, ErrUnsupportedVersion
	}
	return keys, nil
}

func (s *Store) decodeKeyLine(fields []string) (*Key, error) {
	if len(fields) < 4 {
		return nil, ErrBadPassphrase
	}
	label := fields[1]
	kind := fields[2]

	switch kind {
	case "watch":
		pub, err := base64.StdEncoding.DecodeString(fields[3])
		if err != nil {
			return nil, err
		}
		pk, err := secp256k1.ParsePubKey(pub)
		if err != nil {
			return nil, err
		}
		return &Key{Pub: pk, Label: label}, nil
	case "plain":
		if len(fields) < 5 {
			return nil, ErrBadPassphrase
		}
		privBytes, err := base64.StdEncoding.DecodeString(fields[4])
		if err != nil {
			return nil, err
		}
		priv := bcrypto.PrivKeyFromBytes(privBytes)
		return &Key{Priv: priv, Pub: priv.PubKey(), Label: label}, nil
	case "enc":
		if len(fields) < 6 {
			return nil, ErrBadPassphrase
		}
		salt, err := base64.StdEncoding.DecodeString(fields[3])
		if err != nil {
			return nil, err
		}
		blob, err := base64.StdEncoding.DecodeString(fields[5])
		if err != nil {
			return nil, err
		}
		if s.passphrase == nil {
			return nil, ErrBadPassphrase
		}
		privBytes, err := decryptPriv(blob, s.passphrase, salt)
		if err != nil {
			return nil, err
		}
		priv := bcrypto.PrivKeyFromBytes(privBytes)
		return &Key{Priv: priv, Pub: priv.PubKey(), Label: label}, nil
	default:
		return nil, ErrBadPassphrase
	}
}

// deriveAESKey stretches passphrase with PBKDF2-HMAC-SHA512 (spec.md §6
// "100,000 iterations") into a 32-byte AES-256 key.
func deriveAESKey(passphrase, salt []byte) []byte {
	return pbkdf2.Key(passphrase, salt, pbkdf2Iterations, keySize, sha512.New)
}

// encryptPriv encrypts a 32-byte private scalar under AES-256-CBC with a
// key derived from passphrase and salt, prefixing the ciphertext with its
// IV and appending a double-SHA-256 checksum of the plaintext so a wrong
// passphrase is detected rather than silently producing garbage bytes.
func encryptPriv(priv, passphrase, salt []byte) ([]byte, error) {
	key := deriveAESKey(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	checksum := bcrypto.DoubleSha256(priv)
	plain := append(append([]byte{}, priv...), checksum[:4]...)
	plain = pkcs7Pad(plain, aes.BlockSize)

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	ct := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, plain)

	out := make([]byte, 0, len(iv)+len(ct))
	out = append(out, iv...)
	out = append(out, ct...)
	return out, nil
}

// decryptPriv reverses encryptPriv, returning ErrBadPassphrase if the
// embedded checksum doesn't match.
func decryptPriv(blob, passphrase, salt []byte) ([]byte, error) {
	if len(blob) < aes.BlockSize || (len(blob)-aes.BlockSize)%aes.BlockSize != 0 {
		return nil, ErrBadPassphrase
	}
	key := deriveAESKey(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv, ct := blob[:aes.BlockSize], blob[aes.BlockSize:]
	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ct)

	plain, err = pkcs7Unpad(plain, aes.BlockSize)
	if err != nil || len(plain) < 36 {
		return nil, ErrBadPassphrase
	}
	priv, checksumTag := plain[:32], plain[32:36]
	checksum := bcrypto.DoubleSha256(priv)
	for i := 0; i < 4; i++ {
		if checksum[i] != checksumTag[i] {
			return nil, ErrBadPassphrase
		}
	}
	return priv, nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	padLen := blockSize - len(b)%blockSize
	pad := make([]byte, padLen)
	for i := range pad {
		pad[i] = byte(padLen)
	}
	return append(b, pad...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, errors.New("wallet: bad padding")
	}
	padLen := int(b[len(b)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(b) {
		return nil, errors.New("wallet: bad padding")
	}
	return b[:len(b)-padLen], nil
}

