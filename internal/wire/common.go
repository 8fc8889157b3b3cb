// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bitc-go/bitc/internal/chainhash"
)

var littleEndian = binary.LittleEndian
var bigEndian = binary.BigEndian

// MessageError describes an issue with a message.
type MessageError struct {
	Func        string
	Description string
}

func (e *MessageError) Error() string {
	if e.Func != "" {
		return fmt.Sprintf("%s: %s", e.Func, e.Description)
	}
	return e.Description
}

func messageError(f, desc string) *MessageError {
	return &MessageError{Func: f, Description: desc}
}

func readElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *int32:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = int32(littleEndian.Uint32(b[:]))
		return nil
	case *uint32:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = littleEndian.Uint32(b[:])
		return nil
	case *int64:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = int64(littleEndian.Uint64(b[:]))
		return nil
	case *uint64:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = littleEndian.Uint64(b[:])
		return nil
	case *bool:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = b[0] != 0
		return nil
	case *chainhash.Hash:
		var b [chainhash.HashSize]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		copy(e[:], b[:])
		return nil
	case *[4]byte:
		_, err := io.ReadFull(r, e[:])
		return err
	}
	return binary.Read(r, littleEndian, element)
}

func writeElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case int32:
		var b [4]byte
		littleEndian.PutUint32(b[:], uint32(e))
		_, err := w.Write(b[:])
		return err
	case uint32:
		var b [4]byte
		littleEndian.PutUint32(b[:], e)
		_, err := w.Write(b[:])
		return err
	case int64:
		var b [8]byte
		littleEndian.PutUint64(b[:], uint64(e))
		_, err := w.Write(b[:])
		return err
	case uint64:
		var b [8]byte
		littleEndian.PutUint64(b[:], e)
		_, err := w.Write(b[:])
		return err
	case bool:
		var b [1]byte
		if e {
			b[0] = 1
		}
		_, err := w.Write(b[:])
		return err
	case chainhash.Hash:
		_, err := w.Write(e[:])
		return err
	case [4]byte:
		_, err := w.Write(e[:])
		return err
	}
	return binary.Write(w, littleEndian, element)
}

// ReadVarInt reads a variable-length integer from r and returns it as a
// uint64, per the 1/3/5/9-byte prefix encoding: values below 0xfd are a
// single byte; 0xfd prefixes a uint16; 0xfe a uint32; 0xff a uint64.
func ReadVarInt(r io.Reader) (uint64, error) {
	var b [9]byte
	if _, err := io.ReadFull(r, b[:1]); err != nil {
		return 0, err
	}
	switch b[0] {
	case 0xff:
		if _, err := io.ReadFull(r, b[1:9]); err != nil {
			return 0, err
		}
		return littleEndian.Uint64(b[1:9]), nil
	case 0xfe:
		if _, err := io.ReadFull(r, b[1:5]); err != nil {
			return 0, err
		}
		return uint64(littleEndian.Uint32(b[1:5])), nil
	case 0xfd:
		if _, err := io.ReadFull(r, b[1:3]); err != nil {
			return 0, err
		}
		return uint64(littleEndian.Uint16(b[1:3])), nil
	default:
		return uint64(b[0]), nil
	}
}

// WriteVarInt writes val to w using the minimal varint prefix encoding.
func WriteVarInt(w io.Writer, val uint64) error {
	switch {
	case val < 0xfd:
		_, err := w.Write([]byte{byte(val)})
		return err
	case val <= 0xffff:
		var b [3]byte
		b[0] = 0xfd
		littleEndian.PutUint16(b[1:], uint16(val))
		_, err := w.Write(b[:])
		return err
	case val <= 0xffffffff:
		var b [5]byte
		b[0] = 0xfe
		littleEndian.PutUint32(b[1:], uint32(val))
		_, err := w.Write(b[:])
		return err
	default:
		var b [9]byte
		b[0] = 0xff
		littleEndian.PutUint64(b[1:], val)
		_, err := w.Write(b[:])
		return err
	}
}

// VarIntSerializeSize returns the number of bytes WriteVarInt would write
// for val.
func VarIntSerializeSize(val uint64) int {
	switch {
	case val < 0xfd:
		return 1
	case val <= 0xffff:
		return 3
	case val <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// ReadVarString reads a variable-length-prefixed string: a varint byte
// count followed by that many bytes.
func ReadVarString(r io.Reader, maxLen uint64) (string, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return "", err
	}
	if count > maxLen {
		return "", messageError("ReadVarString", "string too long")
	}
	buf := make([]byte, count)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteVarString writes s as a varint length prefix followed by its bytes.
func WriteVarString(w io.Writer, s string) error {
	if err := WriteVarInt(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

// ReadVarBytes reads a variable-length-prefixed byte slice, rejecting
// lengths over maxAllowed to bound allocation from untrusted peers.
func ReadVarBytes(r io.Reader, maxAllowed uint64, fieldName string) ([]byte, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if count > maxAllowed {
		str := fmt.Sprintf("%s is larger than the max allowed size [count %d, max %d]",
			fieldName, count, maxAllowed)
		return nil, messageError("ReadVarBytes", str)
	}
	buf := make([]byte, count)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteVarBytes writes b as a varint length prefix followed by its bytes.
func WriteVarBytes(w io.Writer, b []byte) error {
	if err := WriteVarInt(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// maxNetAddressPayload is the 26-byte network address encoding specified
// in spec.md §4.2 (services + 16-byte IPv6 + 2-byte big-endian port), with
// no leading timestamp.
const maxNetAddressPayload = 26

// NetAddress represents a peer's advertised endpoint.
type NetAddress struct {
	// Timestamp is only present (and only read/written) when the address
	// travels inside an addr message; version handshakes omit it.
	Timestamp time.Time
	Services  ServiceFlag
	IP        net.IP
	Port      uint16
}

func writeNetAddress(w io.Writer, na *NetAddress, withTimestamp bool) error {
	if withTimestamp {
		if err := writeElement(w, uint32(na.Timestamp.Unix())); err != nil {
			return err
		}
	}
	if err := writeElement(w, uint64(na.Services)); err != nil {
		return err
	}
	var ip [16]byte
	if ip4 := na.IP.To4(); ip4 != nil {
		copy(ip[12:16], ip4)
		ip[10], ip[11] = 0xff, 0xff
	} else if na.IP != nil {
		copy(ip[:], na.IP.To16())
	}
	if _, err := w.Write(ip[:]); err != nil {
		return err
	}
	var portBytes [2]byte
	bigEndian.PutUint16(portBytes[:], na.Port)
	_, err := w.Write(portBytes[:])
	return err
}

func readNetAddress(r io.Reader, na *NetAddress, withTimestamp bool) error {
	var ts uint32
	if withTimestamp {
		if err := readElement(r, &ts); err != nil {
			return err
		}
		na.Timestamp = time.Unix(int64(ts), 0)
	}
	var services uint64
	if err := readElement(r, &services); err != nil {
		return err
	}
	na.Services = ServiceFlag(services)
	var ip [16]byte
	if _, err := io.ReadFull(r, ip[:]); err != nil {
		return err
	}
	na.IP = net.IP(ip[:]).To16()
	var portBytes [2]byte
	if _, err := io.ReadFull(r, portBytes[:]); err != nil {
		return err
	}
	na.Port = bigEndian.Uint16(portBytes[:])
	return nil
}
