// Copyright 2020-2026 The zca Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package zca

import (
	"math"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Archived primitives (C2) mirror Go's scalar types byte for byte, in the
// byte order a [Profile] selects. Unlike a native Go int or float64, the
// archived forms carry no implicit host-endianness assumption: casting a
// buffer written on one architecture and read on another is exactly the
// scenario this package exists for. Each multi-byte form starts with a
// zero-length field of the matching Go scalar, which gives it that
// scalar's natural alignment without changing its size.

// I8, U8 are single-byte integers; byte order is irrelevant to them, but
// they are named to keep the primitive family complete and symmetrical.
type I8 int8
type U8 uint8

// I16 is a little/big-endian archived 16-bit signed integer, stored
// verbatim as two bytes in the Profile's byte order.
type I16 struct {
	_     [0]uint16
	bytes [2]byte
}

// Get decodes v using the given byte order.
func (v I16) Get(order byteOrder) int16 { return int16(order.Uint16(v.bytes[:])) }

// PutI16 encodes n in the given byte order.
func PutI16(n int16, order byteOrder) I16 {
	var v I16
	order.PutUint16(v.bytes[:], uint16(n))
	return v
}

// U16 is the unsigned counterpart of I16.
type U16 struct {
	_     [0]uint16
	bytes [2]byte
}

func (v U16) Get(order byteOrder) uint16 { return order.Uint16(v.bytes[:]) }
func PutU16(n uint16, order byteOrder) U16 {
	var v U16
	order.PutUint16(v.bytes[:], n)
	return v
}

// I32 is an archived 32-bit signed integer.
type I32 struct {
	_     [0]uint32
	bytes [4]byte
}

func (v I32) Get(order byteOrder) int32 { return int32(order.Uint32(v.bytes[:])) }
func PutI32(n int32, order byteOrder) I32 {
	var v I32
	order.PutUint32(v.bytes[:], uint32(n))
	return v
}

// U32 is an archived 32-bit unsigned integer.
type U32 struct {
	_     [0]uint32
	bytes [4]byte
}

func (v U32) Get(order byteOrder) uint32 { return order.Uint32(v.bytes[:]) }
func PutU32(n uint32, order byteOrder) U32 {
	var v U32
	order.PutUint32(v.bytes[:], n)
	return v
}

// I64 is an archived 64-bit signed integer.
type I64 struct {
	_     [0]uint64
	bytes [8]byte
}

func (v I64) Get(order byteOrder) int64 { return int64(order.Uint64(v.bytes[:])) }
func PutI64(n int64, order byteOrder) I64 {
	var v I64
	order.PutUint64(v.bytes[:], uint64(n))
	return v
}

// U64 is an archived 64-bit unsigned integer.
type U64 struct {
	_     [0]uint64
	bytes [8]byte
}

func (v U64) Get(order byteOrder) uint64 { return order.Uint64(v.bytes[:]) }
func PutU64(n uint64, order byteOrder) U64 {
	var v U64
	order.PutUint64(v.bytes[:], n)
	return v
}

// F32 is an archived IEEE-754 single-precision float.
type F32 struct {
	_     [0]uint32
	bytes [4]byte
}

func (v F32) Get(order byteOrder) float32 {
	return math.Float32frombits(order.Uint32(v.bytes[:]))
}
func PutF32(f float32, order byteOrder) F32 {
	var v F32
	order.PutUint32(v.bytes[:], math.Float32bits(f))
	return v
}

// F64 is an archived IEEE-754 double-precision float.
type F64 struct {
	_     [0]uint64
	bytes [8]byte
}

func (v F64) Get(order byteOrder) float64 {
	return math.Float64frombits(order.Uint64(v.bytes[:]))
}
func PutF64(f float64, order byteOrder) F64 {
	var v F64
	order.PutUint64(v.bytes[:], math.Float64bits(f))
	return v
}

// Bool is an archived boolean, stored as a single byte that must be
// exactly 0 or 1; any other value is an [ErrInvalidEncoding] validation
// failure (§7).
type Bool struct{ byte U8 }

// Get returns the decoded value, panicking if the byte is not 0 or 1 — by
// the time Get is called on validated data this cannot happen, and on
// unvalidated data the caller has already opted out of the library's
// safety guarantees by calling an unchecked accessor.
func (v Bool) Get() bool {
	switch v.byte {
	case 0:
		return false
	case 1:
		return true
	default:
		panic("zca: Bool.Get on unvalidated data with byte != 0,1")
	}
}

func validateBool(b byte) error {
	if b != 0 && b != 1 {
		return ErrInvalidEncoding
	}
	return nil
}

func PutBool(b bool) Bool {
	if b {
		return Bool{byte: 1}
	}
	return Bool{byte: 0}
}

// Char is an archived Unicode scalar value, stored as an archived U32 that
// must decode to a valid, non-surrogate code point (§7).
type Char struct{ code U32 }

func (v Char) Get(order byteOrder) rune { return rune(v.code.Get(order)) }

func validateChar(r rune) error {
	if r < 0 || r > utf8.MaxRune || (r >= 0xD800 && r <= 0xDFFF) {
		return ErrInvalidEncoding
	}
	return nil
}

func PutChar(r rune, order byteOrder) Char {
	return Char{code: PutU32(uint32(r), order)}
}

// UUID is an archived 128-bit UUID, stored as [google/uuid.UUID]'s own
// fixed, endianness-free 16-byte layout (RFC 4122 network byte order):
// unlike the other archived primitives, byte order is not a [Profile]
// concern here, since a UUID's wire representation is unambiguous.
type UUID struct{ bytes [16]byte }

// Get decodes v as a [uuid.UUID].
func (v UUID) Get() uuid.UUID { return uuid.UUID(v.bytes) }

// PutUUID encodes u for archival.
func PutUUID(u uuid.UUID) UUID { return UUID{bytes: [16]byte(u)} }

// byteOrder is the subset of encoding/binary.ByteOrder this package needs;
// declared locally so primitive.go does not force every caller of Get to
// import encoding/binary just to pass a Profile's Order through.
type byteOrder interface {
	Uint16([]byte) uint16
	Uint32([]byte) uint32
	Uint64([]byte) uint64
	PutUint16([]byte, uint16)
	PutUint32([]byte, uint32)
	PutUint64([]byte, uint64)
}
