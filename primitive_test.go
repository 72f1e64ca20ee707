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

package zca_test

import (
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"go.zca.dev/zca"
)

func TestPrimitiveRoundTrip(t *testing.T) {
	t.Parallel()

	t.Run("U32 little-endian", func(t *testing.T) {
		t.Parallel()
		v := zca.PutU32(0x01020304, binary.LittleEndian)
		require.Equal(t, uint32(0x01020304), v.Get(binary.LittleEndian))
	})

	t.Run("I64 big-endian", func(t *testing.T) {
		t.Parallel()
		v := zca.PutI64(-12345, binary.BigEndian)
		require.Equal(t, int64(-12345), v.Get(binary.BigEndian))
	})

	t.Run("F64", func(t *testing.T) {
		t.Parallel()
		v := zca.PutF64(3.14159, binary.LittleEndian)
		require.InDelta(t, 3.14159, v.Get(binary.LittleEndian), 1e-12)
	})

	t.Run("Bool", func(t *testing.T) {
		t.Parallel()
		require.True(t, zca.PutBool(true).Get())
		require.False(t, zca.PutBool(false).Get())
	})

	t.Run("Char", func(t *testing.T) {
		t.Parallel()
		v := zca.PutChar('λ', binary.LittleEndian)
		require.Equal(t, 'λ', v.Get(binary.LittleEndian))
	})

	t.Run("UUID", func(t *testing.T) {
		t.Parallel()
		id := uuid.New()
		v := zca.PutUUID(id)
		require.Equal(t, id, v.Get())
	})
}

// TestBoolValidateRejectsInvalidEncoding is spec.md §7: a Bool byte other
// than 0 or 1 must fail validation rather than be trusted by Get.
func TestBoolValidateRejectsInvalidEncoding(t *testing.T) {
	t.Parallel()

	err := zca.Validate[zca.Bool]([]byte{2}, zca.DefaultProfile())
	require.Error(t, err)
	require.ErrorIs(t, err, zca.ErrInvalidEncoding)
}

// TestCharValidateRejectsSurrogate is spec.md §7: a Char code point inside
// the UTF-16 surrogate range is not a valid Unicode scalar value and must
// fail validation rather than be trusted by Get.
func TestCharValidateRejectsSurrogate(t *testing.T) {
	t.Parallel()

	// U+D800, little-endian.
	err := zca.Validate[zca.Char]([]byte{0x00, 0xD8, 0x00, 0x00}, zca.DefaultProfile())
	require.Error(t, err)
	require.ErrorIs(t, err, zca.ErrInvalidEncoding)
}

// TestPrimitiveOnTheWire is spec.md S1: u32 = 0x01020304 little-endian,
// aligned, at the tail of a 4-byte buffer decodes byte for byte.
func TestPrimitiveOnTheWire(t *testing.T) {
	t.Parallel()

	v := zca.PutU32(0x01020304, binary.LittleEndian)
	buf := []byte{0x04, 0x03, 0x02, 0x01}

	got := zca.AccessRoot[zca.U32](buf)
	require.Equal(t, v, *got)
	require.Equal(t, uint32(0x01020304), got.Get(binary.LittleEndian))
}
