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
	"strings"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"go.zca.dev/zca"
)

func TestValidateRejectsTruncatedBuffer(t *testing.T) {
	t.Parallel()

	buf, err := zca.SerializeRoot(zca.DefaultProfile(), zca.SerializeLongString{Value: strings.Repeat("z", 64)})
	require.NoError(t, err)

	err = zca.Validate[zca.String](buf[:len(buf)-1], zca.DefaultProfile())
	require.Error(t, err)
}

// TestValidateRejectsForwardPointer is spec.md S5 / I2: a relative pointer
// whose delta is positive (pointing forward, here past the end of the
// buffer) must fail the forward-pointer check.
func TestValidateRejectsForwardPointer(t *testing.T) {
	t.Parallel()

	buf, err := zca.SerializeRoot(zca.DefaultProfile(), zca.SerializeLongString{Value: strings.Repeat("q", 64)})
	require.NoError(t, err)

	// Corrupt the pointer field inside the root String header: flip it to
	// point well past the end of the buffer. The root header sits at the
	// last sizeof(String) bytes; the Ptr32 field is the last 4 of those.
	corrupt := append([]byte(nil), buf...)
	ptrOff := len(corrupt) - 4
	corrupt[ptrOff] = 0x7f
	corrupt[ptrOff+1] = 0x7f
	corrupt[ptrOff+2] = 0x7f
	corrupt[ptrOff+3] = 0x7f

	err = zca.Validate[zca.String](corrupt, zca.DefaultProfile())
	require.Error(t, err)
	require.ErrorIs(t, err, zca.ErrForwardPointer)
}

func TestValidateRootMisaligned(t *testing.T) {
	t.Parallel()

	buf, err := zca.SerializeRoot(zca.DefaultProfile(), zca.SerializeLongString{Value: "x"})
	require.NoError(t, err)

	// Prepend one byte so the root's trailing position shifts by one,
	// breaking U32-style alignment for types wider than a byte.
	shifted := append([]byte{0}, buf...)
	err = zca.Validate[zca.U32](shifted, zca.DefaultProfile())
	require.Error(t, err)
}

func TestValidateRawRoot(t *testing.T) {
	t.Parallel()

	buf, err := zca.SerializeRoot(zca.DefaultProfile(), zca.SerializeLongString{Value: strings.Repeat("r", 20)})
	require.NoError(t, err)

	var zero zca.String
	size, align := int(unsafe.Sizeof(zero)), int(unsafe.Alignof(zero))
	require.NoError(t, zca.ValidateRawRoot(buf, zca.DefaultProfile(), size, align))

	require.Error(t, zca.ValidateRawRoot(buf[:size-1], zca.DefaultProfile(), size, align))
}

// TestValidateSubtreeOverlapRejected is spec.md I4: two owned subtrees
// covering overlapping byte ranges must be rejected even if each would be
// individually well-formed.
func TestValidateSubtreeOverlapRejected(t *testing.T) {
	t.Parallel()

	v := zca.NewValidator(make([]byte, 64), zca.DefaultProfile())
	_, err := v.PushSubtree(64, 0, 16, 1)
	require.NoError(t, err)

	_, err = v.PushSubtree(64, 8, 16, 1)
	require.Error(t, err)
	require.ErrorIs(t, err, zca.ErrSubtreeOverlap)

	// A disjoint range is still fine afterwards.
	_, err = v.PushSubtree(64, 16, 16, 1)
	require.NoError(t, err)
}

// TestValidatePushSubtreeRejectsForwardPointer is spec.md I2: a subtree
// target that is in-bounds and does not overlap any sibling is still
// invalid if it does not lie strictly before the pointer's own storage
// position — the case bounds/overlap checking alone cannot catch.
func TestValidatePushSubtreeRejectsForwardPointer(t *testing.T) {
	t.Parallel()

	v := zca.NewValidator(make([]byte, 64), zca.DefaultProfile())

	// target=16 is in-bounds and does not overlap any other subtree, but
	// the pointer claiming it lives at position 8 — strictly before its
	// own target, not after.
	_, err := v.PushSubtree(8, 16, 4, 1)
	require.Error(t, err)
	require.ErrorIs(t, err, zca.ErrForwardPointer)

	// A pointer to its own storage position is equally a violation.
	_, err = v.PushSubtree(8, 8, 4, 1)
	require.Error(t, err)
	require.ErrorIs(t, err, zca.ErrForwardPointer)
}

func TestValidateSharedConsistentTypeTag(t *testing.T) {
	t.Parallel()

	v := zca.NewValidator(make([]byte, 64), zca.DefaultProfile())
	calls := 0
	validate := func() error { calls++; return nil }

	require.NoError(t, v.ValidateShared(0, 1, validate))
	require.NoError(t, v.ValidateShared(0, 1, validate))
	require.Equal(t, 1, calls, "second call for the same position must not re-validate")

	err := v.ValidateShared(0, 2, validate)
	require.Error(t, err)
	require.ErrorIs(t, err, zca.ErrSharedPointerTypeConflict)
}
