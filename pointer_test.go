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
	"testing"

	"github.com/stretchr/testify/require"

	"go.zca.dev/zca"
)

const (
	minInt32 = -1 << 31
	maxInt32 = 1<<31 - 1
)

// TestPointerToOffsetBoundary is spec.md B1: a relative pointer delta at
// the exact representable minimum/maximum succeeds; one byte past either
// edge fails with ErrOffsetOverflow.
func TestPointerToOffsetBoundary(t *testing.T) {
	t.Parallel()

	t.Run("max delta succeeds", func(t *testing.T) {
		t.Parallel()
		_, err := zca.PointerTo[byte](0, maxInt32)
		require.NoError(t, err)
	})

	t.Run("max delta plus one overflows", func(t *testing.T) {
		t.Parallel()
		_, err := zca.PointerTo[byte](0, maxInt32+1)
		require.Error(t, err)
		require.ErrorIs(t, err, zca.ErrOffsetOverflow)

		var oerr *zca.OffsetError
		require.ErrorAs(t, err, &oerr)
		require.Equal(t, 4, oerr.Width)
	})

	t.Run("min delta succeeds", func(t *testing.T) {
		t.Parallel()
		_, err := zca.PointerTo[byte](0, minInt32)
		require.NoError(t, err)
	})

	t.Run("min delta minus one overflows", func(t *testing.T) {
		t.Parallel()
		_, err := zca.PointerTo[byte](0, minInt32-1)
		require.Error(t, err)
		require.ErrorIs(t, err, zca.ErrOffsetOverflow)
	})
}

func TestPtr32NilIsZeroDelta(t *testing.T) {
	t.Parallel()

	var p zca.Ptr32[int32]
	require.True(t, p.IsNil())
}

func TestVTableRegistry(t *testing.T) {
	t.Parallel()

	sel := zca.Selector(0xdeadbeef)
	vt := &zca.VTable{
		Selector: sel,
		Size:     4,
		Align:    4,
		ValidateAt: func(v *zca.Validator, at, end int64) error {
			return nil
		},
	}
	zca.RegisterVTable(vt)

	got := zca.LookupVTable(sel)
	require.Same(t, vt, got)
}

func TestVTableRegistryUnknownSelector(t *testing.T) {
	t.Parallel()

	got := zca.LookupVTable(zca.Selector(0x1))
	require.Nil(t, got)
}
