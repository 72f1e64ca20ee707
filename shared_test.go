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

// TestSharedDedup is spec.md S4: two shared pointers to the same Go
// identity resolve to the same archived position instead of each writing
// their own copy, and [P7] that equal identities produce pointer-equal
// accessors.
func TestSharedDedup(t *testing.T) {
	t.Parallel()

	value := strings.Repeat("shared", 10)

	var identityHolder int
	identity := unsafe.Pointer(&identityHolder)

	elems := []zca.SerializeShared[zca.SerializeLongString]{
		{Identity: identity, TypeTag: 1, Value: zca.SerializeLongString{Value: value}},
		{Identity: identity, TypeTag: 1, Value: zca.SerializeLongString{Value: value}},
	}

	buf, err := zca.SerializeRoot(zca.DefaultProfile(), zca.SerializeSequence[zca.SerializeShared[zca.SerializeLongString]]{
		Elems: elems,
	})
	require.NoError(t, err)

	got, err := zca.AccessChecked[zca.Sequence[zca.Shared[zca.String]]](buf, zca.DefaultProfile())
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())

	view := got.Get()
	first := view[0].Get()
	second := view[1].Get()

	require.Same(t, first, second, "both Shared values must resolve to the same archived position")
	require.Equal(t, value, first.Get())
}

func TestSharedDistinctIdentitiesNotDeduped(t *testing.T) {
	t.Parallel()

	var a, b int
	elems := []zca.SerializeShared[zca.SerializeLongString]{
		{Identity: unsafe.Pointer(&a), TypeTag: 1, Value: zca.SerializeLongString{Value: strings.Repeat("a", 20)}},
		{Identity: unsafe.Pointer(&b), TypeTag: 1, Value: zca.SerializeLongString{Value: strings.Repeat("b", 20)}},
	}

	buf, err := zca.SerializeRoot(zca.DefaultProfile(), zca.SerializeSequence[zca.SerializeShared[zca.SerializeLongString]]{
		Elems: elems,
	})
	require.NoError(t, err)

	got, err := zca.AccessChecked[zca.Sequence[zca.Shared[zca.String]]](buf, zca.DefaultProfile())
	require.NoError(t, err)

	view := got.Get()
	require.NotSame(t, view[0].Get(), view[1].Get())
	require.Equal(t, strings.Repeat("a", 20), view[0].Get().Get())
	require.Equal(t, strings.Repeat("b", 20), view[1].Get().Get())
}

func TestWeakPresentAndAbsent(t *testing.T) {
	t.Parallel()

	t.Run("present but never registered archives as null", func(t *testing.T) {
		t.Parallel()
		var holder int
		buf, err := zca.SerializeRoot(zca.DefaultProfile(), zca.SerializeWeak[zca.SerializeLongString]{
			Present:  true,
			Identity: unsafe.Pointer(&holder),
			TypeTag:  1,
		})
		require.NoError(t, err)

		got, err := zca.AccessChecked[zca.Weak[zca.String]](buf, zca.DefaultProfile())
		require.NoError(t, err)

		_, ok := got.Get()
		require.False(t, ok, "a Weak whose identity no Shared ever registered has nothing to upgrade to")
	})

	t.Run("absent archives as null", func(t *testing.T) {
		t.Parallel()
		buf, err := zca.SerializeRoot(zca.DefaultProfile(), zca.SerializeWeak[zca.SerializeLongString]{
			Present: false,
		})
		require.NoError(t, err)

		got, err := zca.AccessChecked[zca.Weak[zca.String]](buf, zca.DefaultProfile())
		require.NoError(t, err)

		_, ok := got.Get()
		require.False(t, ok)
	})
}

// archivedSharedAndWeak is the archived mirror of sharedAndWeak: a Shared
// field followed by a Weak field, laid out contiguously the way the
// serialize/resolve protocol (§4.2) requires for any struct with more than
// one field.
type archivedSharedAndWeak struct {
	Shared zca.Shared[zca.String]
	Weak   zca.Weak[zca.String]
}

// ValidateAt validates both fields, so [zca.AccessChecked] actually proves
// the dedup this test is checking rather than trusting hand-written bytes.
func (a *archivedSharedAndWeak) ValidateAt(val *zca.Validator, start int64) error {
	if err := a.Shared.ValidateAt(val, start+int64(unsafe.Offsetof(a.Shared))); err != nil {
		return err
	}
	return a.Weak.ValidateAt(val, start+int64(unsafe.Offsetof(a.Weak)))
}

// sharedAndWeak is a Serializable exercising §4.5's weak-upgrade dedup: a
// Shared and a Weak field both naming the same Go identity, so the Weak
// field must resolve to the position the Shared field already registered
// instead of writing its own independent copy.
type sharedAndWeak struct {
	identity unsafe.Pointer
	value    string
}

func (s sharedAndWeak) ArchivedLayout() (size, align int) {
	var v archivedSharedAndWeak
	return int(unsafe.Sizeof(v)), int(unsafe.Alignof(v))
}

func (s sharedAndWeak) Serialize(ser *zca.Serializer) (zca.Resolver, error) {
	sharedField := zca.SerializeShared[zca.SerializeLongString]{
		Identity: s.identity,
		TypeTag:  1,
		Value:    zca.SerializeLongString{Value: s.value},
	}
	weakField := zca.SerializeWeak[zca.SerializeLongString]{
		Present:  true,
		Identity: s.identity,
		TypeTag:  1,
	}

	sharedResolver, err := ser.Serialize(sharedField)
	if err != nil {
		return nil, err
	}
	weakResolver, err := ser.Serialize(weakField)
	if err != nil {
		return nil, err
	}

	var layout archivedSharedAndWeak
	sharedAt := unsafe.Offsetof(layout.Shared)
	sharedSize, _ := sharedField.ArchivedLayout()
	weakAt := unsafe.Offsetof(layout.Weak)

	return zca.ResolverFunc(func(at int64, out []byte) error {
		if err := sharedResolver.Resolve(at+int64(sharedAt), out[sharedAt:sharedAt+uintptr(sharedSize)]); err != nil {
			return err
		}
		return weakResolver.Resolve(at+int64(weakAt), out[weakAt:])
	}), nil
}

// TestWeakUpgradesToSharedPosition is spec.md §4.5: a Weak reference to a
// Go value also reachable through a Shared pointer resolves to the same
// archived position as the Shared one instead of archiving its own copy.
func TestWeakUpgradesToSharedPosition(t *testing.T) {
	t.Parallel()

	var holder int
	buf, err := zca.SerializeRoot(zca.DefaultProfile(), sharedAndWeak{
		identity: unsafe.Pointer(&holder),
		value:    strings.Repeat("dedup", 8),
	})
	require.NoError(t, err)

	got, err := zca.AccessChecked[archivedSharedAndWeak](buf, zca.DefaultProfile())
	require.NoError(t, err)

	sharedRef := got.Shared.Get()
	weakRef, ok := got.Weak.Get()
	require.True(t, ok)
	require.Same(t, sharedRef, weakRef, "Weak must upgrade to the same position Shared already registered")
	require.Equal(t, strings.Repeat("dedup", 8), weakRef.Get())
}
