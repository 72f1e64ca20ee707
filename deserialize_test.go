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
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"go.zca.dev/zca"
)

// TestDeserializeStringRoundTrip is spec.md P3: deserializing an accessed,
// validated archive reproduces the original value, independent of the
// archive buffer's lifetime.
func TestDeserializeStringRoundTrip(t *testing.T) {
	t.Parallel()

	want := strings.Repeat("owned copy ", 8)
	buf, err := zca.SerializeRoot(zca.DefaultProfile(), zca.SerializeLongString{Value: want})
	require.NoError(t, err)

	got, err := zca.AccessChecked[zca.String](buf, zca.DefaultProfile())
	require.NoError(t, err)

	d := zca.NewDeserializer(zca.NoPool)
	owned := zca.DeserializeString(d, got)
	require.Equal(t, want, owned)

	// The owned copy must not alias the archive buffer.
	buf = nil
	require.Equal(t, want, owned)
}

func TestDeserializeSequence(t *testing.T) {
	t.Parallel()

	elems := []zca.SerializeLongString{{Value: "one"}, {Value: "two"}, {Value: strings.Repeat("three", 10)}}
	buf, err := zca.SerializeRoot(zca.DefaultProfile(), zca.SerializeSequence[zca.SerializeLongString]{Elems: elems})
	require.NoError(t, err)

	got, err := zca.AccessChecked[zca.Sequence[zca.String]](buf, zca.DefaultProfile())
	require.NoError(t, err)

	d := zca.NewDeserializer(zca.NoPool)
	owned, err := zca.DeserializeSequence(d, got)
	require.NoError(t, err)
	require.Len(t, owned, len(elems))
	for i, e := range elems {
		require.Equal(t, e.Value, owned[i].Get())
	}
}

func TestDeserializeMap(t *testing.T) {
	t.Parallel()

	entries := map[int32]int64{1: 10, 2: 20}
	buf, err := zca.SerializeRoot(zca.DefaultProfile(), zca.SerializeMap[int32, int64]{Entries: entries, Nonce: 1})
	require.NoError(t, err)

	got, err := zca.AccessChecked[zca.Map[int32, int64]](buf, zca.DefaultProfile())
	require.NoError(t, err)

	d := zca.NewDeserializer(zca.NoPool)
	owned, err := zca.DeserializeMap(d, got)
	require.NoError(t, err)
	require.Equal(t, entries, owned)
}

func TestDeserializerPoolReuse(t *testing.T) {
	t.Parallel()

	d := zca.NewDeserializer(zca.Pool)

	buf1, err := zca.SerializeRoot(zca.DefaultProfile(), zca.SerializeLongString{Value: "first"})
	require.NoError(t, err)
	got1, err := zca.AccessChecked[zca.String](buf1, zca.DefaultProfile())
	require.NoError(t, err)
	owned1 := zca.DeserializeString(d, got1)
	require.Equal(t, "first", owned1)

	// A Pool deserializer must accept being handed back a value it never
	// pooled for a string (a value type, not a pointer) without panicking.
	require.NotPanics(t, func() {
		zca.Unpool(d, &owned1)
	})
}

// TestDeserializerPoolReusesSequenceBacking is spec.md §5: under [zca.Pool],
// a slice returned to the Deserializer via [zca.Unpool] has its backing
// array handed back out by a later [zca.DeserializeSequence] call instead
// of a fresh one being allocated.
func TestDeserializerPoolReusesSequenceBacking(t *testing.T) {
	t.Parallel()

	d := zca.NewDeserializer(zca.Pool)

	buf, err := zca.SerializeRoot(zca.DefaultProfile(), zca.SerializeSequence[zca.SerializeLongString]{
		Elems: []zca.SerializeLongString{{Value: "a"}, {Value: "b"}},
	})
	require.NoError(t, err)
	got, err := zca.AccessChecked[zca.Sequence[zca.String]](buf, zca.DefaultProfile())
	require.NoError(t, err)

	first, err := zca.DeserializeSequence(d, got)
	require.NoError(t, err)
	require.Len(t, first, 2)
	firstData := &first[0]

	zca.Unpool(d, &first)

	second, err := zca.DeserializeSequence(d, got)
	require.NoError(t, err)
	require.Len(t, second, 2)
	require.Same(t, firstData, &second[0], "Pool must reuse the backing array returned via Unpool")
}

// TestDeserializerPoolReusesMap is spec.md §5: under [zca.Pool], a map
// returned via [zca.Unpool] is handed back out (cleared) by a later
// [zca.DeserializeMap] call instead of a fresh map being allocated.
func TestDeserializerPoolReusesMap(t *testing.T) {
	t.Parallel()

	d := zca.NewDeserializer(zca.Pool)

	entries := map[int32]int64{1: 10, 2: 20}
	buf, err := zca.SerializeRoot(zca.DefaultProfile(), zca.SerializeMap[int32, int64]{Entries: entries, Nonce: 1})
	require.NoError(t, err)
	got, err := zca.AccessChecked[zca.Map[int32, int64]](buf, zca.DefaultProfile())
	require.NoError(t, err)

	first, err := zca.DeserializeMap(d, got)
	require.NoError(t, err)
	firstPtr := reflect.ValueOf(first).Pointer()

	zca.Unpool(d, &first)

	second, err := zca.DeserializeMap(d, got)
	require.NoError(t, err)
	require.Equal(t, entries, second)
	require.Equal(t, firstPtr, reflect.ValueOf(second).Pointer(), "Pool must reuse the map returned via Unpool")
}
