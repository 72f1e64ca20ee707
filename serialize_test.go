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
	"unsafe"

	"github.com/stretchr/testify/require"

	"go.zca.dev/zca"
)

func TestSerializeRootEndToEnd(t *testing.T) {
	t.Parallel()

	buf, err := zca.SerializeRoot(zca.DefaultProfile(), zca.SerializeLongString{Value: "round trip"})
	require.NoError(t, err)
	require.NoError(t, zca.Validate[zca.String](buf, zca.DefaultProfile()))

	got, err := zca.AccessChecked[zca.String](buf, zca.DefaultProfile())
	require.NoError(t, err)
	require.Equal(t, "round trip", got.Get())
}

// TestSerializeDeterministic is spec.md P6: serializing the same value
// twice with the same Profile produces byte-identical archives.
func TestSerializeDeterministic(t *testing.T) {
	t.Parallel()

	v := zca.SerializeSequence[zca.SerializeLongString]{
		Elems: []zca.SerializeLongString{{Value: "a"}, {Value: "bb"}, {Value: "ccc"}},
	}

	buf1, err := zca.SerializeRoot(zca.DefaultProfile(), v)
	require.NoError(t, err)
	buf2, err := zca.SerializeRoot(zca.DefaultProfile(), v)
	require.NoError(t, err)

	require.Equal(t, buf1, buf2)
}

func TestSerializerSessionIDUniquePerSession(t *testing.T) {
	t.Parallel()

	s1 := zca.NewSerializer(zca.DefaultProfile())
	defer s1.Close()
	s2 := zca.NewSerializer(zca.DefaultProfile())
	defer s2.Close()

	require.NotEqual(t, s1.SessionID(), s2.SessionID())
}

func TestSerializerCloseIdempotent(t *testing.T) {
	t.Parallel()

	s := zca.NewSerializer(zca.DefaultProfile())
	require.NotPanics(t, func() {
		s.Close()
		s.Close()
	})
}

// selfReferential is a Serializable whose Serialize method re-enters the
// Serializer for the same Go identity, modeling application data that
// accidentally cycles back to itself through a Shared pointer.
type selfReferential struct {
	identity unsafe.Pointer
}

func (s selfReferential) ArchivedLayout() (size, align int) {
	var v zca.Shared[byte]
	return int(unsafe.Sizeof(v)), int(unsafe.Alignof(v))
}

func (s selfReferential) Serialize(ser *zca.Serializer) (zca.Resolver, error) {
	_, _, err := ser.EmplaceShared(s.identity, 1, s)
	if err != nil {
		return nil, err
	}
	return zca.ResolverFunc(func(at int64, out []byte) error { return nil }), nil
}

// TestCycleRejected is spec.md §9: a Serializable that re-enters its own
// Go identity mid-serialize is rejected rather than looping forever.
func TestCycleRejected(t *testing.T) {
	t.Parallel()

	var holder int
	self := selfReferential{identity: unsafe.Pointer(&holder)}

	_, err := zca.SerializeRoot(zca.DefaultProfile(), zca.SerializeShared[selfReferential]{
		Identity: self.identity,
		TypeTag:  1,
		Value:    self,
	})
	require.Error(t, err)
	require.ErrorIs(t, err, zca.ErrCycleRejected)
}
