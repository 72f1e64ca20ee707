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

func TestSinkPadTo(t *testing.T) {
	t.Parallel()

	s := zca.NewSink(zca.DefaultProfile())
	s.Write([]byte{1, 2, 3})
	require.Equal(t, int64(3), s.Position())

	s.PadTo(8)
	require.Equal(t, int64(8), s.Position())
	require.Equal(t, []byte{1, 2, 3, 0, 0, 0, 0, 0}, s.Bytes())

	// Already aligned: no bytes added.
	before := s.Position()
	s.PadTo(8)
	require.Equal(t, before, s.Position())
}

func TestSinkPadToPacked(t *testing.T) {
	t.Parallel()

	p := zca.DefaultProfile()
	p.Align = zca.AlignPacked

	s := zca.NewSink(p)
	s.Write([]byte{1, 2, 3})
	s.PadTo(8)
	require.Equal(t, int64(3), s.Position(), "packed profile never pads")
}

// TestSinkFinishRootAtEnd is spec.md I1: the root value must end exactly at
// the end of the buffer.
func TestSinkFinishRootAtEnd(t *testing.T) {
	t.Parallel()

	s := zca.NewSink(zca.DefaultProfile())
	s.Write([]byte{1, 2, 3, 4})

	buf, err := s.Finish(4)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, buf)
}

// TestSinkFinishTrailingByte is spec.md B2: a buffer with a byte written
// after what was declared the root's end must fail Finish.
func TestSinkFinishTrailingByte(t *testing.T) {
	t.Parallel()

	s := zca.NewSink(zca.DefaultProfile())
	s.Write([]byte{1, 2, 3, 4, 5})

	_, err := s.Finish(4)
	require.Error(t, err)

	var verr *zca.ValidationError
	require.ErrorAs(t, err, &verr)
	require.ErrorIs(t, err, zca.ErrOutOfBounds)
}
