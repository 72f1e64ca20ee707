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

//go:build unix

package zca_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"go.zca.dev/zca"
)

func TestAccessMappedRoundTrip(t *testing.T) {
	t.Parallel()

	want := strings.Repeat("mapped", 12)
	buf, err := zca.SerializeRoot(zca.DefaultProfile(), zca.SerializeLongString{Value: want})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "archive.zca")
	require.NoError(t, os.WriteFile(path, buf, 0o600))

	got, mapped, err := zca.AccessMapped[zca.String](path, zca.DefaultProfile())
	require.NoError(t, err)
	defer mapped.Close()

	require.Equal(t, want, got.Get())
}

func TestOpenMappedEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.zca")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	m, err := zca.OpenMapped(path)
	require.NoError(t, err)
	defer m.Close()
	require.Empty(t, m.Bytes())
}

func TestOpenMappedMissingFile(t *testing.T) {
	t.Parallel()

	_, err := zca.OpenMapped(filepath.Join(t.TempDir(), "does-not-exist.zca"))
	require.Error(t, err)
}
