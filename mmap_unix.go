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

package zca

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MappedFile is an archive backed by an mmap'd file (§6): the archive
// bytes are never copied into the Go heap, so opening even a very large
// archive costs one syscall and some page table entries, not an
// allocation proportional to the file's size.
type MappedFile struct {
	data []byte
}

// OpenMapped opens path and maps it read-only.
func OpenMapped(path string) (*MappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return &MappedFile{}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("zca: mmap %s: %w", path, err)
	}
	return &MappedFile{data: data}, nil
}

// Bytes returns the mapped archive bytes.
func (m *MappedFile) Bytes() []byte { return m.data }

// Close unmaps the file.
func (m *MappedFile) Close() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	return unix.Munmap(data)
}

// AccessMapped is a convenience wrapper combining [OpenMapped] with
// [AccessChecked]: it validates the mapped bytes once against p and
// returns a typed, zero-copy view over them, plus the MappedFile the
// caller must Close when done.
func AccessMapped[T any](path string, p Profile) (*T, *MappedFile, error) {
	m, err := OpenMapped(path)
	if err != nil {
		return nil, nil, err
	}
	v, err := AccessChecked[T](m.Bytes(), p)
	if err != nil {
		m.Close()
		return nil, nil, err
	}
	return v, m, nil
}
