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
	"unsafe"

	"go.zca.dev/zca/internal/unsafe2"
)

// Access casts buf to *T without validating it (C8): this is how a caller
// who has already validated buf (or who trusts its provenance some other
// way) gets a typed view over the archive with no copying and no parsing.
// Calling Access on bytes that were never validated is memory-unsafe if
// those bytes do not actually describe a well-formed T — every invariant
// in [Validate] exists precisely because Access does not check any of
// them.
func Access[T any](buf []byte) *T {
	size, align := unsafe2.Layout[T]()
	if len(buf) < size {
		panic("zca: buffer too small for archived root type")
	}
	if int(unsafe2.AddrOf(unsafe.SliceData(buf)))%align != 0 {
		panic("zca: buffer misaligned for archived root type")
	}
	return unsafe2.Cast[T](unsafe.SliceData(buf))
}

// AccessRoot casts the last sizeof(T) bytes of buf to *T, matching the
// root-at-end-of-buffer layout [SerializeRoot] produces ([I1]): the root
// value's header sits at the very end of the archive, with everything it
// points to laid out before it.
func AccessRoot[T any](buf []byte) *T {
	size, _ := unsafe2.Layout[T]()
	if len(buf) < size {
		panic("zca: buffer too small for archived root type")
	}
	return Access[T](buf[len(buf)-size:])
}

// AccessChecked validates buf against the given Profile and, if
// validation succeeds, returns the same pointer [AccessRoot] would. This
// is the safe entry point most callers should use; [Access] and
// [AccessRoot] exist for callers who have already validated buf (e.g. once
// at load time) and want to avoid paying for validation on every access.
func AccessChecked[T any](buf []byte, p Profile) (*T, error) {
	if err := Validate[T](buf, p); err != nil {
		return nil, err
	}
	return AccessRoot[T](buf), nil
}
