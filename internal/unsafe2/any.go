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

package unsafe2

import (
	"reflect"
	"unsafe"
)

// iface is the internal representation of a Go interface value.
type iface struct {
	itab uintptr
	data *byte
}

// AnyData extracts the data pointer from an any. [arena.Arena.KeepAlive]
// uses it to record the memory it must keep live.
func AnyData(v any) *byte {
	return Cast[iface](&v).data
}

// AnyType extracts the opaque dynamic-type word from an any.
func AnyType(v any) uintptr {
	return Cast[iface](&v).itab
}

// AnyBytes extracts a slice pointing to the variable-length data behind an
// any, dereferencing through the interface's data pointer for indirect
// kinds.
func AnyBytes(v any) []byte {
	if v == nil {
		return nil
	}

	t := reflect.TypeOf(v)
	p := AnyData(v)
	if t.Kind() == reflect.Pointer || t.Kind() == reflect.UnsafePointer {
		p = Cast[byte](&p)
	}

	return unsafe.Slice(p, reflect.TypeOf(v).Size())
}
