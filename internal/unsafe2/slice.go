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
	"math"
	"unsafe"

	"go.zca.dev/zca/internal/unsafe2/layout"
)

// BoundsCheck emulates a bounds check on a slice with the given index and
// length, for call sites that computed the index via pointer arithmetic and
// want the compiler's normal panic-on-OOB behavior without materializing a
// real slice.
func BoundsCheck(n, length int) {
	dummy := unsafe.Slice(&struct{}{}, length&^math.MinInt)
	_ = dummy[n]
}

// LoadSlice loads a slice element without performing a bounds check; the
// caller must already know the index is in range.
func LoadSlice[S ~[]E, E any, I Int](s S, n I) E {
	return Load(unsafe.SliceData(s), n)
}

// SliceToString converts a slice into a string, multiplying the slice length
// by the element size.
func SliceToString[S ~[]E, E any](s S) string {
	str := struct {
		ptr *E
		len int
	}{unsafe.SliceData(s), len(s) * layout.Size[E]()}
	return BitCast[string](str)
}

// StringToSlice converts a string into a slice, dividing the byte length by
// the element size.
func StringToSlice[S ~[]E, E any](s string) S {
	return unsafe.Slice(Cast[E](unsafe.StringData(s)), len(s)/layout.Size[E]())
}
