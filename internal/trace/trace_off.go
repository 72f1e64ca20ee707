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

//go:build !debug

package trace

// Enabled is false in release builds; every call below is a no-op that the
// compiler inlines away entirely.
const Enabled = false

// Log does nothing in release builds.
func Log(context []any, operation string, format string, args ...any) {}

// Assert does nothing in release builds.
func Assert(cond bool, format string, args ...any) {}

// Value is the zero-cost release-mode twin of the debug-mode Value: it
// carries no payload, so diagnostic-only state vanishes from struct layouts
// entirely.
type Value[T any] struct{}

// Get panics if called in a release build; diagnostic-only state must never
// be read outside of a debug build.
func (v *Value[T]) Get() *T {
	panic("zca: trace.Value accessed outside of a debug build")
}
