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

// Package arena provides the scratch allocator (C4): a stack-discipline,
// reusable arena for temporary allocations made *during* serialization (for
// example, staging the N child resolvers of a sequence before its header can
// be resolved). Nothing allocated here ever reaches the archive buffer
// itself — only the bytes the sink is explicitly told to write do.
//
// # Design
//
// See <https://mcyoung.xyz/2025/04/21/go-arenas/>.
//
// The arena only ever returns pointers to data with pointer-free shape.
// Resolvers are allowed to hold pointers into arena memory, so the arena
// must keep itself, not the GC's normal liveness tracing, responsible for
// keeping that memory around: every chunk it allocates is shaped as
//
//	type chunk struct {
//	  Data  [N]byte
//	  Arena *Arena
//	}
//
// Holding a pointer into chunk.Data anywhere reachable by a GC root marks
// the whole chunk allocation live, and therefore marks the embedded *Arena
// live too; tracing through Arena.blocks then marks every other chunk live.
// Memory not directly allocated by the arena can be tied to its lifetime
// with [Arena.KeepAlive], which is slow and meant for rare use.
package arena

import (
	"unsafe"

	"go.zca.dev/zca/internal/trace"
	"go.zca.dev/zca/internal/unsafe2"
)

// Arena is a bump allocator for holding pointer-free values.
//
// A zero Arena is empty and ready to use.
type Arena struct {
	_ unsafe2.NoCopy

	// Exported to allow open-coding of Alloc() at hot call sites, because Go
	// won't always inline it.
	Next, End unsafe2.Addr[byte]
	Cap       int // Always a power of 2.

	// Blocks of memory allocated by this arena, indexed by their size log 2.
	blocks []*byte

	// Data to keep alive for as long as the arena is marked live.
	keep []unsafe.Pointer
}

// Align is the alignment of every object on the arena.
const Align = int(unsafe.Sizeof(uintptr(0)))

// New allocates a new value of type T on an arena.
func New[T any](a *Arena, value T) *T {
	size, align := unsafe2.Layout[T]()
	if align > Align {
		panic("zca: over-aligned scratch object")
	}

	p := unsafe2.Cast[T](a.Alloc(size))
	*p = value
	return p
}

// KeepAlive ensures that v is not swept by the GC until all pointers into
// the arena go away.
func (a *Arena) KeepAlive(v any) {
	a.keep = append(a.keep, unsafe.Pointer(unsafe2.AnyData(v)))
}

// Alloc allocates size bytes, pointer-aligned.
func (a *Arena) Alloc(size int) *byte {
	size += Align - 1
	size &^= Align - 1

	if a.Next.Add(size) > a.End {
		a.Grow(size)
	}

	p := a.Next.AssertValid()
	a.Next = a.Next.Add(size)
	a.Log("alloc", "%v:%v, %d:%d", p, a.Next, size, Align)

	return p
}

// Mark is a LIFO checkpoint into an arena's bump cursor, returned by
// [Arena.Mark] and consumed by [Arena.Rewind]. Marks must be rewound in the
// reverse order they were taken — the contract required of C4's
// allocate/deallocate pairing.
type Mark struct {
	next unsafe2.Addr[byte]
}

// Mark returns a checkpoint of the arena's current bump cursor.
func (a *Arena) Mark() Mark {
	return Mark{a.Next}
}

// Rewind releases every allocation made since m was taken, making that
// memory available for reuse. Calling Rewind with a Mark that is not the
// most recently taken, not-yet-rewound Mark on this arena is a LIFO
// violation. Debug builds assert only that m is not ahead of the cursor;
// otherwise the bump cursor is simply reset to m (which may discard more,
// or less, than the caller intends — the caller is trusted to obey the
// stack discipline).
func (a *Arena) Rewind(m Mark) {
	trace.Assert(m.next <= a.Next, "arena: Rewind to a mark ahead of the cursor")
	a.Next = m.next
	a.Log("rewind", "%v", m.next)
}

// Free resets this arena to an empty state, allowing all memory it
// allocated to be reused by a later session.
//
// Any memory allocated by the arena must not be referenced after a call to
// Free.
func (a *Arena) Free() {
	a.Next, a.End, a.Cap = 0, 0, 0
	// Nothing in a.blocks can point into a.keep: the only GC-visible
	// pointers in a.blocks are pointers back to a, the arena header. We set
	// this to nil rather than clear() it to avoid an unavoidable bulk write
	// barrier; profiling shows the noscan clear below is much cheaper.
	a.keep = nil

	for log, block := range a.blocks {
		if block != nil {
			unsafe2.Clear(block, 1<<log)
		}
	}
}

// realloc grows or shrinks an allocation.
//
//go:nosplit
func (a *Arena) realloc(newSize, oldSize int, p *byte) *byte {
	i := a.Next.Add(-oldSize)
	j := i.Add(newSize)
	if unsafe2.AddrOf(p) == i && j <= a.End {
		a.Next = j
		a.Log("fast realloc", "%p, %d->%d:%d", p, oldSize, newSize, Align)
		return p
	}

	if newSize < oldSize {
		a.Log("realloc", "%p, %d->%d:%d", p, oldSize, newSize, Align)
		return p
	}

	q := a.Alloc(newSize)
	a.Log("realloc", "%p->%p, %d->%d:%d", p, q, oldSize, newSize, Align)
	if oldSize > 0 {
		unsafe2.Copy(q, p, oldSize)
	}
	return q
}

// Grow allocates a fresh chunk of at least the given size onto the arena.
func (a *Arena) Grow(size int) {
	unsafe2.Escape(a)
	p, n := a.allocChunk(max(size, a.Cap*2))

	a.Next = unsafe2.AddrOf(p)
	a.End = a.Next.Add(n)
	a.Cap = n
	a.Log("grow", "%v:%v:%d", a.Next, a.End, a.Cap)
}

// Log emits a trace line tagged with this arena's current extent.
func (a *Arena) Log(op, format string, args ...any) {
	trace.Log([]any{"%p %v:%v", a, a.Next, a.End}, op, format, args...)
}
