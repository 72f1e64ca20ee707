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

import "encoding/binary"

// AlignMode selects how container headers and fields are padded (§4.2).
type AlignMode int

const (
	// AlignNatural pads every archived value to its own alignment. The
	// default, and the only mode that makes [Access] safe on platforms
	// that fault on misaligned loads.
	AlignNatural AlignMode = iota
	// AlignPacked disables padding beyond 1 byte. Produces the smallest
	// archives; accessing the result requires a copying read on strict-
	// alignment platforms. [Access] does not consult the Profile: it always
	// casts in place and panics when the buffer does not meet the Go type's
	// alignment.
	AlignPacked
)

// Profile collects the format-control knobs that a [Serializer] and
// [Validate] must agree on out of band (§6): the archive itself carries no
// self-describing header, so a reader must already know the Profile a
// writer used.
type Profile struct {
	// Order is the byte order archived primitives use. Defaults to
	// binary.LittleEndian, matching the host architectures this package's
	// unsafe accessors are built around.
	Order binary.ByteOrder
	// Align controls padding of container headers and fields.
	Align AlignMode
	// MaxDepth bounds recursive serialization depth, guarding against stack
	// overflow on adversarial or accidentally-cyclic input graphs (§9,
	// CycleGuard covers true cycles; this covers pathologically deep but
	// acyclic ones).
	MaxDepth int
}

// DefaultProfile is the Profile used when a caller does not supply one:
// little-endian primitives, natural alignment, depth capped at 512.
func DefaultProfile() Profile {
	return Profile{
		Order:    binary.LittleEndian,
		Align:    AlignNatural,
		MaxDepth: 512,
	}
}

func (p Profile) order() binary.ByteOrder {
	if p.Order == nil {
		return binary.LittleEndian
	}
	return p.Order
}

func (p Profile) maxDepth() int {
	if p.MaxDepth <= 0 {
		return 512
	}
	return p.MaxDepth
}
