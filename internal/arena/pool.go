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

package arena

import "go.zca.dev/zca/internal/sync2"

// Recycler hands out scratch Arenas backed by a [sync2.Pool], so that
// repeated serialize sessions do not each pay for a fresh chunk allocation
// (§5: "the scratch arena may be recycled across sessions but is never held
// across a suspension of the enclosing session").
var Recycler = sync2.Pool[Arena]{
	Reset: func(a *Arena) { a.Free() },
}

// Get returns a scratch Arena from the recycler and a drop func that
// returns it once the caller's serialize session is over.
func Get() (a *Arena, drop func()) { return Recycler.Get() }
