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

//go:build debug

// Package trace includes the verbose, opt-in tracer used by the sink,
// serializer, scratch allocator, swiss table, and validator to narrate
// allocation/emplacement/validation decisions. It compiles away entirely
// (see trace_off.go) unless built with `-tags debug`.
package trace

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/timandy/routine"
)

// Enabled is true when the compiler is built with the debug tag.
const Enabled = true

var pattern *regexp.Regexp

func init() {
	flag.Func("zca.trace", "regexp to filter trace lines by", func(s string) (err error) {
		pattern, err = regexp.Compile(s)
		return err
	})
}

// Log prints tracing information to stderr.
//
// context is optional args for fmt.Printf that are printed before operation,
// useful for identifying which session/arena/buffer a line refers to.
func Log(context []any, operation string, format string, args ...any) {
	skip := 1
again:
	pc, file, line, _ := runtime.Caller(skip)
	fn := runtime.FuncForPC(pc)
	name := fn.Name()
	name = name[strings.LastIndex(name, ".")+1:]
	if strings.HasPrefix(name, "log") || strings.Contains(name, "Log") {
		skip++
		goto again
	}

	pkg := fn.Name()
	pkg = strings.TrimPrefix(pkg, "go.zca.dev/zca/")
	if i := strings.Index(pkg, "."); i >= 0 {
		pkg = pkg[:i]
	}

	file = filepath.Base(file)

	buf := new(strings.Builder)
	fmt.Fprintf(buf, "%s/%s:%d [g%04d", pkg, file, line, routine.Goid())
	if len(context) >= 1 {
		fmt.Fprintf(buf, ", "+context[0].(string), context[1:]...)
	}
	fmt.Fprintf(buf, "] %s: ", operation)
	fmt.Fprintf(buf, format, args...)

	if pattern != nil && !pattern.MatchString(buf.String()) {
		return
	}

	buf.WriteByte('\n')
	os.Stderr.WriteString(buf.String())
}

// Assert panics if cond is false. Only compiled into debug builds; release
// builds trust their callers instead of paying for the check.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Errorf("zca: internal assertion failed: "+format, args...))
	}
}

// Value is a value of any type that only exists when the debug tag is
// enabled, for state that is purely diagnostic (e.g. a serialize-time stack
// of in-flight source addresses, kept only so a trace line can print it).
type Value[T any] struct{ x T }

// Get returns a pointer to the wrapped value.
func (v *Value[T]) Get() *T { return &v.x }
