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

// zcadump validates one or more archive files against an out-of-band
// [config], and reports aggregate size statistics across all of them.
//
// Usage:
//
//	zcadump -profile profile.yaml archive1.bin archive2.bin ...
package main

import (
	"flag"
	"fmt"
	"os"

	"go.zca.dev/zca"
	"go.zca.dev/zca/internal/flag2"
	"go.zca.dev/zca/internal/stats"
)

var (
	profilePath = flag.String("profile", "", "path to a YAML profile describing the archive's format and root shape")
	output      = flag.String("o", "-", "location to write the report to; defaults to stdout")
	quiet       = flag.Bool("q", false, "suppress per-file lines; print only the aggregate report")
)

func main() {
	flag.Parse()
	if err := run(flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "zcadump:", err)
		os.Exit(1)
	}
}

func run(paths []string) error {
	if *profilePath == "" {
		return fmt.Errorf("-profile is required")
	}
	if len(paths) == 0 {
		return fmt.Errorf("no archive files given")
	}

	cfg, err := loadConfig(*profilePath)
	if err != nil {
		return err
	}
	prof, err := cfg.profile()
	if err != nil {
		return err
	}

	out := os.Stdout
	if path := flag2.Lookup[string]("o"); path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("opening -o target: %w", err)
		}
		defer f.Close()
		out = f
	}

	var sizes stats.Mean
	median := stats.NewMedian(256)
	bad := 0

	for _, path := range paths {
		size, err := dumpOne(out, path, prof, cfg.RootSize, cfg.RootAlign)
		if err != nil {
			bad++
			fmt.Fprintf(out, "%s: INVALID: %v\n", path, err)
			continue
		}
		sizes.Record(float64(size))
		median.Record(float64(size))
	}

	fmt.Fprintf(out, "\n%d archive(s), %d invalid\n", len(paths), bad)
	fmt.Fprintf(out, "mean size:   %.1f bytes\n", sizes.Get())
	fmt.Fprintf(out, "median size: %.1f bytes\n", median.Get())

	if bad > 0 {
		return fmt.Errorf("%d of %d archives failed validation", bad, len(paths))
	}
	return nil
}

func dumpOne(out *os.File, path string, prof zca.Profile, rootSize, rootAlign int) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	if err := zca.ValidateRawRoot(data, prof, rootSize, rootAlign); err != nil {
		return 0, err
	}
	if !*quiet {
		fmt.Fprintf(out, "%s: ok, %d bytes\n", path, len(data))
	}
	return int64(len(data)), nil
}
