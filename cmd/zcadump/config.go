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

package main

import (
	"encoding/binary"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"go.zca.dev/zca"
)

// config is the on-disk shape of the -profile YAML file: the out-of-band
// parameters a reader needs to interpret a buffer as an archive (§6 of the
// format), plus the raw root shape this tool needs since it has no
// compile-time Go root type to ask for its size and alignment.
type config struct {
	Order     string `yaml:"order"`      // "big" or "little"; defaults to "little"
	Align     string `yaml:"align"`      // "natural" or "packed"; defaults to "natural"
	MaxDepth  int    `yaml:"max_depth"`  // 0 means use zca's default
	RootSize  int    `yaml:"root_size"`  // required: size in bytes of the archived root type
	RootAlign int    `yaml:"root_align"` // required: alignment in bytes of the archived root type
}

func loadConfig(path string) (config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return config{}, fmt.Errorf("zcadump: reading profile %s: %w", path, err)
	}
	var c config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return config{}, fmt.Errorf("zcadump: parsing profile %s: %w", path, err)
	}
	if c.RootSize <= 0 {
		return config{}, fmt.Errorf("zcadump: profile %s: root_size must be positive", path)
	}
	if c.RootAlign <= 0 {
		return config{}, fmt.Errorf("zcadump: profile %s: root_align must be positive", path)
	}
	return c, nil
}

func (c config) profile() (zca.Profile, error) {
	p := zca.DefaultProfile()

	switch c.Order {
	case "", "little":
		p.Order = binary.LittleEndian
	case "big":
		p.Order = binary.BigEndian
	default:
		return p, fmt.Errorf("zcadump: unknown order %q", c.Order)
	}

	switch c.Align {
	case "", "natural":
		p.Align = zca.AlignNatural
	case "packed":
		p.Align = zca.AlignPacked
	default:
		return p, fmt.Errorf("zcadump: unknown align %q", c.Align)
	}

	if c.MaxDepth > 0 {
		p.MaxDepth = c.MaxDepth
	}
	return p, nil
}
