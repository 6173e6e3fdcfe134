// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&HCLParser{})
}

// 🔧 HCLParser implements the Parser interface for HCL files
type HCLParser struct{}

// 🔍 CanParse checks if this parser can handle the given file
func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".hcl")
}

// hclConfig is the HCL schema; pointers tell absent attributes apart
type hclConfig struct {
	Conflict        *string  `hcl:"conflict,optional"`
	BufferSize      *int     `hcl:"buffer_size,optional"`
	IgnorePatterns  []string `hcl:"ignore_patterns,optional"`
	TrashDir        *string  `hcl:"trash_dir,optional"`
	DiscoverVolumes *bool    `hcl:"discover_volumes,optional"`
	LogLevel        *string  `hcl:"log_level,optional"`
	MaxConcurrent   *int     `hcl:"max_concurrent,optional"`
}

// 📝 Parse parses the config from HCL
func (p *HCLParser) Parse(ctx context.Context, data []byte, cfg *Config) error {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, "config.hcl")
	if diags.HasErrors() {
		return errors.Errorf("parsing HCL: %s", diags.Error())
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{},
	}

	var hclCfg hclConfig
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &hclCfg)
	if diags.HasErrors() {
		return errors.Errorf("decoding HCL: %s", diags.Error())
	}

	if hclCfg.Conflict != nil {
		cfg.Conflict = *hclCfg.Conflict
	}
	if hclCfg.BufferSize != nil {
		cfg.BufferSize = *hclCfg.BufferSize
	}
	if hclCfg.IgnorePatterns != nil {
		cfg.IgnorePatterns = hclCfg.IgnorePatterns
	}
	if hclCfg.TrashDir != nil {
		cfg.TrashDir = *hclCfg.TrashDir
	}
	if hclCfg.DiscoverVolumes != nil {
		cfg.DiscoverVolumes = *hclCfg.DiscoverVolumes
	}
	if hclCfg.LogLevel != nil {
		cfg.LogLevel = *hclCfg.LogLevel
	}
	if hclCfg.MaxConcurrent != nil {
		cfg.MaxConcurrent = *hclCfg.MaxConcurrent
	}
	return nil
}
