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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/fsbatch/pkg/conflict"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse decodes data on top of cfg, leaving absent fields alone
	Parse(ctx context.Context, data []byte, cfg *Config) error

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// ConflictPrompt asks interactively instead of applying a fixed decision
const ConflictPrompt = "prompt"

// 📚 Config represents the complete configuration
type Config struct {
	// Conflict is prompt, replace, skip or abort
	Conflict        string   `json:"conflict" yaml:"conflict" envconfig:"CONFLICT" validate:"oneof=prompt replace skip abort"`
	BufferSize      int      `json:"buffer_size" yaml:"buffer_size" envconfig:"BUFFER_SIZE" validate:"gte=512"`
	IgnorePatterns  []string `json:"ignore_patterns" yaml:"ignore_patterns" envconfig:"IGNORE_PATTERNS" validate:"dive,required"`
	TrashDir        string   `json:"trash_dir" yaml:"trash_dir" envconfig:"TRASH_DIR"`
	DiscoverVolumes bool     `json:"discover_volumes" yaml:"discover_volumes" envconfig:"DISCOVER_VOLUMES"`
	LogLevel        string   `json:"log_level" yaml:"log_level" envconfig:"LOG_LEVEL" validate:"oneof=trace debug info warn error disabled"`
	MaxConcurrent   int      `json:"max_concurrent" yaml:"max_concurrent" envconfig:"MAX_CONCURRENT" validate:"gte=0,lte=64"`

	location string
}

// Default returns the settings used when nothing else is configured
func Default() *Config {
	return &Config{
		Conflict:        ConflictPrompt,
		BufferSize:      1 << 20,
		DiscoverVolumes: true,
		LogLevel:        "info",
		MaxConcurrent:   4,
	}
}

// Location is the file the config was loaded from, if any
func (cfg *Config) Location() string {
	return cfg.location
}

// 🎯 Load reads path, applies the environment and validates. An empty path
// yields the defaults plus the environment.
func Load(ctx context.Context, fs afero.Fs, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	cfg := Default()

	if path != "" {
		logger.Debug().Str("path", path).Msg("loading configuration")

		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, errors.Errorf("reading config file: %w", err)
		}

		p := GetParser(path)
		if p == nil {
			return nil, errors.Errorf("no parser found for file: %s", path)
		}
		if err := p.Parse(ctx, data, cfg); err != nil {
			return nil, errors.Errorf("parsing config: %w", err)
		}
		cfg.location = path
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Discover returns the first .fsbatch.{yaml,yml,json,hcl} in dir, or ""
func Discover(fs afero.Fs, dir string) string {
	for _, ext := range []string{".yaml", ".yml", ".json", ".hcl"} {
		candidate := filepath.Join(dir, ".fsbatch"+ext)
		if ok, _ := afero.Exists(fs, candidate); ok {
			return candidate
		}
	}
	return ""
}

var validate = validator.New()

// 🔍 Validate checks field constraints and ignore-pattern syntax
func (cfg *Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		return errors.Errorf("invalid config: %w", err)
	}
	for _, pattern := range cfg.IgnorePatterns {
		if !doublestar.ValidatePattern(pattern) {
			return errors.Errorf("invalid ignore pattern %q", pattern)
		}
	}
	if cfg.TrashDir != "" {
		cfg.TrashDir = filepath.Clean(cfg.TrashDir)
	}
	return nil
}

// ConflictDecision returns the fixed decision, or false when the user should be prompted
func (cfg *Config) ConflictDecision() (conflict.Decision, bool) {
	if cfg.Conflict == ConflictPrompt {
		return 0, false
	}
	d, err := conflict.ParseDecision(cfg.Conflict)
	if err != nil {
		return 0, false
	}
	return d, true
}

// Level parses LogLevel, falling back to info
func (cfg *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// 📝 String returns a string representation of the config
func (cfg *Config) String() string {
	return fmt.Sprintf("conflict=%s buffer=%d ignore=[%s] max_concurrent=%d",
		cfg.Conflict, cfg.BufferSize, strings.Join(cfg.IgnorePatterns, ","), cfg.MaxConcurrent)
}

// 🔧 YAMLParser implements the Parser interface for YAML files
type YAMLParser struct{}

func init() {
	Register(&YAMLParser{})
}

func (p *YAMLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml")
}

func (p *YAMLParser) Parse(ctx context.Context, data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return errors.Errorf("parsing YAML: %w", err)
	}
	return nil
}
