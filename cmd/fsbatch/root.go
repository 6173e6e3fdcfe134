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

package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/walteh/fsbatch/cmd/fsbatch/opts"
	"github.com/walteh/fsbatch/pkg/config"
	"github.com/walteh/fsbatch/pkg/log"
	"gitlab.com/tozd/go/errors"
)

var (
	// Flags
	configFile string
	envFile    string
	debug      bool
	noProgress bool
)

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default: .fsbatch.{yaml,yml,json,hcl} in the working directory)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file exported before reading FSBATCH_* variables")
	cmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	cmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
}

// setupRoot loads config and fills in the shared options
func setupRoot(ctx context.Context, root *opts.RootOpts) (context.Context, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return ctx, err
	}

	fs := afero.NewOsFs()
	path := configFile
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			path = config.Discover(fs, wd)
		}
	}

	cfg, err := config.Load(ctx, fs, path)
	if err != nil {
		return ctx, errors.Errorf("loading config: %w", err)
	}

	level := cfg.Level()
	if debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.Ctx(ctx).Level(level)
	ctx = logger.WithContext(ctx)
	logger.Debug().Str("config", cfg.Location()).Msg("configuration loaded")

	root.Config = cfg
	root.Console = log.New(root.Out, level)
	root.Service = opts.HostService(cfg)
	root.Progress = !noProgress

	return log.NewContext(ctx, root.Console), nil
}
