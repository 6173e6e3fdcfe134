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

package opts

import (
	"io"

	"github.com/walteh/fsbatch/pkg/config"
	"github.com/walteh/fsbatch/pkg/conflict"
	"github.com/walteh/fsbatch/pkg/desktop"
	"github.com/walteh/fsbatch/pkg/log"
	"github.com/walteh/fsbatch/pkg/operation"
)

// ServiceFactory builds the service for one command run
type ServiceFactory func(prompter conflict.Prompter, observer operation.Observer) *desktop.Service

// RootOpts contains shared options used by all commands
type RootOpts struct {
	Config  *config.Config
	Console *log.Logger
	Out     io.Writer
	Service ServiceFactory
	// Progress draws a progress bar while a batch runs
	Progress bool
}

// HostService returns a factory over the host filesystem
func HostService(cfg *config.Config) ServiceFactory {
	return func(prompter conflict.Prompter, observer operation.Observer) *desktop.Service {
		return desktop.FromConfig(cfg, prompter, observer)
	}
}
