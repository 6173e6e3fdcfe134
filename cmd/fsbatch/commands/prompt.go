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

package commands

import (
	"context"
	"fmt"
	"sync"

	"github.com/pterm/pterm"
	"github.com/walteh/fsbatch/pkg/conflict"
	"gitlab.com/tozd/go/errors"
)

var decisionLabels = []string{
	conflict.Replace.String(),
	conflict.ReplaceAll.String(),
	conflict.Skip.String(),
	conflict.SkipAll.String(),
	conflict.Abort.String(),
}

// SelectFunc shows options and returns the chosen one
type SelectFunc func(title string, options []string) (string, error)

// InteractivePrompter asks on the terminal. Prompts are serialized.
type InteractivePrompter struct {
	mu       sync.Mutex
	selectFn SelectFunc
}

// NewInteractivePrompter prompts with a pterm interactive select
func NewInteractivePrompter() *InteractivePrompter {
	return &InteractivePrompter{selectFn: ptermSelect}
}

func ptermSelect(title string, options []string) (string, error) {
	return pterm.DefaultInteractiveSelect.
		WithOptions(options).
		WithDefaultOption(conflict.Skip.String()).
		Show(title)
}

func (p *InteractivePrompter) Prompt(ctx context.Context, c conflict.Conflict) (conflict.Decision, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return conflict.Abort, err
	}

	title := fmt.Sprintf("⚠️  %s already exists (%s from %s)", c.Destination, c.Operation, c.Source)
	choice, err := p.selectFn(title, decisionLabels)
	if err != nil {
		return conflict.Abort, errors.Errorf("prompting for %s: %w", c.Destination, err)
	}
	return conflict.ParseDecision(choice)
}
