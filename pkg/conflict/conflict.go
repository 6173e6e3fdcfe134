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

// Package conflict decides what happens when a transfer destination already exists.
package conflict

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// ErrConflictAborted marks conflicts left untouched after the user aborted
var ErrConflictAborted = errors.New("conflict resolution aborted")

// 🤔 Decision is the answer to one conflict
type Decision int

const (
	Replace Decision = iota
	ReplaceAll
	Skip
	SkipAll
	Abort
)

func (d Decision) String() string {
	switch d {
	case Replace:
		return "replace"
	case ReplaceAll:
		return "replace-all"
	case Skip:
		return "skip"
	case SkipAll:
		return "skip-all"
	case Abort:
		return "abort"
	default:
		return "unknown"
	}
}

// ParseDecision accepts the names produced by Decision.String
func ParseDecision(s string) (Decision, error) {
	for _, d := range []Decision{Replace, ReplaceAll, Skip, SkipAll, Abort} {
		if strings.EqualFold(s, d.String()) {
			return d, nil
		}
	}
	return 0, errors.Errorf("unknown conflict decision %q", s)
}

// ⚠️ Conflict is one destination that already existed during the main pass
type Conflict struct {
	Operation   string
	Source      string
	Destination string
}

// Prompter asks someone (or something) how to resolve a conflict
type Prompter interface {
	Prompt(ctx context.Context, c Conflict) (Decision, error)
}

// PrompterFunc adapts a function to Prompter
type PrompterFunc func(ctx context.Context, c Conflict) (Decision, error)

func (f PrompterFunc) Prompt(ctx context.Context, c Conflict) (Decision, error) {
	return f(ctx, c)
}

// Policy answers every conflict the same way without asking
type Policy Decision

func (p Policy) Prompt(ctx context.Context, c Conflict) (Decision, error) {
	return Decision(p), nil
}

// 🧭 Resolver remembers ReplaceAll and SkipAll for the rest of a batch.
// Use one Resolver per batch.
type Resolver struct {
	prompter Prompter

	mu     sync.Mutex
	sticky *Decision
}

func NewResolver(prompter Prompter) *Resolver {
	if prompter == nil {
		prompter = Policy(Skip)
	}
	return &Resolver{prompter: prompter}
}

// Decide returns Replace, Skip or Abort for c
func (r *Resolver) Decide(ctx context.Context, c Conflict) (Decision, error) {
	r.mu.Lock()
	sticky := r.sticky
	r.mu.Unlock()
	if sticky != nil {
		return *sticky, nil
	}

	d, err := r.prompter.Prompt(ctx, c)
	if err != nil {
		return 0, errors.Errorf("prompting for %s: %w", c.Destination, err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("source", c.Source).
		Str("destination", c.Destination).
		Stringer("decision", d).
		Msg("conflict decided")

	switch d {
	case ReplaceAll:
		r.remember(Replace)
		return Replace, nil
	case SkipAll:
		r.remember(Skip)
		return Skip, nil
	case Replace, Skip, Abort:
		return d, nil
	default:
		return 0, errors.Errorf("prompter returned invalid decision %d", int(d))
	}
}

func (r *Resolver) remember(d Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sticky = &d
}
