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

package operation

import (
	"context"

	"github.com/google/uuid"
	"github.com/walteh/fsbatch/pkg/conflict"
)

// EventKind says which field of an Event is meaningful
type EventKind int

const (
	// EventPhase fires on every phase change; Event.Phase is set
	EventPhase EventKind = iota
	// EventItemStarted fires before the native call for Event.Item
	EventItemStarted
	// EventProgress fires whenever processed counters grow
	EventProgress
	// EventItemFinished carries the recorded Event.Outcome
	EventItemFinished
	// EventConflict fires when a conflict is deferred; Event.Conflict is set
	EventConflict
)

// 📣 Event is a snapshot of a batch at a moment worth reporting
type Event struct {
	Kind      EventKind
	BatchID   uuid.UUID
	Request   Request
	Operation Kind
	Phase     Phase
	State     State
	Item      string
	Outcome   *Outcome
	Conflict  *conflict.Conflict
	Progress  Progress
}

// 👀 Observer receives events on the goroutine driving the batch. Implementations
// must not block for long.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) Observe(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// MultiObserver fans events out in order
type MultiObserver []Observer

func (m MultiObserver) Observe(ctx context.Context, ev Event) {
	for _, o := range m {
		if o != nil {
			o.Observe(ctx, ev)
		}
	}
}

type NopObserver struct{}

func (NopObserver) Observe(context.Context, Event) {}
