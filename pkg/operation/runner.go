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
	"sync"

	"github.com/rs/zerolog"
	"github.com/walteh/fsbatch/pkg/cancel"
	"gitlab.com/tozd/go/errors"
)

// Completion is delivered once when a started batch returns
type Completion struct {
	Result *Result
	Err    error
}

// 🏃 Runner starts batches concurrently and addresses them by cancellation id
type Runner struct {
	exec  *Executor
	slots chan struct{}

	mu    sync.Mutex
	gates map[cancel.ID]*Gate
	wg    sync.WaitGroup
}

// 🏗️ NewRunner creates a runner; maxConcurrent <= 0 means unbounded
func NewRunner(exec *Executor, maxConcurrent int) *Runner {
	r := &Runner{
		exec:  exec,
		gates: make(map[cancel.ID]*Gate),
	}
	if maxConcurrent > 0 {
		r.slots = make(chan struct{}, maxConcurrent)
	}
	return r
}

// Start runs req on a new goroutine. The id is the one given with WithCancelID,
// or a freshly reserved one. An id that is already running is refused with
// ErrInvalidRequest and the running batch is left alone.
func (r *Runner) Start(ctx context.Context, req Request, opts ...RunOption) (cancel.ID, <-chan Completion) {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}
	id := ro.cancelID
	if !ro.hasCancelID {
		id = r.exec.registry.Reserve()
		opts = append(opts, WithCancelID(id))
	}

	done := make(chan Completion, 1)

	gate := NewGate()
	r.mu.Lock()
	if _, running := r.gates[id]; running {
		r.mu.Unlock()
		done <- Completion{Err: errors.Errorf("%w: cancellation id %d is already running", ErrInvalidRequest, id)}
		return id, done
	}
	r.gates[id] = gate
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.gates, id)
			r.mu.Unlock()
		}()

		held, err := r.acquire(ctx, id)
		if err != nil {
			r.exec.registry.Release(id)
			done <- Completion{Err: errors.Errorf("waiting for a batch slot: %w", err)}
			return
		}
		if held {
			defer r.release()
		}

		res, err := r.exec.Run(ctx, req, append(opts, WithPauser(gate))...)
		done <- Completion{Result: res, Err: err}
	}()

	return id, done
}

// Run starts req and waits for it
func (r *Runner) Run(ctx context.Context, req Request, opts ...RunOption) (*Result, error) {
	_, done := r.Start(ctx, req, opts...)
	c := <-done
	return c.Result, c.Err
}

// acquire takes a slot. A batch cancelled while queued runs without one so it
// still reports CancelledEarly.
func (r *Runner) acquire(ctx context.Context, id cancel.ID) (bool, error) {
	if r.slots == nil {
		return false, nil
	}
	var cancelled <-chan struct{}
	if tok, ok := r.exec.registry.Lookup(id); ok {
		cancelled = tok.Done()
	}
	select {
	case r.slots <- struct{}{}:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-cancelled:
		return false, nil
	}
}

func (r *Runner) release() {
	if r.slots != nil {
		<-r.slots
	}
}

func (r *Runner) gate(id cancel.ID) (*Gate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.gates[id]
	return g, ok
}

// ⏸️ Pause holds the batch before its next item
func (r *Runner) Pause(ctx context.Context, id cancel.ID) bool {
	g, ok := r.gate(id)
	if !ok {
		return false
	}
	paused := g.Pause()
	zerolog.Ctx(ctx).Debug().Uint32("cancel_id", uint32(id)).Bool("changed", paused).Msg("pause requested")
	return paused
}

// ▶️ Resume releases a paused batch
func (r *Runner) Resume(ctx context.Context, id cancel.ID) bool {
	g, ok := r.gate(id)
	if !ok {
		return false
	}
	resumed := g.Resume()
	zerolog.Ctx(ctx).Debug().Uint32("cancel_id", uint32(id)).Bool("changed", resumed).Msg("resume requested")
	return resumed
}

// 🛑 Cancel fires the batch's token; a paused batch wakes up and stops
func (r *Runner) Cancel(ctx context.Context, id cancel.ID) bool {
	ok := r.exec.registry.Cancel(id)
	zerolog.Ctx(ctx).Debug().Uint32("cancel_id", uint32(id)).Bool("live", ok).Msg("cancel requested")
	return ok
}

// Release drops a reserved id that was never handed to a batch. It reports
// false for unknown ids and for ids whose batch is still running.
func (r *Runner) Release(ctx context.Context, id cancel.ID) bool {
	if _, running := r.gate(id); running {
		return false
	}
	if _, ok := r.exec.registry.Lookup(id); !ok {
		return false
	}
	r.exec.registry.Release(id)
	zerolog.Ctx(ctx).Debug().Uint32("cancel_id", uint32(id)).Msg("reservation released")
	return true
}

// Active returns the number of batches started and not yet returned
func (r *Runner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.gates)
}

// Wait blocks until every started batch has returned
func (r *Runner) Wait() {
	r.wg.Wait()
}
