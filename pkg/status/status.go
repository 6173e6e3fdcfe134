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

package status

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/walteh/fsbatch/pkg/operation"
)

// 📊 Tally is what the reporter knows about one live batch
type Tally struct {
	Operation operation.Kind
	Phase     operation.Phase
	Progress  operation.Progress
	Succeeded int
	Skipped   int
	Failed    int
	Current   string
}

type tracked struct {
	Tally
	lastLogged  time.Time
	lastPercent float64
}

type ReporterOption func(*Reporter)

// WithInterval sets the minimum time between progress records
func WithInterval(d time.Duration) ReporterOption {
	return func(r *Reporter) {
		r.interval = d
	}
}

// WithStep sets the percentage growth that forces a progress record
func WithStep(pct float64) ReporterOption {
	return func(r *Reporter) {
		r.step = pct
	}
}

func WithFormatter(f FileFormatter) ReporterOption {
	return func(r *Reporter) {
		r.formatter = f
	}
}

func WithClock(now func() time.Time) ReporterOption {
	return func(r *Reporter) {
		r.now = now
	}
}

// 📈 Reporter is an operation.Observer that logs through zerolog.Ctx
type Reporter struct {
	formatter FileFormatter
	interval  time.Duration
	step      float64
	now       func() time.Time

	mu      sync.Mutex
	batches map[uuid.UUID]*tracked
}

var _ operation.Observer = (*Reporter)(nil)

// 🏭 NewReporter creates a reporter logging progress at most once a second or every 10%
func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{
		formatter: NewDefaultFileFormatter(),
		interval:  time.Second,
		step:      10,
		now:       time.Now,
		batches:   make(map[uuid.UUID]*tracked),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tally returns a copy of a live batch's tally
func (r *Reporter) Tally(id uuid.UUID) (Tally, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.batches[id]
	if !ok {
		return Tally{}, false
	}
	return t.Tally, true
}

// Live returns the number of batches not yet finished
func (r *Reporter) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *Reporter) Observe(ctx context.Context, ev operation.Event) {
	logger := zerolog.Ctx(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.batches[ev.BatchID]
	if !ok {
		t = &tracked{Tally: Tally{Operation: ev.Operation}, lastLogged: r.now()}
		r.batches[ev.BatchID] = t
	}
	t.Phase = ev.Phase
	t.Progress = ev.Progress

	switch ev.Kind {
	case operation.EventPhase:
		if ev.Phase == operation.Finished {
			delete(r.batches, ev.BatchID)
			logger.Info().
				Stringer("state", ev.State).
				Int("succeeded", t.Succeeded).
				Int("skipped", t.Skipped).
				Int("failed", t.Failed).
				Msg(r.formatter.FormatProgress(ev.Progress))
			return
		}
		logger.Debug().Stringer("phase", ev.Phase).Msg("batch phase")

	case operation.EventItemStarted:
		t.Current = ev.Item

	case operation.EventItemFinished:
		t.Current = ""
		if ev.Outcome == nil {
			return
		}
		switch ev.Outcome.Status {
		case operation.Success:
			t.Succeeded++
		case operation.Skipped:
			t.Skipped++
		case operation.Failed:
			t.Failed++
		}
		msg := r.formatter.FormatOutcome(ev.Operation, *ev.Outcome)
		if ev.Outcome.Status == operation.Failed {
			logger.Warn().Str("error", r.formatter.FormatError(ev.Outcome.Err)).Msg(msg)
		} else {
			logger.Debug().Msg(msg)
		}
		r.maybeProgress(logger, t, ev.Progress)

	case operation.EventProgress:
		r.maybeProgress(logger, t, ev.Progress)

	case operation.EventConflict:
		if ev.Conflict != nil {
			logger.Info().Str("destination", ev.Conflict.Destination).Msg("⚠️  Destination exists, deciding later")
		}
	}
}

func (r *Reporter) maybeProgress(logger *zerolog.Logger, t *tracked, p operation.Progress) {
	now := r.now()
	pct := p.Percent()
	if now.Sub(t.lastLogged) < r.interval && pct-t.lastPercent < r.step {
		return
	}
	t.lastLogged = now
	t.lastPercent = pct
	logger.Info().
		Uint64("processed_bytes", p.ProcessedBytes).
		Uint64("total_bytes", p.TotalBytes).
		Msg(r.formatter.FormatProgress(p))
}
