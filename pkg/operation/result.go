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
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/walteh/fsbatch/pkg/cancel"
	"github.com/walteh/fsbatch/pkg/conflict"
	"github.com/walteh/fsbatch/pkg/usage"
	"gitlab.com/tozd/go/errors"
)

// 🚦 Phase is where a batch is in its lifecycle
type Phase int

const (
	Planning Phase = iota
	Measuring
	Executing
	ResolvingConflicts
	Finished
)

func (p Phase) String() string {
	switch p {
	case Planning:
		return "planning"
	case Measuring:
		return "measuring"
	case Executing:
		return "executing"
	case ResolvingConflicts:
		return "resolving-conflicts"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// 🏁 State is how a finished batch ended
type State int

const (
	Running State = iota
	Completed
	CancelledEarly
	CompletedWithFailures
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Completed:
		return "completed"
	case CancelledEarly:
		return "cancelled"
	case CompletedWithFailures:
		return "completed-with-failures"
	default:
		return "unknown"
	}
}

// Status is the terminal status of one item
type Status int

const (
	Success Status = iota
	Skipped
	Cancelled
	Failed
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Skipped:
		return "skipped"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// 📄 Outcome is recorded once per leaf item and once per failed directory step
type Outcome struct {
	Source      string
	Destination string
	Status      Status
	Err         error
}

// 📈 Progress counts what a batch has processed so far. Processed values never
// exceed the totals.
type Progress struct {
	Operation      Kind
	ProcessedBytes uint64
	ProcessedItems uint64
	TotalBytes     uint64
	TotalItems     uint64
	complete       bool
}

func (p *Progress) addBytes(n uint64) {
	p.ProcessedBytes = min(p.ProcessedBytes+n, p.TotalBytes)
}

func (p *Progress) addItems(n uint64) {
	p.ProcessedItems = min(p.ProcessedItems+n, p.TotalItems)
}

// finish snaps processed counters to the totals
func (p *Progress) finish() {
	p.ProcessedBytes = p.TotalBytes
	p.ProcessedItems = p.TotalItems
	p.complete = true
}

// Percent is bytes based for copy and move and item based for delete and trash
func (p Progress) Percent() float64 {
	if p.complete {
		return 100
	}
	done, total := p.ProcessedBytes, p.TotalBytes
	if !p.Operation.transfers() {
		done, total = p.ProcessedItems, p.TotalItems
	}
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total) * 100
}

// Message is a short human readable summary, e.g. "copy 42% (3/7 items)"
func (p Progress) Message() string {
	return fmt.Sprintf("%s %.0f%% (%d/%d items)", p.Operation, p.Percent(), p.ProcessedItems, p.TotalItems)
}

// 📋 Result is everything a finished batch has to say about itself
type Result struct {
	BatchID   uuid.UUID
	CancelID  cancel.ID
	Operation Kind
	State     State
	Progress  Progress
	Snapshot  usage.Snapshot
	Outcomes  []Outcome
	// Pending holds conflicts never decided because the batch was cancelled
	Pending          []conflict.Conflict
	ConflictsAborted bool
	StartedAt        time.Time
	FinishedAt       time.Time
}

// Count returns how many outcomes have the given status
func (r *Result) Count(status Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Failed returns the failed outcomes in recording order
func (r *Result) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == Failed {
			out = append(out, o)
		}
	}
	return out
}

// Err joins every item failure, or returns nil
func (r *Result) Err() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, o := range r.Failed() {
		errs = append(errs, errors.Errorf("%s %s: %w", r.Operation, o.Source, o.Err))
	}
	return errors.Join(errs...)
}
