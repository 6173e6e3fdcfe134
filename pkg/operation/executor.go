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
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/walteh/fsbatch/pkg/cancel"
	"github.com/walteh/fsbatch/pkg/conflict"
	"github.com/walteh/fsbatch/pkg/native"
	"github.com/walteh/fsbatch/pkg/usage"
	"gitlab.com/tozd/go/errors"
)

// 🏗️ Option configures an Executor
type Option func(*Executor)

// WithPrompter sets who decides conflicts. Each batch gets its own conflict.Resolver,
// so ReplaceAll and SkipAll never leak between batches.
func WithPrompter(p conflict.Prompter) Option {
	return func(e *Executor) {
		e.prompter = p
	}
}

func WithObserver(o Observer) Option {
	return func(e *Executor) {
		e.observer = o
	}
}

// WithIgnorePatterns excludes matching descendants from measuring and transfer
func WithIgnorePatterns(patterns ...string) Option {
	return func(e *Executor) {
		e.ignore = append(e.ignore, patterns...)
	}
}

// WithPlanner replaces the default usage.Planner
func WithPlanner(p *usage.Planner) Option {
	return func(e *Executor) {
		e.planner = p
	}
}

// RunOption configures a single Run
type RunOption func(*runOptions)

type runOptions struct {
	cancelID    cancel.ID
	hasCancelID bool
	pauser      Pauser
	observer    Observer
}

// WithCancelID runs the batch under a token reserved earlier with cancel.Registry.Reserve.
// The token is released when the batch finishes.
func WithCancelID(id cancel.ID) RunOption {
	return func(o *runOptions) {
		o.cancelID = id
		o.hasCancelID = true
	}
}

func WithPauser(p Pauser) RunOption {
	return func(o *runOptions) {
		o.pauser = p
	}
}

// WithBatchObserver adds an observer for this run only
func WithBatchObserver(obs Observer) RunOption {
	return func(o *runOptions) {
		o.observer = obs
	}
}

// 🚚 Executor runs batches against a native.Platform
type Executor struct {
	platform native.Platform
	registry *cancel.Registry
	planner  *usage.Planner
	prompter conflict.Prompter
	observer Observer
	ignore   []string
}

func NewExecutor(platform native.Platform, registry *cancel.Registry, opts ...Option) *Executor {
	e := &Executor{
		platform: platform,
		registry: registry,
		prompter: conflict.Policy(conflict.Skip),
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.planner == nil {
		e.planner = usage.NewPlanner(platform, usage.WithIgnorePatterns(e.ignore...))
	}
	if e.registry == nil {
		e.registry = cancel.New()
	}
	return e
}

// Registry returns the registry tokens are reserved in
func (e *Executor) Registry() *cancel.Registry {
	return e.registry
}

// pendingConflict is a destination that existed during the main pass
type pendingConflict struct {
	info native.Info
	dst  string
}

// batch is the state of one Run, owned by the goroutine calling Run
type batch struct {
	*Executor
	ctx      context.Context
	tok      *cancel.Token
	req      Request
	res      *Result
	resolver *conflict.Resolver
	pauser   Pauser
	observer Observer
	phase    Phase

	pending   []pendingConflict
	movedDirs []string
}

// 🏃 Run executes req to completion, cancellation or a fatal error.
//
// The returned error is ErrInvalidRequest, a usage.ErrMeasurement, or the join of
// every per-item failure (the Result is still returned in that case). A cancelled
// batch is not an error.
func (e *Executor) Run(ctx context.Context, req Request, opts ...RunOption) (*Result, error) {
	ro := runOptions{pauser: neverPaused{}}
	for _, opt := range opts {
		opt(&ro)
	}

	var tok *cancel.Token
	if ro.hasCancelID {
		found, ok := e.registry.Lookup(ro.cancelID)
		if !ok {
			return nil, errors.Errorf("%w: unknown cancellation id %d", ErrInvalidRequest, ro.cancelID)
		}
		tok = found
	} else {
		found, _ := e.registry.Lookup(e.registry.Reserve())
		tok = found
	}
	defer e.registry.Release(tok.ID())

	res := &Result{
		BatchID:   uuid.New(),
		CancelID:  tok.ID(),
		Operation: req.Operation,
		StartedAt: time.Now(),
		Progress:  Progress{Operation: req.Operation},
	}

	logger := zerolog.Ctx(ctx).With().
		Str("batch_id", res.BatchID.String()).
		Stringer("operation", req.Operation).
		Logger()
	ctx = logger.WithContext(ctx)

	ctx, stop := cancel.WithToken(ctx, tok)
	defer stop()

	b := &batch{
		Executor: e,
		ctx:      ctx,
		tok:      tok,
		req:      req,
		res:      res,
		resolver: conflict.NewResolver(e.prompter),
		pauser:   ro.pauser,
		observer: MultiObserver{e.observer, ro.observer},
	}

	b.setPhase(Planning)
	if err := req.Validate(ctx, e.platform); err != nil {
		return nil, err
	}

	b.setPhase(Measuring)
	snap, err := e.planner.Measure(ctx, req.Sources)
	if err != nil {
		if b.cancelled() {
			return b.finish(), nil
		}
		return nil, errors.Errorf("measuring batch: %w", err)
	}
	res.Snapshot = snap
	res.Progress.TotalBytes = snap.TotalBytes
	res.Progress.TotalItems = snap.TotalItems
	b.emit(Event{Kind: EventProgress})

	b.setPhase(Executing)
	for _, src := range req.Sources {
		if !b.proceed() {
			break
		}
		b.runSource(src)
	}

	if len(b.pending) > 0 && !b.cancelled() {
		b.setPhase(ResolvingConflicts)
		b.resolveConflicts()
	}

	if req.Operation == Move {
		b.removeEmptiedDirs()
	}

	return b.finish(), res.Err()
}

func (b *batch) cancelled() bool {
	return b.tok.Cancelled() || b.ctx.Err() != nil
}

// proceed waits out a pause and reports whether the next item may start
func (b *batch) proceed() bool {
	if b.cancelled() {
		return false
	}
	if err := b.pauser.Wait(b.ctx); err != nil {
		return false
	}
	return !b.cancelled()
}

func (b *batch) finish() *Result {
	res := b.res
	for _, p := range b.pending {
		res.Pending = append(res.Pending, b.conflictFor(p))
		b.record(Outcome{Source: p.info.Path, Destination: p.dst, Status: Cancelled, Err: context.Canceled}, p.info, 0)
	}
	b.pending = nil

	switch {
	case b.cancelled():
		res.State = CancelledEarly
	case res.Count(Failed) > 0:
		res.State = CompletedWithFailures
	default:
		res.State = Completed
		before := res.Progress
		res.Progress.finish()
		b.progressed(before)
	}
	res.FinishedAt = time.Now()

	zerolog.Ctx(b.ctx).Info().
		Stringer("state", res.State).
		Int("succeeded", res.Count(Success)).
		Int("skipped", res.Count(Skipped)).
		Int("failed", res.Count(Failed)).
		Dur("took", res.FinishedAt.Sub(res.StartedAt)).
		Msg("batch finished")

	b.setPhase(Finished)
	return res
}

func (b *batch) setPhase(p Phase) {
	b.phase = p
	b.emit(Event{Kind: EventPhase})
}

func (b *batch) emit(ev Event) {
	ev.BatchID = b.res.BatchID
	ev.Request = b.req
	ev.Operation = b.req.Operation
	ev.Phase = b.phase
	ev.State = b.res.State
	ev.Progress = b.res.Progress
	b.observer.Observe(b.ctx, ev)
}

// record stores a terminal outcome. Anything but a cancellation counts the item
// as processed and tops its bytes up to the item size, minus what was streamed.
func (b *batch) record(o Outcome, info native.Info, streamed int64) {
	b.res.Outcomes = append(b.res.Outcomes, o)

	before := b.res.Progress
	if o.Status != Cancelled {
		b.res.Progress.addItems(1)
		if rest := info.Size - streamed; rest > 0 && !info.IsDir {
			b.res.Progress.addBytes(uint64(rest))
		}
	}

	ev := zerolog.Ctx(b.ctx).Debug()
	if o.Status == Failed {
		ev = zerolog.Ctx(b.ctx).Warn().Err(o.Err)
	}
	ev.Str("source", o.Source).Str("destination", o.Destination).Stringer("status", o.Status).Msg("item finished")

	b.emit(Event{Kind: EventItemFinished, Item: o.Source, Outcome: &o})
	b.progressed(before)
}

// progressed emits EventProgress when the counters grew since before
func (b *batch) progressed(before Progress) {
	p := b.res.Progress
	if p.ProcessedBytes > before.ProcessedBytes || p.ProcessedItems > before.ProcessedItems {
		b.emit(Event{Kind: EventProgress})
	}
}

func (b *batch) fail(src, dst string, info native.Info, err error) {
	b.record(Outcome{Source: src, Destination: dst, Status: Failed, Err: err}, info, 0)
}

func (b *batch) ignored(path string) bool {
	return usage.Ignored(b.ignore, path)
}

func (b *batch) runSource(src string) {
	info, err := b.platform.Stat(b.ctx, src)
	if err != nil {
		b.fail(src, "", native.Info{Path: src}, err)
		return
	}

	switch b.req.Operation {
	case Copy, Move:
		dst := filepath.Join(b.req.Destination, filepath.Base(filepath.Clean(src)))
		if filepath.Clean(src) == filepath.Clean(dst) {
			b.fail(src, dst, info, errors.Errorf("source and destination are the same"))
			return
		}
		if info.IsDir && !info.IsLink && native.IsWithin(filepath.Clean(src), filepath.Clean(dst)) {
			b.fail(src, dst, info, errors.Errorf("cannot %s a directory into itself", b.req.Operation))
			return
		}
		b.transfer(info, dst)
	case Delete:
		b.deleteItem(info)
	case Trash:
		b.trashSource(src, info)
	}
}

// transfer copies or moves one item, recursing into directories
func (b *batch) transfer(info native.Info, dst string) {
	if !b.proceed() {
		return
	}

	if info.IsDir && !info.IsLink {
		b.transferDir(info, dst)
		return
	}

	exists, err := b.platform.Exists(b.ctx, dst)
	if err != nil {
		b.fail(info.Path, dst, info, err)
		return
	}
	if exists {
		b.deferConflict(info, dst)
		return
	}
	b.transferLeaf(info, dst)
}

func (b *batch) deferConflict(info native.Info, dst string) {
	p := pendingConflict{info: info, dst: dst}
	b.pending = append(b.pending, p)
	c := b.conflictFor(p)
	zerolog.Ctx(b.ctx).Debug().Str("source", info.Path).Str("destination", dst).Msg("conflict deferred")
	b.emit(Event{Kind: EventConflict, Item: info.Path, Conflict: &c})
}

func (b *batch) conflictFor(p pendingConflict) conflict.Conflict {
	return conflict.Conflict{Operation: b.req.Operation.String(), Source: p.info.Path, Destination: p.dst}
}

func (b *batch) transferDir(info native.Info, dst string) {
	existing, err := b.platform.Stat(b.ctx, dst)
	switch {
	case err == nil && !existing.IsDir:
		b.deferConflict(info, dst)
		return
	case err == nil:
		// merge into the existing directory
	default:
		if err := b.platform.MakeDir(b.ctx, dst, info); err != nil {
			b.failDir(info, dst, err)
			return
		}
	}

	children, err := b.platform.ReadDir(b.ctx, info.Path)
	if err != nil {
		b.failDir(info, dst, err)
		return
	}
	for _, child := range children {
		if !b.proceed() {
			return
		}
		if b.ignored(child.Path) {
			continue
		}
		b.transfer(child, filepath.Join(dst, child.Name))
	}

	if b.req.Operation == Move {
		b.movedDirs = append(b.movedDirs, info.Path)
	}
}

func (b *batch) transferLeaf(info native.Info, dst string) {
	b.emit(Event{Kind: EventItemStarted, Item: info.Path})

	streamed, err := b.runNative(func(ctx context.Context, progress native.ProgressFunc) error {
		if b.req.Operation == Move {
			return b.platform.Move(ctx, info.Path, dst, progress)
		}
		return b.platform.Copy(ctx, info.Path, dst, progress)
	})

	o := Outcome{Source: info.Path, Destination: dst, Status: Success}
	if err != nil {
		b.removePartial(info.Path, dst)
		o.Err = err
		o.Status = Failed
		if b.cancelled() {
			o.Status = Cancelled
		}
	}
	b.record(o, info, streamed)
}

// removePartial deletes dst while the source is still intact
func (b *batch) removePartial(src, dst string) {
	ctx := context.WithoutCancel(b.ctx)
	if ok, _ := b.platform.Exists(ctx, src); !ok {
		return
	}
	if ok, _ := b.platform.Exists(ctx, dst); !ok {
		return
	}
	if err := b.platform.RemoveAll(ctx, dst); err != nil {
		zerolog.Ctx(b.ctx).Warn().Err(err).Str("destination", dst).Msg("removing partial destination")
	}
}

type progressEvent struct {
	done, total int64
}

// runNative runs call on its own goroutine and folds its progress events into the
// batch counters. It returns the bytes credited for this item.
func (b *batch) runNative(call func(ctx context.Context, progress native.ProgressFunc) error) (int64, error) {
	events := make(chan progressEvent, 16)
	result := make(chan error, 1)

	go func() {
		defer close(events)
		result <- call(b.ctx, func(done, total int64) {
			events <- progressEvent{done: done, total: total}
		})
	}()

	var last int64
	for ev := range events {
		if ev.done <= last {
			continue
		}
		b.res.Progress.addBytes(uint64(ev.done - last))
		last = ev.done
		b.emit(Event{Kind: EventProgress})
	}
	return last, <-result
}

func (b *batch) resolveConflicts() {
	for len(b.pending) > 0 {
		if !b.proceed() {
			return
		}
		p := b.pending[0]
		b.pending = b.pending[1:]

		if b.res.ConflictsAborted {
			b.record(Outcome{Source: p.info.Path, Destination: p.dst, Status: Skipped, Err: conflict.ErrConflictAborted}, p.info, 0)
			continue
		}

		d, err := b.resolver.Decide(b.ctx, b.conflictFor(p))
		if err != nil {
			if b.cancelled() {
				b.pending = append([]pendingConflict{p}, b.pending...)
				return
			}
			b.fail(p.info.Path, p.dst, p.info, err)
			continue
		}

		switch d {
		case conflict.Skip:
			b.record(Outcome{Source: p.info.Path, Destination: p.dst, Status: Skipped}, p.info, 0)
		case conflict.Abort:
			b.res.ConflictsAborted = true
			zerolog.Ctx(b.ctx).Info().Int("remaining", len(b.pending)).Msg("conflict resolution aborted")
			b.record(Outcome{Source: p.info.Path, Destination: p.dst, Status: Skipped, Err: conflict.ErrConflictAborted}, p.info, 0)
		case conflict.Replace:
			if err := b.platform.RemoveAll(b.ctx, p.dst); err != nil {
				b.fail(p.info.Path, p.dst, p.info, err)
				continue
			}
			if p.info.IsDir && !p.info.IsLink {
				b.transferDir(p.info, p.dst)
			} else {
				b.transferLeaf(p.info, p.dst)
			}
		}
	}
}

// removeEmptiedDirs removes moved source directories, deepest first, that are now empty
func (b *batch) removeEmptiedDirs() {
	ctx := context.WithoutCancel(b.ctx)
	for i := len(b.movedDirs) - 1; i >= 0; i-- {
		dir := b.movedDirs[i]
		children, err := b.platform.ReadDir(ctx, dir)
		if err != nil || len(children) > 0 {
			continue
		}
		if err := b.platform.Remove(ctx, dir); err != nil {
			zerolog.Ctx(b.ctx).Debug().Err(err).Str("dir", dir).Msg("leaving moved source directory")
		}
	}
}

// deleteItem removes children first, then the directory itself
func (b *batch) deleteItem(info native.Info) {
	if !b.proceed() {
		return
	}

	if !info.IsDir || info.IsLink {
		b.emit(Event{Kind: EventItemStarted, Item: info.Path})
		_, err := b.runNative(func(ctx context.Context, _ native.ProgressFunc) error {
			return b.platform.Remove(ctx, info.Path)
		})
		o := Outcome{Source: info.Path, Status: Success}
		if err != nil {
			o.Status, o.Err = Failed, err
			if b.cancelled() {
				o.Status = Cancelled
			}
		}
		b.record(o, info, 0)
		return
	}

	children, err := b.platform.ReadDir(b.ctx, info.Path)
	if err != nil {
		b.failDir(info, "", err)
		return
	}
	for _, child := range children {
		if b.ignored(child.Path) {
			continue
		}
		b.deleteItem(child)
		if b.cancelled() {
			return
		}
	}

	left, err := b.platform.ReadDir(b.ctx, info.Path)
	if err != nil {
		b.failDir(info, "", err)
		return
	}
	if len(left) > 0 {
		b.failDir(info, "", errors.Errorf("directory not empty: %d entries left", len(left)))
		return
	}
	if err := b.platform.Remove(b.ctx, info.Path); err != nil {
		b.failDir(info, "", err)
	}
}

// failDir records a failed directory step without counting it as an item
func (b *batch) failDir(info native.Info, dst string, err error) {
	o := Outcome{Source: info.Path, Destination: dst, Status: Failed, Err: err}
	b.res.Outcomes = append(b.res.Outcomes, o)
	zerolog.Ctx(b.ctx).Warn().Err(err).Str("source", info.Path).Msg("directory step failed")
	b.emit(Event{Kind: EventItemFinished, Item: info.Path, Outcome: &o})
}

// trashSource trashes a top-level source in one native call
func (b *batch) trashSource(src string, info native.Info) {
	if !b.proceed() {
		return
	}
	b.emit(Event{Kind: EventItemStarted, Item: src})

	_, err := b.runNative(func(ctx context.Context, _ native.ProgressFunc) error {
		return b.platform.Trash(ctx, src)
	})

	o := Outcome{Source: src, Status: Success}
	if err != nil {
		o.Status, o.Err = Failed, err
		if b.cancelled() {
			o.Status = Cancelled
		}
		b.record(o, info, 0)
		return
	}

	b.res.Outcomes = append(b.res.Outcomes, o)
	before := b.res.Progress
	if u, ok := b.res.Snapshot.Of(src); ok {
		b.res.Progress.addItems(u.Items)
		b.res.Progress.addBytes(u.Bytes)
	}
	zerolog.Ctx(b.ctx).Debug().Str("source", src).Msg("item trashed")
	b.emit(Event{Kind: EventItemFinished, Item: src, Outcome: &o})
	b.progressed(before)
}
