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

// Package desktop is the function-call surface over the batch engine and the recycle bin.
package desktop

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/walteh/fsbatch/pkg/cancel"
	"github.com/walteh/fsbatch/pkg/config"
	"github.com/walteh/fsbatch/pkg/conflict"
	"github.com/walteh/fsbatch/pkg/native"
	"github.com/walteh/fsbatch/pkg/operation"
	"github.com/walteh/fsbatch/pkg/trash"
)

// 🔧 Options contains everything the service is built from
type Options struct {
	Platform native.Platform
	// Registry is shared with anyone who needs to cancel by id; a new one is made when nil
	Registry *cancel.Registry
	// Prompter decides conflicts; nil skips them
	Prompter       conflict.Prompter
	Observer       operation.Observer
	IgnorePatterns []string
	MaxConcurrent  int
}

// 🖥️ Service exposes batch transfers, cancellation and the recycle bin
type Service struct {
	registry *cancel.Registry
	runner   *operation.Runner
	index    *trash.Index
}

// 🏭 New wires the executor, runner and recycle bin index
func New(opts Options) *Service {
	registry := opts.Registry
	if registry == nil {
		registry = cancel.New()
	}

	execOpts := []operation.Option{
		operation.WithIgnorePatterns(opts.IgnorePatterns...),
	}
	if opts.Prompter != nil {
		execOpts = append(execOpts, operation.WithPrompter(opts.Prompter))
	}
	if opts.Observer != nil {
		execOpts = append(execOpts, operation.WithObserver(opts.Observer))
	}

	exec := operation.NewExecutor(opts.Platform, registry, execOpts...)
	return &Service{
		registry: registry,
		runner:   operation.NewRunner(exec, opts.MaxConcurrent),
		index:    trash.NewIndex(opts.Platform),
	}
}

// FromConfig builds the host service from a loaded config. A nil prompter falls
// back to the configured fixed decision.
func FromConfig(cfg *config.Config, prompter conflict.Prompter, observer operation.Observer) *Service {
	nativeOpts := []native.Option{native.WithBufferSize(cfg.BufferSize)}
	if cfg.TrashDir != "" {
		nativeOpts = append(nativeOpts, native.WithTrashDir(cfg.TrashDir))
	}
	if !cfg.DiscoverVolumes {
		nativeOpts = append(nativeOpts, native.WithVolumes(native.StaticVolumes{"/"}))
	}
	if d, fixed := cfg.ConflictDecision(); fixed && prompter == nil {
		prompter = conflict.Policy(d)
	}

	return New(Options{
		Platform:       native.Default(nativeOpts...),
		Prompter:       prompter,
		Observer:       observer,
		IgnorePatterns: cfg.IgnorePatterns,
		MaxConcurrent:  cfg.MaxConcurrent,
	})
}

// ReserveCancellable hands out an id to pass to a later transfer
func (s *Service) ReserveCancellable() cancel.ID {
	return s.registry.Reserve()
}

// Release drops a reservation that will not be used; running batches keep their id
func (s *Service) Release(ctx context.Context, id cancel.ID) bool {
	return s.runner.Release(ctx, id)
}

// Cancel reports whether id named a live batch or reservation
func (s *Service) Cancel(ctx context.Context, id cancel.ID) bool {
	return s.runner.Cancel(ctx, id)
}

func (s *Service) Pause(ctx context.Context, id cancel.ID) bool {
	return s.runner.Pause(ctx, id)
}

func (s *Service) Resume(ctx context.Context, id cancel.ID) bool {
	return s.runner.Resume(ctx, id)
}

// Wait blocks until every running batch has returned
func (s *Service) Wait() {
	s.runner.Wait()
}

func (s *Service) Copy(ctx context.Context, sources []string, dst string, opts ...operation.RunOption) (*operation.Result, error) {
	return s.run(ctx, operation.Request{Operation: operation.Copy, Sources: sources, Destination: dst}, opts)
}

func (s *Service) Move(ctx context.Context, sources []string, dst string, opts ...operation.RunOption) (*operation.Result, error) {
	return s.run(ctx, operation.Request{Operation: operation.Move, Sources: sources, Destination: dst}, opts)
}

func (s *Service) Delete(ctx context.Context, paths []string, opts ...operation.RunOption) (*operation.Result, error) {
	return s.run(ctx, operation.Request{Operation: operation.Delete, Sources: paths}, opts)
}

func (s *Service) Trash(ctx context.Context, paths []string, opts ...operation.RunOption) (*operation.Result, error) {
	return s.run(ctx, operation.Request{Operation: operation.Trash, Sources: paths}, opts)
}

// Start runs a request in the background; the id works with Cancel, Pause and Resume
func (s *Service) Start(ctx context.Context, req operation.Request, opts ...operation.RunOption) (cancel.ID, <-chan operation.Completion) {
	return s.runner.Start(ctx, req, opts...)
}

func (s *Service) run(ctx context.Context, req operation.Request, opts []operation.RunOption) (*operation.Result, error) {
	zerolog.Ctx(ctx).Debug().Stringer("operation", req.Operation).Strs("sources", req.Sources).Str("destination", req.Destination).Msg("batch requested")
	return s.runner.Run(ctx, req, opts...)
}

func (s *Service) ListRecycleBin(ctx context.Context) ([]trash.Entry, error) {
	return s.index.List(ctx)
}

func (s *Service) Undelete(ctx context.Context, paths []string) error {
	return s.index.Undelete(ctx, paths)
}

func (s *Service) UndeleteByTime(ctx context.Context, reqs []trash.Request) error {
	return s.index.UndeleteByTime(ctx, reqs)
}

func (s *Service) DeleteFromRecycleBin(ctx context.Context, reqs []trash.Request) error {
	return s.index.DeletePermanently(ctx, reqs)
}

// EmptyRecycleBin purges the volume holding scope, or everything when scope is empty
func (s *Service) EmptyRecycleBin(ctx context.Context, scope string) error {
	return s.index.Empty(ctx, scope)
}
