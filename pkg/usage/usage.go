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

// Package usage measures the bytes and leaf items a batch will touch.
package usage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/walteh/fsbatch/pkg/native"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// ErrMeasurement is returned when a root source cannot be measured
var ErrMeasurement = errors.New("measuring source")

const defaultConcurrency = 4

// 📏 Usage is the measured size of one requested source
type Usage struct {
	Path  string
	Bytes uint64
	Items uint64
}

// 📊 Snapshot is the combined measurement of a batch, one Usage per source in request order
type Snapshot struct {
	TotalBytes uint64
	TotalItems uint64
	Sources    []Usage
}

// Of returns the measured usage for a source path
func (s Snapshot) Of(path string) (Usage, bool) {
	for _, u := range s.Sources {
		if u.Path == path {
			return u, true
		}
	}
	return Usage{}, false
}

type Option func(*Planner)

// WithIgnorePatterns skips descendants whose base name or path matches any doublestar pattern
func WithIgnorePatterns(patterns ...string) Option {
	return func(p *Planner) {
		p.ignore = append(p.ignore, patterns...)
	}
}

// WithConcurrency bounds how many sources are measured at once
func WithConcurrency(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// 🧮 Planner walks sources through the native platform and sums their sizes
type Planner struct {
	platform    native.Platform
	ignore      []string
	concurrency int
}

func NewPlanner(platform native.Platform, opts ...Option) *Planner {
	p := &Planner{
		platform:    platform,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ignored reports whether path is excluded by the planner's ignore patterns
func (p *Planner) Ignored(path string) bool {
	return Ignored(p.ignore, path)
}

// Ignored reports whether path matches one of patterns by base name or full path
func Ignored(patterns []string, path string) bool {
	base := filepath.Base(path)
	slashed := filepath.ToSlash(path)
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, slashed); ok {
			return true
		}
	}
	return false
}

// Measure sizes every source concurrently. A source that cannot be stat'ed, or a
// root directory that cannot be listed, fails the whole measurement.
func (p *Planner) Measure(ctx context.Context, sources []string) (Snapshot, error) {
	results := make([]Usage, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			u, err := p.measureRoot(gctx, src)
			if err != nil {
				return err
			}
			results[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{Sources: results}
	for _, u := range results {
		snap.TotalBytes += u.Bytes
		snap.TotalItems += u.Items
	}

	zerolog.Ctx(ctx).Debug().
		Uint64("total_bytes", snap.TotalBytes).
		Uint64("total_items", snap.TotalItems).
		Int("sources", len(sources)).
		Msg("measured batch")

	return snap, nil
}

func (p *Planner) measureRoot(ctx context.Context, src string) (Usage, error) {
	info, err := p.platform.Stat(ctx, src)
	if err != nil {
		return Usage{}, errors.Errorf("%w %s: %w", ErrMeasurement, src, err)
	}
	u := Usage{Path: src}
	if !info.IsDir {
		u.Bytes, u.Items = uint64(max(info.Size, 0)), 1
		return u, nil
	}

	children, err := p.platform.ReadDir(ctx, src)
	if err != nil {
		return Usage{}, errors.Errorf("%w %s: %w", ErrMeasurement, src, err)
	}
	for _, child := range children {
		bytes, items, err := p.measure(ctx, child)
		if err != nil {
			return Usage{}, err
		}
		u.Bytes += bytes
		u.Items += items
	}
	return u, nil
}

func (p *Planner) measure(ctx context.Context, info native.Info) (uint64, uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	if p.Ignored(info.Path) {
		return 0, 0, nil
	}
	if !info.IsDir {
		// re-stat: the listing may be stale
		fresh, err := p.platform.Stat(ctx, info.Path)
		if err != nil {
			p.vanished(ctx, info.Path, err)
			return 0, 0, nil
		}
		return uint64(max(fresh.Size, 0)), 1, nil
	}

	children, err := p.platform.ReadDir(ctx, info.Path)
	if err != nil {
		p.vanished(ctx, info.Path, err)
		return 0, 0, nil
	}
	var bytes, items uint64
	for _, child := range children {
		b, n, err := p.measure(ctx, child)
		if err != nil {
			return 0, 0, err
		}
		bytes += b
		items += n
	}
	return bytes, items, nil
}

func (p *Planner) vanished(ctx context.Context, path string, err error) {
	ev := zerolog.Ctx(ctx).Debug().Str("path", path).Err(err)
	if errors.Is(err, os.ErrNotExist) {
		ev.Msg("entry vanished while measuring")
		return
	}
	ev.Msg("entry unreadable while measuring, counted as empty")
}
