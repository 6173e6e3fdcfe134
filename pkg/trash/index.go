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

// Package trash matches recycle-bin entries to restore and purge requests.
//
// The index keeps no state: every call lists the bin afresh through the
// native platform, so entries trashed or restored by other programs are
// always seen.
package trash

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/walteh/fsbatch/pkg/native"
	"gitlab.com/tozd/go/errors"
)

// ErrUnmatched describes a request with no entry in the bin. It is only logged.
var ErrUnmatched = errors.New("no recycle bin entry matches")

// Attributes are the file attributes of a trashed entry
type Attributes struct {
	Size    int64
	Mode    os.FileMode
	ModTime time.Time
	IsDir   bool
	IsLink  bool
}

// 🗑️ Entry is one item of the recycle bin
type Entry struct {
	ID           string
	Root         string
	Volume       string
	OriginalPath string
	DeletedAt    time.Time
	Attributes   Attributes
	MimeType     string
}

// Key is the identity used by exact matching: original path plus deletion time in milliseconds
func (e Entry) Key() Request {
	return Request{OriginalPath: e.OriginalPath, DeletedAt: e.DeletedAt}
}

func (e Entry) item() native.TrashItem {
	return native.TrashItem{
		ID:           e.ID,
		Root:         e.Root,
		Volume:       e.Volume,
		OriginalPath: e.OriginalPath,
		DeletedAt:    e.DeletedAt,
		MimeType:     e.MimeType,
	}
}

func fromItem(it native.TrashItem) Entry {
	return Entry{
		ID:           it.ID,
		Root:         it.Root,
		Volume:       it.Volume,
		OriginalPath: it.OriginalPath,
		DeletedAt:    it.DeletedAt,
		MimeType:     it.MimeType,
		Attributes: Attributes{
			Size:    it.Info.Size,
			Mode:    it.Info.Mode,
			ModTime: it.Info.ModTime,
			IsDir:   it.Info.IsDir,
			IsLink:  it.Info.IsLink,
		},
	}
}

// Request names one entry by its original path and deletion time
type Request struct {
	OriginalPath string
	DeletedAt    time.Time
}

func (r Request) matches(e Entry) bool {
	return filepath.Clean(r.OriginalPath) == e.OriginalPath && r.DeletedAt.UnixMilli() == e.DeletedAt.UnixMilli()
}

// 📇 Index resolves requests against a fresh listing of the bin
type Index struct {
	platform native.Platform
}

func NewIndex(platform native.Platform) *Index {
	return &Index{platform: platform}
}

// List returns every entry, oldest first
func (x *Index) List(ctx context.Context) ([]Entry, error) {
	items, err := x.platform.ListTrash(ctx)
	if err != nil {
		return nil, errors.Errorf("listing recycle bin: %w", err)
	}
	return lo.Map(items, func(it native.TrashItem, _ int) Entry { return fromItem(it) }), nil
}

// Undelete restores, for each path, the most recently deleted entry with that
// original path. Deletion-time ties go to the later collision name
// ("a.2.txt" after "a.txt"). Paths with no entry are skipped.
func (x *Index) Undelete(ctx context.Context, paths []string) error {
	entries, err := x.List(ctx)
	if err != nil {
		return err
	}
	byPath := lo.GroupBy(entries, func(e Entry) string { return e.OriginalPath })

	var targets []Entry
	cleaned := lo.Map(paths, func(p string, _ int) string { return filepath.Clean(p) })
	for _, path := range lo.Uniq(cleaned) {
		group, ok := byPath[path]
		if !ok {
			x.unmatched(ctx, Request{OriginalPath: path})
			continue
		}
		targets = append(targets, newest(group))
	}
	return x.each(ctx, "restoring", targets, x.restore)
}

// newest picks the latest deletion. Ties go to the higher collision index,
// then to the greater id.
func newest(group []Entry) Entry {
	return lo.MaxBy(group, func(a, b Entry) bool {
		am, bm := a.DeletedAt.UnixMilli(), b.DeletedAt.UnixMilli()
		if am != bm {
			return am > bm
		}
		an, bn := native.CollisionIndex(a.OriginalPath, a.ID), native.CollisionIndex(b.OriginalPath, b.ID)
		if an != bn {
			return an > bn
		}
		return a.ID > b.ID
	})
}

// UndeleteByTime restores exactly the entries named by reqs. When several
// matched entries share an original path only the newest is restored, so one
// call never writes the same path twice.
func (x *Index) UndeleteByTime(ctx context.Context, reqs []Request) error {
	targets, err := x.match(ctx, reqs)
	if err != nil {
		return err
	}
	return x.each(ctx, "restoring", onePerPath(targets), x.restore)
}

// onePerPath keeps the newest entry per original path, in first-seen order
func onePerPath(entries []Entry) []Entry {
	byPath := lo.GroupBy(entries, func(e Entry) string { return e.OriginalPath })
	paths := lo.Uniq(lo.Map(entries, func(e Entry, _ int) string { return e.OriginalPath }))
	return lo.Map(paths, func(p string, _ int) Entry { return newest(byPath[p]) })
}

// DeletePermanently purges exactly the entries named by reqs
func (x *Index) DeletePermanently(ctx context.Context, reqs []Request) error {
	targets, err := x.match(ctx, reqs)
	if err != nil {
		return err
	}
	return x.each(ctx, "purging", targets, x.purge)
}

// Empty purges every entry, or only those on the volume holding scope when
// the platform can resolve it
func (x *Index) Empty(ctx context.Context, scope string) error {
	entries, err := x.List(ctx)
	if err != nil {
		return err
	}

	if scope != "" {
		if vol, ok := x.platform.VolumeOf(ctx, scope); ok {
			entries = lo.Filter(entries, func(e Entry, _ int) bool { return e.Volume == vol })
		} else {
			zerolog.Ctx(ctx).Debug().Str("scope", scope).Msg("volume unknown, emptying the whole bin")
		}
	}
	return x.each(ctx, "purging", entries, x.purge)
}

func (x *Index) match(ctx context.Context, reqs []Request) ([]Entry, error) {
	entries, err := x.List(ctx)
	if err != nil {
		return nil, err
	}

	var targets []Entry
	seen := map[string]bool{}
	for _, req := range reqs {
		found := lo.Filter(entries, func(e Entry, _ int) bool { return req.matches(e) })
		if len(found) == 0 {
			x.unmatched(ctx, req)
			continue
		}
		for _, e := range found {
			key := e.Root + "\x00" + e.ID
			if !seen[key] {
				seen[key] = true
				targets = append(targets, e)
			}
		}
	}
	return targets, nil
}

func (x *Index) unmatched(ctx context.Context, req Request) {
	ev := zerolog.Ctx(ctx).Debug().Err(ErrUnmatched).Str("original_path", req.OriginalPath)
	if !req.DeletedAt.IsZero() {
		ev = ev.Time("deleted_at", req.DeletedAt)
	}
	ev.Msg("skipping request")
}

// each applies fn to every entry and joins the failures
func (x *Index) each(ctx context.Context, verb string, entries []Entry, fn func(context.Context, Entry) error) error {
	var errs []error
	for _, e := range entries {
		if err := fn(ctx, e); err != nil {
			errs = append(errs, errors.Errorf("%s %s: %w", verb, e.OriginalPath, err))
		}
	}
	return errors.Join(errs...)
}

func (x *Index) restore(ctx context.Context, e Entry) error {
	if err := x.platform.Restore(ctx, e.item()); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("path", e.OriginalPath).Time("deleted_at", e.DeletedAt).Msg("restored from recycle bin")
	return nil
}

func (x *Index) purge(ctx context.Context, e Entry) error {
	if err := x.platform.Purge(ctx, e.item()); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Debug().Str("path", e.OriginalPath).Str("trash_id", e.ID).Msg("purged from recycle bin")
	return nil
}
