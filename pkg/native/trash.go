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

package native

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// HomeTrashDir returns $XDG_DATA_HOME/Trash, falling back to ~/.local/share/Trash
func HomeTrashDir() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "Trash")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "Trash")
	}
	return filepath.Join(home, ".local", "share", "Trash")
}

// trashDir is one trash can: the home trash or a per-volume one
type trashDir struct {
	root   string
	topdir string // empty for the home trash, info paths are absolute there
	volume string
}

func (td trashDir) filesDir() string { return filepath.Join(td.root, "files") }
func (td trashDir) infoDir() string  { return filepath.Join(td.root, "info") }

func (td trashDir) infoPath(id string) string {
	return filepath.Join(td.infoDir(), id+trashInfoExt)
}

func (l *Local) mounts(ctx context.Context) []string {
	if l.volumes == nil {
		return nil
	}
	mounts, err := l.volumes.Volumes(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("listing volumes")
		return nil
	}
	return mounts
}

func (l *Local) VolumeOf(ctx context.Context, path string) (string, bool) {
	return volumeOf(l.mounts(ctx), path)
}

func (l *Local) home(ctx context.Context) trashDir {
	vol, _ := l.VolumeOf(ctx, l.homeTrash)
	return trashDir{root: l.homeTrash, volume: vol}
}

func (l *Local) topdirTrash(volume string) trashDir {
	return trashDir{
		root:   filepath.Join(volume, ".Trash-"+strconv.Itoa(l.uid)),
		topdir: volume,
		volume: volume,
	}
}

// trashDirFor picks the home trash unless path lives on another volume
func (l *Local) trashDirFor(ctx context.Context, path string) trashDir {
	home := l.home(ctx)
	vol, ok := l.VolumeOf(ctx, path)
	if !ok || vol == home.volume {
		return home
	}
	return l.topdirTrash(vol)
}

// trashDirs lists every trash can that currently exists
func (l *Local) trashDirs(ctx context.Context) []trashDir {
	dirs := []trashDir{l.home(ctx)}
	seen := map[string]bool{l.homeTrash: true}
	for _, vol := range l.mounts(ctx) {
		td := l.topdirTrash(filepath.Clean(vol))
		if seen[td.root] {
			continue
		}
		seen[td.root] = true
		if ok, _ := afero.DirExists(l.fs, td.root); ok {
			dirs = append(dirs, td)
		}
	}
	return dirs
}

func (l *Local) Trash(ctx context.Context, path string) error {
	if !l.trashEnabled {
		return wrap("trash", path, ErrTrashUnsupported)
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return wrap("trash", path, err)
	}
	if _, err := l.lstat(path); err != nil {
		return wrap("trash", path, err)
	}

	td := l.trashDirFor(ctx, path)
	for _, dir := range []string{td.filesDir(), td.infoDir()} {
		if err := l.fs.MkdirAll(dir, 0o700); err != nil {
			return wrap("trash", dir, err)
		}
	}

	recorded := path
	if td.topdir != "" {
		if rel, err := filepath.Rel(td.topdir, path); err == nil {
			recorded = rel
		}
	}

	id, err := l.reserveTrashName(td, filepath.Base(path), trashInfo{
		Path:         recorded,
		DeletionDate: l.now(),
	})
	if err != nil {
		return wrap("trash", path, err)
	}

	if err := l.fs.Rename(path, filepath.Join(td.filesDir(), id)); err != nil {
		_ = l.fs.Remove(td.infoPath(id))
		return wrap("trash", path, err)
	}

	zerolog.Ctx(ctx).Debug().Str("path", path).Str("trash_id", id).Str("trash", td.root).Msg("trashed")
	return nil
}

// reserveTrashName claims a free name by creating its info file exclusively
// splitTrashName splits base into the stem and extension that collision names go between
func splitTrashName(base string) (stem, ext string) {
	ext = filepath.Ext(base)
	stem = strings.TrimSuffix(base, ext)
	if stem == "" {
		return base, ""
	}
	return stem, ext
}

// CollisionIndex returns N for a trash id named "stem.N.ext" after originalPath,
// 1 for the plain base name, and 0 for an id this package did not name.
func CollisionIndex(originalPath, id string) int {
	base := filepath.Base(originalPath)
	if id == base {
		return 1
	}
	stem, ext := splitTrashName(base)
	mid, ok := strings.CutPrefix(id, stem+".")
	if !ok {
		return 0
	}
	mid, ok = strings.CutSuffix(mid, ext)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(mid)
	if err != nil || n < 2 {
		return 0
	}
	return n
}

func (l *Local) reserveTrashName(td trashDir, base string, info trashInfo) (string, error) {
	stem, ext := splitTrashName(base)

	for n := 1; n < 10000; n++ {
		id := base
		if n > 1 {
			id = stem + "." + strconv.Itoa(n) + ext
		}
		if taken, _ := afero.Exists(l.fs, filepath.Join(td.filesDir(), id)); taken {
			continue
		}
		f, err := l.fs.OpenFile(td.infoPath(id), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return "", errors.Errorf("creating trash info: %w", err)
		}
		_, werr := f.Write(info.marshal())
		cerr := f.Close()
		if werr != nil || cerr != nil {
			_ = l.fs.Remove(td.infoPath(id))
			return "", errors.Errorf("writing trash info: %w", errors.Join(werr, cerr))
		}
		return id, nil
	}
	return "", errors.Errorf("no free trash name for %s", base)
}

func (l *Local) ListTrash(ctx context.Context) ([]TrashItem, error) {
	if !l.trashEnabled {
		return nil, ErrTrashUnsupported
	}

	var items []TrashItem
	for _, td := range l.trashDirs(ctx) {
		entries, err := afero.ReadDir(l.fs, td.infoDir())
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, wrap("list trash", td.infoDir(), err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), trashInfoExt) {
				continue
			}
			item, ok := l.readTrashItem(ctx, td, strings.TrimSuffix(entry.Name(), trashInfoExt))
			if ok {
				items = append(items, item)
			}
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].DeletedAt.Equal(items[j].DeletedAt) {
			return items[i].DeletedAt.Before(items[j].DeletedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (l *Local) readTrashItem(ctx context.Context, td trashDir, id string) (TrashItem, bool) {
	logger := zerolog.Ctx(ctx).With().Str("trash", td.root).Str("trash_id", id).Logger()

	data, err := afero.ReadFile(l.fs, td.infoPath(id))
	if err != nil {
		logger.Debug().Err(err).Msg("reading trash info")
		return TrashItem{}, false
	}
	ti, err := parseTrashInfo(data, time.Local)
	if err != nil {
		logger.Debug().Err(err).Msg("skipping malformed trash info")
		return TrashItem{}, false
	}

	stored := filepath.Join(td.filesDir(), id)
	fi, err := l.lstat(stored)
	if err != nil {
		logger.Debug().Err(err).Msg("skipping trash info without payload")
		return TrashItem{}, false
	}

	orig := ti.Path
	if !filepath.IsAbs(orig) {
		orig = filepath.Join(td.topdir, orig)
	}

	info := toInfo(stored, fi)
	return TrashItem{
		ID:           id,
		Root:         td.root,
		Volume:       td.volume,
		OriginalPath: filepath.Clean(orig),
		DeletedAt:    ti.DeletionDate,
		Info:         info,
		MimeType:     l.sniff(stored, info),
	}, true
}

func (l *Local) sniff(path string, info Info) string {
	switch {
	case info.IsDir:
		return "inode/directory"
	case info.IsLink:
		return "inode/symlink"
	}
	f, err := l.fs.Open(path)
	if err != nil {
		return "application/octet-stream"
	}
	defer f.Close()
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "application/octet-stream"
	}
	return mt.String()
}

func (l *Local) Restore(ctx context.Context, item TrashItem) error {
	if !l.trashEnabled {
		return ErrTrashUnsupported
	}
	td := trashDir{root: item.Root}
	stored := filepath.Join(td.filesDir(), item.ID)

	if err := l.fs.MkdirAll(filepath.Dir(item.OriginalPath), 0o755); err != nil {
		return wrap("restore", item.OriginalPath, err)
	}
	if exists, _ := l.Exists(ctx, item.OriginalPath); exists {
		if err := l.fs.RemoveAll(item.OriginalPath); err != nil {
			return wrap("restore", item.OriginalPath, err)
		}
	}
	if err := l.fs.Rename(stored, item.OriginalPath); err != nil {
		return wrap("restore", item.OriginalPath, err)
	}
	if err := l.fs.Remove(td.infoPath(item.ID)); err != nil && !os.IsNotExist(err) {
		return wrap("restore", td.infoPath(item.ID), err)
	}
	return nil
}

func (l *Local) Purge(ctx context.Context, item TrashItem) error {
	if !l.trashEnabled {
		return ErrTrashUnsupported
	}
	td := trashDir{root: item.Root}
	if err := l.fs.RemoveAll(filepath.Join(td.filesDir(), item.ID)); err != nil {
		return wrap("purge", item.OriginalPath, err)
	}
	if err := l.fs.Remove(td.infoPath(item.ID)); err != nil && !os.IsNotExist(err) {
		return wrap("purge", td.infoPath(item.ID), err)
	}
	return nil
}
