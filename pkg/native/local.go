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
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

const defaultBufferSize = 1 << 20

// 🔧 Option configures a Local platform
type Option func(*Local)

// WithBufferSize sets the copy chunk size; progress is reported once per chunk
func WithBufferSize(n int) Option {
	return func(l *Local) {
		if n > 0 {
			l.bufferSize = n
		}
	}
}

// WithTrashDir sets the home trash directory
func WithTrashDir(dir string) Option {
	return func(l *Local) {
		l.homeTrash = filepath.Clean(dir)
	}
}

// WithVolumes sets where mount points come from
func WithVolumes(v VolumeLister) Option {
	return func(l *Local) {
		l.volumes = v
	}
}

// WithUID sets the user id used to name per-volume trash directories
func WithUID(uid int) Option {
	return func(l *Local) {
		l.uid = uid
	}
}

// WithClock overrides the deletion timestamp source
func WithClock(now func() time.Time) Option {
	return func(l *Local) {
		l.now = now
	}
}

func withoutTrash() Option {
	return func(l *Local) {
		l.trashEnabled = false
	}
}

// 💾 Local implements Platform on top of an afero.Fs.
// Trash handling follows the freedesktop.org trash layout.
type Local struct {
	fs           afero.Fs
	bufferSize   int
	homeTrash    string
	volumes      VolumeLister
	uid          int
	now          func() time.Time
	trashEnabled bool
}

var _ Platform = (*Local)(nil)

// 🏭 New creates a platform over fs
func New(fs afero.Fs, opts ...Option) *Local {
	l := &Local{
		fs:           fs,
		bufferSize:   defaultBufferSize,
		homeTrash:    HomeTrashDir(),
		volumes:      StaticVolumes{string(filepath.Separator)},
		uid:          os.Getuid(),
		now:          time.Now,
		trashEnabled: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Fs exposes the underlying filesystem
func (l *Local) Fs() afero.Fs {
	return l.fs
}

func (l *Local) lstat(path string) (os.FileInfo, error) {
	if ls, ok := l.fs.(afero.Lstater); ok {
		fi, _, err := ls.LstatIfPossible(path)
		return fi, err
	}
	return l.fs.Stat(path)
}

func toInfo(path string, fi os.FileInfo) Info {
	return Info{
		Path:    path,
		Name:    fi.Name(),
		Size:    fi.Size(),
		Mode:    fi.Mode(),
		ModTime: fi.ModTime(),
		IsDir:   fi.IsDir(),
		IsLink:  fi.Mode()&os.ModeSymlink != 0,
	}
}

func (l *Local) Stat(ctx context.Context, path string) (Info, error) {
	fi, err := l.lstat(path)
	if err != nil {
		return Info{}, wrap("stat", path, err)
	}
	return toInfo(path, fi), nil
}

func (l *Local) ReadDir(ctx context.Context, path string) ([]Info, error) {
	entries, err := afero.ReadDir(l.fs, path)
	if err != nil {
		return nil, wrap("readdir", path, err)
	}
	infos := make([]Info, 0, len(entries))
	for _, fi := range entries {
		child := filepath.Join(path, fi.Name())
		// ReadDir follows links on some backends, re-stat to see the link itself
		if lfi, err := l.lstat(child); err == nil {
			fi = lfi
		}
		infos = append(infos, toInfo(child, fi))
	}
	return infos, nil
}

func (l *Local) Exists(ctx context.Context, path string) (bool, error) {
	_, err := l.lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, wrap("stat", path, err)
}

func (l *Local) MakeDir(ctx context.Context, path string, like Info) error {
	perm := like.Mode.Perm() | 0o700
	if err := l.fs.Mkdir(path, perm); err != nil {
		if !os.IsExist(err) {
			return wrap("mkdir", path, err)
		}
		fi, serr := l.lstat(path)
		if serr != nil {
			return wrap("mkdir", path, serr)
		}
		if !fi.IsDir() {
			return wrap("mkdir", path, errors.Errorf("destination exists and is not a directory"))
		}
		return nil
	}

	if err := l.fs.Chmod(path, perm); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("path", path).Msg("copying directory mode")
	}
	if !like.ModTime.IsZero() {
		if err := l.fs.Chtimes(path, like.ModTime, like.ModTime); err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Str("path", path).Msg("copying directory times")
		}
	}
	return nil
}

func (l *Local) Copy(ctx context.Context, src, dst string, progress ProgressFunc) error {
	info, err := l.Stat(ctx, src)
	if err != nil {
		return err
	}
	if info.IsDir {
		return wrap("copy", src, ErrIsDirectory)
	}
	if info.IsLink {
		if linked, err := l.copyLink(src, dst); linked {
			report(progress, info.Size, info.Size)
			return err
		}
	}
	return l.copyFile(ctx, src, dst, info, progress)
}

// copyLink recreates a symlink when the backend supports links
func (l *Local) copyLink(src, dst string) (bool, error) {
	linker, ok := l.fs.(afero.Symlinker)
	if !ok {
		return false, nil
	}
	target, err := linker.ReadlinkIfPossible(src)
	if err != nil {
		return false, nil
	}
	if err := linker.SymlinkIfPossible(target, dst); err != nil {
		return true, wrap("symlink", dst, err)
	}
	return true, nil
}

func (l *Local) copyFile(ctx context.Context, src, dst string, info Info, progress ProgressFunc) error {
	in, err := l.fs.Open(src)
	if err != nil {
		return wrap("open", src, err)
	}
	defer in.Close()

	out, err := l.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode.Perm()|0o200)
	if err != nil {
		return wrap("create", dst, err)
	}

	buf := make([]byte, l.bufferSize)
	var done int64
	for {
		if err := ctx.Err(); err != nil {
			out.Close()
			return err
		}
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				return wrap("write", dst, werr)
			}
			done += int64(n)
			report(progress, done, info.Size)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			return wrap("read", src, rerr)
		}
	}
	if err := out.Close(); err != nil {
		return wrap("close", dst, err)
	}

	// completion report, the consumer dedupes it
	report(progress, done, done)

	if err := l.fs.Chmod(dst, info.Mode.Perm()); err != nil {
		return wrap("chmod", dst, err)
	}
	if err := l.fs.Chtimes(dst, info.ModTime, info.ModTime); err != nil {
		return wrap("chtimes", dst, err)
	}
	return nil
}

func (l *Local) Move(ctx context.Context, src, dst string, progress ProgressFunc) error {
	info, err := l.Stat(ctx, src)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	rerr := l.fs.Rename(src, dst)
	if rerr == nil {
		report(progress, info.Size, info.Size)
		return nil
	}
	if info.IsDir {
		return wrap("rename", src, rerr)
	}
	zerolog.Ctx(ctx).Debug().Err(rerr).Str("src", src).Msg("rename failed, copying instead")

	if err := l.Copy(ctx, src, dst, progress); err != nil {
		return err
	}
	return l.Remove(ctx, src)
}

func (l *Local) Remove(ctx context.Context, path string) error {
	return wrap("remove", path, l.fs.Remove(path))
}

func (l *Local) RemoveAll(ctx context.Context, path string) error {
	return wrap("remove", path, l.fs.RemoveAll(path))
}

func report(progress ProgressFunc, done, total int64) {
	if progress != nil {
		progress(done, total)
	}
}
