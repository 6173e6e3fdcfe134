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

// Package native is the seam between the batch engine and the host filesystem.
//
// Every per-item primitive the engine needs (stat, list, copy, move, remove,
// trash, restore) goes through the Platform interface. Exactly one
// implementation is picked per target by Default; tests build their own on
// top of an in-memory afero.Fs.
package native

import (
	"context"
	"os"
	"time"

	"gitlab.com/tozd/go/errors"
)

var (
	// ErrTrashUnsupported is returned by trash operations on hosts without a trash implementation
	ErrTrashUnsupported = errors.New("trash is not supported on this platform")
	// ErrIsDirectory is returned when a leaf primitive is handed a directory
	ErrIsDirectory = errors.New("is a directory")
)

// 📈 ProgressFunc receives (done, total) for the item currently in flight.
// It may be called zero or more times per item, always from the goroutine
// running the native call.
type ProgressFunc func(done, total int64)

// 📄 Info is the subset of file metadata the engine cares about
type Info struct {
	Path    string
	Name    string
	Size    int64
	Mode    os.FileMode
	ModTime time.Time
	IsDir   bool
	IsLink  bool
}

// 🗑️ TrashItem is one entry of the OS trash as read at listing time
type TrashItem struct {
	// ID is the trash-internal name of the entry
	ID string
	// Root is the trash directory holding the entry
	Root string
	// Volume is the mount point the trash directory belongs to, if known
	Volume       string
	OriginalPath string
	DeletedAt    time.Time
	Info         Info
	MimeType     string
}

// 🔌 Platform is the native file subsystem consumed by the engine
type Platform interface {
	// Stat returns metadata without following a final symlink
	Stat(ctx context.Context, path string) (Info, error)
	// ReadDir lists the direct children of a directory
	ReadDir(ctx context.Context, path string) ([]Info, error)
	// Exists reports whether anything lives at path
	Exists(ctx context.Context, path string) (bool, error)
	// MakeDir creates path (if missing) and copies mode and times from like
	MakeDir(ctx context.Context, path string, like Info) error

	// Copy copies one non-directory item, honouring ctx between chunks
	Copy(ctx context.Context, src, dst string, progress ProgressFunc) error
	// Move moves one non-directory item, falling back to copy and remove
	Move(ctx context.Context, src, dst string, progress ProgressFunc) error
	// Remove deletes a file or an empty directory
	Remove(ctx context.Context, path string) error
	// RemoveAll deletes path and everything below it
	RemoveAll(ctx context.Context, path string) error

	// Trash moves path into the trash
	Trash(ctx context.Context, path string) error
	// ListTrash enumerates the trash; results are never cached
	ListTrash(ctx context.Context) ([]TrashItem, error)
	// Restore moves a trashed item back to its original path, overwriting
	Restore(ctx context.Context, item TrashItem) error
	// Purge permanently deletes a trashed item
	Purge(ctx context.Context, item TrashItem) error
	// VolumeOf resolves the mount point holding path
	VolumeOf(ctx context.Context, path string) (string, bool)
}

// ❌ NativeError attaches the failing primitive and path to an OS error
type NativeError struct {
	Op   string
	Path string
	Err  error
}

func (e *NativeError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *NativeError) Unwrap() error {
	return e.Err
}

func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var ne *NativeError
	if errors.As(err, &ne) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &NativeError{Op: op, Path: path, Err: err}
}
