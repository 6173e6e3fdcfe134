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

package usage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/fsbatch/pkg/native"
)

// vanishingPlatform drops a path after it has been listed
type vanishingPlatform struct {
	native.Platform
	gone string
}

func (v *vanishingPlatform) Stat(ctx context.Context, path string) (native.Info, error) {
	if path == v.gone {
		return native.Info{}, &native.NativeError{Op: "stat", Path: path, Err: os.ErrNotExist}
	}
	return v.Platform.Stat(ctx, path)
}

func setup(t *testing.T, files map[string]string) *native.Local {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	return native.New(fs, native.WithTrashDir("/trash"))
}

func TestMeasure(t *testing.T) {
	tests := []struct {
		name      string
		files     map[string]string
		dirs      []string
		sources   []string
		ignore    []string
		wantBytes uint64
		wantItems uint64
		perSource []Usage
	}{
		{
			name: "directory with two files",
			files: map[string]string{
				"/src/a.txt":     "0123456789",
				"/src/sub/b.txt": "01234567890123456789",
			},
			sources:   []string{"/src"},
			wantBytes: 30,
			wantItems: 2,
			perSource: []Usage{{Path: "/src", Bytes: 30, Items: 2}},
		},
		{
			name: "several sources keep request order",
			files: map[string]string{
				"/x/one": "1",
				"/y":     "22",
			},
			sources:   []string{"/y", "/x"},
			wantBytes: 3,
			wantItems: 2,
			perSource: []Usage{{Path: "/y", Bytes: 2, Items: 1}, {Path: "/x", Bytes: 1, Items: 1}},
		},
		{
			name:      "empty directory",
			dirs:      []string{"/empty"},
			sources:   []string{"/empty"},
			perSource: []Usage{{Path: "/empty"}},
		},
		{
			name: "ignored descendants",
			files: map[string]string{
				"/src/keep.txt":       "abc",
				"/src/.git/HEAD":      "ref: main",
				"/src/node_modules/x": "zzzz",
				"/src/deep/cache.tmp": "12345",
			},
			sources:   []string{"/src"},
			ignore:    []string{".git", "**/node_modules", "*.tmp"},
			wantBytes: 3,
			wantItems: 1,
			perSource: []Usage{{Path: "/src", Bytes: 3, Items: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			platform := setup(t, tt.files)
			for _, d := range tt.dirs {
				require.NoError(t, platform.Fs().MkdirAll(d, 0o755))
			}

			snap, err := NewPlanner(platform, WithIgnorePatterns(tt.ignore...)).Measure(context.Background(), tt.sources)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBytes, snap.TotalBytes)
			assert.Equal(t, tt.wantItems, snap.TotalItems)
			assert.Equal(t, tt.perSource, snap.Sources)
		})
	}
}

func TestMeasureMissingRootIsFatal(t *testing.T) {
	platform := setup(t, map[string]string{"/a": "x"})

	_, err := NewPlanner(platform).Measure(context.Background(), []string{"/a", "/missing"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMeasurement)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMeasureVanishedChildCountsZero(t *testing.T) {
	platform := setup(t, map[string]string{
		"/src/a": "12345",
		"/src/b": "123",
	})

	snap, err := NewPlanner(&vanishingPlatform{Platform: platform, gone: "/src/b"}).
		Measure(context.Background(), []string{"/src"})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), snap.TotalBytes)
	assert.Equal(t, uint64(1), snap.TotalItems)
}

func TestSnapshotOf(t *testing.T) {
	snap := Snapshot{Sources: []Usage{{Path: "/a", Items: 3}}}

	u, ok := snap.Of("/a")
	assert.True(t, ok)
	assert.Equal(t, uint64(3), u.Items)

	_, ok = snap.Of("/b")
	assert.False(t, ok)
}
