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
	"path/filepath"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/disk"
	"gitlab.com/tozd/go/errors"
)

// 💽 VolumeLister returns the mount points known to the host
type VolumeLister interface {
	Volumes(ctx context.Context) ([]string, error)
}

// StaticVolumes is a fixed list of mount points
type StaticVolumes []string

func (s StaticVolumes) Volumes(ctx context.Context) ([]string, error) {
	return s, nil
}

// PartitionVolumes reads mount points from the host partition table
type PartitionVolumes struct{}

func (PartitionVolumes) Volumes(ctx context.Context) ([]string, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, errors.Errorf("listing partitions: %w", err)
	}
	mounts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Mountpoint != "" {
			mounts = append(mounts, p.Mountpoint)
		}
	}
	return mounts, nil
}

// volumeOf picks the longest mount point that contains path
func volumeOf(mounts []string, path string) (string, bool) {
	path = filepath.Clean(path)
	sorted := append([]string(nil), mounts...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	for _, m := range sorted {
		m = filepath.Clean(m)
		if IsWithin(m, path) {
			return m, true
		}
	}
	return "", false
}

// IsWithin reports whether path equals root or lies below it
func IsWithin(root, path string) bool {
	if root == path {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
