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

//go:build !(linux || freebsd || openbsd || netbsd || dragonfly || solaris)

package native

import "github.com/spf13/afero"

// Default returns the host Platform. Trash primitives report ErrTrashUnsupported here.
func Default(opts ...Option) *Local {
	base := []Option{WithVolumes(PartitionVolumes{})}
	return New(afero.NewOsFs(), append(append(base, opts...), withoutTrash())...)
}
