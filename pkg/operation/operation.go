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
	"strings"

	"github.com/walteh/fsbatch/pkg/native"
	"gitlab.com/tozd/go/errors"
)

// ErrInvalidRequest is returned before a batch starts when its request is malformed
var ErrInvalidRequest = errors.New("invalid transfer request")

// 🔧 Kind is the batch operation
type Kind int

const (
	Copy Kind = iota
	Move
	Delete
	Trash
)

func (k Kind) String() string {
	switch k {
	case Copy:
		return "copy"
	case Move:
		return "move"
	case Delete:
		return "delete"
	case Trash:
		return "trash"
	default:
		return "unknown"
	}
}

// ParseKind accepts the names produced by Kind.String
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{Copy, Move, Delete, Trash} {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, errors.Errorf("%w: unknown operation %q", ErrInvalidRequest, s)
}

// transfers reports whether the kind writes to a destination
func (k Kind) transfers() bool {
	return k == Copy || k == Move
}

// 📦 Request describes one batch
type Request struct {
	Operation Kind
	Sources   []string
	// Destination is the directory sources are placed into (copy and move only)
	Destination string
}

// Validate checks the request shape and, for copy and move, that the destination is a directory
func (r Request) Validate(ctx context.Context, platform native.Platform) error {
	if len(r.Sources) == 0 {
		return errors.Errorf("%w: no sources", ErrInvalidRequest)
	}
	for i, src := range r.Sources {
		if strings.TrimSpace(src) == "" {
			return errors.Errorf("%w: source %d is empty", ErrInvalidRequest, i)
		}
	}

	switch r.Operation {
	case Copy, Move:
		if r.Destination == "" {
			return errors.Errorf("%w: %s needs a destination", ErrInvalidRequest, r.Operation)
		}
		info, err := platform.Stat(ctx, r.Destination)
		if err != nil {
			return errors.Errorf("%w: destination %s: %w", ErrInvalidRequest, r.Destination, err)
		}
		if !info.IsDir {
			return errors.Errorf("%w: destination %s is not a directory", ErrInvalidRequest, r.Destination)
		}
	case Delete, Trash:
		if r.Destination != "" {
			return errors.Errorf("%w: %s takes no destination", ErrInvalidRequest, r.Operation)
		}
	default:
		return errors.Errorf("%w: unknown operation %d", ErrInvalidRequest, int(r.Operation))
	}
	return nil
}
