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

// Package cancel holds the process-wide table of live cancellation tokens.
//
// A batch reserves a token before it starts and releases it when it finishes.
// Callers only ever hold the numeric id; cancelling an id that is unknown or
// already released is a silent no-op.
package cancel

import (
	"context"
	"sync"
	"sync/atomic"
)

// 🔑 ID is the opaque handle a caller holds for one batch
type ID uint32

// 🛑 Token is a single cancellation signal owned by the Registry
type Token struct {
	id        ID
	once      sync.Once
	done      chan struct{}
	cancelled atomic.Bool
}

func newToken(id ID) *Token {
	return &Token{id: id, done: make(chan struct{})}
}

// ID returns the id the token was reserved under
func (t *Token) ID() ID {
	return t.id
}

// Done is closed once the token is cancelled
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// Cancelled reports whether cancel was requested
func (t *Token) Cancelled() bool {
	return t.cancelled.Load()
}

func (t *Token) cancel() {
	t.once.Do(func() {
		t.cancelled.Store(true)
		close(t.done)
	})
}

// 📋 Registry maps ids to live tokens
type Registry struct {
	mu     sync.Mutex
	next   uint32
	tokens map[ID]*Token
}

// 🏭 New creates an empty registry
func New() *Registry {
	return &Registry{
		tokens: make(map[ID]*Token),
	}
}

// 🎟️ Reserve creates a fresh token and returns its id
func (r *Registry) Reserve() ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	// ids only repeat after wrap-around, and never while the older one is live
	for {
		id := ID(r.next)
		r.next++
		if _, live := r.tokens[id]; !live {
			r.tokens[id] = newToken(id)
			return id
		}
	}
}

// 🛑 Cancel marks the token cancelled and reports whether it was live
func (r *Registry) Cancel(id ID) bool {
	tok, ok := r.Lookup(id)
	if !ok {
		return false
	}
	tok.cancel()
	return true
}

// 🧹 Release removes the token; unknown ids are ignored
func (r *Registry) Release(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, id)
}

// 🔍 Lookup returns the live token for id
func (r *Registry) Lookup(id ID) (*Token, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, ok := r.tokens[id]
	return tok, ok
}

// Len returns the number of live tokens
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

// 🔗 WithToken derives a context that is cancelled together with tok
func WithToken(ctx context.Context, tok *Token) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-tok.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
