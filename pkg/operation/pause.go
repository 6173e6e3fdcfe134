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
	"sync"
)

// ⏸️ Pauser blocks between items while a batch is paused
type Pauser interface {
	// Wait returns once the batch may continue, or with ctx's error
	Wait(ctx context.Context) error
}

// Gate is a Pauser controlled from other goroutines
type Gate struct {
	mu      sync.Mutex
	resumed chan struct{} // nil while running
}

func NewGate() *Gate {
	return &Gate{}
}

// Pause reports false if the gate was already paused
func (g *Gate) Pause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resumed != nil {
		return false
	}
	g.resumed = make(chan struct{})
	return true
}

// Resume reports false if the gate was not paused
func (g *Gate) Resume() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resumed == nil {
		return false
	}
	close(g.resumed)
	g.resumed = nil
	return true
}

func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resumed != nil
}

func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	resumed := g.resumed
	g.mu.Unlock()
	if resumed == nil {
		return ctx.Err()
	}
	select {
	case <-resumed:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

type neverPaused struct{}

func (neverPaused) Wait(ctx context.Context) error {
	return ctx.Err()
}
