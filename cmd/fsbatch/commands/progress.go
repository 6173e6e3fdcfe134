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

package commands

import (
	"context"
	"sync"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/walteh/fsbatch/pkg/operation"
)

// 📊 ProgressBar draws one pterm bar per batch, scaled to percent
type ProgressBar struct {
	mu   sync.Mutex
	bars map[string]*pterm.ProgressbarPrinter
}

var _ operation.Observer = (*ProgressBar)(nil)

func NewProgressBar() *ProgressBar {
	return &ProgressBar{bars: make(map[string]*pterm.ProgressbarPrinter)}
}

func (p *ProgressBar) Observe(ctx context.Context, ev operation.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := ev.BatchID.String()
	switch {
	case ev.Kind == operation.EventPhase && ev.Phase == operation.Executing:
		bar, err := pterm.DefaultProgressbar.
			WithTotal(100).
			WithTitle(ev.Operation.String()).
			WithRemoveWhenDone(true).
			Start()
		if err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Msg("starting progress bar")
			return
		}
		p.bars[id] = bar
	case ev.Kind == operation.EventProgress:
		bar, ok := p.bars[id]
		if !ok {
			return
		}
		if delta := int(ev.Progress.Percent()) - bar.Current; delta > 0 {
			bar.Add(delta)
		}
	case ev.Kind == operation.EventPhase && ev.Phase == operation.Finished:
		bar, ok := p.bars[id]
		if !ok {
			return
		}
		delete(p.bars, id)
		if _, err := bar.Stop(); err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Msg("stopping progress bar")
		}
	}
}
