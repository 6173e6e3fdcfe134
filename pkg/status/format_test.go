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

package status

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/walteh/fsbatch/pkg/operation"
	"gitlab.com/tozd/go/errors"
)

func TestFormatItem(t *testing.T) {
	color.NoColor = true

	tests := []struct {
		name     string
		op       operation.Kind
		outcome  operation.Outcome
		contains []string
	}{
		{
			name:     "copied",
			op:       operation.Copy,
			outcome:  operation.Outcome{Source: "/a/b.txt", Destination: "/dst/b.txt", Status: operation.Success},
			contains: []string{"✓", "/a/b.txt", "copy", "success", "→ /dst/b.txt"},
		},
		{
			name:     "skipped",
			op:       operation.Move,
			outcome:  operation.Outcome{Source: "/a", Status: operation.Skipped},
			contains: []string{"⟳", "move", "skipped"},
		},
		{
			name:     "failed delete",
			op:       operation.Delete,
			outcome:  operation.Outcome{Source: "/x", Status: operation.Failed},
			contains: []string{"✗", "delete", "failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatItem(tt.op, tt.outcome)
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			assert.NotRegexp(t, ` $`, got)
		})
	}
}

func TestDefaultFileFormatter(t *testing.T) {
	f := NewDefaultFileFormatter()

	assert.Equal(t, "✨ Copied /a", f.FormatOutcome(operation.Copy, operation.Outcome{Source: "/a", Status: operation.Success}))
	assert.Equal(t, "📦 Moved /a", f.FormatOutcome(operation.Move, operation.Outcome{Source: "/a", Status: operation.Success}))
	assert.Equal(t, "🗑️  Trashed /a", f.FormatOutcome(operation.Trash, operation.Outcome{Source: "/a", Status: operation.Success}))
	assert.Equal(t, "🔥 Deleted /a", f.FormatOutcome(operation.Delete, operation.Outcome{Source: "/a", Status: operation.Success}))
	assert.Equal(t, "⏭️  Skipped /a", f.FormatOutcome(operation.Copy, operation.Outcome{Source: "/a", Status: operation.Skipped}))
	assert.Equal(t, "❌ Failed /a", f.FormatOutcome(operation.Copy, operation.Outcome{Source: "/a", Status: operation.Failed}))

	p := operation.Progress{Operation: operation.Delete, ProcessedItems: 1, TotalItems: 4}
	assert.Equal(t, "⏳ Progress: 1/4 items (25%)", f.FormatProgress(p))
	p.ProcessedItems = 4
	assert.Equal(t, "✅ Progress: 4/4 items (100%)", f.FormatProgress(p))

	assert.Empty(t, f.FormatError(nil))
	assert.Equal(t, "❌ Error: boom", f.FormatError(errors.New("boom")))
}
