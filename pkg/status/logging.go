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
	"fmt"

	"github.com/walteh/fsbatch/pkg/operation"
)

// FileFormatter defines the interface for formatting status messages
type FileFormatter interface {
	// FormatOutcome formats an item outcome message
	FormatOutcome(op operation.Kind, o operation.Outcome) string
	// FormatProgress formats a progress message
	FormatProgress(p operation.Progress) string
	// FormatError formats an error message
	FormatError(err error) string
}

// DefaultFileFormatter provides a default implementation of FileFormatter
type DefaultFileFormatter struct{}

func NewDefaultFileFormatter() *DefaultFileFormatter {
	return &DefaultFileFormatter{}
}

// FormatOutcome formats an item outcome with emojis
func (f *DefaultFileFormatter) FormatOutcome(op operation.Kind, o operation.Outcome) string {
	switch o.Status {
	case operation.Success:
		switch op {
		case operation.Copy:
			return fmt.Sprintf("✨ Copied %s", o.Source)
		case operation.Move:
			return fmt.Sprintf("📦 Moved %s", o.Source)
		case operation.Trash:
			return fmt.Sprintf("🗑️  Trashed %s", o.Source)
		default:
			return fmt.Sprintf("🔥 Deleted %s", o.Source)
		}
	case operation.Skipped:
		return fmt.Sprintf("⏭️  Skipped %s", o.Source)
	case operation.Cancelled:
		return fmt.Sprintf("🛑 Cancelled %s", o.Source)
	default:
		return fmt.Sprintf("❌ Failed %s", o.Source)
	}
}

// FormatProgress formats a progress message with percentage
func (f *DefaultFileFormatter) FormatProgress(p operation.Progress) string {
	if p.Percent() >= 100 {
		return fmt.Sprintf("✅ Progress: %d/%d items (%.0f%%)", p.ProcessedItems, p.TotalItems, p.Percent())
	}
	return fmt.Sprintf("⏳ Progress: %d/%d items (%.0f%%)", p.ProcessedItems, p.TotalItems, p.Percent())
}

// FormatError formats an error message with emoji
func (f *DefaultFileFormatter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("❌ Error: %v", err)
}
