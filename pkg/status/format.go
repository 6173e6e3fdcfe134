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
	"strings"

	"github.com/fatih/color"
	"github.com/walteh/fsbatch/pkg/operation"
)

// 🎨 Display configuration
const (
	fileIndent  = 4  // spaces to indent item entries
	nameWidth   = 35 // base width for the source path
	opWidth     = 8  // width for the operation name
	statusWidth = 10 // width for status text
)

// 🎯 FormatItem formats one item outcome for display
func FormatItem(op operation.Kind, o operation.Outcome) string {
	var prefix string
	switch o.Status {
	case operation.Success:
		prefix = color.GreenString("✓")
	case operation.Skipped:
		prefix = color.YellowString("⟳")
	case operation.Failed:
		prefix = color.RedString("✗")
	default:
		prefix = color.HiBlackString("-")
	}

	line := fmt.Sprintf("%s%s %-*s %-*s %-*s",
		strings.Repeat(" ", fileIndent),
		prefix,
		nameWidth, o.Source,
		opWidth, op,
		statusWidth, o.Status,
	)
	if o.Destination != "" {
		line += " → " + o.Destination
	}
	return strings.TrimRight(line, " ")
}
