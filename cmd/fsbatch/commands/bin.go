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
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/walteh/fsbatch/cmd/fsbatch/opts"
	"github.com/walteh/fsbatch/pkg/trash"
	"gitlab.com/tozd/go/errors"
)

// TimeLayout is how deletion times are printed and, with RFC 3339, parsed
const TimeLayout = "2006-01-02T15:04:05.000"

// NewBinCmd creates the recycle bin command group
func NewBinCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bin",
		Short: "Inspect and manage the recycle bin",
	}
	cmd.AddCommand(
		newBinListCmd(o),
		newBinRestoreCmd(o),
		newBinPurgeCmd(o),
		newBinEmptyCmd(o),
	)
	return cmd
}

func newBinListCmd(o *opts.RootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recycle bin entries, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := o.Service(nil, nil).ListRecycleBin(cmd.Context())
			if err != nil {
				return errors.Errorf("listing recycle bin: %w", err)
			}
			RenderEntries(o.Out, entries)
			return nil
		},
	}
}

// RenderEntries writes entries as a borderless table
func RenderEntries(w io.Writer, entries []trash.Entry) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Deleted", "Original path", "Type", "Size", "Volume"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	table.AppendBulk(lo.Map(entries, func(e trash.Entry, _ int) []string {
		size := strconv.FormatInt(e.Attributes.Size, 10)
		if e.Attributes.IsDir {
			size = "-"
		}
		return []string{e.DeletedAt.Format(TimeLayout), e.OriginalPath, e.MimeType, size, e.Volume}
	}))
	table.Render()
}

// ParseDeletedAt accepts TimeLayout in local time or RFC 3339
func ParseDeletedAt(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(TimeLayout, s, time.Local); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Errorf("parsing deletion time %q: want %s or RFC 3339", s, TimeLayout)
	}
	return t, nil
}

// absPaths resolves args against the working directory, since the bin records absolute paths
func absPaths(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, errors.Errorf("resolving %s: %w", arg, err)
		}
		out = append(out, abs)
	}
	return out, nil
}

func requestsAt(args []string, at string) ([]trash.Request, error) {
	when, err := ParseDeletedAt(at)
	if err != nil {
		return nil, err
	}
	paths, err := absPaths(args)
	if err != nil {
		return nil, err
	}
	return lo.Map(paths, func(p string, _ int) trash.Request {
		return trash.Request{OriginalPath: p, DeletedAt: when}
	}), nil
}

func newBinRestoreCmd(o *opts.RootOpts) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "restore PATH...",
		Short: "Restore trashed paths; the newest deletion wins unless --at is given",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := o.Service(nil, nil)
			if at == "" {
				paths, err := absPaths(args)
				if err != nil {
					return err
				}
				if err := svc.Undelete(cmd.Context(), paths); err != nil {
					return errors.Errorf("restoring: %w", err)
				}
				return nil
			}

			reqs, err := requestsAt(args, at)
			if err != nil {
				return err
			}
			if err := svc.UndeleteByTime(cmd.Context(), reqs); err != nil {
				return errors.Errorf("restoring: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", fmt.Sprintf("exact deletion time (%s or RFC 3339)", TimeLayout))
	return cmd
}

func newBinPurgeCmd(o *opts.RootOpts) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "purge PATH...",
		Short: "Permanently remove entries deleted at an exact time",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := requestsAt(args, at)
			if err != nil {
				return err
			}
			if err := o.Service(nil, nil).DeleteFromRecycleBin(cmd.Context(), reqs); err != nil {
				return errors.Errorf("purging: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", fmt.Sprintf("exact deletion time (%s or RFC 3339)", TimeLayout))
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func newBinEmptyCmd(o *opts.RootOpts) *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "empty",
		Short: "Empty the recycle bin, or only the volume holding --scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Service(nil, nil).EmptyRecycleBin(cmd.Context(), scope); err != nil {
				return errors.Errorf("emptying recycle bin: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "path whose volume should be emptied")
	return cmd
}
