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
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/fsbatch/cmd/fsbatch/opts"
	"github.com/walteh/fsbatch/pkg/cancel"
	"github.com/walteh/fsbatch/pkg/conflict"
	"github.com/walteh/fsbatch/pkg/desktop"
	"github.com/walteh/fsbatch/pkg/operation"
	"github.com/walteh/fsbatch/pkg/status"
	"gitlab.com/tozd/go/errors"
)

// NewCopyCmd creates the copy command
func NewCopyCmd(o *opts.RootOpts) *cobra.Command {
	return newTransferCmd(o, operation.Copy, "copy SOURCE... DEST", "Copy files and directories into DEST")
}

// NewMoveCmd creates the move command
func NewMoveCmd(o *opts.RootOpts) *cobra.Command {
	return newTransferCmd(o, operation.Move, "move SOURCE... DEST", "Move files and directories into DEST")
}

// NewDeleteCmd creates the delete command
func NewDeleteCmd(o *opts.RootOpts) *cobra.Command {
	return newTransferCmd(o, operation.Delete, "delete PATH...", "Permanently delete files and directories")
}

// NewTrashCmd creates the trash command
func NewTrashCmd(o *opts.RootOpts) *cobra.Command {
	return newTransferCmd(o, operation.Trash, "trash PATH...", "Move files and directories to the recycle bin")
}

func newTransferCmd(o *opts.RootOpts, kind operation.Kind, use, short string) *cobra.Command {
	var conflictFlag string

	args := cobra.MinimumNArgs(1)
	if kind == operation.Copy || kind == operation.Move {
		args = cobra.MinimumNArgs(2)
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := zerolog.Ctx(cmd.Context()).With().Str("command", kind.String()).Logger().WithContext(cmd.Context())

			req := operation.Request{Operation: kind, Sources: args}
			if kind == operation.Copy || kind == operation.Move {
				req.Sources, req.Destination = args[:len(args)-1], args[len(args)-1]
			}

			prompter, err := promptFor(o, conflictFlag)
			if err != nil {
				return err
			}

			res, err := runBatch(ctx, o, prompter, req)
			if res != nil {
				for _, f := range res.Failed() {
					fmt.Fprintln(o.Out, status.FormatItem(res.Operation, f))
				}
				fmt.Fprintf(o.Out, "%s\n", res.Progress.Message())
			}
			if err != nil {
				return errors.Errorf("%s: %w", kind, err)
			}
			return nil
		},
	}

	if kind == operation.Copy || kind == operation.Move {
		cmd.Flags().StringVar(&conflictFlag, "on-conflict", "", "replace, replace-all, skip, skip-all or abort instead of asking")
	}

	return cmd
}

// promptFor picks the flag's fixed decision, then the config's, then an interactive prompt
func promptFor(o *opts.RootOpts, flag string) (conflict.Prompter, error) {
	if flag != "" {
		d, err := conflict.ParseDecision(flag)
		if err != nil {
			return nil, errors.Errorf("parsing --on-conflict: %w", err)
		}
		return conflict.Policy(d), nil
	}
	if d, fixed := o.Config.ConflictDecision(); fixed {
		return conflict.Policy(d), nil
	}
	return NewInteractivePrompter(), nil
}

// runBatch runs req with a reserved cancellation id that SIGINT fires
func runBatch(ctx context.Context, o *opts.RootOpts, prompter conflict.Prompter, req operation.Request) (*operation.Result, error) {
	observers := operation.MultiObserver{status.NewReporter()}
	if o.Console != nil {
		observers = append(observers, o.Console)
	}
	if o.Progress {
		observers = append(observers, NewProgressBar())
	}

	svc := o.Service(prompter, observers)
	id := svc.ReserveCancellable()
	stop := cancelOnInterrupt(ctx, svc, id)
	defer stop()

	opt := operation.WithCancelID(id)
	switch req.Operation {
	case operation.Copy:
		return svc.Copy(ctx, req.Sources, req.Destination, opt)
	case operation.Move:
		return svc.Move(ctx, req.Sources, req.Destination, opt)
	case operation.Delete:
		return svc.Delete(ctx, req.Sources, opt)
	default:
		return svc.Trash(ctx, req.Sources, opt)
	}
}

// cancelOnInterrupt cancels id on the first SIGINT until stop is called
func cancelOnInterrupt(ctx context.Context, svc *desktop.Service, id cancel.ID) (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	done := make(chan struct{})

	go func() {
		select {
		case <-sigs:
			zerolog.Ctx(ctx).Warn().Msg("🛑 interrupt received, cancelling batch")
			svc.Cancel(ctx, id)
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
