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

package log

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/walteh/fsbatch/pkg/operation"
)

// 🎨 Display configuration
const (
	fileIndent  = 4  // spaces to indent item entries
	nameWidth   = 35 // base width for the source path
	opWidth     = 8  // width for the operation
	statusWidth = 10 // width for status text
)

// 🎯 ItemOperation is one finished item for logging
type ItemOperation struct {
	Path        string // source path
	Destination string // destination path, empty for delete and trash
	Operation   string // copy, move, delete or trash
	Status      string // success, skipped, cancelled or failed
	Err         error  // failure, if any
}

// 📦 BatchOperation is the header of one batch
type BatchOperation struct {
	ID          string
	Operation   string
	Sources     int
	Destination string
}

// 🎯 Logger prints batches to a console and mirrors them to zerolog
type Logger struct {
	zlog    zerolog.Logger
	console io.Writer
	mu      sync.Mutex
	batches map[string]*batchLog
}

type batchLog struct {
	op    BatchOperation
	items []ItemOperation
}

var _ operation.Observer = (*Logger)(nil)

// 🏭 New creates a new logger
func New(console io.Writer, level zerolog.Level) *Logger {
	zlog := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger().Level(level)
	return &Logger{
		zlog:    zlog,
		console: console,
		batches: make(map[string]*batchLog),
	}
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		panic("logger not found in context")
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// 📝 formatItem formats an item for display
func (l *Logger) formatItem(op ItemOperation) string {
	var symbol rune
	var symbolColor color.Attribute
	switch op.Status {
	case "failed":
		symbol = '✗'
		symbolColor = color.FgRed
	case "success":
		symbol = '✓'
		symbolColor = color.FgGreen
	case "skipped":
		symbol = '⟳'
		symbolColor = color.FgYellow
	default:
		symbol = '•'
		symbolColor = color.FgCyan
	}

	var opColor color.Attribute
	switch op.Operation {
	case "delete", "trash":
		opColor = color.FgMagenta
	case "move":
		opColor = color.FgYellow
	default:
		opColor = color.FgBlue
	}

	line := fmt.Sprintf("%s%s %s %s %s",
		fmt.Sprintf("%*s", fileIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, op.Path),
		color.New(opColor).Sprint(fmt.Sprintf("%-*s", opWidth, op.Operation)),
		fmt.Sprintf("%-*s", statusWidth, op.Status))
	if op.Err != nil {
		line += " " + color.New(color.Faint).Sprint(op.Err.Error())
	}
	return line
}

// 📝 LogItem logs a finished item
func (l *Logger) LogItem(ctx context.Context, batchID string, op ItemOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.batches[batchID]; ok {
		b.items = append(b.items, op)
	}

	fmt.Fprintln(l.console, l.formatItem(op))

	ev := l.zlog.Info()
	if op.Err != nil {
		ev = l.zlog.Warn().Err(op.Err)
	}
	ev.Str("batch_id", batchID).
		Str("file", op.Path).
		Str("destination", op.Destination).
		Str("operation", op.Operation).
		Str("status", op.Status).
		Msg("item finished")
}

// 📝 StartBatch prints a batch header
func (l *Logger) StartBatch(ctx context.Context, op BatchOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.batches[op.ID] = &batchLog{op: op}

	target := op.Destination
	if target == "" {
		target = fmt.Sprintf("%d sources", op.Sources)
	}
	fmt.Fprintf(l.console, "[%s %s]\n",
		op.Operation,
		color.New(color.FgCyan).Sprint(target))

	l.zlog.Info().
		Str("batch_id", op.ID).
		Str("operation", op.Operation).
		Int("sources", op.Sources).
		Str("destination", op.Destination).
		Msg("starting batch")
}

// 📝 EndBatch prints the summary of a batch
func (l *Logger) EndBatch(ctx context.Context, batchID string, state string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.batches[batchID]
	if !ok {
		return
	}
	delete(l.batches, batchID)

	counts := map[string]int{}
	for _, item := range b.items {
		counts[item.Status]++
	}

	fmt.Fprintf(l.console, "%s %s %s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(state),
		color.New(color.Faint).Sprint("•"),
		color.New(color.FgYellow).Sprintf("%d ok, %d skipped, %d failed", counts["success"], counts["skipped"], counts["failed"]))

	l.zlog.Info().
		Str("batch_id", batchID).
		Str("state", state).
		Int("items", len(b.items)).
		Msg("batch complete")
}

// 👀 Observe prints batch headers, item lines and summaries
func (l *Logger) Observe(ctx context.Context, ev operation.Event) {
	id := ev.BatchID.String()
	switch ev.Kind {
	case operation.EventPhase:
		switch ev.Phase {
		case operation.Planning:
			l.StartBatch(ctx, BatchOperation{
				ID:          id,
				Operation:   ev.Operation.String(),
				Sources:     len(ev.Request.Sources),
				Destination: ev.Request.Destination,
			})
		case operation.Finished:
			l.EndBatch(ctx, id, ev.State.String())
		}
	case operation.EventItemFinished:
		if ev.Outcome == nil {
			return
		}
		l.LogItem(ctx, id, ItemOperation{
			Path:        ev.Outcome.Source,
			Destination: ev.Outcome.Destination,
			Operation:   ev.Operation.String(),
			Status:      ev.Outcome.Status.String(),
			Err:         ev.Outcome.Err,
		})
	}
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("fsbatch")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

func (l *Logger) Successf(format string, args ...interface{}) {
	l.Success(fmt.Sprintf(format, args...))
}
