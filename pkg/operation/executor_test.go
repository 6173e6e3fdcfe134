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
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/walteh/fsbatch/pkg/cancel"
	"github.com/walteh/fsbatch/pkg/conflict"
	"github.com/walteh/fsbatch/pkg/native"
	"github.com/walteh/fsbatch/pkg/usage"
)

// 🔧 MockPrompter is a mock implementation of conflict.Prompter
type MockPrompter struct {
	mock.Mock
}

func (m *MockPrompter) Prompt(ctx context.Context, c conflict.Conflict) (conflict.Decision, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(conflict.Decision), args.Error(1)
}

// recorder keeps every event it observes
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Observe(ctx context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) ofKind(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func newPlatform(t *testing.T, files map[string]string, dirs ...string) (*native.Local, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, d := range dirs {
		require.NoError(t, fs.MkdirAll(d, 0o755))
	}
	for path, content := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	return native.New(fs,
		native.WithBufferSize(4),
		native.WithTrashDir("/home/user/.local/share/Trash"),
		native.WithVolumes(native.StaticVolumes{"/"}),
		native.WithUID(1000),
	), fs
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(data)
}

func assertMissing(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	exists, err := afero.Exists(fs, path)
	require.NoError(t, err)
	assert.False(t, exists, "%s should not exist", path)
}

func assertMonotonic(t *testing.T, events []Event) {
	t.Helper()
	var bytes, items uint64
	for _, ev := range events {
		p := ev.Progress
		assert.GreaterOrEqual(t, p.ProcessedBytes, bytes, "processed bytes went backwards")
		assert.GreaterOrEqual(t, p.ProcessedItems, items, "processed items went backwards")
		assert.LessOrEqual(t, p.ProcessedBytes, p.TotalBytes)
		assert.LessOrEqual(t, p.ProcessedItems, p.TotalItems)
		bytes, items = p.ProcessedBytes, p.ProcessedItems
	}
}

func TestCopyDirectory(t *testing.T) {
	ctx := context.Background()
	platform, fs := newPlatform(t, map[string]string{
		"/src/a.txt":     "0123456789",
		"/src/sub/b.txt": "01234567890123456789",
	}, "/dst", "/src/empty")

	rec := &recorder{}
	exec := NewExecutor(platform, cancel.New(), WithObserver(rec))

	res, err := exec.Run(ctx, Request{Operation: Copy, Sources: []string{"/src"}, Destination: "/dst"})
	require.NoError(t, err)

	assert.Equal(t, Completed, res.State)
	assert.Equal(t, uint64(30), res.Progress.TotalBytes)
	assert.Equal(t, uint64(2), res.Progress.TotalItems)
	assert.Equal(t, uint64(30), res.Progress.ProcessedBytes)
	assert.Equal(t, uint64(2), res.Progress.ProcessedItems)
	assert.InDelta(t, 100.0, res.Progress.Percent(), 0.001)
	assert.Equal(t, 2, res.Count(Success))

	assert.Equal(t, "0123456789", readFile(t, fs, "/dst/src/a.txt"))
	assert.Equal(t, "01234567890123456789", readFile(t, fs, "/dst/src/sub/b.txt"))
	isDir, err := afero.IsDir(fs, "/dst/src/empty")
	require.NoError(t, err)
	assert.True(t, isDir, "empty directories are recreated")

	// sources are untouched
	assert.Equal(t, "0123456789", readFile(t, fs, "/src/a.txt"))

	progress := rec.ofKind(EventProgress)
	require.NotEmpty(t, progress)
	assertMonotonic(t, rec.events)

	phases := []Phase{}
	for _, ev := range rec.ofKind(EventPhase) {
		phases = append(phases, ev.Phase)
	}
	assert.Equal(t, []Phase{Planning, Measuring, Executing, Finished}, phases)
}

func TestMoveWithReplace(t *testing.T) {
	ctx := context.Background()
	platform, fs := newPlatform(t, map[string]string{
		"/src/dir/a.txt": "new",
		"/src/dir/b.txt": "bee",
		"/dst/dir/a.txt": "old",
	})

	prompter := &MockPrompter{}
	prompter.On("Prompt", mock.Anything, conflict.Conflict{
		Operation:   "move",
		Source:      "/src/dir/a.txt",
		Destination: "/dst/dir/a.txt",
	}).Return(conflict.Replace, nil).Once()

	rec := &recorder{}
	exec := NewExecutor(platform, cancel.New(), WithPrompter(prompter), WithObserver(rec))

	res, err := exec.Run(ctx, Request{Operation: Move, Sources: []string{"/src/dir"}, Destination: "/dst"})
	require.NoError(t, err)
	prompter.AssertExpectations(t)

	assert.Equal(t, Completed, res.State)
	assert.Equal(t, 2, res.Count(Success))
	assert.Len(t, rec.ofKind(EventConflict), 1)

	assert.Equal(t, "new", readFile(t, fs, "/dst/dir/a.txt"))
	assert.Equal(t, "bee", readFile(t, fs, "/dst/dir/b.txt"))
	assertMissing(t, fs, "/src/dir/a.txt")
	assertMissing(t, fs, "/src/dir")
}

func TestMoveKeepsNonEmptySourceDirectory(t *testing.T) {
	ctx := context.Background()
	platform, fs := newPlatform(t, map[string]string{
		"/src/dir/a.txt": "new",
		"/dst/dir/a.txt": "old",
	})

	exec := NewExecutor(platform, cancel.New(), WithPrompter(conflict.Policy(conflict.Skip)))
	res, err := exec.Run(ctx, Request{Operation: Move, Sources: []string{"/src/dir"}, Destination: "/dst"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Count(Skipped))
	assert.Equal(t, "new", readFile(t, fs, "/src/dir/a.txt"))
	assert.Equal(t, "old", readFile(t, fs, "/dst/dir/a.txt"))
}

func TestSkipAllSilencesPrompts(t *testing.T) {
	ctx := context.Background()
	platform, fs := newPlatform(t, map[string]string{
		"/src/a": "1", "/src/b": "2", "/src/c": "3",
		"/dst/src/a": "x", "/dst/src/b": "y", "/dst/src/c": "z",
	})

	prompter := &MockPrompter{}
	prompter.On("Prompt", mock.Anything, mock.Anything).Return(conflict.SkipAll, nil)

	exec := NewExecutor(platform, cancel.New(), WithPrompter(prompter))
	res, err := exec.Run(ctx, Request{Operation: Copy, Sources: []string{"/src"}, Destination: "/dst"})
	require.NoError(t, err)

	prompter.AssertNumberOfCalls(t, "Prompt", 1)
	assert.Equal(t, 3, res.Count(Skipped))
	assert.Equal(t, Completed, res.State)
	assert.Equal(t, "x", readFile(t, fs, "/dst/src/a"))
	assert.Equal(t, "z", readFile(t, fs, "/dst/src/c"))
}

func TestAbortLeavesRemainingConflicts(t *testing.T) {
	ctx := context.Background()
	platform, fs := newPlatform(t, map[string]string{
		"/src/a": "1", "/src/b": "2", "/src/c": "3",
		"/dst/src/a": "x", "/dst/src/b": "y",
	})

	exec := NewExecutor(platform, cancel.New(), WithPrompter(conflict.Policy(conflict.Abort)))
	res, err := exec.Run(ctx, Request{Operation: Copy, Sources: []string{"/src"}, Destination: "/dst"})
	require.NoError(t, err)

	assert.True(t, res.ConflictsAborted)
	assert.Equal(t, 1, res.Count(Success))
	assert.Equal(t, 2, res.Count(Skipped))
	for _, o := range res.Outcomes {
		if o.Status == Skipped {
			assert.ErrorIs(t, o.Err, conflict.ErrConflictAborted)
		}
	}
	assert.Equal(t, "x", readFile(t, fs, "/dst/src/a"))
	assert.Equal(t, "3", readFile(t, fs, "/dst/src/c"))
}

func TestCancelledBeforeStart(t *testing.T) {
	ctx := context.Background()
	platform, fs := newPlatform(t, map[string]string{"/src/a": "1"}, "/dst")
	registry := cancel.New()
	exec := NewExecutor(platform, registry)

	id := registry.Reserve()
	require.True(t, registry.Cancel(id))

	res, err := exec.Run(ctx, Request{Operation: Copy, Sources: []string{"/src"}, Destination: "/dst"}, WithCancelID(id))
	require.NoError(t, err)
	assert.Equal(t, CancelledEarly, res.State)
	assert.Empty(t, res.Outcomes)
	assertMissing(t, fs, "/dst/src")
	assert.Equal(t, 0, registry.Len(), "token is released when the batch returns")
	assert.False(t, registry.Cancel(id))
}

func TestNoItemStartsAfterCancel(t *testing.T) {
	ctx := context.Background()
	platform, fs := newPlatform(t, map[string]string{
		"/src/1": "one", "/src/2": "two", "/src/3": "three",
	}, "/dst")
	registry := cancel.New()
	id := registry.Reserve()

	rec := &recorder{}
	obs := MultiObserver{rec, ObserverFunc(func(ctx context.Context, ev Event) {
		if ev.Kind == EventItemFinished {
			registry.Cancel(id)
		}
	})}

	exec := NewExecutor(platform, registry, WithObserver(obs))
	res, err := exec.Run(ctx, Request{Operation: Copy, Sources: []string{"/src"}, Destination: "/dst"}, WithCancelID(id))
	require.NoError(t, err)

	assert.Equal(t, CancelledEarly, res.State)
	assert.Len(t, rec.ofKind(EventItemStarted), 1)
	assert.Equal(t, 1, res.Count(Success))
	assert.Equal(t, "one", readFile(t, fs, "/dst/src/1"))
	assertMissing(t, fs, "/dst/src/2")
	assertMissing(t, fs, "/dst/src/3")
	assertMonotonic(t, rec.events)
}

// stallingPlatform writes part of a file and then blocks until cancelled
type stallingPlatform struct {
	native.Platform
	fs afero.Fs
}

func (s *stallingPlatform) Copy(ctx context.Context, src, dst string, progress native.ProgressFunc) error {
	if err := afero.WriteFile(s.fs, dst, []byte("par"), 0o644); err != nil {
		return err
	}
	progress(3, 10)
	<-ctx.Done()
	return ctx.Err()
}

func TestCancelDuringItemRemovesPartialDestination(t *testing.T) {
	ctx := context.Background()
	local, fs := newPlatform(t, map[string]string{"/src/big": "0123456789"}, "/dst")
	registry := cancel.New()
	id := registry.Reserve()

	obs := ObserverFunc(func(ctx context.Context, ev Event) {
		if ev.Kind == EventProgress && ev.Phase == Executing {
			registry.Cancel(id)
		}
	})

	exec := NewExecutor(&stallingPlatform{Platform: local, fs: fs}, registry, WithObserver(obs))
	res, err := exec.Run(ctx, Request{Operation: Copy, Sources: []string{"/src/big"}, Destination: "/dst"}, WithCancelID(id))
	require.NoError(t, err)

	assert.Equal(t, CancelledEarly, res.State)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, Cancelled, res.Outcomes[0].Status)
	assert.Equal(t, uint64(3), res.Progress.ProcessedBytes)
	assertMissing(t, fs, "/dst/big")
	assert.Equal(t, "0123456789", readFile(t, fs, "/src/big"))
}

func TestCancelLeavesConflictsPending(t *testing.T) {
	ctx := context.Background()
	platform, _ := newPlatform(t, map[string]string{
		"/src/a": "1", "/src/b": "2",
		"/dst/src/a": "x", "/dst/src/b": "y",
	})
	registry := cancel.New()
	id := registry.Reserve()

	prompter := conflict.PrompterFunc(func(ctx context.Context, c conflict.Conflict) (conflict.Decision, error) {
		registry.Cancel(id)
		<-ctx.Done()
		return 0, ctx.Err()
	})

	exec := NewExecutor(platform, registry, WithPrompter(prompter))
	res, err := exec.Run(ctx, Request{Operation: Copy, Sources: []string{"/src"}, Destination: "/dst"}, WithCancelID(id))
	require.NoError(t, err)

	assert.Equal(t, CancelledEarly, res.State)
	assert.Len(t, res.Pending, 2)
	assert.Equal(t, 2, res.Count(Cancelled))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	platform, fs := newPlatform(t, map[string]string{
		"/work/a":       "1",
		"/work/sub/b":   "22",
		"/work/sub/c/d": "333",
		"/single":       "x",
	})

	rec := &recorder{}
	exec := NewExecutor(platform, cancel.New(), WithObserver(rec))
	res, err := exec.Run(ctx, Request{Operation: Delete, Sources: []string{"/work", "/single"}})
	require.NoError(t, err)

	assert.Equal(t, Completed, res.State)
	assert.Equal(t, 4, res.Count(Success))
	assert.Equal(t, uint64(4), res.Progress.ProcessedItems)
	assertMissing(t, fs, "/work")
	assertMissing(t, fs, "/single")
	assertMonotonic(t, rec.events)

	// item based percent while running
	var last float64
	for _, ev := range rec.ofKind(EventItemFinished) {
		assert.GreaterOrEqual(t, ev.Progress.Percent(), last)
		last = ev.Progress.Percent()
	}
	assert.InDelta(t, 100.0, last, 0.001)
}

func TestDeleteKeepsIgnored(t *testing.T) {
	ctx := context.Background()
	platform, fs := newPlatform(t, map[string]string{
		"/work/a":    "1",
		"/work/.git": "keep",
	})
	exec := NewExecutor(platform, cancel.New(), WithIgnorePatterns(".git"))

	res, err := exec.Run(ctx, Request{Operation: Delete, Sources: []string{"/work"}})
	require.Error(t, err)
	assert.Equal(t, CompletedWithFailures, res.State)
	assert.Equal(t, "keep", readFile(t, fs, "/work/.git"))
	assertMissing(t, fs, "/work/a")
}

func TestTrashCreditsMeasuredItems(t *testing.T) {
	ctx := context.Background()
	platform, fs := newPlatform(t, map[string]string{
		"/work/a.txt": "hello",
		"/work/b.txt": "world!",
	})
	exec := NewExecutor(platform, cancel.New())

	res, err := exec.Run(ctx, Request{Operation: Trash, Sources: []string{"/work/a.txt", "/work/b.txt"}})
	require.NoError(t, err)
	assert.Equal(t, Completed, res.State)
	assert.Equal(t, 2, res.Count(Success))
	assertMissing(t, fs, "/work/a.txt")

	items, err := platform.ListTrash(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestItemOperationsReportProgress(t *testing.T) {
	tests := []struct {
		name    string
		op      Kind
		sources []string
		want    []uint64
	}{
		{name: "delete", op: Delete, sources: []string{"/work"}, want: []uint64{1, 2, 3, 4}},
		{name: "trash", op: Trash, sources: []string{"/work/a", "/work/b", "/work/c", "/work/d"}, want: []uint64{1, 2, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			platform, _ := newPlatform(t, map[string]string{
				"/work/a": "1", "/work/b": "22", "/work/c": "333", "/work/d": "4444",
			})
			rec := &recorder{}
			exec := NewExecutor(platform, cancel.New(), WithObserver(rec))

			res, err := exec.Run(context.Background(), Request{Operation: tt.op, Sources: tt.sources})
			require.NoError(t, err)
			assert.Equal(t, Completed, res.State)

			var items []uint64
			for _, ev := range rec.ofKind(EventProgress) {
				if ev.Phase == Executing {
					items = append(items, ev.Progress.ProcessedItems)
				}
			}
			assert.Equal(t, tt.want, items)

			progress := rec.ofKind(EventProgress)
			require.NotEmpty(t, progress)
			assert.InDelta(t, 100.0, progress[len(progress)-1].Progress.Percent(), 0.001)
			assertMonotonic(t, rec.events)
		})
	}
}

func TestCopyIntoItselfFails(t *testing.T) {
	tests := []struct {
		name string
		src  string
		dst  string
	}{
		{name: "into own subdirectory", src: "/src", dst: "/src/sub"},
		{name: "onto the same path", src: "/dst/file", dst: "/dst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			platform, _ := newPlatform(t, map[string]string{
				"/src/sub/x": "1",
				"/dst/file":  "2",
			})
			exec := NewExecutor(platform, cancel.New())

			res, err := exec.Run(context.Background(), Request{Operation: Copy, Sources: []string{tt.src}, Destination: tt.dst})
			require.Error(t, err)
			require.NotNil(t, res)
			assert.Equal(t, CompletedWithFailures, res.State)
			assert.Equal(t, 1, res.Count(Failed))
		})
	}
}

func TestInvalidRequests(t *testing.T) {
	platform, _ := newPlatform(t, map[string]string{"/src/a": "1", "/file": "x"}, "/dst")

	tests := []struct {
		name string
		req  Request
	}{
		{name: "no sources", req: Request{Operation: Copy, Destination: "/dst"}},
		{name: "blank source", req: Request{Operation: Delete, Sources: []string{" "}}},
		{name: "copy without destination", req: Request{Operation: Copy, Sources: []string{"/src"}}},
		{name: "missing destination", req: Request{Operation: Move, Sources: []string{"/src"}, Destination: "/nope"}},
		{name: "destination is a file", req: Request{Operation: Copy, Sources: []string{"/src"}, Destination: "/file"}},
		{name: "delete with destination", req: Request{Operation: Delete, Sources: []string{"/src"}, Destination: "/dst"}},
		{name: "unknown operation", req: Request{Operation: Kind(9), Sources: []string{"/src"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := cancel.New()
			res, err := NewExecutor(platform, registry).Run(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Nil(t, res)
			assert.Equal(t, 0, registry.Len())
		})
	}
}

func TestUnknownCancelID(t *testing.T) {
	platform, _ := newPlatform(t, map[string]string{"/a": "1"})
	_, err := NewExecutor(platform, cancel.New()).Run(context.Background(),
		Request{Operation: Delete, Sources: []string{"/a"}}, WithCancelID(77))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestMeasurementFailure(t *testing.T) {
	platform, fs := newPlatform(t, map[string]string{"/a": "1"}, "/dst")
	res, err := NewExecutor(platform, cancel.New()).Run(context.Background(),
		Request{Operation: Copy, Sources: []string{"/a", "/missing"}, Destination: "/dst"})
	assert.ErrorIs(t, err, usage.ErrMeasurement)
	assert.Nil(t, res)
	assertMissing(t, fs, "/dst/a")
}

func TestProgressClamp(t *testing.T) {
	p := Progress{Operation: Copy, TotalBytes: 10, TotalItems: 2}
	p.addBytes(7)
	p.addBytes(7)
	p.addItems(5)
	assert.Equal(t, uint64(10), p.ProcessedBytes)
	assert.Equal(t, uint64(2), p.ProcessedItems)

	d := Progress{Operation: Delete, TotalBytes: 100, TotalItems: 4}
	d.addItems(1)
	assert.InDelta(t, 25.0, d.Percent(), 0.001)
	assert.Equal(t, "delete 25% (1/4 items)", d.Message())

	empty := Progress{Operation: Copy}
	assert.Zero(t, empty.Percent())
	empty.finish()
	assert.InDelta(t, 100.0, empty.Percent(), 0.001)
}

func TestPauseHoldsBatch(t *testing.T) {
	ctx := context.Background()
	platform, fs := newPlatform(t, map[string]string{"/src/a": "1"}, "/dst")
	registry := cancel.New()
	id := registry.Reserve()

	gate := NewGate()
	require.True(t, gate.Pause())
	require.False(t, gate.Pause())

	done := make(chan *Result, 1)
	go func() {
		res, _ := NewExecutor(platform, registry).Run(ctx,
			Request{Operation: Copy, Sources: []string{"/src"}, Destination: "/dst"},
			WithCancelID(id), WithPauser(gate))
		done <- res
	}()

	select {
	case <-done:
		t.Fatal("batch finished while paused")
	case <-time.After(50 * time.Millisecond):
	}
	assertMissing(t, fs, "/dst/src/a")

	require.True(t, gate.Resume())
	select {
	case res := <-done:
		assert.Equal(t, Completed, res.State)
	case <-time.After(5 * time.Second):
		t.Fatal("batch did not resume")
	}
	assert.Equal(t, "1", readFile(t, fs, "/dst/src/a"))
}
