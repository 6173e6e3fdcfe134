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

package conflict

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

type mockPrompter struct {
	mock.Mock
}

func (m *mockPrompter) Prompt(ctx context.Context, c Conflict) (Decision, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(Decision), args.Error(1)
}

func conflicts(n int) []Conflict {
	out := make([]Conflict, n)
	for i := range out {
		out[i] = Conflict{Operation: "copy", Source: "/s" + string(rune('a'+i)), Destination: "/d" + string(rune('a'+i))}
	}
	return out
}

func TestStickyDecisions(t *testing.T) {
	tests := []struct {
		name     string
		answer   Decision
		want     Decision
		prompted int
	}{
		{name: "skip all silences later prompts", answer: SkipAll, want: Skip, prompted: 1},
		{name: "replace all silences later prompts", answer: ReplaceAll, want: Replace, prompted: 1},
		{name: "replace asks every time", answer: Replace, want: Replace, prompted: 3},
		{name: "skip asks every time", answer: Skip, want: Skip, prompted: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			p := &mockPrompter{}
			p.On("Prompt", mock.Anything, mock.Anything).Return(tt.answer, nil)

			r := NewResolver(p)
			for _, c := range conflicts(3) {
				d, err := r.Decide(ctx, c)
				require.NoError(t, err)
				assert.Equal(t, tt.want, d)
			}
			p.AssertNumberOfCalls(t, "Prompt", tt.prompted)
		})
	}
}

func TestDecideAbort(t *testing.T) {
	r := NewResolver(Policy(Abort))
	d, err := r.Decide(context.Background(), Conflict{Destination: "/x"})
	require.NoError(t, err)
	assert.Equal(t, Abort, d)
}

func TestDecidePrompterError(t *testing.T) {
	boom := errors.New("tty closed")
	r := NewResolver(PrompterFunc(func(ctx context.Context, c Conflict) (Decision, error) {
		return 0, boom
	}))
	_, err := r.Decide(context.Background(), Conflict{Destination: "/x"})
	assert.ErrorIs(t, err, boom)
}

func TestDecideInvalidDecision(t *testing.T) {
	r := NewResolver(Policy(Decision(42)))
	_, err := r.Decide(context.Background(), Conflict{Destination: "/x"})
	assert.Error(t, err)
}

func TestNilPrompterSkips(t *testing.T) {
	d, err := NewResolver(nil).Decide(context.Background(), Conflict{})
	require.NoError(t, err)
	assert.Equal(t, Skip, d)
}

func TestParseDecision(t *testing.T) {
	for _, d := range []Decision{Replace, ReplaceAll, Skip, SkipAll, Abort} {
		got, err := ParseDecision(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
	got, err := ParseDecision("SKIP")
	require.NoError(t, err)
	assert.Equal(t, Skip, got)

	_, err = ParseDecision("maybe")
	assert.Error(t, err)
}
