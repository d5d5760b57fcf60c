package reward

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dalefocus/dalefocus/internal/apperr"
	"github.com/dalefocus/dalefocus/internal/llm"
)

type fakeCompleter struct {
	reply string
	err   error
	req   llm.Request
	calls int
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.calls++
	f.req = req
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newGenerator(t *testing.T, c llm.Completer) *Generator {
	t.Helper()
	g, err := New(c, Config{
		Model:      "claude-3-5-haiku-20241022",
		Timeout:    12 * time.Second,
		Configured: true,
	}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return g
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog()
	require.NoError(t, err)

	assert.Equal(t, "coach-pro", c.Default)
	assert.NotEmpty(t, c.Fallback)
	for _, id := range []string{"coach-pro", "pana-real", "sargento", "meme-lord"} {
		assert.Contains(t, c.Personalities, id)
		assert.NotEmpty(t, c.Personalities[id].Tone)
	}
}

func TestCatalogToneFallsBackToDefault(t *testing.T) {
	c, err := LoadCatalog()
	require.NoError(t, err)

	assert.Equal(t, c.Personalities["coach-pro"].Tone, c.Tone("unknown-personality"))
	assert.Equal(t, c.Personalities["sargento"].Tone, c.Tone("sargento"))
}

func TestGenerate(t *testing.T) {
	fake := &fakeCompleter{reply: "  That pomodoro is in the bag. One more and the draft is done!  "}
	g := newGenerator(t, fake)

	res, err := g.Generate(context.Background(), "user-1", Request{
		Personality: "sargento",
		Context:     "completed a 25 minute pomodoro",
	})
	require.NoError(t, err)

	assert.Equal(t, "That pomodoro is in the bag. One more and the draft is done!", res.Message)
	assert.False(t, res.Fallback)
	assert.Contains(t, fake.req.System, "Military style")
	assert.Contains(t, fake.req.User, "completed a 25 minute pomodoro")
}

func TestGenerateUnknownPersonalityUsesDefaultTone(t *testing.T) {
	fake := &fakeCompleter{reply: "Well done."}
	g := newGenerator(t, fake)

	_, err := g.Generate(context.Background(), "user-1", Request{
		Personality: "robot-overlord",
		Context:     "finished a step",
	})
	require.NoError(t, err)
	assert.Contains(t, fake.req.System, "sports coach")
}

func TestGenerateFallsBackOnModelFailure(t *testing.T) {
	cases := []struct {
		name string
		fake *fakeCompleter
	}{
		{"timeout", &fakeCompleter{err: llm.ErrTimeout}},
		{"overloaded", &fakeCompleter{err: llm.ErrOverloaded}},
		{"empty reply", &fakeCompleter{reply: "   "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := newGenerator(t, tc.fake)

			res, err := g.Generate(context.Background(), "user-1", Request{
				Personality: "coach-pro",
				Context:     "finished a step",
			})
			require.NoError(t, err, "rewards are best-effort")
			assert.True(t, res.Fallback)
			assert.NotEmpty(t, res.Message)
		})
	}
}

func TestGenerateUnconfiguredSkipsModel(t *testing.T) {
	fake := &fakeCompleter{reply: "unused"}
	g, err := New(fake, Config{Model: "m", Timeout: time.Second}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	res, err := g.Generate(context.Background(), "user-1", Request{
		Personality: "coach-pro",
		Context:     "finished a step",
	})
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Zero(t, fake.calls)
}

func TestGenerateRejections(t *testing.T) {
	cases := []struct {
		name      string
		principal string
		req       Request
		kind      apperr.Kind
	}{
		{"no principal", "", Request{Personality: "coach-pro", Context: "done"}, apperr.Unauthenticated},
		{"empty personality", "user-1", Request{Context: "done"}, apperr.InvalidArgument},
		{"empty context", "user-1", Request{Personality: "coach-pro"}, apperr.InvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeCompleter{reply: "unused"}
			g := newGenerator(t, fake)

			_, err := g.Generate(context.Background(), tc.principal, tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
			assert.Zero(t, fake.calls)
		})
	}
}
