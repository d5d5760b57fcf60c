package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeCompleter blocks until its context is cancelled unless a reply is
// configured. It records the context it observed so tests can verify the
// abort signal propagated.
type fakeCompleter struct {
	reply    string
	err      error
	delay    time.Duration
	observed context.Context
}

func (f *fakeCompleter) Complete(ctx context.Context, req Request) (string, error) {
	f.observed = ctx
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func TestCompleteWithDeadline_Success(t *testing.T) {
	fake := &fakeCompleter{reply: `{"ok":true}`}
	text, err := CompleteWithDeadline(context.Background(), fake, Request{User: "hi"}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != `{"ok":true}` {
		t.Errorf("text = %q", text)
	}
}

func TestCompleteWithDeadline_Timeout(t *testing.T) {
	fake := &fakeCompleter{reply: "late", delay: 5 * time.Second}

	start := time.Now()
	_, err := CompleteWithDeadline(context.Background(), fake, Request{User: "hi"}, 50*time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed > time.Second {
		t.Errorf("timeout enforcement took %v, want ~50ms", elapsed)
	}
	// The in-flight call must have been actively cancelled.
	if fake.observed.Err() == nil {
		t.Error("underlying call context should be cancelled after timeout")
	}
}

func TestCompleteWithDeadline_PassesThroughProviderErrors(t *testing.T) {
	providerErr := errors.New("upstream 500")
	fake := &fakeCompleter{err: providerErr}

	_, err := CompleteWithDeadline(context.Background(), fake, Request{User: "hi"}, time.Second)
	if !errors.Is(err, providerErr) {
		t.Fatalf("err = %v, want the provider error", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("a fast provider error must not be classified as timeout")
	}
}

func TestCompleteWithDeadline_SentinelsSurviveWrapping(t *testing.T) {
	for _, sentinel := range []error{ErrOverloaded, ErrAuth} {
		fake := &fakeCompleter{err: sentinel}
		_, err := CompleteWithDeadline(context.Background(), fake, Request{User: "hi"}, time.Second)
		if !errors.Is(err, sentinel) {
			t.Errorf("err = %v, want %v", err, sentinel)
		}
	}
}
