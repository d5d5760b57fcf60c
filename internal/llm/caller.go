package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// Request is one completion request: a fixed system instruction plus a
// per-call user instruction.
type Request struct {
	Model     string
	System    string
	User      string
	MaxTokens int64
}

// Completer is the external completion dependency. The production
// implementation is *Client; tests substitute fakes.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Sentinel errors for the distinguishable provider failure classes.
var (
	// ErrTimeout means the call hit its deadline and was aborted. The
	// underlying HTTP request is cancelled, not merely abandoned.
	ErrTimeout = errors.New("completion call timed out")
	// ErrOverloaded means the provider signaled overload (429/529).
	ErrOverloaded = errors.New("completion provider overloaded")
	// ErrAuth means the provider rejected our credentials (401/403).
	ErrAuth = errors.New("completion provider rejected credentials")
)

// CompleteWithDeadline invokes the completer under a strict deadline. On
// timeout the in-flight call is actively cancelled via its context, which
// aborts the underlying HTTP request and releases the connection, and
// ErrTimeout is surfaced. No retries: a single attempt, fail fast.
func CompleteWithDeadline(ctx context.Context, c Completer, req Request, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := c.Complete(ctx, req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded && !errors.Is(err, ErrTimeout) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return "", err
	}
	return text, nil
}

// classify maps an SDK error to the package's sentinel classes. Errors
// that fit no class are returned wrapped as generic transport failures.
func classify(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case http.StatusTooManyRequests, 529:
			return fmt.Errorf("%w: %v", ErrOverloaded, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrAuth, err)
		}
	}

	return fmt.Errorf("completion transport error: %w", err)
}
