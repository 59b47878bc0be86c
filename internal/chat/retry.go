package chat

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = time.Second
)

// retrier runs named operations with exponential backoff. Attempt counters
// are keyed by operation name, not by individual item, and live on the
// instance so independent sessions never share backoff state.
type retrier struct {
	mu       sync.Mutex
	attempts map[string]int

	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

func newRetrier(logger *zap.Logger) *retrier {
	return &retrier{
		attempts:   make(map[string]int),
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		logger:     logger,
	}
}

// Do invokes fn, retrying on failure with a delay of baseDelay * 2^attempt
// (1s, 2s, 4s). After maxRetries consecutive failures the last error is
// returned and the counter resets so the next invocation starts fresh.
// Any success also resets the counter.
func (r *retrier) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	for {
		err := fn(ctx)
		if err == nil {
			r.reset(op)
			return nil
		}

		attempt := r.bump(op)
		if attempt > r.maxRetries {
			r.reset(op)
			return err
		}

		delay := r.baseDelay << (attempt - 1)
		r.logger.Warn("operation failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			r.reset(op)
			return ctx.Err()
		}
	}
}

// bump increments and returns the attempt counter for op.
func (r *retrier) bump(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[op]++
	return r.attempts[op]
}

func (r *retrier) reset(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[op] = 0
}

// pending returns the current attempt counter for op. Test hook.
func (r *retrier) pending(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts[op]
}
