package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc"

	"ronin-go/internal/ronin"
)

// Trigger tells the watch loop when to take the next snapshot.
type Trigger interface {
	// Start begins delivering signals on C. Delivery stops when ctx is done
	// or Close is called.
	Start(ctx context.Context) error

	// C delivers signals. Signals raised while one is pending are merged.
	C() <-chan struct{}

	// Kind is recorded with each sync run the trigger causes.
	Kind() ronin.Trigger

	// Close stops delivery and waits for background work to exit.
	Close() error
}

// signal raises a pending signal on c unless one is already pending.
func signal(c chan struct{}) {
	select {
	case c <- struct{}{}:
	default:
	}
}

// PollTrigger signals at a fixed interval.
type PollTrigger struct {
	interval time.Duration
	c        chan struct{}
	cancel   context.CancelFunc
	wg       conc.WaitGroup
}

// NewPollTrigger creates a trigger that fires every interval.
func NewPollTrigger(interval time.Duration) *PollTrigger {
	return &PollTrigger{
		interval: interval,
		c:        make(chan struct{}, 1),
	}
}

func (t *PollTrigger) Start(ctx context.Context) error {
	if t.interval <= 0 {
		return &ronin.ConfigurationError{Field: "poll_interval", Err: fmt.Errorf("must be positive, got %s", t.interval)}
	}
	ctx, t.cancel = context.WithCancel(ctx)
	t.wg.Go(func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				signal(t.c)
			}
		}
	})
	return nil
}

func (t *PollTrigger) C() <-chan struct{} { return t.c }

func (t *PollTrigger) Kind() ronin.Trigger { return ronin.TriggerPoll }

func (t *PollTrigger) Close() error {
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
	return nil
}

// Interval returns the polling period.
func (t *PollTrigger) Interval() time.Duration { return t.interval }
