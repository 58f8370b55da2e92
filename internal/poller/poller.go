// Package poller implements the payment status watch loop: one immediate
// check, then interval-driven checks up to a bounded attempt budget. A Task
// is disposable and owned by its creator; cancelling the context tears it
// down with no leaked timers.
package poller

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/pandutama/tripbooking/internal/domain"
)

// Fetcher returns the current payment status for the watched booking.
type Fetcher func(ctx context.Context) (domain.PaymentStatus, error)

// Snapshot is the observable state of a Task after any attempt.
type Snapshot struct {
	ChecksDone  int
	MaxChecks   int
	LastChecked time.Time
	LastStatus  domain.PaymentStatus
	// Stopped means the attempt budget is exhausted without a terminal
	// status. Refresh re-arms the task.
	Stopped bool
}

type Options struct {
	Interval       time.Duration
	MaxChecks      int
	AttemptTimeout time.Duration
	// OnUpdate is invoked after every completed attempt, including the one
	// that observes a terminal status.
	OnUpdate func(Snapshot)
}

type Task struct {
	fetch Fetcher
	opts  Options

	mu          sync.Mutex
	checksDone  int
	lastChecked time.Time
	lastStatus  domain.PaymentStatus

	refreshCh chan struct{}
}

func New(fetch Fetcher, opts Options) *Task {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.MaxChecks <= 0 {
		opts.MaxChecks = 120
	}
	return &Task{
		fetch:      fetch,
		opts:       opts,
		lastStatus: domain.PaymentStatusPending,
		refreshCh:  make(chan struct{}, 1),
	}
}

// Run blocks until a terminal payment status is observed or ctx is done.
// When the attempt budget runs out, Run keeps waiting: automatic checks are
// disabled but Refresh still triggers one and re-arms the budget, so the
// caller is never stranded without a next action.
func (t *Task) Run(ctx context.Context) (Snapshot, error) {
	if snap, terminal := t.check(ctx); terminal {
		return snap, nil
	}

	ticker := time.NewTicker(t.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return t.Snapshot(), ctx.Err()
		case <-ticker.C:
			if t.Snapshot().Stopped {
				continue
			}
			if snap, terminal := t.check(ctx); terminal {
				return snap, nil
			}
		case <-t.refreshCh:
			t.resetBudget()
			if snap, terminal := t.check(ctx); terminal {
				return snap, nil
			}
		}
	}
}

// Refresh requests a manual recheck. It resets the attempt counter, so a
// stopped task polls again.
func (t *Task) Refresh() {
	select {
	case t.refreshCh <- struct{}{}:
	default:
	}
}

func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		ChecksDone:  t.checksDone,
		MaxChecks:   t.opts.MaxChecks,
		LastChecked: t.lastChecked,
		LastStatus:  t.lastStatus,
		Stopped:     t.checksDone >= t.opts.MaxChecks && !t.lastStatus.IsTerminal(),
	}
}

func (t *Task) resetBudget() {
	t.mu.Lock()
	t.checksDone = 0
	t.mu.Unlock()
}

// check performs one attempt. A failed or timed-out attempt counts toward
// the budget and is retried on the next tick.
func (t *Task) check(ctx context.Context) (Snapshot, bool) {
	attemptCtx := ctx
	if t.opts.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, t.opts.AttemptTimeout)
		defer cancel()
	}

	status, err := t.fetch(attemptCtx)

	t.mu.Lock()
	t.checksDone++
	t.lastChecked = time.Now()
	if err == nil {
		t.lastStatus = status
	}
	t.mu.Unlock()

	if err != nil {
		log.Printf("status check failed, retrying next tick: %v", err)
	}

	snap := t.Snapshot()
	if t.opts.OnUpdate != nil {
		t.opts.OnUpdate(snap)
	}
	return snap, err == nil && status.IsTerminal()
}

// ResolveRedirect re-verifies a status assumed from a gateway redirect.
// Redirect error codes are advisory: if the authoritative answer is settled,
// it overrides the locally assumed failure. On fetch failure the assumption
// stands.
func ResolveRedirect(ctx context.Context, fetch Fetcher, assumed domain.PaymentStatus) domain.PaymentStatus {
	status, err := fetch(ctx)
	if err != nil {
		return assumed
	}
	if status.IsSettled() {
		return status
	}
	if status.IsTerminal() {
		return status
	}
	return assumed
}
