// Package scheduler drives named recurring cycles whose due time survives
// process restarts.
//
// Each cycle persists when it last completed successfully. On startup the
// next due time is derived from that record: a cycle that was due while the
// process was down fires once immediately, however many periods were missed.
// A failed firing is retried with the same invocation id until it succeeds,
// and only a successful firing moves the recorded time forward.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dyluth/standings/internal/clock"
	"github.com/dyluth/standings/internal/metrics"
	"github.com/dyluth/standings/pkg/scoreboard"
	"github.com/google/uuid"
)

// State is the lifecycle position of one cycle.
type State string

const (
	Uninitialized State = "uninitialized"
	Waiting       State = "waiting"
	Running       State = "running"
	Recording     State = "recording"
	Stopped       State = "stopped"
)

// DefaultRecordTimeout bounds the write of last_fired_at after a success.
const DefaultRecordTimeout = 5 * time.Second

// Firing describes one invocation of a cycle callback.
type Firing struct {
	Cycle        string
	InvocationID string    // Stable across retries of the same period
	DueAt        time.Time // The period this firing serves
	FiredAt      time.Time
	Forced       bool
}

// Callback is the work a cycle performs. It must be idempotent per
// Firing.InvocationID: a retry after a failure carries the same id.
type Callback func(ctx context.Context, f Firing) error

// Cycle declares one recurring job.
type Cycle struct {
	Name          string
	Interval      time.Duration
	RetryInterval time.Duration // Capped at Interval. Default 30s
	Run           Callback
}

// StateStore persists cycle state. *scoreboard.Client implements it.
type StateStore interface {
	GetScheduleState(ctx context.Context, cycleName string) (*scoreboard.ScheduleState, error)
	InitScheduleState(ctx context.Context, cycleName string, at time.Time) error
	RecordCycleFired(ctx context.Context, cycleName string, at time.Time) error
}

// Status is a point-in-time view of a cycle.
type Status struct {
	Cycle          string        `json:"cycle"`
	State          State         `json:"state"`
	Interval       time.Duration `json:"interval"`
	LastFiredAt    time.Time     `json:"last_fired_at"`
	NextDue        time.Time     `json:"next_due"`
	Remaining      time.Duration `json:"remaining"`
	LastInvocation string        `json:"last_invocation,omitempty"`
	LastError      string        `json:"last_error,omitempty"`
}

type forceRequest struct {
	reply chan forceResult
}

type forceResult struct {
	firing Firing
	err    error
}

// Scheduler runs one cycle.
type Scheduler struct {
	cycle         Cycle
	store         StateStore
	clock         clock.Clock
	recordTimeout time.Duration
	force         chan forceRequest

	mu             sync.Mutex
	state          State
	lastFiredAt    time.Time
	nextDue        time.Time
	lastInvocation string
	lastErr        error
	running        bool
}

// New creates a Scheduler for one cycle.
func New(cycle Cycle, store StateStore, clk clock.Clock) (*Scheduler, error) {
	if cycle.Name == "" {
		return nil, fmt.Errorf("cycle name cannot be empty")
	}
	if cycle.Interval <= 0 {
		return nil, fmt.Errorf("cycle %s: interval must be positive", cycle.Name)
	}
	if cycle.Run == nil {
		return nil, fmt.Errorf("cycle %s: callback is required", cycle.Name)
	}
	if cycle.RetryInterval <= 0 {
		cycle.RetryInterval = 30 * time.Second
	}
	if cycle.RetryInterval > cycle.Interval {
		cycle.RetryInterval = cycle.Interval
	}
	if clk == nil {
		clk = clock.Real()
	}

	return &Scheduler{
		cycle:         cycle,
		store:         store,
		clock:         clk,
		recordTimeout: DefaultRecordTimeout,
		force:         make(chan forceRequest),
		state:         Uninitialized,
	}, nil
}

// Name returns the cycle name.
func (s *Scheduler) Name() string { return s.cycle.Name }

// Run drives the cycle until ctx is cancelled. It always returns nil on
// cancellation; callback failures are logged and retried, never returned.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("cycle %s is already running", s.cycle.Name)
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.state = Stopped
		s.mu.Unlock()
	}()

	periodDue, ok := s.initialize(ctx)
	if !ok {
		return nil
	}

	wakeAt := periodDue
	for {
		s.setWaiting(wakeAt)

		if remaining := wakeAt.Sub(s.clock.Now()); remaining > 0 {
			timer := s.clock.NewTimer(remaining)
			select {
			case <-ctx.Done():
				timer.Stop()
				log.Printf("[Scheduler] Cycle %s stopping", s.cycle.Name)
				return nil

			case req := <-s.force:
				timer.Stop()
				f := Firing{
					Cycle:        s.cycle.Name,
					InvocationID: fmt.Sprintf("%s:force:%s", s.cycle.Name, uuid.New().String()),
					DueAt:        s.clock.Now(),
					Forced:       true,
				}
				err := s.fire(ctx, &f)
				req.reply <- forceResult{firing: f, err: err}
				if err == nil {
					periodDue = s.LastFiredAt().Add(s.cycle.Interval)
					wakeAt = periodDue
				}
				continue

			case <-timer.C:
			}
		}

		if ctx.Err() != nil {
			return nil
		}

		f := Firing{
			Cycle:        s.cycle.Name,
			InvocationID: InvocationID(s.cycle.Name, periodDue),
			DueAt:        periodDue,
		}
		if err := s.fire(ctx, &f); err != nil {
			if ctx.Err() != nil {
				log.Printf("[Scheduler] Cycle %s stopping after interrupted firing %s", s.cycle.Name, f.InvocationID)
				return nil
			}
			wakeAt = s.clock.Now().Add(s.cycle.RetryInterval)
			continue
		}

		periodDue = s.LastFiredAt().Add(s.cycle.Interval)
		wakeAt = periodDue
	}
}

// ForceFire runs the cycle now, outside its schedule, and waits for the
// result. A successful forced firing restarts the interval from now.
func (s *Scheduler) ForceFire(ctx context.Context) (Firing, error) {
	if !s.isRunning() {
		return Firing{}, fmt.Errorf("cycle %s is not running", s.cycle.Name)
	}

	req := forceRequest{reply: make(chan forceResult, 1)}
	select {
	case s.force <- req:
	case <-ctx.Done():
		return Firing{}, ctx.Err()
	}

	select {
	case res := <-req.reply:
		return res.firing, res.err
	case <-ctx.Done():
		return Firing{}, ctx.Err()
	}
}

// Status returns a snapshot of the cycle's state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Cycle:          s.cycle.Name,
		State:          s.state,
		Interval:       s.cycle.Interval,
		LastFiredAt:    s.lastFiredAt,
		NextDue:        s.nextDue,
		LastInvocation: s.lastInvocation,
	}
	if !s.nextDue.IsZero() {
		if r := s.nextDue.Sub(s.clock.Now()); r > 0 {
			st.Remaining = r
		}
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Peek returns the cycle's status. When this process is not running the
// cycle, the status is derived from the persisted state instead.
func (s *Scheduler) Peek(ctx context.Context) (Status, error) {
	if s.isRunning() {
		return s.Status(), nil
	}

	st := Status{Cycle: s.cycle.Name, State: Uninitialized, Interval: s.cycle.Interval}
	state, err := s.store.GetScheduleState(ctx, s.cycle.Name)
	if err != nil {
		if scoreboard.IsNotFound(err) {
			return st, nil
		}
		return Status{}, fmt.Errorf("failed to read schedule state: %w", err)
	}

	st.State = Stopped
	if state.HasFired() {
		st.LastFiredAt = state.LastFiredAt
		st.NextDue = state.LastFiredAt.Add(s.cycle.Interval)
	} else {
		st.NextDue = state.InitializedAt
	}
	if r := st.NextDue.Sub(s.clock.Now()); r > 0 {
		st.Remaining = r
	}
	return st, nil
}

// LastFiredAt returns the time of the last successful firing.
func (s *Scheduler) LastFiredAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFiredAt
}

// InvocationID derives the id of the scheduled firing that serves the
// period due at dueAt.
func InvocationID(cycle string, dueAt time.Time) string {
	return fmt.Sprintf("%s:%d", cycle, dueAt.Unix())
}

// initialize loads persisted state and returns the due time of the first
// period. A store that cannot be read is retried until ctx ends.
func (s *Scheduler) initialize(ctx context.Context) (time.Time, bool) {
	for {
		due, err := s.loadDue(ctx)
		if err == nil {
			return due, true
		}

		log.Printf("[Scheduler] Cycle %s failed to load state, retrying in %s: %v", s.cycle.Name, s.cycle.RetryInterval, err)
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()

		timer := s.clock.NewTimer(s.cycle.RetryInterval)
	wait:
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return time.Time{}, false
			case req := <-s.force:
				req.reply <- forceResult{
					firing: Firing{Cycle: s.cycle.Name},
					err:    fmt.Errorf("%w: cycle %s: %v", ErrNotInitialized, s.cycle.Name, err),
				}
			case <-timer.C:
				break wait
			}
		}
	}
}

func (s *Scheduler) loadDue(ctx context.Context) (time.Time, error) {
	state, err := s.store.GetScheduleState(ctx, s.cycle.Name)
	if err != nil && !scoreboard.IsNotFound(err) {
		return time.Time{}, fmt.Errorf("failed to read schedule state: %w", err)
	}

	if state == nil || (state.InitializedAt.IsZero() && !state.HasFired()) {
		now := s.clock.Now()
		if err := s.store.InitScheduleState(ctx, s.cycle.Name, now); err != nil {
			return time.Time{}, fmt.Errorf("failed to initialize schedule state: %w", err)
		}
		// Re-read so a concurrent initializer's timestamp wins consistently.
		state, err = s.store.GetScheduleState(ctx, s.cycle.Name)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to read schedule state: %w", err)
		}
		log.Printf("[Scheduler] Cycle %s initialized, firing now", s.cycle.Name)
	}

	if !state.HasFired() {
		// Never completed: the first period is due at initialization.
		return state.InitializedAt, nil
	}

	s.mu.Lock()
	s.lastFiredAt = state.LastFiredAt
	s.mu.Unlock()

	due := state.LastFiredAt.Add(s.cycle.Interval)
	if behind := s.clock.Now().Sub(due); behind > 0 {
		log.Printf("[Scheduler] Cycle %s overdue by %s, firing once to catch up", s.cycle.Name, behind.Round(time.Second))
	}
	return due, nil
}

// fire runs the callback under supervision and, on success, records the
// completion time. f.FiredAt is filled in.
func (s *Scheduler) fire(ctx context.Context, f *Firing) error {
	f.FiredAt = s.clock.Now()
	s.mu.Lock()
	s.state = Running
	s.lastInvocation = f.InvocationID
	s.mu.Unlock()

	start := time.Now()
	err := s.supervise(ctx, *f)
	if err != nil {
		status := "error"
		var pe *PanicError
		if errors.As(err, &pe) {
			status = "panic"
		}
		metrics.CycleRun(s.cycle.Name, status, time.Since(start))
		log.Printf("[Scheduler] Cycle %s invocation %s failed: %v", s.cycle.Name, f.InvocationID, err)
		s.recordError(err)
		return err
	}

	s.mu.Lock()
	s.state = Recording
	s.mu.Unlock()

	completedAt := s.clock.Now()

	// The work is done; record it even if shutdown has begun.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.recordTimeout)
	defer cancel()
	if err := s.store.RecordCycleFired(rctx, s.cycle.Name, completedAt); err != nil {
		err = fmt.Errorf("failed to record firing: %w", err)
		metrics.CycleRun(s.cycle.Name, "error", time.Since(start))
		log.Printf("[Scheduler] Cycle %s invocation %s succeeded but was not recorded: %v", s.cycle.Name, f.InvocationID, err)
		s.recordError(err)
		return err
	}

	metrics.CycleRun(s.cycle.Name, "success", time.Since(start))
	s.mu.Lock()
	s.lastFiredAt = completedAt
	s.lastErr = nil
	s.mu.Unlock()

	log.Printf("[Scheduler] Cycle %s invocation %s completed", s.cycle.Name, f.InvocationID)
	return nil
}

// PanicError is returned when a cycle callback panics.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("cycle callback panicked: %v", e.Value)
}

func (s *Scheduler) supervise(ctx context.Context, f Firing) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			log.Printf("[Scheduler] Cycle %s invocation %s panicked: %v\n%s", f.Cycle, f.InvocationID, r, stack)
			err = &PanicError{Value: r, Stack: stack}
		}
	}()
	return s.cycle.Run(ctx, f)
}

func (s *Scheduler) setWaiting(next time.Time) {
	s.mu.Lock()
	s.state = Waiting
	s.nextDue = next
	s.mu.Unlock()
}

func (s *Scheduler) recordError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Scheduler) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ErrUnknownCycle is returned for a cycle name no scheduler owns.
var ErrUnknownCycle = errors.New("unknown cycle")

// ErrNotInitialized is returned by ForceFire while a cycle is still waiting
// to load its persisted state.
var ErrNotInitialized = errors.New("cycle not initialized")
