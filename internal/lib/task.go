package lib

import (
	"context"
	"errors"
	"sync"

	"github.com/hale-labs/hale-oracle/internal/interfaces"
)

var ErrTaskRunning = errors.New("task is already running")

// Task runs a Runnable in a separate goroutine that can be stopped and started again
type Task struct {
	name     string
	runnable interfaces.Runnable

	mu     sync.Mutex
	cancel context.CancelFunc // nil when not running
	done   chan struct{}
	err    error
}

func NewTask(name string, runnable interfaces.Runnable) *Task {
	done := make(chan struct{})
	close(done)
	return &Task{
		name:     name,
		runnable: runnable,
		done:     done,
	}
}

func (t *Task) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return WrapError(ErrTaskRunning, errors.New(t.name))
	}

	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done
	t.err = nil

	go func() {
		err := t.runnable.Run(subCtx)
		cancel()

		t.mu.Lock()
		// cancellation, whether by Stop or by the parent context, is a normal exit
		if err != nil && !errors.Is(err, context.Canceled) {
			t.err = err
		}
		t.cancel = nil
		t.mu.Unlock()

		close(done)
	}()

	return nil
}

// Stop cancels the task and returns a channel closed once it exited
func (t *Task) Stop() <-chan struct{} {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return done
}

// Done returns a channel closed when the current run exits
func (t *Task) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

func (t *Task) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

// Err returns the error that ended the last run, nil after a cancellation
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Task) Name() string {
	return t.name
}
