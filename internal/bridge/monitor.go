package bridge

import (
	"context"

	"github.com/hale-labs/hale-oracle/internal/interfaces"
	"github.com/hale-labs/hale-oracle/internal/lib"
)

// Monitor lets the polling loop of a relayer be started and stopped at runtime.
// Every run is bound to the context the monitor was created with
type Monitor struct {
	ctx  context.Context
	task *lib.Task
	log  interfaces.ILogger
}

func NewMonitor(ctx context.Context, relayer interfaces.Runnable, log interfaces.ILogger) *Monitor {
	return &Monitor{
		ctx:  ctx,
		task: lib.NewTask("bridge-monitor", relayer),
		log:  log,
	}
}

// Start returns lib.ErrTaskRunning when the monitor is already running
func (m *Monitor) Start() error {
	if err := m.ctx.Err(); err != nil {
		return err
	}
	if err := m.task.Start(m.ctx); err != nil {
		return err
	}
	m.log.Infof("bridge monitor task started")
	return nil
}

// Stop blocks until the current run exited, it is a no-op when idle
func (m *Monitor) Stop(ctx context.Context) error {
	select {
	case <-m.task.Stop():
		if err := m.task.Err(); err != nil {
			m.log.Warnf("bridge monitor exited with error: %s", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) IsRunning() bool {
	return m.task.IsRunning()
}
