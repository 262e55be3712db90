package lib

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPollSucceedsEventually(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), time.Second, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, time.Millisecond)

	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestPollTimeout(t *testing.T) {
	notYet := errors.New("not yet")
	err := Poll(context.Background(), 20*time.Millisecond, func() error {
		return notYet
	}, 5*time.Millisecond)

	require.ErrorIs(t, err, ErrPollTimeout)
	require.ErrorIs(t, err, notYet)
}

func TestPollContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Poll(ctx, time.Second, func() error {
		return errors.New("not yet")
	}, 5*time.Millisecond)

	require.ErrorIs(t, err, context.Canceled)
}

func TestPollBacksOff(t *testing.T) {
	var stamps []time.Time
	_ = Poll(context.Background(), 100*time.Millisecond, func() error {
		stamps = append(stamps, time.Now())
		return errors.New("not yet")
	}, 10*time.Millisecond)

	require.GreaterOrEqual(t, len(stamps), 3)
	require.Greater(t, stamps[2].Sub(stamps[1]), stamps[1].Sub(stamps[0]))
}
