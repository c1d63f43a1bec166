package poll

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/bushal"
)

// sequence returns a status function yielding the given values, then repeating the last one.
func sequence(values ...byte) (StatusFunc[byte], *int) {
	calls := 0
	return func(ctx context.Context) (byte, error) {
		i := calls
		calls++
		if i >= len(values) {
			i = len(values) - 1
		}
		return values[i], nil
	}, &calls
}

func wipClear(s byte) bool { return s&0x01 == 0 }

func TestPoller_NeverReady(t *testing.T) {
	for _, n := range []int{1, 2, 5, 100} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			read, calls := sequence(0x01)
			p, err := New(read, wipClear, n)
			require.NoError(t, err)
			err = p.Poll(context.Background())
			assert.ErrorIs(t, err, bushal.ErrTimeout)
			assert.Equal(t, n, *calls)
			assert.Equal(t, n, p.Attempts())
			assert.Equal(t, Timeout, p.State())
		})
	}
}

func TestPoller_ReadyAfterRetries(t *testing.T) {
	read, calls := sequence(0x03, 0x01, 0x01, 0x00)
	p, err := New(read, wipClear, 10)
	require.NoError(t, err)
	assert.NoError(t, p.Poll(context.Background()))
	assert.Equal(t, 4, *calls)
	assert.Equal(t, Ready, p.State())
	assert.Equal(t, byte(0x00), p.Last())
}

func TestPoller_ReadyOnLastAttempt(t *testing.T) {
	read, calls := sequence(0x01, 0x01, 0x00)
	p, err := New(read, wipClear, 3)
	require.NoError(t, err)
	assert.NoError(t, p.Poll(context.Background()))
	assert.Equal(t, 3, *calls)
}

func TestPoller_Steps(t *testing.T) {
	read, calls := sequence(0x01, 0x00)
	p, err := New(read, wipClear, 2)
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, Idle, p.State())
	expected := []State{Evaluate, Retry, Idle, Evaluate, Ready}
	for i, want := range expected {
		got, err := p.Step(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got, "step %d", i)
	}
	assert.Equal(t, 2, *calls)

	// terminal states do not issue more reads
	got, err := p.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, Ready, got)
	assert.Equal(t, 2, *calls)
}

func TestPoller_Reset(t *testing.T) {
	read, calls := sequence(0x01)
	p, err := New(read, wipClear, 2)
	require.NoError(t, err)
	assert.ErrorIs(t, p.Poll(context.Background()), bushal.ErrTimeout)
	p.Reset()
	assert.Equal(t, Idle, p.State())
	assert.Equal(t, 0, p.Attempts())
	assert.ErrorIs(t, p.Poll(context.Background()), bushal.ErrTimeout)
	assert.Equal(t, 4, *calls)
}

func TestPoller_ReadError(t *testing.T) {
	boom := errors.New("nack")
	calls := 0
	read := func(ctx context.Context) (byte, error) {
		calls++
		if calls == 2 {
			return 0, boom
		}
		return 0x01, nil
	}
	p, err := New(read, wipClear, 5)
	require.NoError(t, err)
	err = p.Poll(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, bushal.ErrTimeout)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, p.Attempts())
}

func TestPoller_InvalidAttempts(t *testing.T) {
	read, _ := sequence(0x00)
	_, err := New(read, wipClear, 0)
	assert.ErrorIs(t, err, ErrInvalidAttempts)
	_, err = New(read, wipClear, -3)
	assert.ErrorIs(t, err, ErrInvalidAttempts)
	_, err = New[byte](nil, wipClear, 1)
	assert.Error(t, err)
}

func TestPoller_IntervalCancelled(t *testing.T) {
	read, calls := sequence(0x01)
	p, err := New(read, wipClear, 10, WithInterval(time.Hour))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = p.Poll(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, *calls)
	assert.Equal(t, Retry, p.State())
}

func TestUntil(t *testing.T) {
	read, calls := sequence(0x01, 0x00)
	assert.NoError(t, Until(context.Background(), read, wipClear, 5, WithInterval(time.Millisecond)))
	assert.Equal(t, 2, *calls)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "timeout", Timeout.String())
	assert.Equal(t, "state(42)", State(42).String())
	assert.True(t, Ready.Terminal())
	assert.False(t, Retry.Terminal())
}
