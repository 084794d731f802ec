package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errEngine = errors.New("engine unavailable")

func run(b *Breaker, outcomes ...bool) {
	for _, ok := range outcomes {
		b.Do(func() error {
			if ok {
				return nil
			}
			return errEngine
		})
	}
}

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	b := New("web", Settings{})
	run(b, true, true, true)

	assert.Equal(t, StateClosed, b.State())
	assert.EqualValues(t, 3, b.Counts().ConsecutiveSuccesses)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := New("web", Settings{
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 3 },
	})
	run(b, false, false, false)

	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Do(func() error { return nil }), ErrCircuitOpen)
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	b := New("qml", Settings{
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 3 },
	})
	run(b, false, false, true, false, false)

	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := New("web", Settings{
		MaxRequests: 2,
		Timeout:     10 * time.Millisecond,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})
	run(b, false)
	require.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	run(b, true, true)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := New("web", Settings{
		Timeout:     10 * time.Millisecond,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})
	run(b, false)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	run(b, false)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerHalfOpenLimitsProbes(t *testing.T) {
	b := New("web", Settings{
		MaxRequests: 1,
		Timeout:     10 * time.Millisecond,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})
	run(b, false)
	time.Sleep(20 * time.Millisecond)

	blocked := make(chan struct{})
	release := make(chan struct{})
	go b.Do(func() error {
		close(blocked)
		<-release
		return nil
	})
	<-blocked

	assert.ErrorIs(t, b.Do(func() error { return nil }), ErrTooManyRequests)
	close(release)
}

func TestBreakerStateChangeCallback(t *testing.T) {
	var transitions []string
	b := New("web", Settings{
		ReadyToTrip:   func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
		OnStateChange: func(name string, from, to State) { transitions = append(transitions, from.String()+">"+to.String()) },
	})
	run(b, false)

	require.Len(t, transitions, 1)
	assert.Equal(t, "closed>open", transitions[0])
}
