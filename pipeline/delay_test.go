package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitDisabledNeverSleeps(t *testing.T) {
	sleeper := &fakeSleeper{}
	policy := NewDelayPolicyWithSleeper(0, 0, sleeper)

	for i := 0; i < 5; i++ {
		require.NoError(t, policy.Wait(context.Background()))
	}
	assert.Equal(t, 0, sleeper.count())
}

func TestWaitStaysWithinBounds(t *testing.T) {
	sleeper := &fakeSleeper{}
	policy := NewDelayPolicyWithSleeper(3*time.Second, 6*time.Second, sleeper)

	for i := 0; i < 50; i++ {
		require.NoError(t, policy.Wait(context.Background()))
	}
	require.Equal(t, 50, sleeper.count())
	for _, d := range sleeper.sleeps {
		assert.GreaterOrEqual(t, d, 3*time.Second)
		assert.LessOrEqual(t, d, 6*time.Second)
	}
}

func TestBackoffExtendsBeyondMax(t *testing.T) {
	sleeper := &fakeSleeper{}
	policy := NewDelayPolicyWithSleeper(3*time.Second, 6*time.Second, sleeper)

	for i := 0; i < 50; i++ {
		require.NoError(t, policy.Backoff(context.Background()))
	}
	for _, d := range sleeper.sleeps {
		assert.GreaterOrEqual(t, d, 6*time.Second)
		assert.LessOrEqual(t, d, 30*time.Second)
	}
}

func TestBackoffWithDelaysDisabledStillWaits(t *testing.T) {
	sleeper := &fakeSleeper{}
	policy := NewDelayPolicyWithSleeper(0, 0, sleeper)

	require.NoError(t, policy.Backoff(context.Background()))
	require.Equal(t, 1, sleeper.count())
	assert.Greater(t, sleeper.sleeps[0], time.Duration(0), "upstream throttling is honored even with delays off")
}

func TestRealSleeperHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := realSleeper{}.Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
