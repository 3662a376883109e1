package plugin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGuardReturnsValue(t *testing.T) {
	t.Parallel()

	v, timedOut, err := Guard(context.Background(), time.Second, func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.False(t, timedOut)
	require.Equal(t, 42, v)
}

func TestGuardPropagatesError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	_, timedOut, err := Guard(context.Background(), time.Second, func(context.Context) (int, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	require.False(t, timedOut)
}

func TestGuardRecoversPanics(t *testing.T) {
	t.Parallel()

	_, timedOut, err := Guard(context.Background(), time.Second, func(context.Context) (int, error) {
		panic("kaboom")
	})
	require.ErrorIs(t, err, ErrPanic)
	require.Equal(t, "plugin panicked: kaboom", err.Error())
	require.False(t, timedOut)

	var perr *PanicError
	require.ErrorAs(t, err, &perr)
	require.Contains(t, string(perr.Stack), "goroutine")
}

func TestGuardTimesOutHooksIgnoringContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	_, timedOut, err := Guard(context.Background(), 20*time.Millisecond, func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	require.True(t, timedOut)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
}

func TestGuardReportsCancellationWithoutTimeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, timedOut, err := Guard(ctx, 0, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.False(t, timedOut)
	require.ErrorIs(t, err, context.Canceled)
}

func TestHookKindContracts(t *testing.T) {
	t.Parallel()

	c, ok := HookValidate.Contract()
	require.True(t, ok)
	require.Equal(t, ContractGate, c)

	c, ok = HookModerateStreamID.Contract()
	require.True(t, ok)
	require.Equal(t, ContractMerge, c)
	require.True(t, HookModerateStreamID.Keyed())
	require.False(t, HookAddMetadata.Keyed())

	_, ok = HookKind("generate").Contract()
	require.False(t, ok)

	require.Equal(t, "notify", ContractNotify.String())
	require.Len(t, Kinds(), 5)
}
