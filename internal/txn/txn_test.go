package txn

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunEmptyOpsSucceeds(t *testing.T) {
	m := New(nil, nil)
	res, err := m.Run(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Nil(t, res)
}

func TestRunSingleOp(t *testing.T) {
	m := New(nil, nil)
	res, err := m.Run(context.Background(), []Op{
		func(ctx context.Context) (interface{}, error) { return "only", nil },
	}, nil)
	require.NoError(t, err)
	require.Equal(t, []interface{}{"only"}, res)
}

func TestRunParallelPrefixThenFinal(t *testing.T) {
	m := New(nil, nil)
	var order []int
	res, err := m.Run(context.Background(), []Op{
		func(ctx context.Context) (interface{}, error) { return 0, nil },
		func(ctx context.Context) (interface{}, error) { return 1, nil },
		func(ctx context.Context) (interface{}, error) { order = append(order, 99); return "final", nil },
	}, nil)
	require.NoError(t, err)
	require.Equal(t, []interface{}{0, 1, "final"}, res)
	require.Equal(t, []int{99}, order)
}

func TestRunRollsBackOnParallelFailureWithLowestIndex(t *testing.T) {
	m := New(nil, nil)
	var rolledBack []int
	finalRan := false
	_, err := m.Run(context.Background(), []Op{
		func(ctx context.Context) (interface{}, error) { return "ok0", nil },
		func(ctx context.Context) (interface{}, error) { return nil, fmt.Errorf("op1 boom") },
		func(ctx context.Context) (interface{}, error) { finalRan = true; return "final", nil },
	}, func(ctx context.Context, successes []int) {
		rolledBack = successes
	})
	require.Error(t, err)
	require.False(t, finalRan)
	require.Contains(t, rolledBack, 0)

	var f *Failure
	require.True(t, errors.As(err, &f))
	require.Equal(t, 1, f.Index)
}

func TestRunRollsBackOnFinalOpFailure(t *testing.T) {
	m := New(nil, nil)
	var rolledBack []int
	_, err := m.Run(context.Background(), []Op{
		func(ctx context.Context) (interface{}, error) { return "ok0", nil },
		func(ctx context.Context) (interface{}, error) { return "ok1", nil },
		func(ctx context.Context) (interface{}, error) { return nil, fmt.Errorf("final boom") },
	}, func(ctx context.Context, successes []int) {
		rolledBack = successes
	})
	require.Error(t, err)
	require.Equal(t, []int{0, 1}, rolledBack)
}

func TestRunRecoversPanicAsFailure(t *testing.T) {
	m := New(nil, nil)
	rolledBack := false
	_, err := m.Run(context.Background(), []Op{
		func(ctx context.Context) (interface{}, error) { panic("kaboom") },
		func(ctx context.Context) (interface{}, error) { return "ok", nil },
		func(ctx context.Context) (interface{}, error) { return "final", nil },
	}, func(ctx context.Context, successes []int) {
		rolledBack = true
	})
	require.Error(t, err)
	require.True(t, rolledBack)

	var f *Failure
	require.True(t, errors.As(err, &f))
	require.Equal(t, FailurePanic, f.Kind)
}
