package heiretsu

import (
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewTaskPoolDefaultsToGOMAXPROCS(t *testing.T) {
	p := NewTaskPool(0)
	assert.Equal(t, runtime.GOMAXPROCS(0), p.ThreadCount())
	assert.Equal(t, runtime.GOMAXPROCS(0), NewTaskPool(-3).ThreadCount())
	assert.Equal(t, 2, NewTaskPool(2).ThreadCount())
}

func TestScopeJoinsAllTasks(t *testing.T) {
	p := NewTaskPool(4)
	var done atomic.Int32
	err := p.Scope(func(s *TaskScope) {
		for i := 0; i < 100; i++ {
			s.Spawn(func() { done.Add(1) })
		}
	})
	require.NoError(t, err)
	// Scope has returned, so every task has finished
	assert.Equal(t, int32(100), done.Load())
}

func TestScopePanicDoesNotCancelSiblings(t *testing.T) {
	p := NewTaskPool(4)
	var done atomic.Int32
	err := p.Scope(func(s *TaskScope) {
		s.Spawn(func() { panic("task failure") })
		for i := 0; i < 50; i++ {
			s.Spawn(func() { done.Add(1) })
		}
	})

	var perr *TaskPanicError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "task failure")
	assert.NotNil(t, perr.Recovered)
	assert.Equal(t, int32(50), done.Load(), "siblings of a panicking task must complete")
}

func TestScopePanicUnwraps(t *testing.T) {
	p := NewTaskPool(2)
	err := p.Scope(func(s *TaskScope) {
		s.Spawn(func() { panic("inner") })
	})
	var perr *TaskPanicError
	require.ErrorAs(t, err, &perr)
	require.Error(t, perr.Unwrap())
	assert.Contains(t, perr.Unwrap().Error(), "inner")
}

func TestScopeReusable(t *testing.T) {
	p := NewTaskPool(2, WithPoolLogger(zap.NewNop()))
	require.Error(t, p.Scope(func(s *TaskScope) {
		s.Spawn(func() { panic("first") })
	}))
	// the pool stays usable after a panicking dispatch
	var ran atomic.Bool
	require.NoError(t, p.Scope(func(s *TaskScope) {
		s.Spawn(func() { ran.Store(true) })
	}))
	assert.True(t, ran.Load())
}
