package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolProcessesTasks(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 4, "test", time.Second, nil)
	defer pool.Shutdown(time.Second)

	var count atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		require.NoError(t, pool.Submit(func(context.Context) error {
			defer wg.Done()
			count.Add(1)
			return nil
		}))
	}
	wg.Wait()
	assert.Equal(t, int64(20), count.Load())
}

func TestWorkerPoolSurvivesPanicsAndErrors(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, "test", time.Second, nil)
	defer pool.Shutdown(time.Second)

	require.NoError(t, pool.Submit(func(context.Context) error {
		panic("boom")
	}))
	require.NoError(t, pool.Submit(func(context.Context) error {
		return errors.New("task failed")
	}))

	done := make(chan struct{})
	require.NoError(t, pool.Submit(func(context.Context) error {
		close(done)
		return nil
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool stopped processing after panic")
	}
}

func TestWorkerPoolShutdownRejectsSubmit(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 2, "test", time.Second, nil)
	require.NoError(t, pool.Shutdown(time.Second))

	err := pool.Submit(func(context.Context) error { return nil })
	assert.Error(t, err)

	// Shutdown is idempotent.
	assert.NoError(t, pool.Shutdown(time.Second))
}

func TestSafeGoRecoversPanic(t *testing.T) {
	done := make(chan struct{})
	SafeGo(context.Background(), time.Second, "panicky", nil, func(context.Context) error {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}
