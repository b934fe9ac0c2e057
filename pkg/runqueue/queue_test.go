package runqueue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueEnqueue(t *testing.T) {
	t.Run("should return the task result", func(t *testing.T) {
		q := New()
		defer q.Close()

		value, err := q.Enqueue(context.Background(), "thread-1", func(ctx context.Context) (interface{}, error) {
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, value)
	})

	t.Run("should propagate task errors", func(t *testing.T) {
		q := New()
		defer q.Close()

		_, err := q.Enqueue(context.Background(), "thread-1", func(ctx context.Context) (interface{}, error) {
			return nil, fmt.Errorf("boom")
		})
		assert.ErrorContains(t, err, "boom")
	})

	t.Run("should serialize tasks on the same lane", func(t *testing.T) {
		q := New()
		defer q.Close()

		var mu sync.Mutex
		var order []int
		running := 0
		maxRunning := 0

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := q.Enqueue(context.Background(), "same-thread", func(ctx context.Context) (interface{}, error) {
					mu.Lock()
					running++
					if running > maxRunning {
						maxRunning = running
					}
					order = append(order, i)
					mu.Unlock()

					time.Sleep(10 * time.Millisecond)

					mu.Lock()
					running--
					mu.Unlock()
					return nil, nil
				})
				assert.NoError(t, err)
			}()
			// Stagger submissions so enqueue order is deterministic
			time.Sleep(2 * time.Millisecond)
		}
		wg.Wait()

		assert.Equal(t, 1, maxRunning)
		assert.Len(t, order, 5)
	})

	t.Run("should run different lanes in parallel", func(t *testing.T) {
		q := New()
		defer q.Close()

		start := time.Now()
		var wg sync.WaitGroup
		for i := 0; i < 3; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := q.Enqueue(context.Background(), fmt.Sprintf("thread-%d", i), func(ctx context.Context) (interface{}, error) {
					time.Sleep(50 * time.Millisecond)
					return nil, nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		// Serial execution would take at least 150ms
		assert.Less(t, time.Since(start), 140*time.Millisecond)
	})
}

func TestQueueStats(t *testing.T) {
	t.Run("should report running and queued counts", func(t *testing.T) {
		q := New()
		defer q.Close()

		release := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			q.Enqueue(context.Background(), "t", func(ctx context.Context) (interface{}, error) {
				<-release
				return nil, nil
			})
		}()

		require.Eventually(t, func() bool {
			return q.RunningCount("t") == 1
		}, time.Second, 5*time.Millisecond)

		stats := q.Stats()
		assert.Equal(t, 1, stats["t"]["running"])
		assert.Equal(t, 1, stats["t"]["concurrency"])

		close(release)
		<-done
	})
}

func TestQueueClear(t *testing.T) {
	t.Run("should reject queued tasks", func(t *testing.T) {
		q := New()
		defer q.Close()

		release := make(chan struct{})
		go q.Enqueue(context.Background(), "t", func(ctx context.Context) (interface{}, error) {
			<-release
			return nil, nil
		})

		require.Eventually(t, func() bool {
			return q.RunningCount("t") == 1
		}, time.Second, 5*time.Millisecond)

		errCh := make(chan error, 1)
		go func() {
			_, err := q.Enqueue(context.Background(), "t", func(ctx context.Context) (interface{}, error) {
				return nil, nil
			})
			errCh <- err
		}()

		require.Eventually(t, func() bool {
			return q.QueueSize("t") == 1
		}, time.Second, 5*time.Millisecond)

		assert.Equal(t, 1, q.Clear("t"))
		assert.ErrorContains(t, <-errCh, "lane cleared")

		close(release)
	})
}
