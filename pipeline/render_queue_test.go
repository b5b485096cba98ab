package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/litespace/compositor/layout"
	"github.com/stretchr/testify/require"
)

type blockingRenderer struct {
	running  atomic.Int32
	peak     atomic.Int32
	release  chan struct{}
	mu       sync.Mutex
	order    []string
	sessions chan string
}

func newBlockingRenderer() *blockingRenderer {
	return &blockingRenderer{release: make(chan struct{}), sessions: make(chan string, 100)}
}

func (b *blockingRenderer) Render(ctx context.Context, plan layout.RenderPlan) (string, error) {
	n := b.running.Add(1)
	defer b.running.Add(-1)
	for {
		peak := b.peak.Load()
		if n <= peak || b.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	b.mu.Lock()
	b.order = append(b.order, plan.SessionID)
	b.mu.Unlock()
	b.sessions <- plan.SessionID

	select {
	case <-b.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return plan.OutputPath, nil
}

func TestRenderQueueEnforcesCeiling(t *testing.T) {
	renderer := newBlockingRenderer()
	q := NewRenderQueue(renderer, 2, 10).Start()
	defer q.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := q.Render(context.Background(), layout.RenderPlan{SessionID: string(rune('a' + i)), OutputPath: "/out/x.mp4"})
			require.NoError(t, err)
		}(i)
	}

	requireReceive(t, renderer.sessions, time.Second)
	requireReceive(t, renderer.sessions, time.Second)
	select {
	case s := <-renderer.sessions:
		require.Fail(t, "render started beyond the ceiling", s)
	case <-time.After(200 * time.Millisecond):
	}

	close(renderer.release)
	wg.Wait()
	require.Equal(t, int32(2), renderer.peak.Load())
}

func TestRenderQueueIsFIFO(t *testing.T) {
	renderer := newBlockingRenderer()
	close(renderer.release)
	q := NewRenderQueue(renderer, 1, 0)

	var wg sync.WaitGroup
	for _, id := range []string{"first", "second", "third"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := q.Render(context.Background(), layout.RenderPlan{SessionID: id})
			require.NoError(t, err)
		}(id)
		// make sure each request is waiting before the next one arrives
		time.Sleep(50 * time.Millisecond)
	}
	q.Start()
	defer q.Stop()
	wg.Wait()

	require.Equal(t, []string{"first", "second", "third"}, renderer.order)
}

func TestRenderQueueAbandonedRequest(t *testing.T) {
	renderer := newBlockingRenderer()
	q := NewRenderQueue(renderer, 1, 10).Start()
	defer q.Stop()

	go func() {
		_, _ = q.Render(context.Background(), layout.RenderPlan{SessionID: "busy"})
	}()
	requireReceive(t, renderer.sessions, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := q.Render(ctx, layout.RenderPlan{SessionID: "abandoned"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(renderer.release)
	time.Sleep(100 * time.Millisecond)
	renderer.mu.Lock()
	defer renderer.mu.Unlock()
	require.Equal(t, []string{"busy"}, renderer.order)
}

func TestRenderQueueStopped(t *testing.T) {
	q := NewRenderQueue(newBlockingRenderer(), 1, 1).Start()
	q.Stop()
	_, err := q.Render(context.Background(), layout.RenderPlan{})
	require.ErrorIs(t, err, ErrQueueStopped)
}

func requireReceive[T any](t *testing.T, ch <-chan T, timeout time.Duration) T {
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		require.Fail(t, "did not receive expected message")
		panic("unreachable")
	}
}
