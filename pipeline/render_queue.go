package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/litespace/compositor/layout"
	"github.com/litespace/compositor/metrics"
)

var ErrQueueStopped = errors.New("render queue stopped")

type renderSlotKey struct{}

// withRenderSlotHook returns a context whose render calls f once it holds a render slot
func withRenderSlotHook(ctx context.Context, f func()) context.Context {
	return context.WithValue(ctx, renderSlotKey{}, f)
}

func renderSlotAcquired(ctx context.Context) {
	if f, ok := ctx.Value(renderSlotKey{}).(func()); ok {
		f()
	}
}

type renderResult struct {
	output string
	err    error
}

type renderRequest struct {
	ctx     context.Context
	plan    layout.RenderPlan
	started chan struct{}
	result  chan renderResult
}

// RenderQueue caps the number of concurrent renders. Requests beyond the cap wait in arrival order.
type RenderQueue struct {
	renderer Renderer
	queue    chan *renderRequest
	workers  int

	stopOnce sync.Once
	stopped  chan struct{}
	done     sync.WaitGroup
}

func NewRenderQueue(renderer Renderer, workers, size int) *RenderQueue {
	if workers < 1 {
		workers = 1
	}
	if size < 0 {
		size = 0
	}
	return &RenderQueue{
		renderer: renderer,
		queue:    make(chan *renderRequest, size),
		workers:  workers,
		stopped:  make(chan struct{}),
	}
}

// Start spawns the configured number of render workers
func (q *RenderQueue) Start() *RenderQueue {
	q.done.Add(q.workers)
	for i := 0; i < q.workers; i++ {
		go q.workerRoutine()
	}
	return q
}

// Stop makes workers exit once their current render is done. Queued renders are failed.
func (q *RenderQueue) Stop() {
	q.stopOnce.Do(func() { close(q.stopped) })
	q.done.Wait()
}

// Render waits for a free slot and renders the plan. Giving up on ctx also gives up the place in the queue.
func (q *RenderQueue) Render(ctx context.Context, plan layout.RenderPlan) (string, error) {
	req := &renderRequest{ctx: ctx, plan: plan, started: make(chan struct{}), result: make(chan renderResult, 1)}

	select {
	case <-q.stopped:
		return "", ErrQueueStopped
	default:
	}

	metrics.Metrics.RenderQueueDepth.Inc()
	select {
	case q.queue <- req:
	case <-ctx.Done():
		metrics.Metrics.RenderQueueDepth.Dec()
		return "", ctx.Err()
	case <-q.stopped:
		metrics.Metrics.RenderQueueDepth.Dec()
		return "", ErrQueueStopped
	}

	select {
	case res := <-req.result:
		return res.output, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-q.stopped:
		select {
		case <-req.started:
			// a worker is still finishing this request
			select {
			case res := <-req.result:
				return res.output, res.err
			case <-ctx.Done():
				return "", ctx.Err()
			}
		default:
			return "", ErrQueueStopped
		}
	}
}

func (q *RenderQueue) workerRoutine() {
	defer q.done.Done()
	for {
		select {
		case <-q.stopped:
			return
		case req := <-q.queue:
			metrics.Metrics.RenderQueueDepth.Dec()
			select {
			case <-q.stopped:
				req.result <- renderResult{err: ErrQueueStopped}
				return
			default:
			}
			close(req.started)
			// abandoned while waiting
			if err := req.ctx.Err(); err != nil {
				req.result <- renderResult{err: err}
				continue
			}
			renderSlotAcquired(req.ctx)
			out, err := q.renderer.Render(req.ctx, req.plan)
			req.result <- renderResult{output: out, err: err}
		}
	}
}
