package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/litespace/compositor/artifact"
	"github.com/litespace/compositor/cache"
	"github.com/litespace/compositor/clients"
	"github.com/litespace/compositor/config"
	xerrors "github.com/litespace/compositor/errors"
	"github.com/litespace/compositor/log"
	"github.com/litespace/compositor/metrics"
)

// finished jobs stay queryable from memory this long, after that only the status store knows about them
const defaultJobRetention = time.Hour

type SessionComposer interface {
	Compose(ctx context.Context, sessionID string) (Composition, error)
}

type ArtifactPurger interface {
	Remove(paths ...string) error
}

// PosterFunc extracts a poster frame from the composed output
type PosterFunc func(ctx context.Context, input, output string, atSeconds float64) error

// ComposeRequest is the payload of a compose trigger
type ComposeRequest struct {
	SessionID   string
	RequestID   string
	CallbackURL string
}

// Job is the state of one session's composition
type Job struct {
	mu sync.Mutex
	ComposeRequest

	status clients.CompositionStatus
	last   clients.CompositionStatusMessage
	done   chan struct{}
}

// Status returns the latest status message of the job
func (j *Job) Status() clients.CompositionStatusMessage {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}

// Done is closed once the job reached a final status
func (j *Job) Done() <-chan struct{} {
	return j.done
}

func (j *Job) isFinal() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status.IsFinal()
}

type CoordinatorOpts struct {
	Composer       SessionComposer
	StatusClient   clients.StatusClient
	StatusStore    clients.StatusStore
	Purger         ArtifactPurger
	PurgeArtifacts bool
	Poster         PosterFunc
	Clock          clock.Clock
	JobRetention   time.Duration
}

// Coordinator is the asynchronous entry point for compositions. It never blocks on a composition: work runs in
// background goroutines and its progress is reported through the status store and callbacks.
type Coordinator struct {
	opts CoordinatorOpts

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	Jobs *cache.Cache[*Job]
}

func NewCoordinator(opts CoordinatorOpts) *Coordinator {
	if opts.StatusClient == nil {
		opts.StatusClient = clients.StatusFunc(func(context.Context, clients.CompositionStatusMessage) error { return nil })
	}
	if opts.StatusStore == nil {
		opts.StatusStore = clients.NoopStatusStore{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.JobRetention <= 0 {
		opts.JobRetention = defaultJobRetention
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		Jobs:   cache.New[*Job](),
	}
}

// StartComposition schedules the composition of a session. A request for a session that is already being
// composed joins the running job instead of starting another one.
func (c *Coordinator) StartComposition(req ComposeRequest) (*Job, bool) {
	if c.ctx.Err() != nil {
		job := c.newJob(req)
		c.finishJob(context.Background(), job, Composition{}, errors.New("compositor is shutting down"), time.Time{})
		return job, false
	}

	c.Jobs.RemoveIf(req.SessionID, (*Job).isFinal)
	job, joined := c.Jobs.GetOrStore(req.SessionID, func() *Job { return c.newJob(req) })
	if joined {
		log.Log(req.RequestID, "joining in-flight composition", "session_id", req.SessionID, "joined_request_id", job.RequestID)
		return job, true
	}

	metrics.Metrics.ComposeRequestCount.Inc()
	log.AddContext(req.RequestID, "session_id", req.SessionID)
	log.Log(req.RequestID, "queued composition")

	c.wg.Add(1)
	// nolint:errcheck
	go recovered(func() (t bool, e error) {
		defer c.wg.Done()
		c.runJob(job)
		return
	})
	return job, false
}

// Status looks a session up in memory first, then in the status store
func (c *Coordinator) Status(ctx context.Context, sessionID string) (clients.CompositionStatusMessage, error) {
	if job, ok := c.Jobs.Lookup(sessionID); ok {
		return job.Status(), nil
	}
	return c.opts.StatusStore.GetStatus(ctx, sessionID)
}

// Stop cancels in-flight compositions and waits for them to report their final status
func (c *Coordinator) Stop() {
	c.cancel()
	c.wg.Wait()
}

func (c *Coordinator) newJob(req ComposeRequest) *Job {
	job := &Job{
		ComposeRequest: req,
		status:         clients.StatusQueued,
		done:           make(chan struct{}),
	}
	job.last = c.message(job, clients.StatusQueued)
	return job
}

func (c *Coordinator) runJob(job *Job) {
	ctx := log.WithLogValues(c.ctx, "request_id", job.RequestID, "session_id", job.SessionID)
	// publish the queued status newJob recorded
	c.report(ctx, job, job.Status())

	start := c.opts.Clock.Now()
	var composing sync.Once
	composeCtx := withRenderSlotHook(ctx, func() {
		composing.Do(func() {
			c.report(ctx, job, c.message(job, clients.StatusComposing))
		})
	})

	comp, err := recovered(func() (Composition, error) {
		return c.opts.Composer.Compose(composeCtx, job.SessionID)
	})
	c.finishJob(ctx, job, comp, err, start)
}

func (c *Coordinator) finishJob(ctx context.Context, job *Job, comp Composition, err error, start time.Time) {
	defer close(job.done)

	var processingTime time.Duration
	if !start.IsZero() {
		processingTime = c.opts.Clock.Since(start)
	}

	var msg clients.CompositionStatusMessage
	switch {
	case err == nil:
		msg = c.message(job, clients.StatusComposed)
		msg.OutputPath = comp.OutputPath
		msg.DurationMs = comp.DurationMs
		msg.Artifacts = len(comp.Used)
		msg.Excluded = comp.Excluded
		msg.PosterPath = c.poster(ctx, comp)
		c.purge(ctx, comp)
	case IsNothingToCompose(err):
		msg = c.message(job, clients.StatusEmpty)
		msg.Error = err.Error()
	default:
		msg = c.message(job, clients.StatusFailed)
		msg.Error = err.Error()
		var dup *artifact.DuplicateTrackError
		msg.Unretriable = xerrors.IsUnretriable(err) || errors.As(err, &dup)
	}
	msg.ProcessingTimeMs = processingTime.Milliseconds()

	c.report(ctx, job, msg)
	if err != nil {
		log.LogCtxError(ctx, "composition finished", err, "status", msg.Status, "processing_time", processingTime)
	} else {
		log.LogCtx(ctx, "composition finished", "status", msg.Status, "output", msg.OutputPath, "processing_time", processingTime)
	}
	metrics.Metrics.CompositionsTotal.WithLabelValues(string(msg.Status)).Inc()
	metrics.Metrics.CompositionDuration.WithLabelValues(string(msg.Status)).Observe(processingTime.Seconds())
	log.RemoveContext(job.RequestID)

	// keep the finished job around for status queries for a while
	c.opts.Clock.AfterFunc(c.opts.JobRetention, func() {
		c.Jobs.RemoveIf(job.SessionID, func(j *Job) bool { return j == job })
	})
}

// report records a status transition and pushes it to the store and the callback URL
func (c *Coordinator) report(ctx context.Context, job *Job, msg clients.CompositionStatusMessage) {
	job.mu.Lock()
	// a late composing report must not overwrite the final status
	if job.status.IsFinal() && !msg.Status.IsFinal() {
		job.mu.Unlock()
		return
	}
	job.status = msg.Status
	job.last = msg
	job.mu.Unlock()

	// the job context may already be cancelled by a shutdown, the final status still has to go out
	reportCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.opts.StatusStore.SaveStatus(reportCtx, msg); err != nil {
		log.LogCtxError(ctx, "failed to save composition status", err, "status", msg.Status)
	}
	if err := c.opts.StatusClient.SendCompositionStatus(reportCtx, msg); err != nil {
		log.LogCtxError(ctx, "failed to send composition status callback", err, "status", msg.Status)
	}
}

func (c *Coordinator) message(job *Job, status clients.CompositionStatus) clients.CompositionStatusMessage {
	return clients.CompositionStatusMessage{
		URL:       job.CallbackURL,
		RequestID: job.RequestID,
		SessionID: job.SessionID,
		Status:    status,
		Timestamp: config.Clock.GetTimestampUTC(),
	}
}

func (c *Coordinator) poster(ctx context.Context, comp Composition) string {
	if c.opts.Poster == nil || comp.OutputPath == "" {
		return ""
	}
	out := strings.TrimSuffix(comp.OutputPath, ".mp4") + ".jpg"
	at := float64(comp.DurationMs) / 1000 / 2
	if err := c.opts.Poster(ctx, comp.OutputPath, out, at); err != nil {
		log.LogCtxError(ctx, "failed to generate poster", err, "output", comp.OutputPath)
		return ""
	}
	return out
}

// purge deletes the artifacts that went into a successful composition. Excluded ones are kept for inspection.
func (c *Coordinator) purge(ctx context.Context, comp Composition) {
	if !c.opts.PurgeArtifacts || c.opts.Purger == nil || len(comp.Used) == 0 {
		return
	}
	paths := make([]string, 0, len(comp.Used))
	for _, a := range comp.Used {
		paths = append(paths, a.FilePath)
	}
	if err := c.opts.Purger.Remove(paths...); err != nil {
		log.LogCtxError(ctx, "failed to purge artifacts", err)
		return
	}
	metrics.Metrics.ArtifactsPurgedCount.Add(float64(len(paths)))
	log.LogCtx(ctx, "purged artifacts", "count", len(paths))
}

func recovered[T any](f func() (T, error)) (t T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.LogNoRequestID("panic in composition background goroutine, recovering", "err", rec)
			err = fmt.Errorf("panic in composition: %v", rec)
		}
	}()
	return f()
}
