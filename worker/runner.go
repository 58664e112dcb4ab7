package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/kbukum/remworker/component"
	"github.com/kbukum/remworker/logger"
	"github.com/kbukum/remworker/observability"
	"github.com/kbukum/remworker/queue"
	"github.com/kbukum/remworker/recording"
	"github.com/kbukum/remworker/resilience"
	"github.com/kbukum/remworker/validation"
)

// unhealthyAfter is the number of consecutive receive failures after which
// the worker reports itself unhealthy.
const unhealthyAfter = 5

// Worker polls a queue.Source and runs each job through a Processor.
type Worker struct {
	source    queue.Source
	processor *Processor
	qcfg      queue.Config
	cfg       Config
	log       *logger.Logger

	receiveFailures atomic.Int32
	running         atomic.Bool
	cancel          context.CancelFunc
	done            chan struct{}
	mu              sync.Mutex
}

var _ component.Component = (*Worker)(nil)

// New builds a Worker. cfg.Concurrency loops compete for the same source.
func New(cfg Config, qcfg queue.Config, source queue.Source, processor *Processor, log *logger.Logger) *Worker {
	cfg.ApplyDefaults()
	qcfg.ApplyDefaults()
	if log == nil {
		log = logger.WithComponent("worker")
	}
	return &Worker{source: source, processor: processor, qcfg: qcfg, cfg: cfg, log: log}
}

// Run polls until ctx is canceled. It returns nil on cancellation.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker started", logger.Fields(
		"source", w.source.Name(),
		"concurrency", w.cfg.Concurrency,
		"max_messages", w.qcfg.MaxMessages,
	))
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		loop := i
		g.Go(func() error {
			w.poll(gctx, loop)
			return nil
		})
	}
	err := g.Wait()
	w.log.Info("worker stopped")
	return err
}

func (w *Worker) poll(ctx context.Context, loop int) {
	log := w.log.WithFields(logger.Fields("loop", loop))
	backoff := resilience.NewBackoff(time.Second, time.Minute)
	for ctx.Err() == nil {
		msgs, err := w.source.Receive(ctx, w.qcfg.MaxMessages)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.receiveFailures.Add(1)
			wait := backoff.Next()
			log.Error("receive failed", logger.MergeWithError(logger.Fields("retry_in", wait.String(), "failures", backoff.Failures()), err))
			_ = resilience.Sleep(ctx, wait)
			continue
		}
		backoff.Reset()
		w.receiveFailures.Store(0)

		if len(msgs) == 0 {
			_ = resilience.Sleep(ctx, w.qcfg.PollInterval)
			continue
		}
		for _, msg := range msgs {
			// An in-flight job finishes even when shutdown starts.
			w.Handle(context.WithoutCancel(ctx), msg)
		}
	}
}

// Handle processes one delivery and acks it only after the transcript and
// status record are durably written. Failed deliveries are released when
// the source needs that, and otherwise left to lease expiry.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) *Outcome {
	log := w.log.WithFields(logger.Fields(logger.FieldMessageID, msg.ID, "receive_count", msg.ReceiveCount))
	ctx, span := observability.StartSpan(ctx, "queue.deliver",
		trace.WithAttributes(attribute.Int(observability.AttrDelivery, msg.ReceiveCount)))
	defer span.End()

	job, err := validation.Decode[recording.Job](msg.Body)
	if err != nil {
		out := &Outcome{State: StateFailed, FailedAt: StateReceived, Err: err}
		log.Error("job rejected", logger.ErrorFields(StageDecode, err))
		w.processor.Metrics.RecordJob(ctx, observability.OutcomeRejected, 0)
		w.release(ctx, msg, log)
		return out
	}

	out := w.processor.Process(ctx, job)
	if !out.Succeeded() {
		w.processor.Metrics.RecordJob(ctx, observability.OutcomeFailed, out.Duration)
		w.release(ctx, msg, log)
		return out
	}
	w.processor.Metrics.RecordJob(ctx, observability.OutcomeSucceeded, out.Duration)

	if err := w.source.Ack(ctx, msg); err != nil {
		// The writes are idempotent; a redelivery rewrites the same keys.
		log.Warn("ack failed, job will be redelivered", logger.MergeWithError(logger.Fields(logger.FieldRecordingID, out.RecordingID), err))
		return out
	}
	out.advance(StateAcknowledged)
	log.Info("job acknowledged", logger.Fields(
		logger.FieldRecordingID, out.RecordingID,
		logger.FieldDuration, out.Duration.Milliseconds(),
	))
	return out
}

func (w *Worker) release(ctx context.Context, msg queue.Message, log *logger.Logger) {
	r, ok := w.source.(queue.Releaser)
	if !ok {
		return
	}
	if err := r.Release(ctx, msg); err != nil {
		log.Error("release failed", logger.ErrorFields("release", err))
	}
}

// Name implements component.Component.
func (w *Worker) Name() string { return "worker" }

// Start runs the poll loops in the background until Stop.
func (w *Worker) Start(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running.Store(true)
	go func() {
		defer close(w.done)
		defer w.running.Store(false)
		_ = w.Run(ctx)
	}()
	return nil
}

// Stop cancels polling and waits for in-flight jobs, or for ctx.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) Health(_ context.Context) component.Health {
	h := component.Health{Name: w.Name(), Status: component.StatusHealthy}
	switch {
	case !w.running.Load():
		h.Status = component.StatusUnhealthy
		h.Message = "not running"
	case w.receiveFailures.Load() >= unhealthyAfter:
		h.Status = component.StatusUnhealthy
		h.Message = "queue receive failing"
	case w.receiveFailures.Load() > 0:
		h.Status = component.StatusDegraded
		h.Message = "queue receive failing"
	}
	return h
}
