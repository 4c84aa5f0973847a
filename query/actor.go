// Package query serializes reads against the document store.
//
// A single Actor goroutine owns the store handle for querying and processes
// its mailbox in FIFO order, so at most one store operation per actor is in
// flight. Callers talk to it only through Submit and the typed helpers.
package query

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/teranos/skytrace/config"
	"github.com/teranos/skytrace/errors"
	"github.com/teranos/skytrace/logger"
	"github.com/teranos/skytrace/store"
	"github.com/teranos/skytrace/telemetry"
)

// DefaultMailboxSize is used when the configured mailbox size is not positive
const DefaultMailboxSize = 64

var tracer = otel.Tracer("github.com/teranos/skytrace/query")

// errHandlerPanic marks errors produced by a recovered handler panic
var errHandlerPanic = errors.New("query handler panicked")

// request is one mailbox entry
type request struct {
	ctx      context.Context
	msg      Message
	resultCh chan result
	enqueued time.Time
}

type result struct {
	reply Reply
	err   error
}

// Actor is the singleton query serializer
type Actor struct {
	client  store.Client
	timeout time.Duration
	logger  *zap.SugaredLogger

	inbox   chan request
	closeCh chan struct{}
	doneCh  chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates an actor over client. Call Start before submitting.
func New(client store.Client, cfg config.QueryConfig, log *zap.SugaredLogger) *Actor {
	size := cfg.MailboxSize
	if size <= 0 {
		size = DefaultMailboxSize
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Actor{
		client:  client,
		timeout: cfg.Timeout(),
		logger:  log.With(logger.FieldComponent, "query_actor", logger.FieldBackend, client.Backend()),
		inbox:   make(chan request, size),
		closeCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start spawns the processing loop. Extra calls are no-ops.
func (a *Actor) Start() {
	a.startOnce.Do(func() {
		a.logger.Debugw("Query actor started", "mailbox_size", cap(a.inbox))
		go a.run()
	})
}

// Stop stops accepting messages, fails everything still queued with
// errors.ErrActorStopped and waits for the message in progress to finish.
// Stop does not close the store client.
func (a *Actor) Stop() {
	a.stopOnce.Do(func() {
		close(a.closeCh)
		// Never started: nobody else will drain
		a.startOnce.Do(func() {
			a.drain()
			close(a.doneCh)
		})
	})
	<-a.doneCh
}

// Stopping reports whether Stop has been called
func (a *Actor) Stopping() bool {
	select {
	case <-a.closeCh:
		return true
	default:
		return false
	}
}

// Done is closed once the actor has stopped
func (a *Actor) Done() <-chan struct{} {
	return a.doneCh
}

// MailboxDepth returns the number of queued messages
func (a *Actor) MailboxDepth() int {
	return len(a.inbox)
}

// Submit enqueues msg and waits for its reply. It blocks while the mailbox
// is full; ctx bounds both the wait to enqueue and the wait for the reply.
func (a *Actor) Submit(ctx context.Context, msg Message) (Reply, error) {
	if msg == nil {
		return Reply{}, errors.NewInvalidArgumentf("nil query message")
	}

	select {
	case <-a.closeCh:
		return Reply{}, errors.Wrapf(errors.ErrActorStopped, "submit %s", Kind(msg))
	default:
	}

	req := request{
		ctx:      ctx,
		msg:      msg,
		resultCh: make(chan result, 1),
		enqueued: time.Now(),
	}

	select {
	case <-ctx.Done():
		return Reply{}, errors.Wrapf(ctx.Err(), "enqueue %s", Kind(msg))
	case <-a.closeCh:
		return Reply{}, errors.Wrapf(errors.ErrActorStopped, "submit %s", Kind(msg))
	case a.inbox <- req:
		mailboxDepth.Set(float64(len(a.inbox)))
	}

	select {
	case res := <-req.resultCh:
		return res.reply, res.err
	case <-ctx.Done():
		return Reply{}, errors.Wrapf(ctx.Err(), "await %s", Kind(msg))
	case <-a.doneCh:
		// The loop may have replied just before exiting
		select {
		case res := <-req.resultCh:
			return res.reply, res.err
		default:
			return Reply{}, errors.Wrapf(errors.ErrActorStopped, "await %s", Kind(msg))
		}
	}
}

// Query runs a TimeRangeQuery
func (a *Actor) Query(ctx context.Context, start, end string) ([]telemetry.Record, error) {
	reply, err := a.Submit(ctx, TimeRangeQuery{Start: start, End: end})
	if err != nil {
		return nil, err
	}
	return reply.Records, nil
}

// Ping checks store liveness
func (a *Actor) Ping(ctx context.Context) error {
	_, err := a.Submit(ctx, Ping{})
	return err
}

// ListDatabases returns the store's database names
func (a *Actor) ListDatabases(ctx context.Context) ([]string, error) {
	reply, err := a.Submit(ctx, ListDatabases{})
	if err != nil {
		return nil, err
	}
	return reply.Databases, nil
}

// run owns the mailbox. Single goroutine: handlers never overlap.
func (a *Actor) run() {
	defer close(a.doneCh)

	for {
		// Stop wins over queued work
		select {
		case <-a.closeCh:
			a.drain()
			a.logger.Debugw("Query actor stopped")
			return
		default:
		}

		select {
		case <-a.closeCh:
			a.drain()
			a.logger.Debugw("Query actor stopped")
			return
		case req := <-a.inbox:
			mailboxDepth.Set(float64(len(a.inbox)))
			a.handle(req)
		}
	}
}

// drain fails every queued request
func (a *Actor) drain() {
	for {
		select {
		case req := <-a.inbox:
			messagesTotal.WithLabelValues(Kind(req.msg), outcomeStopped).Inc()
			req.resultCh <- result{err: errors.Wrapf(errors.ErrActorStopped, "drop %s", Kind(req.msg))}
		default:
			mailboxDepth.Set(0)
			return
		}
	}
}

func (a *Actor) handle(req request) {
	kind := Kind(req.msg)
	log := logger.FromContext(req.ctx, a.logger).With(logger.FieldOperation, kind)

	// Caller already gave up; don't touch the store
	if err := req.ctx.Err(); err != nil {
		messagesTotal.WithLabelValues(kind, outcomeCancelled).Inc()
		log.Debugw("Skipping abandoned message", logger.FieldError, err)
		req.resultCh <- result{err: errors.Wrapf(err, "skip %s", kind)}
		return
	}

	ctx, span := tracer.Start(req.ctx, "query.Actor."+kind,
		trace.WithAttributes(attribute.String("message.kind", kind)),
	)
	defer span.End()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	started := time.Now()
	reply, err := a.dispatch(ctx, req.msg, span)
	elapsed := time.Since(started)
	messageDuration.WithLabelValues(kind).Observe(elapsed.Seconds())

	outcome := outcomeFor(err)
	if outcome == outcomeTimeout {
		err = errors.Mark(err, errors.ErrTimeout)
	}
	messagesTotal.WithLabelValues(kind, outcome).Inc()

	fields := []interface{}{
		logger.FieldDurationMS, elapsed.Milliseconds(),
		"queued_ms", started.Sub(req.enqueued).Milliseconds(),
		logger.FieldStatus, outcome,
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if outcome == outcomeInvalid {
			log.Debugw("Rejected message", append(fields, logger.FieldError, err)...)
		} else {
			log.Warnw("Message failed", append(fields, logger.FieldError, err)...)
		}
	} else {
		log.Debugw("Message handled", fields...)
	}

	req.resultCh <- result{reply: reply, err: err}
}

// dispatch runs one message, converting a handler panic into an error
func (a *Actor) dispatch(ctx context.Context, msg Message, span trace.Span) (reply Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Errorw("Recovered panic in query actor",
				logger.FieldOperation, Kind(msg),
				"panic", r,
			)
			err = errors.Mark(errors.AssertionFailedf("panic handling %s: %v", Kind(msg), r), errHandlerPanic)
			reply = Reply{}
		}
	}()

	switch m := msg.(type) {
	case TimeRangeQuery:
		span.SetAttributes(
			attribute.String("range.start", m.Start),
			attribute.String("range.end", m.End),
		)
		records, err := a.findRange(ctx, m)
		if err != nil {
			return Reply{}, err
		}
		span.SetAttributes(attribute.Int("result_count", len(records)))
		recordsReturned.Add(float64(len(records)))
		return Reply{Records: records}, nil

	case Ping:
		return Reply{}, a.client.Ping(ctx)

	case ListDatabases:
		names, err := a.client.ListDatabases(ctx)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Databases: names}, nil

	default:
		return Reply{}, errors.AssertionFailedf("unhandled query message %T", msg)
	}
}

func (a *Actor) findRange(ctx context.Context, q TimeRangeQuery) ([]telemetry.Record, error) {
	r, err := telemetry.ParseTimeRange(q.Start, q.End)
	if err != nil {
		return nil, err
	}

	cur, err := a.client.FindRange(ctx, r)
	if err != nil {
		if errors.IsAny(err, errors.ErrQueryFailed, errors.ErrStoreUnavailable) {
			return nil, err
		}
		return nil, errors.WrapQueryFailed(err, "find")
	}
	return store.Drain(ctx, cur)
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, errHandlerPanic):
		return outcomePanic
	case errors.IsInvalidArgument(err):
		return outcomeInvalid
	case errors.Is(err, context.DeadlineExceeded):
		return outcomeTimeout
	case errors.Is(err, context.Canceled):
		return outcomeCancelled
	default:
		return outcomeFailed
	}
}
