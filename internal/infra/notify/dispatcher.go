package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/gauravv01/subshare-sub000/internal/domain/model"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/adapter"
	"github.com/gauravv01/subshare-sub000/internal/infra/metrics"
	"github.com/gauravv01/subshare-sub000/internal/infra/worker"
)

const defaultSendTimeout = 5 * time.Second

// Sink delivers one event to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev model.Event) error
}

// Submitter is the part of worker.Pool the dispatcher needs.
type Submitter interface {
	Submit(task worker.Task) error
}

// Dispatcher fans events out to every sink on a worker pool. Notify returns
// immediately; a full queue drops the event.
type Dispatcher struct {
	pool    Submitter
	sinks   []Sink
	timeout time.Duration
	log     *zerolog.Logger
}

var _ adapter.NotificationService = (*Dispatcher)(nil)

func NewDispatcher(pool Submitter, timeout time.Duration, logger *zerolog.Logger, sinks ...Sink) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	l := logger.With().Str("component", "NotifyDispatcher").Logger()
	return &Dispatcher{pool: pool, sinks: sinks, timeout: timeout, log: &l}
}

func (d *Dispatcher) Notify(ctx context.Context, ev model.Event) {
	if len(d.sinks) == 0 {
		return
	}
	// Delivery outlives the request that produced the event.
	base := context.WithoutCancel(ctx)
	err := d.pool.Submit(func(context.Context) error {
		d.deliver(base, ev)
		return nil
	})
	if err != nil {
		for _, s := range d.sinks {
			metrics.IncNotification(s.Name(), "dropped")
		}
		d.log.Warn().Err(err).Str("event", string(ev.Type)).Msg("notification dropped")
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev model.Event) {
	for _, s := range d.sinks {
		sctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := s.Send(sctx, ev)
		cancel()
		if err != nil {
			metrics.IncNotification(s.Name(), "error")
			d.log.Error().Err(err).
				Str("sink", s.Name()).
				Str("event", string(ev.Type)).
				Str("subscription_id", ev.SubscriptionID).
				Msg("notification failed")
			continue
		}
		metrics.IncNotification(s.Name(), "sent")
	}
}

// LogSink writes events to the structured log; the default when no broker
// or chat sink is configured.
type LogSink struct {
	log *zerolog.Logger
}

func NewLogSink(logger *zerolog.Logger) *LogSink { return &LogSink{log: logger} }

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(_ context.Context, ev model.Event) error {
	if s.log == nil {
		return errors.New("log sink without logger")
	}
	s.log.Info().
		Str("event", string(ev.Type)).
		Str("subscription_id", ev.SubscriptionID).
		Str("user_id", ev.UserID).
		Str("transaction_id", ev.TransactionID).
		Interface("attributes", ev.Attributes).
		Msg("domain event")
	return nil
}
