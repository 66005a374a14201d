package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/linkboard/dashboard/internal/app/model"
	infraprometheus "github.com/linkboard/dashboard/internal/infra/prometheus"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const fetchMaxWait = 5 * time.Second

// LifecycleConsumer consumes link lifecycle events from NATS JetStream and
// feeds them to the projector.
type LifecycleConsumer struct {
	js        nats.JetStreamContext
	logger    *zap.Logger
	projector *Projector
	workers   int
	batch     int
	stopChan  chan struct{}
}

// NewLifecycleConsumer creates a lifecycle event consumer with the given
// worker pool size.
func NewLifecycleConsumer(js nats.JetStreamContext, logger *zap.Logger, projector *Projector, workers, batch int) *LifecycleConsumer {
	if workers <= 0 {
		workers = 1
	}
	if batch <= 0 {
		batch = 10
	}
	return &LifecycleConsumer{
		js:        js,
		logger:    logger,
		projector: projector,
		workers:   workers,
		batch:     batch,
		stopChan:  make(chan struct{}),
	}
}

// Start ensures the stream and durable consumer exist and launches the
// worker pool.
func (c *LifecycleConsumer) Start() error {
	sub, err := ensurePullConsumer(c.js, model.LifecycleStreamName, model.LifecycleStreamSubject, model.LifecycleConsumerName)
	if err != nil {
		return err
	}

	for i := 0; i < c.workers; i++ {
		go c.consume(sub)
	}
	return nil
}

// Stop signals all workers to exit after their current fetch.
func (c *LifecycleConsumer) Stop() {
	close(c.stopChan)
}

func (c *LifecycleConsumer) consume(sub *nats.Subscription) {
	ctx := context.Background()
	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		msgs, err := sub.Fetch(c.batch, nats.MaxWait(fetchMaxWait))
		if err != nil && err != nats.ErrTimeout {
			c.logger.Error("failed to fetch lifecycle events", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			var event model.LinkLifecycleEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				// A payload that cannot decode will never succeed,
				// drop it instead of cycling redeliveries.
				c.logger.Error("failed to unmarshal lifecycle event, dropping", zap.Error(err))
				infraprometheus.EventsDropped.WithLabelValues(infraprometheus.StreamLifecycle, infraprometheus.ReasonMalformed).Inc()
				msg.Term()
				continue
			}

			if err := c.projector.ApplyLifecycle(ctx, &event); err != nil {
				c.logger.Error("failed to project lifecycle event",
					zap.Stringer("payload_case", event.PayloadCase()),
					zap.Error(err))
				infraprometheus.EventsFailed.WithLabelValues(infraprometheus.StreamLifecycle).Inc()
				msg.Nak()
				continue
			}

			if event.PayloadCase() == model.PayloadNotSet {
				infraprometheus.EventsDropped.WithLabelValues(infraprometheus.StreamLifecycle, infraprometheus.ReasonNoPayload).Inc()
			} else {
				infraprometheus.EventsProcessed.WithLabelValues(infraprometheus.StreamLifecycle).Inc()
			}
			msg.Ack()
		}
	}
}

// ensurePullConsumer creates the stream and durable consumer when missing
// and returns a pull subscription bound to them.
func ensurePullConsumer(js nats.JetStreamContext, stream, subject, durable string) (*nats.Subscription, error) {
	if _, err := js.StreamInfo(stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     stream,
			Subjects: []string{subject},
			MaxBytes: model.StreamMaxBytes,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stream %s: %w", stream, err)
		}
	}

	if _, err := js.ConsumerInfo(stream, durable); err != nil {
		_, err = js.AddConsumer(stream, &nats.ConsumerConfig{
			Durable:   durable,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create consumer %s: %w", durable, err)
		}
	}

	sub, err := js.PullSubscribe(subject, durable)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return sub, nil
}
