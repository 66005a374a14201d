package service

import (
	"context"
	"encoding/json"

	"github.com/linkboard/dashboard/internal/app/model"
	infraprometheus "github.com/linkboard/dashboard/internal/infra/prometheus"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// ClickConsumer consumes enriched click events from NATS JetStream. Multiple
// workers may pull in parallel; the repository's atomic increment keeps
// concurrent counts for the same link correct.
type ClickConsumer struct {
	js        nats.JetStreamContext
	logger    *zap.Logger
	projector *Projector
	workers   int
	batch     int
	stopChan  chan struct{}
}

// NewClickConsumer creates an enriched click consumer with the given worker
// pool size.
func NewClickConsumer(js nats.JetStreamContext, logger *zap.Logger, projector *Projector, workers, batch int) *ClickConsumer {
	if workers <= 0 {
		workers = 1
	}
	if batch <= 0 {
		batch = 10
	}
	return &ClickConsumer{
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
func (c *ClickConsumer) Start() error {
	sub, err := ensurePullConsumer(c.js, model.ClickStreamName, model.ClickStreamSubject, model.ClickConsumerName)
	if err != nil {
		return err
	}

	for i := 0; i < c.workers; i++ {
		go c.consume(sub)
	}
	return nil
}

// Stop signals all workers to exit after their current fetch.
func (c *ClickConsumer) Stop() {
	close(c.stopChan)
}

func (c *ClickConsumer) consume(sub *nats.Subscription) {
	ctx := context.Background()
	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		msgs, err := sub.Fetch(c.batch, nats.MaxWait(fetchMaxWait))
		if err != nil && err != nats.ErrTimeout {
			c.logger.Error("failed to fetch click events", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			var event model.EnrichedClickEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				c.logger.Error("failed to unmarshal click event, dropping", zap.Error(err))
				infraprometheus.EventsDropped.WithLabelValues(infraprometheus.StreamClicks, infraprometheus.ReasonMalformed).Inc()
				msg.Term()
				continue
			}

			// Redelivery after a Nak double-counts; the messaging
			// contract accepts that.
			if err := c.projector.ApplyClick(ctx, &event); err != nil {
				c.logger.Error("failed to project click event",
					zap.String("link_id", event.LinkID),
					zap.Error(err))
				infraprometheus.EventsFailed.WithLabelValues(infraprometheus.StreamClicks).Inc()
				msg.Nak()
				continue
			}

			c.logger.Debug("click event projected",
				zap.String("link_id", event.LinkID),
				zap.String("country_code", event.CountryCode),
				zap.String("city_name", event.CityName),
			)

			infraprometheus.EventsProcessed.WithLabelValues(infraprometheus.StreamClicks).Inc()
			msg.Ack()
		}
	}
}
