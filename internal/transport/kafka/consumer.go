package kafka

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"github.com/sabyrkhan/cafe-pos/internal/domain"
	"github.com/sabyrkhan/cafe-pos/internal/realtime"
	"github.com/sabyrkhan/cafe-pos/internal/service"
	"github.com/sabyrkhan/cafe-pos/pkg/kafka"
	"github.com/sabyrkhan/cafe-pos/pkg/mylogger"
	"go.uber.org/zap"
)

// Consumer bridges order-changed events to the dashboard: bust the aggregate
// cache, then wake every connected viewer so it re-pulls its views.
type Consumer struct {
	hub         *realtime.Hub
	invalidator service.CacheInvalidator
	groupID     string
	topic       string
	logger      *zap.Logger
}

func NewConsumer(hub *realtime.Hub, invalidator service.CacheInvalidator, groupID, topic string, logger *zap.Logger) *Consumer {
	return &Consumer{
		hub:         hub,
		invalidator: invalidator,
		groupID:     groupID,
		topic:       topic,
		logger:      logger,
	}
}

func (c *Consumer) Start(ctx context.Context, brokers []string) {
	consumerGroup := kafka.NewConsumerGroup(
		brokers,
		c.groupID,
		[]string{c.topic},
		c.processMessage,
		c.logger,
	)

	consumerGroup.Run(ctx)
}

func (c *Consumer) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	type EventWrapper struct {
		Event   string          `json:"event"`
		Payload json.RawMessage `json:"payload"`
	}

	var wrapper EventWrapper
	if err := json.Unmarshal(msg.Value, &wrapper); err != nil {
		mylogger.Error(ctx, c.logger, "Error unmarshalling wrapper", zap.Error(err))
		return err
	}

	switch wrapper.Event {
	case "OrderChanged":
		var event domain.OrderChangedEvent
		if err := json.Unmarshal(wrapper.Payload, &event); err != nil {
			mylogger.Error(ctx, c.logger, "Error parsing order changed event", zap.Error(err))
			return nil
		}

		c.invalidator.Invalidate(ctx)
		c.hub.Broadcast()

		mylogger.Debug(
			ctx,
			c.logger,
			"Dashboard updated signal sent",
			zap.String("order_id", event.OrderID.String()),
			zap.String("status", string(event.Status)),
			zap.Int("sessions", c.hub.Sessions()),
		)
	default:
		mylogger.Debug(ctx, c.logger, "Ignored event type", zap.String("event", wrapper.Event))
	}

	return nil
}
