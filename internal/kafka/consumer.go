package kafka

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"flight-alert-service/internal/logging"
	"flight-alert-service/internal/status"
)

// statusEvent is the wire shape of a flight request status change published
// by the request system.
type statusEvent struct {
	RequestID string `json:"request_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// Consumer reads status-change events and feeds the status alert service.
type Consumer struct {
	reader *kafka.Reader
	svc    *status.Service
	logger *logging.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewConsumer(brokers []string, topic, groupID string, svc *status.Service, logger *logging.Logger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     groupID,
			StartOffset: kafka.FirstOffset,
		}),
		svc:    svc,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start consumes messages until Close is called. Malformed messages are
// logged and skipped; handler errors do not stop the loop.
func (c *Consumer) Start(wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Kafka consumer started on topic %s", c.reader.Config().Topic)
		for {
			msg, err := c.reader.ReadMessage(c.ctx)
			if err != nil {
				if c.ctx.Err() != nil {
					c.logger.Infof("Kafka consumer stopped")
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				continue
			}

			var ev statusEvent
			if err := json.Unmarshal(msg.Value, &ev); err != nil {
				c.logger.Errorf("Unmarshal message failed: %v", err)
				continue
			}
			requestID, err := uuid.Parse(ev.RequestID)
			if err != nil {
				c.logger.Errorf("Invalid request_id %q in status event: %v", ev.RequestID, err)
				continue
			}

			if err := c.svc.HandleStatusChange(c.ctx, requestID, ev.OldStatus, ev.NewStatus); err != nil {
				c.logger.Errorf("Status change handling for request %s failed: %v", requestID, err)
			}
		}
	}()
}

// Close stops the consume loop and releases the reader.
func (c *Consumer) Close() {
	c.cancel()
	if err := c.reader.Close(); err != nil {
		c.logger.Errorf("Kafka reader close failed: %v", err)
	}
}
