package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/marketguard/internal/config"
	"github.com/turtacn/marketguard/internal/domain/models"
	"github.com/turtacn/marketguard/internal/domain/service"
	"github.com/turtacn/marketguard/pkg/logger"
)

// LogAlertHandler reports alerts at error level. It is the default handler.
type LogAlertHandler struct {
	logger logger.Logger
}

// NewLogAlertHandler creates a LogAlertHandler.
func NewLogAlertHandler(log logger.Logger) *LogAlertHandler {
	return &LogAlertHandler{logger: logger.OrNoop(log)}
}

func (h *LogAlertHandler) HandleRateLimitAlert(ctx context.Context, alert models.RateLimitAlert) error {
	h.logger.Error(ctx,
		fmt.Sprintf("%s experiencing rate limiting", strings.ToUpper(alert.APIName)),
		fmt.Errorf("%d rate limited out of %d calls", alert.Stats.RateLimitedCalls, alert.Stats.TotalCalls),
		logger.String("alert_id", alert.AlertID),
		logger.Float64("threshold", alert.Threshold),
		logger.Float64("rate_limited_percentage", alert.Stats.RateLimitedPercentage),
	)
	return nil
}

// MessageWriter is the subset of *kafka.Writer used to publish alerts.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaAlertHandler publishes each alert as JSON, keyed by API name.
type KafkaAlertHandler struct {
	writer MessageWriter
	logger logger.Logger
}

// NewKafkaAlertHandler creates a handler writing to cfg.Topic.
func NewKafkaAlertHandler(cfg config.KafkaConfig, log logger.Logger) *KafkaAlertHandler {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		AllowAutoTopicCreation: true,
	}
	return NewKafkaAlertHandlerWithWriter(writer, log)
}

// NewKafkaAlertHandlerWithWriter uses an existing writer.
func NewKafkaAlertHandlerWithWriter(w MessageWriter, log logger.Logger) *KafkaAlertHandler {
	return &KafkaAlertHandler{
		writer: w,
		logger: logger.OrNoop(log).WithComponent("KafkaAlertHandler"),
	}
}

func (h *KafkaAlertHandler) HandleRateLimitAlert(ctx context.Context, alert models.RateLimitAlert) error {
	value, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	err = h.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(alert.APIName),
		Value: value,
		Headers: []kafka.Header{
			{Key: "alert_id", Value: []byte(alert.AlertID)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	h.logger.Debug(ctx, "Published rate limit alert", logger.String("alert_id", alert.AlertID))
	return nil
}

// Close closes the underlying writer.
func (h *KafkaAlertHandler) Close() error {
	return h.writer.Close()
}

// MultiAlertHandler calls every handler in order. All handlers run even if
// one fails; the errors are joined.
type MultiAlertHandler []service.AlertHandler

func (m MultiAlertHandler) HandleRateLimitAlert(ctx context.Context, alert models.RateLimitAlert) error {
	var errs []error
	for _, h := range m {
		if h == nil {
			continue
		}
		if err := h.HandleRateLimitAlert(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ service.AlertHandler = (*LogAlertHandler)(nil)
	_ service.AlertHandler = (*KafkaAlertHandler)(nil)
	_ service.AlertHandler = MultiAlertHandler(nil)
)
