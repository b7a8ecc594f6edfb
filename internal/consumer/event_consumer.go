package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"brainly-monitor/internal/models"
	"brainly-monitor/internal/redis"

	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// WakeEvaluator 唤醒事件触发的单设备合规评估
type WakeEvaluator interface {
	EvaluateDevice(ctx context.Context, deviceID string) error
}

// EventConsumer 唤醒事件消费者（events 触发模式）
// 从 Redis Streams 读取唤醒事件，逐设备触发合规评估
type EventConsumer struct {
	redisClient  *goredis.Client
	evaluator    WakeEvaluator
	logger       *zap.Logger
	stream       string
	groupName    string
	consumerName string
	batchSize    int64
}

// NewEventConsumer 创建事件消费者
func NewEventConsumer(
	redisClient *goredis.Client,
	evaluator WakeEvaluator,
	logger *zap.Logger,
	stream string,
	groupName string,
	consumerName string,
	batchSize int64,
) *EventConsumer {
	return &EventConsumer{
		redisClient:  redisClient,
		evaluator:    evaluator,
		logger:       logger,
		stream:       stream,
		groupName:    groupName,
		consumerName: consumerName,
		batchSize:    batchSize,
	}
}

// Start 启动事件消费者
func (c *EventConsumer) Start(ctx context.Context) error {
	// 创建消费者组
	if err := redis.CreateConsumerGroup(ctx, c.redisClient, c.stream, c.groupName); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("Wake event consumer started",
		zap.String("stream", c.stream),
		zap.String("consumer_group", c.groupName),
		zap.String("consumer_name", c.consumerName),
	)

	// 消费事件（带指数退避）
	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := c.consumeEvents(ctx); err != nil {
				c.logger.Error("Failed to consume wake events",
					zap.Error(err),
					zap.Duration("backoff", backoffDuration),
				)

				// 指数退避
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoffDuration):
					backoffDuration *= 2
					if backoffDuration > maxBackoff {
						backoffDuration = maxBackoff
					}
				}
			} else {
				// 成功时重置退避时间
				backoffDuration = time.Second
			}
		}
	}
}

// consumeEvents 消费一批唤醒事件
func (c *EventConsumer) consumeEvents(ctx context.Context) error {
	messages, err := redis.ReadFromStream(
		ctx,
		c.redisClient,
		c.stream,
		c.groupName,
		c.consumerName,
		c.batchSize,
	)
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, msg := range messages {
		if err := c.processEvent(ctx, msg); err != nil {
			c.logger.Error("Failed to process wake event",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			// 继续处理下一条消息，不中断
		} else {
			if err := redis.AckMessage(ctx, c.redisClient, c.stream, c.groupName, msg.ID); err != nil {
				c.logger.Warn("Failed to ack message",
					zap.String("message_id", msg.ID),
					zap.Error(err),
				)
			}
		}
	}

	return nil
}

// processEvent 处理单个唤醒事件
func (c *EventConsumer) processEvent(ctx context.Context, msg redis.StreamMessage) error {
	event, err := parseWakeEvent(msg)
	if err != nil {
		return fmt.Errorf("failed to parse wake event: %w", err)
	}

	c.logger.Debug("Processing wake event",
		zap.String("event_id", event.EventID),
		zap.String("device_id", event.DeviceID),
	)

	return c.evaluator.EvaluateDevice(ctx, event.DeviceID)
}

// parseWakeEvent 解析唤醒事件消息
func parseWakeEvent(msg redis.StreamMessage) (*models.WakeEvent, error) {
	// 尝试从 data 字段解析 JSON
	if dataStr, ok := msg.Values["data"].(string); ok {
		var event models.WakeEvent
		if err := json.Unmarshal([]byte(dataStr), &event); err == nil && event.DeviceID != "" {
			return &event, nil
		}
	}

	// data 字段不存在时直接从 Values 解析
	event := &models.WakeEvent{}
	if eventID, ok := msg.Values["event_id"].(string); ok {
		event.EventID = eventID
	}
	if deviceID, ok := msg.Values["device_id"].(string); ok {
		event.DeviceID = deviceID
	}

	if event.DeviceID == "" {
		return nil, fmt.Errorf("invalid wake event: missing device_id")
	}

	return event, nil
}
