package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"brainly-monitor/internal/aggregator"
	"brainly-monitor/internal/config"
	"brainly-monitor/internal/models"
	"brainly-monitor/internal/mqtt"
	"brainly-monitor/internal/redis"
	"brainly-monitor/internal/repository"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MQTTConsumer MQTT消息消费者
// 订阅设备唤醒状态主题和传感器数据主题
type MQTTConsumer struct {
	config        *config.Config
	mqttClient    *mqtt.Client
	redisClient   *goredis.Client
	deviceRepo    *repository.DeviceRepository
	telemetryRepo *repository.TelemetryRepository
	cacheManager  *aggregator.CacheManager
	logger        *zap.Logger
}

// statusMessage 设备唤醒状态消息（device/{mac}/status）
type statusMessage struct {
	DeviceID       string   `json:"device_id"`
	Status         string   `json:"status"`
	PendingImg     int      `json:"pendingImg"`
	BatteryVoltage *float64 `json:"battery_voltage,omitempty"`
}

// dataMessage 传感器数据消息（ESP32CAM/{mac}/data）
// 元数据消息带 total_chunks_count 和环境读数；分片消息带 chunk_id
type dataMessage struct {
	DeviceID         string   `json:"device_id"`
	CaptureTimestamp string   `json:"capture_timestamp"`
	ImageName        *string  `json:"image_name"`
	TotalChunksCount *int     `json:"total_chunks_count"`
	ChunkID          *int     `json:"chunk_id"`
	Temperature      *float64 `json:"temperature"`
	Humidity         *float64 `json:"humidity"`
	Pressure         *float64 `json:"pressure"`
	GasResistance    *float64 `json:"gas_resistance"`
	BatteryVoltage   *float64 `json:"battery_voltage"`
}

// NewMQTTConsumer 创建MQTT消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient *mqtt.Client,
	redisClient *goredis.Client,
	deviceRepo *repository.DeviceRepository,
	telemetryRepo *repository.TelemetryRepository,
	cacheManager *aggregator.CacheManager,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:        cfg,
		mqttClient:    mqttClient,
		redisClient:   redisClient,
		deviceRepo:    deviceRepo,
		telemetryRepo: telemetryRepo,
		cacheManager:  cacheManager,
		logger:        logger,
	}
}

// Start 启动消费者
func (c *MQTTConsumer) Start(ctx context.Context) error {
	qos := c.config.MQTT.QoS

	// 订阅设备状态主题
	if err := c.mqttClient.Subscribe(c.config.Monitor.Topics.Status, qos, c.handleStatusMessage); err != nil {
		return fmt.Errorf("failed to subscribe to status topic: %w", err)
	}

	// 订阅传感器数据主题
	if err := c.mqttClient.Subscribe(c.config.Monitor.Topics.Data, qos, c.handleDataMessage); err != nil {
		return fmt.Errorf("failed to subscribe to data topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("status_topic", c.config.Monitor.Topics.Status),
		zap.String("data_topic", c.config.Monitor.Topics.Data),
	)

	// 等待上下文取消
	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	if err := c.mqttClient.Unsubscribe(
		c.config.Monitor.Topics.Status,
		c.config.Monitor.Topics.Data,
	); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleStatusMessage 处理设备唤醒状态消息
// 主题格式: device/{mac}/status
func (c *MQTTConsumer) handleStatusMessage(topic string, payload []byte) error {
	mac, err := macFromTopic(topic)
	if err != nil {
		return err
	}

	var msg statusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Error("Failed to unmarshal status message",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal status message: %w", err)
	}

	if msg.Status != "alive" {
		c.logger.Debug("Ignoring non-alive status",
			zap.String("mac", mac),
			zap.String("status", msg.Status),
		)
		return nil
	}

	device, err := c.deviceRepo.GetDeviceByMAC(mac)
	if err != nil {
		c.logger.Warn("Device not found for status message",
			zap.String("mac", mac),
			zap.Error(err),
		)
		return fmt.Errorf("device not found: %s", mac)
	}

	wakeAt := time.Now().UTC()
	event := &models.WakeEvent{
		EventID:        uuid.New().String(),
		DeviceID:       device.DeviceID,
		WakeAt:         wakeAt,
		PendingImages:  msg.PendingImg,
		BatteryVoltage: msg.BatteryVoltage,
	}

	if err := c.deviceRepo.RecordWakeEvent(event); err != nil {
		return fmt.Errorf("failed to record wake event: %w", err)
	}

	if err := c.deviceRepo.UpdateLastWake(device.DeviceID, wakeAt); err != nil {
		return fmt.Errorf("failed to update last wake: %w", err)
	}

	// 发布唤醒事件到 Redis Streams（events 模式的评估触发源）
	streamID, err := redis.PublishJSONToStream(context.Background(), c.redisClient, c.config.Monitor.WakeStream, event)
	if err != nil {
		c.logger.Error("Failed to publish wake event to Redis Streams",
			zap.String("stream", c.config.Monitor.WakeStream),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish wake event: %w", err)
	}

	c.logger.Info("Recorded device wake",
		zap.String("device_id", device.DeviceID),
		zap.String("mac", mac),
		zap.Int("pending_images", msg.PendingImg),
		zap.String("stream_id", streamID),
	)

	return nil
}

// handleDataMessage 处理传感器数据消息
// 主题格式: ESP32CAM/{mac}/data
// 只消费带环境读数的元数据消息；图像分片消息（带 chunk_id）由图像管线处理
func (c *MQTTConsumer) handleDataMessage(topic string, payload []byte) error {
	mac, err := macFromTopic(topic)
	if err != nil {
		return err
	}

	var msg dataMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Error("Failed to unmarshal data message",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal data message: %w", err)
	}

	// 分片消息：跳过
	if msg.ChunkID != nil {
		return nil
	}

	// 不是元数据消息也不是分片消息：忽略
	if msg.TotalChunksCount == nil {
		c.logger.Debug("Ignoring data message without chunk metadata",
			zap.String("mac", mac),
		)
		return nil
	}

	device, err := c.deviceRepo.GetDeviceByMAC(mac)
	if err != nil {
		c.logger.Warn("Device not found for data message",
			zap.String("mac", mac),
			zap.Error(err),
		)
		return fmt.Errorf("device not found: %s", mac)
	}

	reading := models.TelemetryReading{
		Timestamp: parseCaptureTimestamp(msg.CaptureTimestamp),
		Channels:  make(map[string]float64),
	}
	putReading(reading.Channels, models.ChannelTemperature, msg.Temperature)
	putReading(reading.Channels, models.ChannelHumidity, msg.Humidity)
	putReading(reading.Channels, models.ChannelPressure, msg.Pressure)
	putReading(reading.Channels, models.ChannelGasResistance, msg.GasResistance)
	putReading(reading.Channels, models.ChannelBatteryVoltage, msg.BatteryVoltage)

	if len(reading.Channels) == 0 {
		c.logger.Debug("Metadata message carries no environmental readings",
			zap.String("mac", mac),
		)
		return nil
	}

	if err := c.telemetryRepo.InsertReading(device.DeviceID, reading, msg.ImageName); err != nil {
		return fmt.Errorf("failed to insert telemetry reading: %w", err)
	}

	// 更新实时环境数据缓存
	if err := c.cacheManager.UpdateRealtime(context.Background(), device.DeviceID, reading); err != nil {
		c.logger.Warn("Failed to update realtime cache",
			zap.String("device_id", device.DeviceID),
			zap.Error(err),
		)
	}

	c.logger.Info("Stored telemetry reading",
		zap.String("device_id", device.DeviceID),
		zap.String("mac", mac),
		zap.Int("channel_count", len(reading.Channels)),
	)

	return nil
}

// macFromTopic 从主题中提取设备 MAC
// 主题格式: {prefix}/{mac}/{suffix}
func macFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return "", fmt.Errorf("invalid topic format: %s", topic)
	}
	return parts[1], nil
}

// parseCaptureTimestamp 解析采集时间戳，解析失败时用当前时间兜底
func parseCaptureTimestamp(value string) time.Time {
	if value != "" {
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

// putReading 将非空的读数放入通道 map
func putReading(channels map[string]float64, channel string, value *float64) {
	if value != nil {
		channels[channel] = *value
	}
}
