package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"brainly-monitor/internal/aggregator"
	"brainly-monitor/internal/config"
	"brainly-monitor/internal/consumer"
	"brainly-monitor/internal/database"
	"brainly-monitor/internal/evaluator"
	"brainly-monitor/internal/models"
	"brainly-monitor/internal/mqtt"
	"brainly-monitor/internal/redis"
	"brainly-monitor/internal/repository"

	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DeviceStore 设备读取接口（便于测试注入）
type DeviceStore interface {
	ListDevices() ([]models.Device, error)
	GetDeviceByID(deviceID string) (*models.Device, error)
}

// TelemetryStore 遥测读数读取接口
type TelemetryStore interface {
	ListReadings(deviceID string, from, to time.Time) ([]models.TelemetryReading, error)
}

// StatusCache 状态与汇总缓存接口
type StatusCache interface {
	UpdateWakeStatus(ctx context.Context, deviceID string, status models.WakeStatus) error
	UpdateSummary(ctx context.Context, deviceID string, summary *models.TelemetrySummary) error
}

// RiskForecaster 霉菌风险预测接口
type RiskForecaster interface {
	ForecastMoldRisk(ctx context.Context, req *RiskRequest) (*models.RiskForecast, error)
}

// MonitorService 设备唤醒监控服务
type MonitorService struct {
	config         *config.Config
	logger         *zap.Logger
	db             *sql.DB
	redisClient    *goredis.Client
	mqttClient     *mqtt.Client
	deviceStore    DeviceStore
	telemetryStore TelemetryStore
	cache          StatusCache
	riskClient     RiskForecaster
	mqttConsumer   *consumer.MQTTConsumer
	eventConsumer  *consumer.EventConsumer
	thresholds     evaluator.Thresholds
}

// NewMonitorService 创建监控服务
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	// 初始化数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 初始化 Redis（缓存 + 唤醒事件流）
	redisClient := redis.NewRedisClient(&cfg.Redis)
	if err := redis.Ping(context.Background(), redisClient); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 初始化 MQTT
	mqttClient, err := mqtt.NewClient(&cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	// 创建 Repository
	deviceRepo := repository.NewDeviceRepository(db, logger)
	telemetryRepo := repository.NewTelemetryRepository(db, logger)

	// 创建缓存管理器
	kv := aggregator.NewRedisKVStore(redisClient)
	cacheManager := aggregator.NewCacheManager(cfg, kv, logger)

	// 创建 MQTT 消费者（唤醒状态 + 传感器数据）
	mqttConsumer := consumer.NewMQTTConsumer(
		cfg,
		mqttClient,
		redisClient,
		deviceRepo,
		telemetryRepo,
		cacheManager,
		logger,
	)

	s := &MonitorService{
		config:         cfg,
		logger:         logger,
		db:             db,
		redisClient:    redisClient,
		mqttClient:     mqttClient,
		deviceStore:    deviceRepo,
		telemetryStore: telemetryRepo,
		cache:          cacheManager,
		mqttConsumer:   mqttConsumer,
		thresholds: evaluator.Thresholds{
			InactiveAfterHours: cfg.Monitor.InactiveAfterHours,
			WarnMissedOver:     cfg.Monitor.WarnMissedOver,
		},
	}

	// 创建唤醒事件消费者（events 触发模式）
	if cfg.Monitor.TriggerMode == "events" {
		s.eventConsumer = consumer.NewEventConsumer(
			redisClient,
			s,
			logger,
			cfg.Monitor.WakeStream,
			cfg.Monitor.ConsumerGroup,
			cfg.Monitor.ConsumerName,
			int64(cfg.Monitor.BatchSize),
		)
	}

	// 创建风险预测客户端（可选）
	if cfg.Forecast.Enabled {
		s.riskClient = NewRiskClient(cfg.Forecast.BaseURL, cfg.Forecast.APIKey, logger)
	}

	return s, nil
}

// Start 启动服务
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting device wake monitor service",
		zap.String("trigger_mode", s.config.Monitor.TriggerMode),
		zap.Bool("forecast_enabled", s.config.Forecast.Enabled),
	)

	// 启动 MQTT 消费者
	go func() {
		if err := s.mqttConsumer.Start(ctx); err != nil {
			s.logger.Error("MQTT consumer exited with error", zap.Error(err))
		}
	}()

	// 根据触发模式启动评估逻辑
	if s.config.Monitor.TriggerMode == "polling" {
		return s.startPollingMode(ctx)
	} else if s.config.Monitor.TriggerMode == "events" {
		return s.startEventDrivenMode(ctx)
	}
	return fmt.Errorf("unsupported trigger mode: %s", s.config.Monitor.TriggerMode)
}

// startPollingMode 启动轮询模式（定时全量评估）
func (s *MonitorService) startPollingMode(ctx context.Context) error {
	interval := time.Duration(s.config.Monitor.PollInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Starting polling mode",
		zap.Duration("interval", interval),
	)

	// 首次执行一次全量评估
	if err := s.evaluateFleet(ctx); err != nil {
		s.logger.Error("Failed to evaluate fleet on startup", zap.Error(err))
	}

	// 定时轮询
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.evaluateFleet(ctx); err != nil {
				s.logger.Error("Failed to evaluate fleet", zap.Error(err))
			}
		}
	}
}

// startEventDrivenMode 启动事件驱动模式
// 唤醒事件到达即触发单设备评估；启动时仍先做一次全量评估兜底
func (s *MonitorService) startEventDrivenMode(ctx context.Context) error {
	s.logger.Info("Starting event-driven mode")

	if err := s.evaluateFleet(ctx); err != nil {
		s.logger.Error("Failed to evaluate fleet on startup", zap.Error(err))
	}

	if s.eventConsumer != nil {
		return s.eventConsumer.Start(ctx)
	}

	return fmt.Errorf("event consumer not initialized")
}

// evaluateFleet 评估全部设备的唤醒合规状态
// 整个扫描用同一个时钟快照，保证所有设备的评估基准一致
func (s *MonitorService) evaluateFleet(ctx context.Context) error {
	devices, err := s.deviceStore.ListDevices()
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	now := time.Now().UTC()

	successCount := 0
	errorCount := 0

	for _, device := range devices {
		select {
		case <-ctx.Done():
			return nil
		default:
			status := evaluator.Evaluate(device.WakeState(), now, s.thresholds)

			if status.Status != models.WakeStatusActive {
				s.logger.Warn("Device not compliant",
					zap.String("device_id", device.DeviceID),
					zap.String("device_name", device.DeviceName),
					zap.String("status", status.Status),
					zap.Int("missed_count", status.MissedCount),
				)
			}

			if err := s.cache.UpdateWakeStatus(ctx, device.DeviceID, status); err != nil {
				s.logger.Error("Failed to update wake status cache",
					zap.String("device_id", device.DeviceID),
					zap.Error(err),
				)
				errorCount++
				continue
			}
			successCount++
		}
	}

	s.logger.Info("Completed fleet evaluation",
		zap.Int("device_count", len(devices)),
		zap.Int("success_count", successCount),
		zap.Int("error_count", errorCount),
	)

	return nil
}

// EvaluateDevice 评估单个设备的唤醒合规状态（唤醒事件触发）
func (s *MonitorService) EvaluateDevice(ctx context.Context, deviceID string) error {
	device, err := s.deviceStore.GetDeviceByID(deviceID)
	if err != nil {
		return fmt.Errorf("failed to get device: %w", err)
	}

	status := evaluator.Evaluate(device.WakeState(), time.Now().UTC(), s.thresholds)

	if err := s.cache.UpdateWakeStatus(ctx, device.DeviceID, status); err != nil {
		return fmt.Errorf("failed to update wake status cache: %w", err)
	}

	s.logger.Debug("Evaluated device",
		zap.String("device_id", device.DeviceID),
		zap.String("status", status.Status),
	)

	return nil
}

// Stop 停止服务
func (s *MonitorService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping device wake monitor service")

	if s.mqttConsumer != nil {
		if err := s.mqttConsumer.Stop(ctx); err != nil {
			s.logger.Error("Error stopping MQTT consumer", zap.Error(err))
		}
	}

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if s.redisClient != nil {
		if err := redis.Close(s.redisClient); err != nil {
			s.logger.Error("Error closing redis connection", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Error closing database connection", zap.Error(err))
		}
	}

	s.logger.Info("Device wake monitor service stopped")
	return nil
}
