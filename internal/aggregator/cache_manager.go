package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"brainly-monitor/internal/config"
	"brainly-monitor/internal/models"

	"go.uber.org/zap"
)

// CacheManager Redis 缓存管理器（唤醒状态 / 实时环境数据 / 遥测汇总）
// 展示层直接从 Redis 读取这些键渲染设备卡片和统计面板
type CacheManager struct {
	config *config.Config
	kv     KVStore
	logger *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(
	cfg *config.Config,
	kv KVStore,
	logger *zap.Logger,
) *CacheManager {
	return &CacheManager{
		config: cfg,
		kv:     kv,
		logger: logger,
	}
}

// statusKey 构建唤醒状态缓存键
func (c *CacheManager) statusKey(deviceID string) string {
	return fmt.Sprintf("%s%s%s",
		c.config.Monitor.Cache.DeviceKeyPrefix,
		deviceID,
		c.config.Monitor.Cache.StatusSuffix,
	)
}

// realtimeKey 构建实时环境数据缓存键
func (c *CacheManager) realtimeKey(deviceID string) string {
	return fmt.Sprintf("%s%s%s",
		c.config.Monitor.Cache.DeviceKeyPrefix,
		deviceID,
		c.config.Monitor.Cache.RealtimeSuffix,
	)
}

// summaryKey 构建遥测汇总缓存键（按粒度区分）
func (c *CacheManager) summaryKey(deviceID string, level string) string {
	return fmt.Sprintf("%s%s%s:%s",
		c.config.Monitor.Cache.DeviceKeyPrefix,
		deviceID,
		c.config.Monitor.Cache.SummarySuffix,
		level,
	)
}

// UpdateWakeStatus 更新设备唤醒状态缓存
func (c *CacheManager) UpdateWakeStatus(ctx context.Context, deviceID string, status models.WakeStatus) error {
	jsonData, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal wake status: %w", err)
	}

	ttl := time.Duration(c.config.Monitor.Cache.StatusTTL) * time.Second
	if err := c.kv.Set(ctx, c.statusKey(deviceID), string(jsonData), ttl); err != nil {
		return fmt.Errorf("failed to set wake status cache: %w", err)
	}

	c.logger.Debug("Updated wake status cache",
		zap.String("device_id", deviceID),
		zap.String("status", status.Status),
		zap.Int("missed_count", status.MissedCount),
	)

	return nil
}

// GetWakeStatus 读取设备唤醒状态缓存
func (c *CacheManager) GetWakeStatus(ctx context.Context, deviceID string) (*models.WakeStatus, error) {
	val, err := c.kv.Get(ctx, c.statusKey(deviceID))
	if err != nil {
		if err == ErrCacheMiss {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get wake status cache: %w", err)
	}

	var status models.WakeStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wake status: %w", err)
	}

	return &status, nil
}

// UpdateRealtime 更新设备实时环境数据缓存（最近一条读数）
func (c *CacheManager) UpdateRealtime(ctx context.Context, deviceID string, reading models.TelemetryReading) error {
	jsonData, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to marshal realtime reading: %w", err)
	}

	ttl := time.Duration(c.config.Monitor.Cache.StatusTTL) * time.Second
	if err := c.kv.Set(ctx, c.realtimeKey(deviceID), string(jsonData), ttl); err != nil {
		return fmt.Errorf("failed to set realtime cache: %w", err)
	}

	return nil
}

// UpdateSummary 更新设备遥测汇总缓存
func (c *CacheManager) UpdateSummary(ctx context.Context, deviceID string, summary *models.TelemetrySummary) error {
	jsonData, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal telemetry summary: %w", err)
	}

	ttl := time.Duration(c.config.Monitor.Cache.SummaryTTL) * time.Second
	if err := c.kv.Set(ctx, c.summaryKey(deviceID, summary.Level), string(jsonData), ttl); err != nil {
		return fmt.Errorf("failed to set summary cache: %w", err)
	}

	c.logger.Debug("Updated telemetry summary cache",
		zap.String("device_id", deviceID),
		zap.String("level", summary.Level),
		zap.Int("bucket_count", len(summary.Buckets)),
	)

	return nil
}
