package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// 验证默认值
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "brainlytree", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)

	assert.Equal(t, "brainly-monitor", cfg.MQTT.ClientID)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)

	assert.Equal(t, "polling", cfg.Monitor.TriggerMode)
	assert.Equal(t, 60, cfg.Monitor.PollInterval)
	assert.Equal(t, 48.0, cfg.Monitor.InactiveAfterHours)
	assert.Equal(t, 1, cfg.Monitor.WarnMissedOver)
	assert.Equal(t, 0.1, cfg.Monitor.TrendSensitivity)

	assert.Equal(t, "brainly:device:", cfg.Monitor.Cache.DeviceKeyPrefix)
	assert.Equal(t, ":status", cfg.Monitor.Cache.StatusSuffix)
	assert.Equal(t, ":realtime", cfg.Monitor.Cache.RealtimeSuffix)
	assert.Equal(t, ":summary", cfg.Monitor.Cache.SummarySuffix)
	assert.Equal(t, 120, cfg.Monitor.Cache.StatusTTL)
	assert.Equal(t, 60, cfg.Monitor.Cache.SummaryTTL)

	assert.Equal(t, "device/+/status", cfg.Monitor.Topics.Status)
	assert.Equal(t, "ESP32CAM/+/data", cfg.Monitor.Topics.Data)

	assert.Equal(t, "brainly:wake-events", cfg.Monitor.WakeStream)
	assert.Equal(t, "brainly-monitor", cfg.Monitor.ConsumerGroup)
	assert.Equal(t, 10, cfg.Monitor.BatchSize)

	// 未配置 BaseURL 时预测服务不启用
	assert.False(t, cfg.Forecast.Enabled)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	// 设置环境变量
	os.Setenv("DB_HOST", "test-host")
	os.Setenv("DB_PORT", "5433")
	os.Setenv("REDIS_ADDR", "test-redis:6380")
	os.Setenv("MONITOR_TRIGGER_MODE", "events")
	os.Setenv("MONITOR_POLL_INTERVAL", "15")
	os.Setenv("MONITOR_INACTIVE_AFTER_HOURS", "72")
	os.Setenv("MONITOR_TREND_SENSITIVITY", "0.2")
	os.Setenv("FORECAST_BASE_URL", "https://forecast.example.com")
	os.Setenv("LOG_LEVEL", "debug")
	defer os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "test-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "events", cfg.Monitor.TriggerMode)
	assert.Equal(t, 15, cfg.Monitor.PollInterval)
	assert.Equal(t, 72.0, cfg.Monitor.InactiveAfterHours)
	assert.Equal(t, 0.2, cfg.Monitor.TrendSensitivity)
	assert.True(t, cfg.Forecast.Enabled)
	assert.Equal(t, "https://forecast.example.com", cfg.Forecast.BaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	os.Clearenv()
	os.Setenv("MONITOR_POLL_INTERVAL", "not-a-number")
	os.Setenv("MONITOR_INACTIVE_AFTER_HOURS", "forever")
	defer os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	// 非法数值退回默认值
	assert.Equal(t, 60, cfg.Monitor.PollInterval)
	assert.Equal(t, 48.0, cfg.Monitor.InactiveAfterHours)
}
