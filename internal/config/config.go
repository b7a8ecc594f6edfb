package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// Config 设备唤醒监控服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	// 监控服务特定配置
	Monitor struct {
		// 触发模式："polling"（轮询全量评估）或 "events"（消费唤醒事件流）
		TriggerMode string

		// 轮询间隔（秒），默认 60秒
		PollInterval int

		// 唤醒合规阈值
		InactiveAfterHours float64 // 超过该小时数未唤醒判定为 inactive，默认 48
		WarnMissedOver     int     // 错过唤醒次数超过该值判定为 warning，默认 1

		// 趋势分类灵敏度（斜率与标准差的比值阈值），默认 0.1
		TrendSensitivity float64

		// Redis 缓存配置
		Cache struct {
			DeviceKeyPrefix string // 设备缓存键前缀，如 "brainly:device:"
			StatusSuffix    string // 唤醒状态缓存键后缀，如 ":status"
			RealtimeSuffix  string // 实时环境数据缓存键后缀，如 ":realtime"
			SummarySuffix   string // 遥测汇总缓存键后缀，如 ":summary"
			StatusTTL       int    // 状态缓存 TTL（秒），默认 120秒
			SummaryTTL      int    // 汇总缓存 TTL（秒），默认 60秒
		}

		// MQTT 订阅主题
		Topics struct {
			Status string // 设备唤醒状态主题，如 "device/+/status"
			Data   string // 传感器数据主题，如 "ESP32CAM/+/data"
		}

		// 唤醒事件流配置（events 模式）
		WakeStream    string // Redis Stream 名称
		ConsumerGroup string
		ConsumerName  string
		BatchSize     int
	}

	// 霉菌风险预测服务（外部黑盒模型）
	Forecast struct {
		Enabled bool
		BaseURL string
		APIKey  string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "brainlytree")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "ssl://localhost:8883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "brainly-monitor")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	// 监控配置
	cfg.Monitor.TriggerMode = getEnv("MONITOR_TRIGGER_MODE", "polling")
	cfg.Monitor.PollInterval = getEnvInt("MONITOR_POLL_INTERVAL", 60)
	cfg.Monitor.InactiveAfterHours = getEnvFloat("MONITOR_INACTIVE_AFTER_HOURS", 48)
	cfg.Monitor.WarnMissedOver = getEnvInt("MONITOR_WARN_MISSED_OVER", 1)
	cfg.Monitor.TrendSensitivity = getEnvFloat("MONITOR_TREND_SENSITIVITY", 0.1)

	cfg.Monitor.Cache.DeviceKeyPrefix = getEnv("CACHE_DEVICE_PREFIX", "brainly:device:")
	cfg.Monitor.Cache.StatusSuffix = ":status"
	cfg.Monitor.Cache.RealtimeSuffix = ":realtime"
	cfg.Monitor.Cache.SummarySuffix = ":summary"
	cfg.Monitor.Cache.StatusTTL = getEnvInt("CACHE_STATUS_TTL", 120)
	cfg.Monitor.Cache.SummaryTTL = getEnvInt("CACHE_SUMMARY_TTL", 60)

	cfg.Monitor.Topics.Status = getEnv("MQTT_STATUS_TOPIC", "device/+/status")
	cfg.Monitor.Topics.Data = getEnv("MQTT_DATA_TOPIC", "ESP32CAM/+/data")

	cfg.Monitor.WakeStream = getEnv("MONITOR_WAKE_STREAM", "brainly:wake-events")
	cfg.Monitor.ConsumerGroup = getEnv("MONITOR_CONSUMER_GROUP", "brainly-monitor")
	cfg.Monitor.ConsumerName = getEnv("MONITOR_CONSUMER_NAME", "monitor-1")
	cfg.Monitor.BatchSize = getEnvInt("MONITOR_BATCH_SIZE", 10)

	// 风险预测服务
	cfg.Forecast.BaseURL = getEnv("FORECAST_BASE_URL", "")
	cfg.Forecast.APIKey = getEnv("FORECAST_API_KEY", "")
	cfg.Forecast.Enabled = cfg.Forecast.BaseURL != ""

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
