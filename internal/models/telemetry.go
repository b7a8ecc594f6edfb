package models

import "time"

// 遥测通道名称（BME680 环境传感器 + 电池）
const (
	ChannelTemperature    = "temperature"
	ChannelHumidity       = "humidity"
	ChannelPressure       = "pressure"
	ChannelGasResistance  = "gas_resistance"
	ChannelBatteryVoltage = "battery_voltage"
)

// AllChannels 汇总分析覆盖的全部通道
var AllChannels = []string{
	ChannelTemperature,
	ChannelHumidity,
	ChannelPressure,
	ChannelGasResistance,
	ChannelBatteryVoltage,
}

// TelemetryReading 单条多通道遥测读数
// Channels 中不存在的键表示该通道本次无值（各通道独立可空）
type TelemetryReading struct {
	Timestamp time.Time          `json:"timestamp"`
	Channels  map[string]float64 `json:"channels"`
}

// AggregationBucket 固定时间窗的聚合结果
// Means 中只包含窗内至少有一个非空值的通道，绝不填 0 或 null 占位
type AggregationBucket struct {
	BucketStart time.Time          `json:"bucket_start"`
	Means       map[string]float64 `json:"means"`
}

// 趋势分类枚举
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// ChannelSummary 单通道的描述统计与趋势分类
type ChannelSummary struct {
	Mean       float64 `json:"mean"`
	Median     float64 `json:"median"`
	StdDev     float64 `json:"std_dev"` // 总体标准差（除数为 n）
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Trend      string  `json:"trend"`
	TrendSlope float64 `json:"trend_slope"`
}

// TelemetrySummary 一个设备在一个时间窗内的完整分析结果
type TelemetrySummary struct {
	DeviceID  string                    `json:"device_id"`
	From      time.Time                 `json:"from"`
	To        time.Time                 `json:"to"`
	Level     string                    `json:"level"`
	Buckets   []AggregationBucket       `json:"buckets"`
	Channels  map[string]ChannelSummary `json:"channels"`
	Risk      *RiskForecast             `json:"risk,omitempty"` // 外部霉菌风险预测（可选）
	Generated int64                     `json:"generated"`      // Unix timestamp
}
