package service

import (
	"context"
	"fmt"
	"time"

	"brainly-monitor/internal/aggregator"
	"brainly-monitor/internal/models"

	"go.uber.org/zap"
)

// Summary 生成设备在时间窗内的遥测汇总
// 流程：查读数 → 按粒度分桶聚合 → 逐通道统计与趋势分类 → 可选附加风险预测 → 写缓存
// 风险预测失败只记日志，不影响汇总结果
func (s *MonitorService) Summary(ctx context.Context, deviceID string, from, to time.Time, level aggregator.Level) (*models.TelemetrySummary, error) {
	readings, err := s.telemetryStore.ListReadings(deviceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}

	buckets := aggregator.Aggregate(readings, level)

	sensitivity := s.config.Monitor.TrendSensitivity
	if sensitivity <= 0 {
		sensitivity = aggregator.DefaultTrendSensitivity
	}

	channels := make(map[string]models.ChannelSummary)
	for _, ch := range models.AllChannels {
		values := aggregator.ExtractChannel(readings, ch)
		if !hasValues(values) {
			continue
		}
		channels[ch] = aggregator.SummarizeWithSensitivity(values, sensitivity)
	}

	summary := &models.TelemetrySummary{
		DeviceID:  deviceID,
		From:      from,
		To:        to,
		Level:     string(level),
		Buckets:   buckets,
		Channels:  channels,
		Generated: time.Now().Unix(),
	}

	// 附加霉菌风险预测（可选，失败不中断）
	if s.riskClient != nil {
		summary.Risk = s.fetchRiskForecast(ctx, deviceID, readings)
	}

	// 写汇总缓存（失败不中断）
	if err := s.cache.UpdateSummary(ctx, deviceID, summary); err != nil {
		s.logger.Warn("Failed to update summary cache",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}

	s.logger.Info("Generated telemetry summary",
		zap.String("device_id", deviceID),
		zap.String("level", string(level)),
		zap.Int("reading_count", len(readings)),
		zap.Int("bucket_count", len(buckets)),
	)

	return summary, nil
}

// fetchRiskForecast 调用外部风险预测模型，任何失败都返回 nil
func (s *MonitorService) fetchRiskForecast(ctx context.Context, deviceID string, readings []models.TelemetryReading) *models.RiskForecast {
	humidity := channelSeries(readings, models.ChannelHumidity)
	if len(humidity) == 0 {
		// 没有湿度数据就没有预测依据
		return nil
	}

	req := &RiskRequest{
		DeviceID:    deviceID,
		Temperature: channelSeries(readings, models.ChannelTemperature),
		Humidity:    humidity,
	}

	// 设备的临界湿度阈值随请求送入模型
	if device, err := s.deviceStore.GetDeviceByID(deviceID); err == nil {
		req.CriticalRH = device.CriticalRH
	} else {
		s.logger.Warn("Failed to load device for risk forecast",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}

	forecast, err := s.riskClient.ForecastMoldRisk(ctx, req)
	if err != nil {
		s.logger.Warn("Mold risk forecast unavailable",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return nil
	}

	if models.RiskEscalates(forecast.Current.Level, forecast.H72.Level) {
		s.logger.Warn("Mold risk forecast escalates",
			zap.String("device_id", deviceID),
			zap.String("current_level", forecast.Current.Level),
			zap.String("h72_level", forecast.H72.Level),
		)
	}

	return forecast
}

// channelSeries 抽取单通道的非空值序列（保持时间顺序）
func channelSeries(readings []models.TelemetryReading, channel string) []float64 {
	values := make([]float64, 0, len(readings))
	for _, r := range readings {
		if v, ok := r.Channels[channel]; ok {
			values = append(values, v)
		}
	}
	return values
}

// hasValues 判断通道序列是否至少有一个非空值
func hasValues(values []*float64) bool {
	for _, v := range values {
		if v != nil {
			return true
		}
	}
	return false
}
