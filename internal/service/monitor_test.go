package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"brainly-monitor/internal/aggregator"
	"brainly-monitor/internal/config"
	"brainly-monitor/internal/evaluator"
	"brainly-monitor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockDeviceStore 是 DeviceStore 的 mock 实现
type MockDeviceStore struct {
	mock.Mock
}

func (m *MockDeviceStore) ListDevices() ([]models.Device, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Device), args.Error(1)
}

func (m *MockDeviceStore) GetDeviceByID(deviceID string) (*models.Device, error) {
	args := m.Called(deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Device), args.Error(1)
}

// MockTelemetryStore 是 TelemetryStore 的 mock 实现
type MockTelemetryStore struct {
	mock.Mock
}

func (m *MockTelemetryStore) ListReadings(deviceID string, from, to time.Time) ([]models.TelemetryReading, error) {
	args := m.Called(deviceID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TelemetryReading), args.Error(1)
}

// MockStatusCache 是 StatusCache 的 mock 实现
type MockStatusCache struct {
	mock.Mock
}

func (m *MockStatusCache) UpdateWakeStatus(ctx context.Context, deviceID string, status models.WakeStatus) error {
	args := m.Called(ctx, deviceID, status)
	return args.Error(0)
}

func (m *MockStatusCache) UpdateSummary(ctx context.Context, deviceID string, summary *models.TelemetrySummary) error {
	args := m.Called(ctx, deviceID, summary)
	return args.Error(0)
}

// MockRiskForecaster 是 RiskForecaster 的 mock 实现
type MockRiskForecaster struct {
	mock.Mock
}

func (m *MockRiskForecaster) ForecastMoldRisk(ctx context.Context, req *RiskRequest) (*models.RiskForecast, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RiskForecast), args.Error(1)
}

func newTestService(devices *MockDeviceStore, telemetry *MockTelemetryStore, cache *MockStatusCache) *MonitorService {
	cfg := &config.Config{}
	cfg.Monitor.TrendSensitivity = 0.1

	return &MonitorService{
		config:         cfg,
		logger:         zap.NewNop(),
		deviceStore:    devices,
		telemetryStore: telemetry,
		cache:          cache,
		thresholds:     evaluator.DefaultThresholds(),
	}
}

func timePtr(t time.Time) *time.Time { return &t }
func boolPtr(b bool) *bool           { return &b }
func strPtr(s string) *string        { return &s }

func TestEvaluateFleet_CachesStatusPerDevice(t *testing.T) {
	devices := new(MockDeviceStore)
	cache := new(MockStatusCache)
	svc := newTestService(devices, nil, cache)

	recentWake := time.Now().UTC().Add(-1 * time.Hour)
	fleet := []models.Device{
		{
			DeviceID:           "dev-1",
			DeviceName:         "Greenhouse North",
			ScheduleExpression: strPtr("0 */6 * * *"),
			LastWakeAt:         timePtr(recentWake),
			IsActive:           boolPtr(true),
		},
		{
			DeviceID:   "dev-2",
			DeviceName: "Greenhouse South",
			// 从未唤醒过
		},
	}

	devices.On("ListDevices").Return(fleet, nil)
	cache.On("UpdateWakeStatus", mock.Anything, "dev-1", mock.MatchedBy(func(s models.WakeStatus) bool {
		return s.Status == models.WakeStatusActive
	})).Return(nil)
	cache.On("UpdateWakeStatus", mock.Anything, "dev-2", mock.MatchedBy(func(s models.WakeStatus) bool {
		return s.Status == models.WakeStatusInactive
	})).Return(nil)

	err := svc.evaluateFleet(context.Background())

	require.NoError(t, err)
	devices.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestEvaluateFleet_ListError(t *testing.T) {
	devices := new(MockDeviceStore)
	cache := new(MockStatusCache)
	svc := newTestService(devices, nil, cache)

	devices.On("ListDevices").Return(nil, fmt.Errorf("connection refused"))

	err := svc.evaluateFleet(context.Background())

	assert.Error(t, err)
	cache.AssertNotCalled(t, "UpdateWakeStatus")
}

func TestEvaluateDevice_Success(t *testing.T) {
	devices := new(MockDeviceStore)
	cache := new(MockStatusCache)
	svc := newTestService(devices, nil, cache)

	device := &models.Device{
		DeviceID:           "dev-1",
		ScheduleExpression: strPtr("*/30 * * * *"),
		LastWakeAt:         timePtr(time.Now().UTC().Add(-10 * time.Minute)),
		IsActive:           boolPtr(true),
	}

	devices.On("GetDeviceByID", "dev-1").Return(device, nil)
	cache.On("UpdateWakeStatus", mock.Anything, "dev-1", mock.MatchedBy(func(s models.WakeStatus) bool {
		return s.Status == models.WakeStatusActive && s.HoursSinceWake != nil
	})).Return(nil)

	err := svc.EvaluateDevice(context.Background(), "dev-1")

	require.NoError(t, err)
	devices.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestEvaluateDevice_NotFound(t *testing.T) {
	devices := new(MockDeviceStore)
	cache := new(MockStatusCache)
	svc := newTestService(devices, nil, cache)

	devices.On("GetDeviceByID", "dev-gone").Return(nil, fmt.Errorf("device not found: dev-gone"))

	err := svc.EvaluateDevice(context.Background(), "dev-gone")

	assert.Error(t, err)
	cache.AssertNotCalled(t, "UpdateWakeStatus")
}

func TestSummary_AggregatesAndCaches(t *testing.T) {
	telemetry := new(MockTelemetryStore)
	cache := new(MockStatusCache)
	svc := newTestService(nil, telemetry, cache)

	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	from := base.Add(-time.Hour)
	to := base.Add(time.Hour)

	readings := []models.TelemetryReading{
		{
			Timestamp: base,
			Channels: map[string]float64{
				models.ChannelTemperature: 70,
				models.ChannelHumidity:    40,
			},
		},
		{
			Timestamp: base.Add(10 * time.Minute),
			Channels: map[string]float64{
				models.ChannelTemperature: 74,
				models.ChannelHumidity:    44,
			},
		},
	}

	telemetry.On("ListReadings", "dev-1", from, to).Return(readings, nil)
	cache.On("UpdateSummary", mock.Anything, "dev-1", mock.Anything).Return(nil)

	summary, err := svc.Summary(context.Background(), "dev-1", from, to, aggregator.LevelHourly)

	require.NoError(t, err)
	assert.Equal(t, "dev-1", summary.DeviceID)
	assert.Equal(t, string(aggregator.LevelHourly), summary.Level)

	// 两条读数落在同一个小时桶
	require.Len(t, summary.Buckets, 1)
	assert.Equal(t, 72.0, summary.Buckets[0].Means[models.ChannelTemperature])
	assert.Equal(t, 42.0, summary.Buckets[0].Means[models.ChannelHumidity])

	// 只有实际有数据的通道出现在汇总里
	assert.Contains(t, summary.Channels, models.ChannelTemperature)
	assert.Contains(t, summary.Channels, models.ChannelHumidity)
	assert.NotContains(t, summary.Channels, models.ChannelPressure)
	assert.NotContains(t, summary.Channels, models.ChannelBatteryVoltage)

	// 无风险预测客户端时不附加预测
	assert.Nil(t, summary.Risk)

	telemetry.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestSummary_ListError(t *testing.T) {
	telemetry := new(MockTelemetryStore)
	cache := new(MockStatusCache)
	svc := newTestService(nil, telemetry, cache)

	from := time.Now().Add(-time.Hour)
	to := time.Now()
	telemetry.On("ListReadings", "dev-1", from, to).Return(nil, fmt.Errorf("query timeout"))

	summary, err := svc.Summary(context.Background(), "dev-1", from, to, aggregator.LevelHourly)

	assert.Error(t, err)
	assert.Nil(t, summary)
	cache.AssertNotCalled(t, "UpdateSummary")
}

func TestSummary_AttachesRiskForecast(t *testing.T) {
	devices := new(MockDeviceStore)
	telemetry := new(MockTelemetryStore)
	cache := new(MockStatusCache)
	forecaster := new(MockRiskForecaster)

	svc := newTestService(devices, telemetry, cache)
	svc.riskClient = forecaster

	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	from := base.Add(-time.Hour)
	to := base.Add(time.Hour)

	readings := []models.TelemetryReading{
		{Timestamp: base, Channels: map[string]float64{
			models.ChannelTemperature: 70,
			models.ChannelHumidity:    80,
		}},
	}

	criticalRH := 75.0
	device := &models.Device{DeviceID: "dev-1", CriticalRH: &criticalRH}

	forecast := &models.RiskForecast{
		Current: models.RiskPoint{Index: 2.1, Level: "moderate"},
		H24:     models.RiskPoint{Index: 2.8, Level: "moderate"},
		H48:     models.RiskPoint{Index: 3.5, Level: "high"},
		H72:     models.RiskPoint{Index: 4.2, Level: "high"},
	}

	telemetry.On("ListReadings", "dev-1", from, to).Return(readings, nil)
	devices.On("GetDeviceByID", "dev-1").Return(device, nil)
	forecaster.On("ForecastMoldRisk", mock.Anything, mock.MatchedBy(func(req *RiskRequest) bool {
		return req.DeviceID == "dev-1" &&
			len(req.Humidity) == 1 && req.Humidity[0] == 80 &&
			req.CriticalRH != nil && *req.CriticalRH == 75.0
	})).Return(forecast, nil)
	cache.On("UpdateSummary", mock.Anything, "dev-1", mock.Anything).Return(nil)

	summary, err := svc.Summary(context.Background(), "dev-1", from, to, aggregator.LevelRaw)

	require.NoError(t, err)
	require.NotNil(t, summary.Risk)
	assert.Equal(t, "moderate", summary.Risk.Current.Level)
	assert.Equal(t, "high", summary.Risk.H72.Level)

	forecaster.AssertExpectations(t)
}

func TestSummary_RiskFailureDoesNotFailSummary(t *testing.T) {
	devices := new(MockDeviceStore)
	telemetry := new(MockTelemetryStore)
	cache := new(MockStatusCache)
	forecaster := new(MockRiskForecaster)

	svc := newTestService(devices, telemetry, cache)
	svc.riskClient = forecaster

	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	from := base.Add(-time.Hour)
	to := base.Add(time.Hour)

	readings := []models.TelemetryReading{
		{Timestamp: base, Channels: map[string]float64{models.ChannelHumidity: 85}},
	}

	telemetry.On("ListReadings", "dev-1", from, to).Return(readings, nil)
	devices.On("GetDeviceByID", "dev-1").Return(nil, fmt.Errorf("device not found"))
	forecaster.On("ForecastMoldRisk", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("upstream 503"))
	cache.On("UpdateSummary", mock.Anything, "dev-1", mock.Anything).Return(nil)

	summary, err := svc.Summary(context.Background(), "dev-1", from, to, aggregator.LevelHourly)

	require.NoError(t, err)
	assert.Nil(t, summary.Risk)
}

func TestSummary_NoHumiditySkipsForecast(t *testing.T) {
	telemetry := new(MockTelemetryStore)
	cache := new(MockStatusCache)
	forecaster := new(MockRiskForecaster)

	svc := newTestService(nil, telemetry, cache)
	svc.riskClient = forecaster

	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	from := base.Add(-time.Hour)
	to := base.Add(time.Hour)

	readings := []models.TelemetryReading{
		{Timestamp: base, Channels: map[string]float64{models.ChannelTemperature: 70}},
	}

	telemetry.On("ListReadings", "dev-1", from, to).Return(readings, nil)
	cache.On("UpdateSummary", mock.Anything, "dev-1", mock.Anything).Return(nil)

	summary, err := svc.Summary(context.Background(), "dev-1", from, to, aggregator.LevelHourly)

	require.NoError(t, err)
	assert.Nil(t, summary.Risk)
	forecaster.AssertNotCalled(t, "ForecastMoldRisk")
}
