package repository

import (
	"database/sql"
	"fmt"
	"time"

	"brainly-monitor/internal/models"

	"go.uber.org/zap"
)

// TelemetryRepository 遥测读数仓库（telemetry_readings 表）
type TelemetryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTelemetryRepository 创建遥测仓库
func NewTelemetryRepository(db *sql.DB, logger *zap.Logger) *TelemetryRepository {
	return &TelemetryRepository{
		db:     db,
		logger: logger,
	}
}

// InsertReading 写入一条遥测读数
// 各通道独立可空：map 里没有的通道写 NULL
func (r *TelemetryRepository) InsertReading(deviceID string, reading models.TelemetryReading, imageName *string) error {
	query := `
		INSERT INTO telemetry_readings
			(device_id, recorded_at, temperature, humidity, pressure, gas_resistance, battery_voltage, image_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`

	_, err := r.db.Exec(query,
		deviceID,
		reading.Timestamp,
		channelValue(reading, models.ChannelTemperature),
		channelValue(reading, models.ChannelHumidity),
		channelValue(reading, models.ChannelPressure),
		channelValue(reading, models.ChannelGasResistance),
		channelValue(reading, models.ChannelBatteryVoltage),
		imageName,
	)
	if err != nil {
		return fmt.Errorf("failed to insert telemetry reading: %w", err)
	}

	return nil
}

// ListReadings 查询设备在时间窗内的遥测读数（按时间升序）
func (r *TelemetryRepository) ListReadings(deviceID string, from, to time.Time) ([]models.TelemetryReading, error) {
	query := `
		SELECT recorded_at, temperature, humidity, pressure, gas_resistance, battery_voltage
		FROM telemetry_readings
		WHERE device_id = $1
		  AND recorded_at >= $2
		  AND recorded_at <= $3
		ORDER BY recorded_at ASC
	`

	rows, err := r.db.Query(query, deviceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query telemetry readings: %w", err)
	}
	defer rows.Close()

	var readings []models.TelemetryReading
	for rows.Next() {
		var recordedAt time.Time
		var temperature, humidity, pressure, gasResistance, batteryVoltage sql.NullFloat64

		if err := rows.Scan(
			&recordedAt,
			&temperature,
			&humidity,
			&pressure,
			&gasResistance,
			&batteryVoltage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan telemetry reading: %w", err)
		}

		channels := make(map[string]float64)
		putChannel(channels, models.ChannelTemperature, temperature)
		putChannel(channels, models.ChannelHumidity, humidity)
		putChannel(channels, models.ChannelPressure, pressure)
		putChannel(channels, models.ChannelGasResistance, gasResistance)
		putChannel(channels, models.ChannelBatteryVoltage, batteryVoltage)

		readings = append(readings, models.TelemetryReading{
			Timestamp: recordedAt,
			Channels:  channels,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate telemetry readings: %w", err)
	}

	return readings, nil
}

// channelValue 取通道值用于 SQL 参数，缺失时为 NULL
func channelValue(reading models.TelemetryReading, channel string) interface{} {
	if v, ok := reading.Channels[channel]; ok {
		return v
	}
	return nil
}

// putChannel 将非空的数据库字段放入通道 map
func putChannel(channels map[string]float64, channel string, value sql.NullFloat64) {
	if value.Valid {
		channels[channel] = value.Float64
	}
}
