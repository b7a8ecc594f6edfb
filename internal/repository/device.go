package repository

import (
	"database/sql"
	"fmt"
	"time"

	"brainly-monitor/internal/models"

	"go.uber.org/zap"
)

// DeviceRepository 设备仓库
type DeviceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDeviceRepository 创建设备仓库
func NewDeviceRepository(db *sql.DB, logger *zap.Logger) *DeviceRepository {
	return &DeviceRepository{
		db:     db,
		logger: logger,
	}
}

const deviceColumns = `
	device_id::text,
	device_mac,
	device_name,
	location,
	schedule_expression,
	last_wake_at,
	is_active,
	missed_wakes,
	critical_rh,
	created_at,
	updated_at
`

// ListDevices 获取全部设备（轮询评估用）
func (r *DeviceRepository) ListDevices() ([]models.Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM devices
		ORDER BY device_name
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate devices: %w", err)
	}

	return devices, nil
}

// GetDeviceByID 按 ID 获取设备
func (r *DeviceRepository) GetDeviceByID(deviceID string) (*models.Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM devices
		WHERE device_id = $1
	`

	row := r.db.QueryRow(query, deviceID)
	device, err := scanDevice(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("device not found: %s", deviceID)
		}
		return nil, fmt.Errorf("failed to query device: %w", err)
	}

	return &device, nil
}

// GetDeviceByMAC 按 MAC 地址获取设备（MQTT 消息里只有 MAC）
func (r *DeviceRepository) GetDeviceByMAC(deviceMAC string) (*models.Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM devices
		WHERE device_mac = $1
	`

	row := r.db.QueryRow(query, deviceMAC)
	device, err := scanDevice(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("device not found: %s", deviceMAC)
		}
		return nil, fmt.Errorf("failed to query device by mac: %w", err)
	}

	return &device, nil
}

// UpdateLastWake 更新设备最近唤醒时间
func (r *DeviceRepository) UpdateLastWake(deviceID string, wakeAt time.Time) error {
	query := `
		UPDATE devices
		SET last_wake_at = $2, updated_at = NOW()
		WHERE device_id = $1
	`

	result, err := r.db.Exec(query, deviceID, wakeAt)
	if err != nil {
		return fmt.Errorf("failed to update last wake: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("device not found: %s", deviceID)
	}

	return nil
}

// RecordWakeEvent 记录一次观测到的设备唤醒
func (r *DeviceRepository) RecordWakeEvent(event *models.WakeEvent) error {
	query := `
		INSERT INTO wake_events (event_id, device_id, wake_at, pending_images, battery_voltage, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`

	_, err := r.db.Exec(query,
		event.EventID,
		event.DeviceID,
		event.WakeAt,
		event.PendingImages,
		event.BatteryVoltage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert wake event: %w", err)
	}

	return nil
}

// rowScanner 统一 *sql.Row 和 *sql.Rows 的扫描接口
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanDevice 扫描一行设备记录（可空字段用 sql.Null* 中转）
func scanDevice(row rowScanner) (models.Device, error) {
	var device models.Device
	var location, scheduleExpr sql.NullString
	var lastWakeAt sql.NullTime
	var isActive sql.NullBool
	var missedWakes sql.NullInt64
	var criticalRH sql.NullFloat64

	if err := row.Scan(
		&device.DeviceID,
		&device.DeviceMAC,
		&device.DeviceName,
		&location,
		&scheduleExpr,
		&lastWakeAt,
		&isActive,
		&missedWakes,
		&criticalRH,
		&device.CreatedAt,
		&device.UpdatedAt,
	); err != nil {
		return device, err
	}

	if location.Valid {
		device.Location = &location.String
	}
	if scheduleExpr.Valid {
		device.ScheduleExpression = &scheduleExpr.String
	}
	if lastWakeAt.Valid {
		t := lastWakeAt.Time
		device.LastWakeAt = &t
	}
	if isActive.Valid {
		b := isActive.Bool
		device.IsActive = &b
	}
	if missedWakes.Valid {
		n := int(missedWakes.Int64)
		device.MissedWakes = &n
	}
	if criticalRH.Valid {
		f := criticalRH.Float64
		device.CriticalRH = &f
	}

	return device, nil
}
