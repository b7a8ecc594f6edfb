package models

import "time"

// 唤醒状态枚举
const (
	WakeStatusActive   = "active"
	WakeStatusWarning  = "warning"
	WakeStatusInactive = "inactive"
)

// Device 设备基础信息（devices 表）
type Device struct {
	DeviceID           string     `json:"device_id"`
	DeviceMAC          string     `json:"device_mac"`
	DeviceName         string     `json:"device_name"`
	Location           *string    `json:"location,omitempty"`
	ScheduleExpression *string    `json:"schedule_expression,omitempty"` // 5字段 cron 表达式
	LastWakeAt         *time.Time `json:"last_wake_at,omitempty"`
	IsActive           *bool      `json:"is_active,omitempty"`
	MissedWakes        *int       `json:"missed_wakes,omitempty"` // 外部预计算的错过次数（可选）
	CriticalRH         *float64   `json:"critical_rh,omitempty"`  // 霉菌风险预测用的临界相对湿度
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// DeviceWakeState 唤醒合规评估的输入（每次评估时临时构建，不持久化状态机）
type DeviceWakeState struct {
	LastWakeAt          *time.Time
	ScheduleExpression  *string
	ExplicitMissedCount *int
	IsActive            *bool
}

// WakeState 从设备记录构建评估输入
func (d *Device) WakeState() DeviceWakeState {
	return DeviceWakeState{
		LastWakeAt:          d.LastWakeAt,
		ScheduleExpression:  d.ScheduleExpression,
		ExplicitMissedCount: d.MissedWakes,
		IsActive:            d.IsActive,
	}
}

// WakeStatus 唤醒合规评估结果
type WakeStatus struct {
	Status         string   `json:"status"` // active / warning / inactive
	MissedCount    int      `json:"missed_count"`
	HoursSinceWake *float64 `json:"hours_since_wake,omitempty"`
	EvaluatedAt    int64    `json:"evaluated_at"` // Unix timestamp
}

// WakeEvent 观测到的一次设备唤醒（wake_events 表）
type WakeEvent struct {
	EventID        string    `json:"event_id"`
	DeviceID       string    `json:"device_id"`
	WakeAt         time.Time `json:"wake_at"`
	PendingImages  int       `json:"pending_images"`
	BatteryVoltage *float64  `json:"battery_voltage,omitempty"`
}
