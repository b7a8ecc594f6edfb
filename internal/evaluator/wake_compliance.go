package evaluator

import (
	"math"
	"time"

	"brainly-monitor/internal/models"
	"brainly-monitor/internal/schedule"
)

// Thresholds 唤醒合规判定阈值（可按部署调优，见 config.Monitor）
type Thresholds struct {
	InactiveAfterHours float64 // 超过该小时数未唤醒判定为 inactive
	WarnMissedOver     int     // 错过次数超过该值判定为 warning
}

// DefaultThresholds 默认阈值：48小时未唤醒为 inactive，错过 >1 次为 warning
func DefaultThresholds() Thresholds {
	return Thresholds{
		InactiveAfterHours: 48,
		WarnMissedOver:     1,
	}
}

// Evaluate 评估设备唤醒合规状态
// 纯函数：只依赖输入和调用方注入的当前时间，不读环境时钟、无副作用，
// 每次评估都从原始字段重新计算，不维护任何状态机。
// 规则按顺序评估：
//  1. is_active 显式为 false → inactive
//  2. 无最近唤醒时间 → inactive
//  3. 距上次唤醒 >= InactiveAfterHours → inactive
//  4. 错过次数 > WarnMissedOver → warning
//  5. 其余 → active
func Evaluate(state models.DeviceWakeState, now time.Time, th Thresholds) models.WakeStatus {
	// 显式停用的设备直接判定为 inactive
	if state.IsActive != nil && !*state.IsActive {
		return models.WakeStatus{
			Status:      models.WakeStatusInactive,
			MissedCount: 0,
			EvaluatedAt: now.Unix(),
		}
	}

	// 从未观测到唤醒
	if state.LastWakeAt == nil {
		return models.WakeStatus{
			Status:      models.WakeStatusInactive,
			MissedCount: 0,
			EvaluatedAt: now.Unix(),
		}
	}

	hoursSinceWake := float64(now.Sub(*state.LastWakeAt).Milliseconds()) / 3600000.0

	// 外部预计算的错过次数优先，否则按调度推断
	var missedCount int
	if state.ExplicitMissedCount != nil {
		missedCount = *state.ExplicitMissedCount
	} else {
		missedCount = CalculateMissedWakes(state.ScheduleExpression, state.LastWakeAt, now)
	}
	if missedCount < 0 {
		missedCount = 0
	}

	status := models.WakeStatusActive
	if hoursSinceWake >= th.InactiveAfterHours {
		status = models.WakeStatusInactive
	} else if missedCount > th.WarnMissedOver {
		status = models.WakeStatusWarning
	}

	return models.WakeStatus{
		Status:         status,
		MissedCount:    missedCount,
		HoursSinceWake: &hoursSinceWake,
		EvaluatedAt:    now.Unix(),
	}
}

// CalculateMissedWakes 按调度间隔推断错过的唤醒次数
// 计数不包含"已到期但尚未超期"的那次唤醒，因此减 1 后取非负。
func CalculateMissedWakes(scheduleExpr *string, lastWakeAt *time.Time, now time.Time) int {
	if scheduleExpr == nil || lastWakeAt == nil {
		return 0
	}

	elapsedMinutes := float64(now.Sub(*lastWakeAt).Milliseconds()) / 60000.0
	if elapsedMinutes <= 0 {
		return 0
	}

	interval := schedule.InferIntervalMinutes(*scheduleExpr)

	missed := int(math.Floor(elapsedMinutes/interval)) - 1
	if missed < 0 {
		return 0
	}
	return missed
}
