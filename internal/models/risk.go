package models

// RiskPoint 单个时间点的风险预测值
type RiskPoint struct {
	Index float64 `json:"index"` // 连续风险指数，文档范围 0.0–6.0
	Level string  `json:"level"` // 分级标签（单调有序）
}

// RiskForecast 外部霉菌生长风险预测模型的输出
// 模型内部不可见，这里只消费其结果：当前指数/分级 + 24/48/72小时预测
type RiskForecast struct {
	Current RiskPoint `json:"current"`
	H24     RiskPoint `json:"h24"`
	H48     RiskPoint `json:"h48"`
	H72     RiskPoint `json:"h72"`
}

// riskLevelRanks 分级标签的单调顺序（用于升级比较）
var riskLevelRanks = map[string]int{
	"none":     0,
	"low":      1,
	"moderate": 2,
	"high":     3,
	"critical": 4,
}

// RiskLevelRank 返回风险分级的序号，未知分级返回 -1
// 分级量表是单调有序的，序号只用于比较是否升级，不用于计算
func RiskLevelRank(level string) int {
	if rank, ok := riskLevelRanks[level]; ok {
		return rank
	}
	return -1
}

// RiskEscalates 判断预测分级相对当前分级是否升级
// 任一分级未知时返回 false（不做猜测）
func RiskEscalates(current, forecast string) bool {
	cur := RiskLevelRank(current)
	fut := RiskLevelRank(forecast)
	if cur < 0 || fut < 0 {
		return false
	}
	return fut > cur
}
