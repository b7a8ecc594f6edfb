package aggregator

import (
	"math"
	"sort"

	"brainly-monitor/internal/models"
)

// DefaultTrendSensitivity 趋势分类灵敏度：|slope| 超过 stdDev 的该倍数才算有趋势
const DefaultTrendSensitivity = 0.1

// Summarize 计算单通道的描述统计和趋势分类（使用默认灵敏度）
// 输入按时间升序排列（由调用方保证，本函数不排序）
func Summarize(values []*float64) models.ChannelSummary {
	return SummarizeWithSensitivity(values, DefaultTrendSensitivity)
}

// SummarizeWithSensitivity 计算单通道的描述统计和趋势分类
// 空值被过滤掉（保持相对顺序）；全空输入返回全零的退化结果，trend=stable，不报错。
// 趋势斜率用过滤后的序号 0..n-1 作为自变量做最小二乘回归——
// 不是原始下标也不是真实时间差。空值造成的采样间隔不均会轻微扭曲斜率，
// 这是沿袭下来的有意简化，改用真实时间轴会改变分类行为，不要"修复"。
func SummarizeWithSensitivity(values []*float64, sensitivity float64) models.ChannelSummary {
	v := make([]float64, 0, len(values))
	for _, p := range values {
		if p != nil {
			v = append(v, *p)
		}
	}

	n := len(v)
	if n == 0 {
		return models.ChannelSummary{Trend: models.TrendStable}
	}

	var sum float64
	for _, x := range v {
		sum += x
	}
	mean := sum / float64(n)

	sorted := make([]float64, n)
	copy(sorted, v)
	sort.Float64s(sorted)

	var median float64
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		median = sorted[n/2]
	}

	// 总体方差（除数 n，不是 n-1）
	var variance float64
	for _, x := range v {
		d := x - mean
		variance += d * d
	}
	variance /= float64(n)
	stdDev := math.Sqrt(variance)

	slope := indexSlope(v, mean)

	trend := models.TrendStable
	if slope > stdDev*sensitivity {
		trend = models.TrendIncreasing
	} else if slope < -stdDev*sensitivity {
		trend = models.TrendDecreasing
	}

	return models.ChannelSummary{
		Mean:       mean,
		Median:     median,
		StdDev:     stdDev,
		Min:        sorted[0],
		Max:        sorted[n-1],
		Trend:      trend,
		TrendSlope: slope,
	}
}

// indexSlope 以序号 0..n-1 为自变量的最小二乘斜率
func indexSlope(v []float64, mean float64) float64 {
	n := len(v)
	if n < 2 {
		return 0
	}

	xMean := float64(n-1) / 2

	var num, den float64
	for i, y := range v {
		dx := float64(i) - xMean
		num += dx * (y - mean)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}
