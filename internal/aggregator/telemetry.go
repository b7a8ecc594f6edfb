package aggregator

import (
	"sort"
	"time"

	"brainly-monitor/internal/models"
)

// Level 聚合粒度
type Level string

const (
	LevelRaw    Level = "raw"
	Level5Min   Level = "5min"
	Level15Min  Level = "15min"
	LevelHourly Level = "hourly"
	LevelDaily  Level = "daily"
)

// bucketSizeMillis 粒度对应的桶宽（毫秒）
// 未知粒度退化为 hourly，与其他组件的保守降级策略一致
func bucketSizeMillis(level Level) int64 {
	switch level {
	case Level5Min:
		return 300000
	case Level15Min:
		return 900000
	case LevelHourly:
		return 3600000
	case LevelDaily:
		return 86400000
	default:
		return 3600000
	}
}

// Aggregate 将按时间顺序的多通道读数分组到固定宽度的时间桶并计算每桶每通道均值
// 桶边界按 epoch 对齐（floor(tsMs/size)*size），daily 桶不一定从本地午夜开始。
// level=raw 时每条读数原样输出为一个桶，不做平均。
// 通道只有在桶内至少有一个非空值时才出现在结果里，绝不用 0 或 null 占位。
// 空输入返回空结果，任何输入都不报错。
func Aggregate(readings []models.TelemetryReading, level Level) []models.AggregationBucket {
	if len(readings) == 0 {
		return []models.AggregationBucket{}
	}

	if level == LevelRaw {
		buckets := make([]models.AggregationBucket, 0, len(readings))
		for _, r := range readings {
			means := make(map[string]float64, len(r.Channels))
			for ch, v := range r.Channels {
				means[ch] = v
			}
			buckets = append(buckets, models.AggregationBucket{
				BucketStart: r.Timestamp,
				Means:       means,
			})
		}
		sort.SliceStable(buckets, func(i, j int) bool {
			return buckets[i].BucketStart.Before(buckets[j].BucketStart)
		})
		return buckets
	}

	size := bucketSizeMillis(level)

	type accumulator struct {
		sum   map[string]float64
		count map[string]int
	}

	groups := make(map[int64]*accumulator)
	for _, r := range readings {
		key := r.Timestamp.UnixMilli() / size * size
		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{
				sum:   make(map[string]float64),
				count: make(map[string]int),
			}
			groups[key] = acc
		}
		for ch, v := range r.Channels {
			acc.sum[ch] += v
			acc.count[ch]++
		}
	}

	keys := make([]int64, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	buckets := make([]models.AggregationBucket, 0, len(keys))
	for _, key := range keys {
		acc := groups[key]
		means := make(map[string]float64, len(acc.sum))
		for ch, sum := range acc.sum {
			means[ch] = sum / float64(acc.count[ch])
		}
		buckets = append(buckets, models.AggregationBucket{
			BucketStart: time.UnixMilli(key).UTC(),
			Means:       means,
		})
	}

	return buckets
}

// ExtractChannel 从读数序列中抽取单个通道的值序列（保持时间顺序）
// 无值的位置为 nil，供趋势分析过滤
func ExtractChannel(readings []models.TelemetryReading, channel string) []*float64 {
	values := make([]*float64, len(readings))
	for i, r := range readings {
		if v, ok := r.Channels[channel]; ok {
			value := v
			values[i] = &value
		}
	}
	return values
}
