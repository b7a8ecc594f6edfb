package schedule

import (
	"regexp"
	"strings"
)

// DefaultIntervalMinutes 无法解析时的保守默认间隔（每天一次）
const DefaultIntervalMinutes = 1440

var (
	stepPattern  = regexp.MustCompile(`^\*/(\d+)$`)
	plainPattern = regexp.MustCompile(`^\d+$`)
)

// InferIntervalMinutes 从 5 字段 cron 表达式推断期望唤醒间隔（分钟）
// 只解释分钟和小时字段，日/月/星期字段接受但忽略：
// 限定了星期的调度会被按分钟/小时形态归类出偏短的间隔，这是既有行为，保持不变。
// 规则按优先级匹配，首个命中即返回；任何无法归类的输入都退化为 1440（每天一次），
// 绝不报错。分数结果（如每小时 3 次 → 20）原样返回，不做舍入。
func InferIntervalMinutes(expr string) float64 {
	fields := strings.Fields(expr)
	if len(fields) < 2 {
		return DefaultIntervalMinutes
	}

	minute := fields[0]
	hour := fields[1]

	// 规则1：分钟字段 */N → 每 N 分钟
	if n, ok := parseStep(minute); ok {
		if n > 0 && n <= 60 {
			return float64(n)
		}
		return 60
	}

	// 规则2：分钟逗号列表且小时为 * → 每小时 count 次
	if strings.Contains(minute, ",") && hour == "*" {
		count := len(strings.Split(minute, ","))
		if count > 1 {
			return 60 / float64(count)
		}
		return 60
	}

	// 规则3：小时字段 */N → 每 N 小时
	if n, ok := parseStep(hour); ok {
		if n > 0 && n <= 24 {
			return float64(n * 60)
		}
		return 1440
	}

	// 规则4：小时逗号列表 → 每天 count 次
	if strings.Contains(hour, ",") {
		count := len(strings.Split(hour, ","))
		if count > 1 {
			return 1440 / float64(count)
		}
		return 1440
	}

	// 规则5：小时为 * 且分钟为普通数字 → 每小时一次
	if hour == "*" && plainPattern.MatchString(minute) {
		return 60
	}

	// 规则6：分钟和小时都是普通数字 → 每天一次
	if plainPattern.MatchString(minute) && plainPattern.MatchString(hour) {
		return 1440
	}

	// 规则7：分钟和小时都是 * → 每分钟一次
	if minute == "*" && hour == "*" {
		return 1
	}

	return DefaultIntervalMinutes
}

// parseStep 解析 */N 形式的步进字段
func parseStep(field string) (int, bool) {
	m := stepPattern.FindStringSubmatch(field)
	if m == nil {
		return 0, false
	}
	n := 0
	for _, ch := range m[1] {
		n = n*10 + int(ch-'0')
	}
	return n, true
}
