package countdown

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/sosodev/duration"
)

// 时长单位（秒）
const (
	SecondsPerDay   int64 = 86400
	SecondsPerWeek  int64 = 7 * SecondsPerDay
	SecondsPerMonth int64 = 30 * SecondsPerDay
	SecondsPerYear  int64 = 365 * SecondsPerDay

	// DefaultDuration 全局默认倒计时：7 天
	DefaultDuration = 7 * SecondsPerDay
)

var durationToken = regexp.MustCompile(`(\d+)([dmy])`)

// ParseDuration 解析 "1y2m10d" 形式的时长（d=天, m=30天, y=365天，大小写不敏感，可重复累加），
// 以 "P" 开头时按 ISO-8601 时长解析。结果为 0 或无法解析时返回 def。
func ParseDuration(text string, def int64) int64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return def
	}
	if text[0] == 'P' || text[0] == 'p' {
		return parseISODuration(text, def)
	}

	var total int64
	for _, m := range durationToken.FindAllStringSubmatch(strings.ToLower(text), -1) {
		amount, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		var unit int64
		switch m[2] {
		case "d":
			unit = SecondsPerDay
		case "m":
			unit = SecondsPerMonth
		case "y":
			unit = SecondsPerYear
		}
		if amount > (math.MaxInt64-total)/unit {
			return def
		}
		total += amount * unit
	}
	if total <= 0 {
		return def
	}
	return total
}

func parseISODuration(text string, def int64) int64 {
	d, err := duration.Parse(strings.ToUpper(text))
	if err != nil || d.Negative {
		return def
	}
	secs := int64(d.ToTimeDuration().Seconds())
	if secs <= 0 {
		return def
	}
	return secs
}

// FormatDuration 将秒数格式化为 "1y 2mo 1w 3d"，只输出非零分量，0 输出 "0d"
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	units := []struct {
		size   int64
		suffix string
	}{
		{SecondsPerYear, "y"},
		{SecondsPerMonth, "mo"},
		{SecondsPerWeek, "w"},
		{SecondsPerDay, "d"},
	}

	var parts []string
	for _, u := range units {
		n := seconds / u.size
		seconds %= u.size
		if n > 0 {
			parts = append(parts, strconv.FormatInt(n, 10)+u.suffix)
		}
	}
	if len(parts) == 0 {
		return "0d"
	}
	return strings.Join(parts, " ")
}
