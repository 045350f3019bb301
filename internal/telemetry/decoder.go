package telemetry

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"vibration-monitor/internal/models"

	"github.com/relvacode/iso8601"
)

// MinTopicSegments 主题最少段数：<Device>/<Group>/<Field...>
const MinTopicSegments = 3

// Message 解码后的遥测消息
type Message struct {
	Topic  string
	Device string // 前两段，如 "Pompa3/Vibration"
	Field  string // 剩余段小写后以 "_" 连接，如 "velocity_x"
	Value  models.Value
}

// Decode 解析主题并按字段名转换载荷
func Decode(topic string, payload []byte) (Message, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < MinTopicSegments {
		return Message{}, fmt.Errorf("%w: topic %q has %d segments", models.ErrMalformedMessage, topic, len(parts))
	}

	fieldParts := make([]string, 0, len(parts)-2)
	for _, p := range parts[2:] {
		fieldParts = append(fieldParts, strings.ToLower(p))
	}
	field := strings.Join(fieldParts, "_")

	return Message{
		Topic:  topic,
		Device: strings.Join(parts[:2], "/"),
		Field:  field,
		Value:  Coerce(field, string(payload)),
	}, nil
}

// Coerce 按字段名确定值类型，转换失败时保留原始字符串
func Coerce(field, raw string) models.Value {
	s := strings.TrimSpace(raw)
	switch field {
	case models.FieldCategory:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return models.IntegerValue(i)
		}
	case models.FieldTimestamp:
		return models.TimestampValue(raw)
	default:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return models.FloatValue(f)
		}
	}
	return models.RawValue(raw)
}

// ParseTimestamp 解析 ISO-8601 时间戳字段
func ParseTimestamp(v models.Value) (time.Time, bool) {
	if v.Kind != models.KindTimestamp {
		return time.Time{}, false
	}
	t, err := iso8601.ParseString(strings.TrimSpace(v.Text))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
