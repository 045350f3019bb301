package models

import (
	"encoding/json"
	"strconv"
)

// 约定的字段名（主题去掉设备前缀后，小写并以下划线连接）
const (
	FieldCategory  = "kategori"
	FieldTimestamp = "timestamp"
	FieldMagnitude = "rms"
)

// ValueKind 载荷值的类型标签
type ValueKind int

const (
	KindRaw ValueKind = iota
	KindInteger
	KindFloat
	KindTimestamp
)

func (k ValueKind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindTimestamp:
		return "timestamp"
	default:
		return "raw"
	}
}

// Value 遥测字段值（按字段名确定类型，解析失败时保留原始字符串）
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Text  string // Timestamp 和 Raw 使用
}

func IntegerValue(i int64) Value { return Value{Kind: KindInteger, Int: i} }

func FloatValue(f float64) Value { return Value{Kind: KindFloat, Float: f} }

func TimestampValue(s string) Value { return Value{Kind: KindTimestamp, Text: s} }

func RawValue(s string) Value { return Value{Kind: KindRaw, Text: s} }

// Number 返回数值形式；Timestamp 和 Raw 返回 false
func (v Value) Number() (float64, bool) {
	switch v.Kind {
	case KindInteger:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

// String 返回值的文本形式
func (v Value) String() string {
	switch v.Kind {
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	default:
		return v.Text
	}
}

// MarshalJSON 数值输出为 JSON number，其余输出为字符串
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindInteger:
		return json.Marshal(v.Int)
	case KindFloat:
		return json.Marshal(v.Float)
	default:
		return json.Marshal(v.Text)
	}
}
