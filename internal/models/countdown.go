package models

import (
	"math"
	"time"
)

// CountdownRecord 设备维护倒计时记录（unix 秒，保留小数）
type CountdownRecord struct {
	EndTimestamp     float64 `json:"end_timestamp"`
	LastPenaltyCheck float64 `json:"last_penalty_check"`
}

// Remaining 剩余秒数，不会小于 0
func (r CountdownRecord) Remaining(now time.Time) float64 {
	return math.Max(0, r.EndTimestamp-UnixSeconds(now))
}

// End 倒计时结束时间
func (r CountdownRecord) End() time.Time {
	return FromUnixSeconds(r.EndTimestamp)
}

// UnixSeconds 转换为带小数的 unix 秒
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// FromUnixSeconds 从带小数的 unix 秒还原时间
func FromUnixSeconds(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// CountdownStatus 倒计时查询结果
type CountdownStatus struct {
	Device    string    `json:"device"`
	Remaining int64     `json:"remaining"`
	Pretty    string    `json:"pretty"`
	EndsAt    time.Time `json:"ends_at"`
}

// Severity 持续劣化的严重程度
type Severity string

const (
	SeverityNone           Severity = ""
	SeverityUnsatisfactory Severity = "unsatisfactory"
	SeverityUnacceptable   Severity = "unacceptable"
)

// PenaltyEvent 一次惩罚生效后的事件
type PenaltyEvent struct {
	EventID       string    `json:"event_id"`
	Device        string    `json:"device"`
	Severity      Severity  `json:"severity"`
	Magnitude     float64   `json:"magnitude"`
	Fraction      float64   `json:"fraction"`
	OldEnd        float64   `json:"old_end"`
	NewEnd        float64   `json:"new_end"`
	ReferenceTime time.Time `json:"reference_time"`
}
