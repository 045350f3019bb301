// Package health 将振动幅值（RMS 速度）映射为健康等级。
package health

import "vibration-monitor/internal/models"

// 等级分界（mm/s）
const (
	GoodMin           = 0.28
	GoodMax           = 1.12
	SatisfactoryMax   = 2.80
	UnsatisfactoryMax = 7.10
)

// Classify [0.28,1.12]→1, (1.12,2.80]→2, (2.80,7.10]→3, (7.10,∞)→4，其余（含负数、NaN）→0
func Classify(magnitude float64) models.Category {
	switch {
	case magnitude >= GoodMin && magnitude <= GoodMax:
		return models.CategoryGood
	case magnitude > GoodMax && magnitude <= SatisfactoryMax:
		return models.CategorySatisfactory
	case magnitude > SatisfactoryMax && magnitude <= UnsatisfactoryMax:
		return models.CategoryUnsatisfactory
	case magnitude > UnsatisfactoryMax:
		return models.CategoryUnacceptable
	default:
		return models.CategoryBelowThreshold
	}
}

// FromValue 读取 kategori 字段；非整数或越界的值视为 0
func FromValue(v models.Value) models.Category {
	if v.Kind != models.KindInteger {
		return models.CategoryBelowThreshold
	}
	if v.Int < int64(models.CategoryBelowThreshold) || v.Int > int64(models.CategoryUnacceptable) {
		return models.CategoryBelowThreshold
	}
	return models.Category(v.Int)
}
