package countdown

import (
	"context"
	"time"

	"vibration-monitor/internal/health"
	"vibration-monitor/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// ConfirmationCount 判定持续劣化所需的连续等级样本数
	ConfirmationCount = 3
	// EvaluationInterval 同一设备两次惩罚之间的最小间隔（秒）
	EvaluationInterval = float64(SecondsPerDay)
)

// PenaltyBand 严重程度对应的幅值区间与惩罚比例区间
type PenaltyBand struct {
	MinMagnitude float64
	MaxMagnitude float64
	MinPenalty   float64
	MaxPenalty   float64
}

// PenaltyBands 各严重程度的插值区间
var PenaltyBands = map[models.Severity]PenaltyBand{
	models.SeverityUnacceptable:   {MinMagnitude: 7.11, MaxMagnitude: 10.0, MinPenalty: 0.71, MaxPenalty: 0.90},
	models.SeverityUnsatisfactory: {MinMagnitude: 2.81, MaxMagnitude: 7.10, MinPenalty: 0.10, MaxPenalty: 0.70},
}

// HistoryReader 惩罚评估需要的历史读取接口
type HistoryReader interface {
	Window(device, field string, k int) []models.Value
	Latest(device, field string) (models.Value, bool)
}

// SustainedSeverity 最近 ConfirmationCount 个等级全部为 4 → unacceptable，全部为 3 → unsatisfactory
func SustainedSeverity(samples []models.Value) models.Severity {
	if len(samples) < ConfirmationCount {
		return models.SeverityNone
	}
	recent := samples[len(samples)-ConfirmationCount:]

	first := health.FromValue(recent[0])
	for _, v := range recent[1:] {
		if health.FromValue(v) != first {
			return models.SeverityNone
		}
	}
	switch first {
	case models.CategoryUnacceptable:
		return models.SeverityUnacceptable
	case models.CategoryUnsatisfactory:
		return models.SeverityUnsatisfactory
	default:
		return models.SeverityNone
	}
}

// PenaltyFraction 在严重程度对应区间内对幅值做线性插值，并夹紧到 [MinPenalty, MaxPenalty]
func PenaltyFraction(severity models.Severity, magnitude float64) float64 {
	band, ok := PenaltyBands[severity]
	if !ok {
		return 0
	}
	switch {
	case magnitude >= band.MaxMagnitude:
		return band.MaxPenalty
	case magnitude <= band.MinMagnitude:
		return band.MinPenalty
	}
	ratio := (magnitude - band.MinMagnitude) / (band.MaxMagnitude - band.MinMagnitude)
	return band.MinPenalty + ratio*(band.MaxPenalty-band.MinPenalty)
}

// PenaltyEngine 根据最近的等级历史缩短倒计时
type PenaltyEngine struct {
	history HistoryReader
	ledger  *Ledger
	logger  *zap.Logger
}

// NewPenaltyEngine 创建惩罚引擎
func NewPenaltyEngine(history HistoryReader, ledger *Ledger, logger *zap.Logger) *PenaltyEngine {
	return &PenaltyEngine{
		history: history,
		ledger:  ledger,
		logger:  logger,
	}
}

// Evaluate 在 ref 时刻评估设备；未生效时返回 nil 事件
func (e *PenaltyEngine) Evaluate(ctx context.Context, device string, ref time.Time) (*models.PenaltyEvent, error) {
	if !e.ledger.DueForEvaluation(device, ref) {
		return nil, nil
	}

	severity := SustainedSeverity(e.history.Window(device, models.FieldCategory, ConfirmationCount))
	if severity == models.SeverityNone {
		return nil, nil
	}

	latest, ok := e.history.Latest(device, models.FieldMagnitude)
	if !ok {
		e.logger.Debug("Sustained degradation without magnitude sample",
			zap.String("device", device),
			zap.String("severity", string(severity)),
		)
		return nil, nil
	}
	magnitude, ok := latest.Number()
	if !ok {
		return nil, nil
	}

	fraction := PenaltyFraction(severity, magnitude)
	if fraction <= 0 {
		return nil, nil
	}

	before, after, applied, err := e.ledger.ApplyPenalty(ctx, device, ref, fraction)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, nil
	}

	e.logger.Info("Countdown penalty applied",
		zap.String("device", device),
		zap.String("severity", string(severity)),
		zap.Float64("magnitude", magnitude),
		zap.Float64("fraction", fraction),
		zap.Time("old_end", before.End()),
		zap.Time("new_end", after.End()),
	)

	return &models.PenaltyEvent{
		EventID:       uuid.NewString(),
		Device:        device,
		Severity:      severity,
		Magnitude:     magnitude,
		Fraction:      fraction,
		OldEnd:        before.EndTimestamp,
		NewEnd:        after.EndTimestamp,
		ReferenceTime: ref,
	}, nil
}
