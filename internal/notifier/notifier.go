package notifier

import (
	"context"
	"errors"

	"vibration-monitor/internal/models"
)

// Notifier 惩罚事件下游通知
type Notifier interface {
	NotifyPenalty(ctx context.Context, evt *models.PenaltyEvent) error
}

// Multi 依次调用所有 Notifier，汇总错误
type Multi []Notifier

func (m Multi) NotifyPenalty(ctx context.Context, evt *models.PenaltyEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyPenalty(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop 丢弃事件
type Nop struct{}

func (Nop) NotifyPenalty(context.Context, *models.PenaltyEvent) error { return nil }
