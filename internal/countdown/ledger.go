package countdown

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"vibration-monitor/internal/models"

	"go.uber.org/zap"
)

// SnapshotStore 倒计时持久化接口，每次写入都是完整快照
type SnapshotStore interface {
	LoadDefaults(ctx context.Context) (map[string]int64, error)
	SaveDefaults(ctx context.Context, defaults map[string]int64) error
	LoadCountdowns(ctx context.Context) (map[string]models.CountdownRecord, error)
	SaveCountdowns(ctx context.Context, records map[string]models.CountdownRecord) error
}

// Ledger 设备倒计时账本
// 所有修改在同一把锁内完成“读-改-写-持久化”，持久化失败时回滚内存状态
type Ledger struct {
	mu            sync.RWMutex
	store         SnapshotStore
	globalDefault int64
	defaults      map[string]int64
	records       map[string]models.CountdownRecord
	logger        *zap.Logger
}

// NewLedger 从持久化快照加载账本
func NewLedger(ctx context.Context, store SnapshotStore, globalDefault int64, logger *zap.Logger) (*Ledger, error) {
	if globalDefault <= 0 {
		globalDefault = DefaultDuration
	}

	defaults, err := store.LoadDefaults(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load countdown defaults: %w", err)
	}
	records, err := store.LoadCountdowns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load countdowns: %w", err)
	}
	if defaults == nil {
		defaults = make(map[string]int64)
	}
	if records == nil {
		records = make(map[string]models.CountdownRecord)
	}

	logger.Info("Countdown ledger loaded",
		zap.Int("countdowns", len(records)),
		zap.Int("defaults", len(defaults)),
		zap.Int64("global_default_seconds", globalDefault),
	)

	return &Ledger{
		store:         store,
		globalDefault: globalDefault,
		defaults:      defaults,
		records:       records,
		logger:        logger,
	}, nil
}

// DefaultFor 设备配置的默认时长，未配置时返回全局默认
func (l *Ledger) DefaultFor(device string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.defaultForLocked(device)
}

func (l *Ledger) defaultForLocked(device string) int64 {
	if d, ok := l.defaults[device]; ok && d > 0 {
		return d
	}
	return l.globalDefault
}

// Record 返回设备记录
func (l *Ledger) Record(device string) (models.CountdownRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[device]
	return rec, ok
}

// Devices 已有倒计时记录的设备（排序）
func (l *Ledger) Devices() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]string, 0, len(l.records))
	for id := range l.records {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Ensure 设备没有记录时按默认时长创建（幂等），返回是否新建
func (l *Ledger) Ensure(ctx context.Context, device string, now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ensureLocked(ctx, device, now)
}

func (l *Ledger) ensureLocked(ctx context.Context, device string, now time.Time) (bool, error) {
	if _, ok := l.records[device]; ok {
		return false, nil
	}

	l.records[device] = models.CountdownRecord{
		EndTimestamp: models.UnixSeconds(now) + float64(l.defaultForLocked(device)),
	}
	if err := l.saveCountdownsLocked(ctx); err != nil {
		delete(l.records, device)
		return false, err
	}

	l.logger.Info("Countdown initialized",
		zap.String("device", device),
		zap.Int64("duration_seconds", l.defaultForLocked(device)),
	)
	return true, nil
}

// Get 查询剩余时间，记录不存在时先初始化
func (l *Ledger) Get(ctx context.Context, device string, ref time.Time) (models.CountdownStatus, error) {
	l.mu.Lock()
	if _, err := l.ensureLocked(ctx, device, ref); err != nil {
		l.mu.Unlock()
		return models.CountdownStatus{}, err
	}
	rec := l.records[device]
	l.mu.Unlock()

	return statusOf(device, rec, ref), nil
}

// Set 解析时长描述并重新开始倒计时，同时保存为该设备新的默认时长；返回生效的秒数
func (l *Ledger) Set(ctx context.Context, device, spec string, now time.Time) (int64, error) {
	seconds := ParseDuration(spec, l.globalDefault)

	l.mu.Lock()
	defer l.mu.Unlock()

	prevRec, hadRec := l.records[device]
	prevDefault, hadDefault := l.defaults[device]

	l.records[device] = models.CountdownRecord{EndTimestamp: models.UnixSeconds(now) + float64(seconds)}
	l.defaults[device] = seconds

	err := l.saveCountdownsLocked(ctx)
	if err == nil {
		err = l.saveDefaultsLocked(ctx)
	}
	if err != nil {
		restore(l.records, device, prevRec, hadRec)
		restore(l.defaults, device, prevDefault, hadDefault)
		// 快照已被部分写入时，用回滚后的状态再写一次
		if rbErr := l.saveCountdownsLocked(ctx); rbErr != nil {
			l.logger.Error("Failed to rewrite countdown snapshot after rollback", zap.String("device", device), zap.Error(rbErr))
		}
		return 0, err
	}

	l.logger.Info("Countdown set",
		zap.String("device", device),
		zap.String("spec", spec),
		zap.Int64("seconds", seconds),
	)
	return seconds, nil
}

// Reset 按设备默认时长（或全局默认）重新开始倒计时；返回生效的秒数
func (l *Ledger) Reset(ctx context.Context, device string, ref time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seconds := l.defaultForLocked(device)
	prev, had := l.records[device]
	l.records[device] = models.CountdownRecord{EndTimestamp: models.UnixSeconds(ref) + float64(seconds)}

	if err := l.saveCountdownsLocked(ctx); err != nil {
		restore(l.records, device, prev, had)
		return 0, err
	}

	l.logger.Info("Countdown reset", zap.String("device", device), zap.Int64("seconds", seconds))
	return seconds, nil
}

// DueForEvaluation 距上次惩罚是否已超过 EvaluationInterval
func (l *Ledger) DueForEvaluation(device string, ref time.Time) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return models.UnixSeconds(ref)-l.records[device].LastPenaltyCheck > EvaluationInterval
}

// ApplyPenalty 按剩余时间的比例缩短倒计时：end -= max(0, end-ref) * fraction。
// 间隔检查与修改在同一把锁内完成，返回修改前后的记录以及是否生效
func (l *Ledger) ApplyPenalty(ctx context.Context, device string, ref time.Time, fraction float64) (models.CountdownRecord, models.CountdownRecord, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if fraction <= 0 || math.IsNaN(fraction) {
		return models.CountdownRecord{}, models.CountdownRecord{}, false, nil
	}
	if _, err := l.ensureLocked(ctx, device, ref); err != nil {
		return models.CountdownRecord{}, models.CountdownRecord{}, false, err
	}

	before := l.records[device]
	refSec := models.UnixSeconds(ref)
	if refSec-before.LastPenaltyCheck <= EvaluationInterval {
		return before, before, false, nil
	}

	remaining := math.Max(0, before.EndTimestamp-refSec)
	after := models.CountdownRecord{
		EndTimestamp:     before.EndTimestamp - remaining*fraction,
		LastPenaltyCheck: refSec,
	}
	l.records[device] = after

	if err := l.saveCountdownsLocked(ctx); err != nil {
		l.records[device] = before
		return before, before, false, err
	}
	return before, after, true, nil
}

// Flush 将当前账本完整写入持久化存储（关闭服务时调用）
func (l *Ledger) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.saveDefaultsLocked(ctx); err != nil {
		return err
	}
	return l.saveCountdownsLocked(ctx)
}

func (l *Ledger) saveCountdownsLocked(ctx context.Context) error {
	snapshot := make(map[string]models.CountdownRecord, len(l.records))
	for k, v := range l.records {
		snapshot[k] = v
	}
	if err := l.store.SaveCountdowns(ctx, snapshot); err != nil {
		return fmt.Errorf("%w: save countdowns: %w", models.ErrPersistence, err)
	}
	return nil
}

func (l *Ledger) saveDefaultsLocked(ctx context.Context) error {
	snapshot := make(map[string]int64, len(l.defaults))
	for k, v := range l.defaults {
		snapshot[k] = v
	}
	if err := l.store.SaveDefaults(ctx, snapshot); err != nil {
		return fmt.Errorf("%w: save defaults: %w", models.ErrPersistence, err)
	}
	return nil
}

func restore[V any](m map[string]V, key string, prev V, had bool) {
	if had {
		m[key] = prev
	} else {
		delete(m, key)
	}
}

func statusOf(device string, rec models.CountdownRecord, ref time.Time) models.CountdownStatus {
	remaining := int64(rec.Remaining(ref))
	return models.CountdownStatus{
		Device:    device,
		Remaining: remaining,
		Pretty:    FormatDuration(remaining),
		EndsAt:    rec.End(),
	}
}
