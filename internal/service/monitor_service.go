package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"vibration-monitor/internal/countdown"
	"vibration-monitor/internal/health"
	"vibration-monitor/internal/history"
	"vibration-monitor/internal/models"
	"vibration-monitor/internal/report"

	"go.uber.org/zap"
)

// DefaultOnlineWindow 设备在此时间内有数据即视为在线
const DefaultOnlineWindow = 10 * time.Second

// MonitorService 查询与命令接口（HTTP 层调用）
type MonitorService interface {
	// ListDevices 设备列表及在线状态（按白名单过滤）
	ListDevices(ctx context.Context) []DeviceStatus
	// Latest 设备各字段的最新值；ref 为设备序号或设备标识
	Latest(ctx context.Context, ref string) (*DeviceSnapshot, error)
	// LatestByIndex 按序号查询最新值，越界时回落到第 0 台设备
	LatestByIndex(ctx context.Context, index int) (*DeviceSnapshot, error)
	GetCountdown(ctx context.Context, ref string) (*models.CountdownStatus, error)
	SetCountdown(ctx context.Context, ref, spec string) (int64, error)
	ResetCountdown(ctx context.Context, ref string) (int64, error)
	// EndDate 倒计时结束日期（YYYY-MM-DD）
	EndDate(ctx context.Context, ref string) (string, error)
	// ExportCountdowns 全部设备倒计时 Excel 报表
	ExportCountdowns(ctx context.Context) ([]byte, error)
}

// DeviceStatus 设备列表项
type DeviceStatus struct {
	Name     string    `json:"name"`   // 主题第一段，如 "Pompa1"
	Device   string    `json:"device"` // 设备标识，如 "Pompa1/Vibration"
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
	Health   string    `json:"health,omitempty"`
}

// DeviceSnapshot 设备最新数据
type DeviceSnapshot struct {
	Device   string                  `json:"device"`
	Fields   map[string]models.Value `json:"fields"`
	LastSeen time.Time               `json:"last_seen"`
	Health   string                  `json:"health,omitempty"`
}

// monitorService MonitorService 实现
type monitorService struct {
	history      *history.Store
	ledger       *countdown.Ledger
	allowlist    map[string]struct{}
	onlineWindow time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// NewMonitorService 创建查询服务；allowlist 为空时展示全部设备
func NewMonitorService(
	store *history.Store,
	ledger *countdown.Ledger,
	allowlist []string,
	onlineWindow time.Duration,
	logger *zap.Logger,
) MonitorService {
	return newMonitorService(store, ledger, allowlist, onlineWindow, logger, time.Now)
}

func newMonitorService(
	store *history.Store,
	ledger *countdown.Ledger,
	allowlist []string,
	onlineWindow time.Duration,
	logger *zap.Logger,
	now func() time.Time,
) *monitorService {
	if onlineWindow <= 0 {
		onlineWindow = DefaultOnlineWindow
	}
	var allowed map[string]struct{}
	if len(allowlist) > 0 {
		allowed = make(map[string]struct{}, len(allowlist))
		for _, name := range allowlist {
			allowed[name] = struct{}{}
		}
	}
	return &monitorService{
		history:      store,
		ledger:       ledger,
		allowlist:    allowed,
		onlineWindow: onlineWindow,
		logger:       logger,
		now:          now,
	}
}

// knownDevices 有遥测或有倒计时记录的设备（排序），序号即在此列表中的下标
func (s *monitorService) knownDevices() []string {
	set := make(map[string]struct{})
	for _, d := range s.history.Devices() {
		set[d] = struct{}{}
	}
	for _, d := range s.ledger.Devices() {
		set[d] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// resolve 将序号或设备标识解析为设备标识
func (s *monitorService) resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	devices := s.knownDevices()

	if idx, err := strconv.Atoi(ref); err == nil {
		if idx < 0 || idx >= len(devices) {
			return "", fmt.Errorf("%w: index %d", models.ErrUnknownDevice, idx)
		}
		return devices[idx], nil
	}

	i := sort.SearchStrings(devices, ref)
	if ref == "" || i >= len(devices) || devices[i] != ref {
		return "", fmt.Errorf("%w: %q", models.ErrUnknownDevice, ref)
	}
	return ref, nil
}

func (s *monitorService) healthOf(device string) string {
	v, ok := s.history.Latest(device, models.FieldMagnitude)
	if !ok {
		return ""
	}
	m, ok := v.Number()
	if !ok {
		return ""
	}
	return health.Classify(m).String()
}

func (s *monitorService) ListDevices(ctx context.Context) []DeviceStatus {
	now := s.now()
	out := []DeviceStatus{}
	for _, device := range s.history.Devices() {
		name := strings.SplitN(device, "/", 2)[0]
		if s.allowlist != nil {
			if _, ok := s.allowlist[name]; !ok {
				continue
			}
		}
		seen, _ := s.history.LastSeen(device)
		out = append(out, DeviceStatus{
			Name:     name,
			Device:   device,
			Online:   now.Sub(seen) < s.onlineWindow,
			LastSeen: seen,
			Health:   s.healthOf(device),
		})
	}
	return out
}

func (s *monitorService) Latest(ctx context.Context, ref string) (*DeviceSnapshot, error) {
	device, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	return s.snapshot(device)
}

func (s *monitorService) LatestByIndex(ctx context.Context, index int) (*DeviceSnapshot, error) {
	devices := s.knownDevices()
	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: no devices online", models.ErrUnknownDevice)
	}
	if index < 0 || index >= len(devices) {
		index = 0
	}
	return s.snapshot(devices[index])
}

func (s *monitorService) snapshot(device string) (*DeviceSnapshot, error) {
	fields, seen, ok := s.history.Snapshot(device)
	if !ok {
		// 只有倒计时记录、尚无遥测
		fields = map[string]models.Value{}
	}
	return &DeviceSnapshot{
		Device:   device,
		Fields:   fields,
		LastSeen: seen,
		Health:   s.healthOf(device),
	}, nil
}

func (s *monitorService) GetCountdown(ctx context.Context, ref string) (*models.CountdownStatus, error) {
	device, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	status, err := s.ledger.Get(ctx, device, s.history.ReferenceTime(device, s.now()))
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (s *monitorService) SetCountdown(ctx context.Context, ref, spec string) (int64, error) {
	device, err := s.resolve(ref)
	if err != nil {
		return 0, err
	}
	return s.ledger.Set(ctx, device, spec, s.now())
}

func (s *monitorService) ResetCountdown(ctx context.Context, ref string) (int64, error) {
	device, err := s.resolve(ref)
	if err != nil {
		return 0, err
	}
	return s.ledger.Reset(ctx, device, s.history.ReferenceTime(device, s.now()))
}

func (s *monitorService) EndDate(ctx context.Context, ref string) (string, error) {
	status, err := s.GetCountdown(ctx, ref)
	if err != nil {
		return "", err
	}
	return status.EndsAt.Format("2006-01-02"), nil
}

func (s *monitorService) ExportCountdowns(ctx context.Context) ([]byte, error) {
	now := s.now()
	var rows []report.CountdownRow
	for _, device := range s.knownDevices() {
		ref := s.history.ReferenceTime(device, now)
		status, err := s.ledger.Get(ctx, device, ref)
		if err != nil {
			return nil, err
		}
		rec, _ := s.ledger.Record(device)
		seen, _ := s.history.LastSeen(device)

		row := report.CountdownRow{
			Device:          device,
			Online:          !seen.IsZero() && now.Sub(seen) < s.onlineWindow,
			Health:          s.healthOf(device),
			Remaining:       status.Remaining,
			Pretty:          status.Pretty,
			EndsAt:          status.EndsAt,
			DefaultDuration: countdown.FormatDuration(s.ledger.DefaultFor(device)),
			LastSeen:        seen,
		}
		if rec.LastPenaltyCheck > 0 {
			row.LastPenaltyCheck = models.FromUnixSeconds(rec.LastPenaltyCheck)
		}
		rows = append(rows, row)
	}

	data, err := report.GenerateCountdownReport(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to generate countdown report: %w", err)
	}
	s.logger.Info("Countdown report exported", zap.Int("devices", len(rows)))
	return data, nil
}
