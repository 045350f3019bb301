package history

import (
	"sort"
	"sync"
	"time"

	"vibration-monitor/internal/models"
	"vibration-monitor/internal/telemetry"
)

// DefaultCapacity 每个字段保留的最近样本数
const DefaultCapacity = 20

type deviceHistory struct {
	fields   map[string][]models.Value
	lastSeen time.Time
}

// Store 按设备、字段保存最近 N 个样本
// 写入只来自摄取协程；查询持有读锁，允许读到跨字段不一致的快照
type Store struct {
	mu       sync.RWMutex
	capacity int
	devices  map[string]*deviceHistory
}

// NewStore 创建历史存储，capacity <= 0 时使用默认值 20
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		devices:  make(map[string]*deviceHistory),
	}
}

// Append 追加样本并刷新 last_seen；返回该设备是否第一次出现
func (s *Store) Append(device, field string, v models.Value, seenAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[device]
	if !ok {
		d = &deviceHistory{fields: make(map[string][]models.Value)}
		s.devices[device] = d
	}
	d.lastSeen = seenAt

	seq := d.fields[field]
	if len(seq) < s.capacity {
		seq = append(seq, v)
	} else {
		copy(seq, seq[1:])
		seq[len(seq)-1] = v
	}
	d.fields[field] = seq

	return !ok
}

// Latest 返回字段最新值
func (s *Store) Latest(device, field string) (models.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[device]
	if !ok {
		return models.Value{}, false
	}
	seq := d.fields[field]
	if len(seq) == 0 {
		return models.Value{}, false
	}
	return seq[len(seq)-1], true
}

// Window 返回最近 k 个值（按到达顺序），不足时返回已有的全部
func (s *Store) Window(device, field string, k int) []models.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[device]
	if !ok || k <= 0 {
		return nil
	}
	seq := d.fields[field]
	if k > len(seq) {
		k = len(seq)
	}
	out := make([]models.Value, k)
	copy(out, seq[len(seq)-k:])
	return out
}

// LastSeen 设备最后一次收到消息的时间
func (s *Store) LastSeen(device string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[device]
	if !ok {
		return time.Time{}, false
	}
	return d.lastSeen, true
}

// Has 设备是否出现过
func (s *Store) Has(device string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.devices[device]
	return ok
}

// Devices 返回排序后的设备列表
func (s *Store) Devices() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.devices))
	for id := range s.devices {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Snapshot 返回每个字段的最新值
func (s *Store) Snapshot(device string) (map[string]models.Value, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[device]
	if !ok {
		return nil, time.Time{}, false
	}
	latest := make(map[string]models.Value, len(d.fields))
	for field, seq := range d.fields {
		if len(seq) > 0 {
			latest[field] = seq[len(seq)-1]
		}
	}
	return latest, d.lastSeen, true
}

// ReferenceTime 惩罚评估与倒计时查询使用的参考时间：
// 设备上报的 timestamp 字段可解析时使用它，否则使用 wall
func (s *Store) ReferenceTime(device string, wall time.Time) time.Time {
	v, ok := s.Latest(device, models.FieldTimestamp)
	if !ok {
		return wall
	}
	if t, ok := telemetry.ParseTimestamp(v); ok {
		return t
	}
	return wall
}
