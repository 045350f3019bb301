package countdown

import (
	"context"
	"errors"
	"sync"

	"vibration-monitor/internal/models"
)

var errStoreDown = errors.New("store down")

// fakeSnapshotStore 内存快照存储（仅用于单元测试）
type fakeSnapshotStore struct {
	mu         sync.Mutex
	defaults   map[string]int64
	countdowns map[string]models.CountdownRecord
	saves      int
	failSaves  bool
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{
		defaults:   make(map[string]int64),
		countdowns: make(map[string]models.CountdownRecord),
	}
}

func (f *fakeSnapshotStore) LoadDefaults(ctx context.Context) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int64, len(f.defaults))
	for k, v := range f.defaults {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSnapshotStore) SaveDefaults(ctx context.Context, defaults map[string]int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSaves {
		return errStoreDown
	}
	f.saves++
	f.defaults = defaults
	return nil
}

func (f *fakeSnapshotStore) LoadCountdowns(ctx context.Context) (map[string]models.CountdownRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]models.CountdownRecord, len(f.countdowns))
	for k, v := range f.countdowns {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSnapshotStore) SaveCountdowns(ctx context.Context, records map[string]models.CountdownRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSaves {
		return errStoreDown
	}
	f.saves++
	f.countdowns = records
	return nil
}

func (f *fakeSnapshotStore) setFailing(fail bool) {
	f.mu.Lock()
	f.failSaves = fail
	f.mu.Unlock()
}
