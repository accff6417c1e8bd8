package storage

import (
	"context"
	"sort"
	"sync"

	"strategos/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	progress    map[string][]model.ProgressPoint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.progress = make(map[string][]model.ProgressPoint)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.RunID] = cloneRunRecord(run)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	return cloneRunRecord(run), true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, cloneRunRecord(run))
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC != runs[j].CreatedAtUTC {
			return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
		}
		return runs[i].RunID < runs[j].RunID
	})
	return runs, nil
}

func (s *MemoryStore) AppendProgress(_ context.Context, runID string, point model.ProgressPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.progress[runID] = append(s.progress[runID], point)
	return nil
}

func (s *MemoryStore) GetProgress(_ context.Context, runID string) ([]model.ProgressPoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points, ok := s.progress[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.ProgressPoint, len(points))
	copy(copied, points)
	return copied, true, nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil
	}
	s.runs = make(map[string]model.RunRecord)
	s.progress = make(map[string][]model.ProgressPoint)
	return nil
}

func cloneRunRecord(run model.RunRecord) model.RunRecord {
	out := run
	out.RegionMin = append([]float64(nil), run.RegionMin...)
	out.RegionMax = append([]float64(nil), run.RegionMax...)
	if run.TargetValue != nil {
		target := *run.TargetValue
		out.TargetValue = &target
	}
	if run.Frozen != nil {
		out.Frozen = make(map[int]float64, len(run.Frozen))
		for index, value := range run.Frozen {
			out.Frozen[index] = value
		}
	}
	return out
}
