package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/example/metabolic-ninja/api-go/internal/model"
)

// Memory keeps everything in process. It backs tests and single-process
// development runs.
type Memory struct {
	mu         sync.Mutex
	jobs       map[model.JobKey]model.JobRecord
	references map[model.ReferenceKind]map[string]model.ReferenceItem
}

func NewMemory() *Memory {
	return &Memory{
		jobs:       make(map[model.JobKey]model.JobRecord),
		references: make(map[model.ReferenceKind]map[string]model.ReferenceItem),
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) GetRecord(_ context.Context, key model.JobKey) (model.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.jobs[key]
	if !ok {
		return model.JobRecord{}, model.ErrNotFound
	}
	rec.Pathways = slices.Clone(rec.Pathways)
	if rec.Pathways == nil {
		rec.Pathways = []model.PathwayResult{}
	}
	return rec, nil
}

func (m *Memory) CreateRecord(_ context.Context, rec model.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[rec.Key]; ok {
		return model.ErrExists
	}
	rec.Pathways = slices.Clone(rec.Pathways)
	m.jobs[rec.Key] = rec
	return nil
}

func (m *Memory) AppendPathway(_ context.Context, key model.JobKey, runID string, result model.PathwayResult, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.jobs[key]
	if !ok || rec.RunID != runID {
		return model.ErrNotFound
	}
	rec.Pathways = append(rec.Pathways, result)
	rec.UpdatedAt = now.UTC()
	m.jobs[key] = rec
	return nil
}

func (m *Memory) SetReady(_ context.Context, key model.JobKey, runID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.jobs[key]
	if !ok || rec.RunID != runID {
		return model.ErrNotFound
	}
	rec.Ready = true
	rec.UpdatedAt = now.UTC()
	m.jobs[key] = rec
	return nil
}

func (m *Memory) DeleteRecord(_ context.Context, key model.JobKey, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.jobs[key]
	if !ok {
		return nil
	}
	if runID != "" && rec.RunID != runID {
		return nil
	}
	delete(m.jobs, key)
	return nil
}

func (m *Memory) IsAvailable(_ context.Context, key model.JobKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.references[model.KindUniversalModel][key.UniversalModelID]; !ok {
		return false, nil
	}
	if key.ModelID != key.UniversalModelID {
		if _, ok := m.references[model.KindModel][key.ModelID]; !ok {
			return false, nil
		}
	}
	if _, ok := m.references[model.KindCarbonSource][key.CarbonSourceID]; !ok {
		return false, nil
	}
	product, ok := m.references[model.KindProduct][key.ProductID]
	if !ok {
		return false, nil
	}
	return slices.Contains(product.UniversalModels, key.UniversalModelID), nil
}

func (m *Memory) UpsertReferences(_ context.Context, kind model.ReferenceKind, items []model.ReferenceItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.references[kind]
	if !ok {
		byID = make(map[string]model.ReferenceItem, len(items))
		m.references[kind] = byID
	}
	for _, item := range items {
		item.UniversalModels = slices.Clone(item.UniversalModels)
		byID[item.ID] = item
	}
	return nil
}

func (m *Memory) ListReferences(_ context.Context, kind model.ReferenceKind, universalModelID string) ([]model.ReferenceItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.ReferenceItem{}
	for _, item := range m.references[kind] {
		if universalModelID != "" && !slices.Contains(item.UniversalModels, universalModelID) {
			continue
		}
		item.UniversalModels = slices.Clone(item.UniversalModels)
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
