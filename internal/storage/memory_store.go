package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"catalog_gateway/internal/models"
)

// MemoryStore is an in-process OriginStore used for standalone runs and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	providers map[string]models.Provider
	models    map[string]models.Model
	pricing   map[uuid.UUID]models.PricingRecord
	history   []models.PricingHistoryEntry
	jobs      map[uuid.UUID]models.SyncJob
	nextHist  int64
	now       func() time.Time
}

// NewMemoryStore creates an empty in-memory origin store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		providers: make(map[string]models.Provider),
		models:    make(map[string]models.Model),
		pricing:   make(map[uuid.UUID]models.PricingRecord),
		jobs:      make(map[uuid.UUID]models.SyncJob),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Health always succeeds.
func (s *MemoryStore) Health(ctx context.Context) error {
	return ctx.Err()
}

// Providers

func (s *MemoryStore) ListEnabledProviders(ctx context.Context) ([]models.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (s *MemoryStore) GetProviderBySlug(ctx context.Context, slug string) (*models.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.providers[slug]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return &p, nil
}

func (s *MemoryStore) UpsertProvider(ctx context.Context, provider *models.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.providers[provider.Slug]; ok {
		provider.ID = existing.ID
		provider.CreatedAt = existing.CreatedAt
	} else {
		if provider.ID == uuid.Nil {
			provider.ID = uuid.New()
		}
		provider.CreatedAt = now
	}
	provider.UpdatedAt = now
	s.providers[provider.Slug] = *provider
	return nil
}

// Models

func (s *MemoryStore) withPricing(m models.Model) models.Model {
	m.Pricing = models.ModelPricing{}
	if rec, ok := s.pricing[m.ID]; ok {
		m.Pricing = models.ModelPricing{
			Known:          true,
			InputPerToken:  rec.PricePerInputToken,
			OutputPerToken: rec.PricePerOutputToken,
			RequestPrice:   rec.RequestPrice,
			ImagePrice:     rec.ImagePrice,
		}
	}
	return m
}

func sortModels(items []models.Model) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].ProviderSlug != items[j].ProviderSlug {
			return items[i].ProviderSlug < items[j].ProviderSlug
		}
		return items[i].ProviderModelID < items[j].ProviderModelID
	})
}

func (s *MemoryStore) ListModelsByProvider(ctx context.Context, providerSlug string) ([]models.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Model
	for _, m := range s.models {
		if m.ProviderSlug == providerSlug && m.IsActive {
			out = append(out, s.withPricing(m))
		}
	}
	sortModels(out)
	return out, nil
}

func (s *MemoryStore) ListActiveModels(ctx context.Context) ([]models.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Model
	for _, m := range s.models {
		if m.IsActive {
			out = append(out, s.withPricing(m))
		}
	}
	sortModels(out)
	return out, nil
}

func (s *MemoryStore) GetModelsByKeys(ctx context.Context, providerSlug string, providerModelIDs []string) ([]models.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Model
	for _, id := range providerModelIDs {
		if m, ok := s.models[models.ModelKey(providerSlug, id)]; ok {
			out = append(out, s.withPricing(m))
		}
	}
	sortModels(out)
	return out, nil
}

func (s *MemoryStore) UpsertModels(ctx context.Context, items []models.Model) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for i := range items {
		m := &items[i]
		key := m.Key()
		if existing, ok := s.models[key]; ok {
			m.ID = existing.ID
			m.CreatedAt = existing.CreatedAt
		} else {
			m.ID = uuid.New()
			m.CreatedAt = now
		}
		m.UpdatedAt = now

		stored := *m
		stored.Pricing = models.ModelPricing{}
		stored.AlternateProviders = nil
		s.models[key] = stored
	}
	return nil
}

func (s *MemoryStore) DeactivateModels(ctx context.Context, providerSlug string, providerModelIDs []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, id := range providerModelIDs {
		key := models.ModelKey(providerSlug, id)
		m, ok := s.models[key]
		if !ok || !m.IsActive {
			continue
		}
		m.IsActive = false
		m.UpdatedAt = s.now()
		s.models[key] = m
		n++
	}
	return n, nil
}

// Pricing

func (s *MemoryStore) GetCurrentPricing(ctx context.Context, modelID uuid.UUID) (*models.PricingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.pricing[modelID]
	if !ok {
		return nil, ErrPricingNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) GetCurrentPricingBatch(ctx context.Context, modelIDs []uuid.UUID) (map[uuid.UUID]models.PricingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[uuid.UUID]models.PricingRecord, len(modelIDs))
	for _, id := range modelIDs {
		if rec, ok := s.pricing[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

func (s *MemoryStore) FindFamilyPricing(ctx context.Context, familyKey, excludeProvider string) (*models.PricingRecord, error) {
	if familyKey == "" {
		return nil, ErrPricingNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best     *models.PricingRecord
		bestSlug string
	)
	for _, m := range s.models {
		if m.FamilyKey != familyKey || m.ProviderSlug == excludeProvider || !m.IsActive {
			continue
		}
		rec, ok := s.pricing[m.ID]
		if !ok {
			continue
		}
		if best == nil || rec.UpdatedAt.After(best.UpdatedAt) ||
			(rec.UpdatedAt.Equal(best.UpdatedAt) && m.ProviderSlug < bestSlug) {
			r := rec
			best, bestSlug = &r, m.ProviderSlug
		}
	}
	if best == nil {
		return nil, ErrPricingNotFound
	}
	return best, nil
}

func (s *MemoryStore) RecordPricingChange(ctx context.Context, record models.PricingRecord, changedBy string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, hasPrev := s.pricing[record.ModelID]
	if hasPrev && prev.SamePrices(record) {
		return false, nil
	}

	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = s.now()
	}
	if record.Source == "" {
		record.Source = models.PricingSourceDatabase
	}
	s.pricing[record.ModelID] = record

	s.nextHist++
	newIn, newOut := record.PricePerInputToken, record.PricePerOutputToken
	entry := models.PricingHistoryEntry{
		ID:             s.nextHist,
		ModelID:        record.ModelID,
		NewInputPrice:  &newIn,
		NewOutputPrice: &newOut,
		ChangedAt:      record.UpdatedAt,
		ChangedBy:      changedBy,
	}
	if hasPrev {
		in, out := prev.PricePerInputToken, prev.PricePerOutputToken
		entry.PreviousInputPrice = &in
		entry.PreviousOutputPrice = &out
	}
	s.history = append(s.history, entry)
	return true, nil
}

func (s *MemoryStore) ClearPricing(ctx context.Context, modelID uuid.UUID, changedBy string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.pricing[modelID]
	if !ok {
		return false, nil
	}
	delete(s.pricing, modelID)

	s.nextHist++
	in, out := prev.PricePerInputToken, prev.PricePerOutputToken
	s.history = append(s.history, models.PricingHistoryEntry{
		ID:                  s.nextHist,
		ModelID:             modelID,
		PreviousInputPrice:  &in,
		PreviousOutputPrice: &out,
		ChangedAt:           s.now(),
		ChangedBy:           changedBy,
	})
	return true, nil
}

func (s *MemoryStore) ListPricingHistory(ctx context.Context, modelID uuid.UUID) ([]models.PricingHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.PricingHistoryEntry
	for _, e := range s.history {
		if e.ModelID == modelID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Sync jobs

func (s *MemoryStore) CreateJob(ctx context.Context, job *models.SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = models.JobStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.now()
	}
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("failed to create sync job: duplicate id %s", job.ID)
	}
	if !job.Status.IsTerminal() {
		for _, j := range s.jobs {
			if j.Scope == job.Scope && !j.Status.IsTerminal() {
				return ErrActiveJobExists
			}
		}
	}
	s.jobs[job.ID] = *job
	return nil
}

func (s *MemoryStore) GetJob(ctx context.Context, id uuid.UUID) (*models.SyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &job, nil
}

func (s *MemoryStore) activeJobs() []models.SyncJob {
	var out []models.SyncJob
	for _, j := range s.jobs {
		if !j.Status.IsTerminal() {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out
}

func (s *MemoryStore) FindActiveJob(ctx context.Context, scope string) (*models.SyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, j := range s.activeJobs() {
		if j.Scope == scope {
			return &j, nil
		}
	}
	return nil, ErrJobNotFound
}

func (s *MemoryStore) ListActiveJobs(ctx context.Context) ([]models.SyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.activeJobs(), nil
}

func (s *MemoryStore) transition(id uuid.UUID, next models.JobStatus, apply func(*models.SyncJob)) error {
	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if !job.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	job.Status = next
	apply(&job)
	s.jobs[id] = job
	return nil
}

func (s *MemoryStore) MarkJobInProgress(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transition(id, models.JobStatusInProgress, func(j *models.SyncJob) {
		j.StartedAt = &at
	})
}

func (s *MemoryStore) UpdateJobProgress(ctx context.Context, id uuid.UUID, counts models.JobCounts) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status != models.JobStatusInProgress {
		return ErrInvalidTransition
	}
	job.JobCounts = counts
	s.jobs[id] = job
	return nil
}

func (s *MemoryStore) CompleteJob(ctx context.Context, id uuid.UUID, status models.JobStatus, counts models.JobCounts, errMsg *string, at time.Time) error {
	if !status.IsTerminal() {
		return fmt.Errorf("%w: %s is not terminal", ErrInvalidTransition, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transition(id, status, func(j *models.SyncJob) {
		j.CompletedAt = &at
		j.ErrorMessage = errMsg
		j.JobCounts = counts
	})
}

func (s *MemoryStore) FailStaleJobs(ctx context.Context, cutoff time.Time, reason string, at time.Time) ([]models.SyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var failed []models.SyncJob
	for _, j := range s.activeJobs() {
		if j.CompletedAt != nil {
			continue
		}
		last := j.CreatedAt
		if j.StartedAt != nil {
			last = *j.StartedAt
		}
		if !last.Before(cutoff) {
			continue
		}
		msg := reason
		err := s.transition(j.ID, models.JobStatusFailed, func(job *models.SyncJob) {
			job.CompletedAt = &at
			job.ErrorMessage = &msg
		})
		if err != nil {
			return failed, err
		}
		failed = append(failed, s.jobs[j.ID])
	}
	return failed, nil
}

var (
	_ OriginStore = (*MemoryStore)(nil)
	_ OriginStore = (*PostgresStore)(nil)
)
