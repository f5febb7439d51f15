package memory

import (
	"context"
	"sort"
	"sync"

	"survey-analytics-service/internal/domain"
)

// ExportJobRepository is an in-memory implementation of app.ExportJobRepository.
type ExportJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]domain.ExportJob
}

func NewExportJobRepository() *ExportJobRepository {
	return &ExportJobRepository{jobs: make(map[string]domain.ExportJob)}
}

func (r *ExportJobRepository) Create(_ context.Context, job domain.ExportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
	return nil
}

func (r *ExportJobRepository) Get(_ context.Context, jobID string) (domain.ExportJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ExportJob{}, domain.ErrExportNotFound
	}
	return job, nil
}

func (r *ExportJobRepository) ListByUser(_ context.Context, userID string) ([]domain.ExportJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.ExportJob{}
	for _, job := range r.jobs {
		if job.CreatedBy == userID {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *ExportJobRepository) Update(_ context.Context, job domain.ExportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return domain.ErrExportNotFound
	}
	r.jobs[job.ID] = job
	return nil
}
