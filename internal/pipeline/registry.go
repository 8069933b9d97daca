package pipeline

import (
	"sync"

	"github.com/anipipe/api/internal/model"
)

// Registry is the in-memory job store. It lives for the process lifetime;
// jobs are only removed by an explicit clear or delete. All reads return
// copies so callers never observe a record mid-mutation.
type Registry struct {
	mu    sync.RWMutex
	jobs  map[string]*model.Job
	order []string
}

func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*model.Job),
	}
}

// Add inserts a new job. An existing job with the same ID is replaced.
func (r *Registry) Add(job *model.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		r.order = append(r.order, job.ID)
	}
	r.jobs[job.ID] = job
}

// Get returns a snapshot copy of one job.
func (r *Registry) Get(id string) (model.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return model.Job{}, false
	}
	return *job, true
}

// All returns snapshot copies of every job in insertion order.
func (r *Registry) All() []model.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Job, 0, len(r.order))
	for _, id := range r.order {
		if job, ok := r.jobs[id]; ok {
			out = append(out, *job)
		}
	}
	return out
}

// Update applies fn to the stored job under the registry lock. The
// orchestrator is the only caller, so fn must not block.
func (r *Registry) Update(id string, fn func(*model.Job)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return false
	}
	fn(job)
	return true
}

// Delete removes one job.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return false
	}
	delete(r.jobs, id)
	for i, jid := range r.order {
		if jid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// DeleteWhere removes every job matching pred and returns the removed
// IDs, so callers can release per-job state for exactly the jobs that
// went in this pass.
func (r *Registry) DeleteWhere(pred func(*model.Job) bool) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []string
	kept := r.order[:0]
	for _, id := range r.order {
		job := r.jobs[id]
		if job != nil && pred(job) {
			delete(r.jobs, id)
			removed = append(removed, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return removed
}

// Len returns the number of stored jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
