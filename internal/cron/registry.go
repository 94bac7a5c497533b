package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job is one ledger maintenance task run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs in registration order, keyed by name.
type Registry struct {
	jobs  []Job
	index map[string]int
}

// NewRegistry registers jobs in order. Nil jobs are skipped; a repeated name
// is an error.
func NewRegistry(jobs ...Job) (*Registry, error) {
	registry := &Registry{index: make(map[string]int, len(jobs))}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register appends a job.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return fmt.Errorf("cron job name required")
	}
	if r.index == nil {
		r.index = make(map[string]int)
	}
	if _, dup := r.index[name]; dup {
		return fmt.Errorf("cron job %q registered twice", name)
	}
	r.index[name] = len(r.jobs)
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

// Names lists job names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.jobs))
	for i, job := range r.jobs {
		names[i] = job.Name()
	}
	return names
}

// Select narrows the registry to the named jobs, keeping registration order.
// An empty selection keeps every job.
func (r *Registry) Select(names ...string) (*Registry, error) {
	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := r.index[name]; !ok {
			return nil, fmt.Errorf("unknown cron job %q (have %s)", name, strings.Join(r.Names(), ", "))
		}
		wanted[name] = struct{}{}
	}
	if len(wanted) == 0 {
		return r, nil
	}
	out := &Registry{index: make(map[string]int, len(wanted))}
	for _, job := range r.jobs {
		if _, ok := wanted[job.Name()]; ok {
			if err := out.Register(job); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
