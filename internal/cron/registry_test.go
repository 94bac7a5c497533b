package cron

import (
	"context"
	"strings"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	reconcile := &stubJob{name: "ledger-reconcile"}
	stale := &stubJob{name: "stale-release-requests"}
	registry, err := NewRegistry(reconcile, nil, stale)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 || jobs[0] != reconcile || jobs[1] != stale {
		t.Fatalf("unexpected jobs %v", registry.Names())
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	if _, err := NewRegistry(&stubJob{name: "ledger-reconcile"}, &stubJob{name: "ledger-reconcile"}); err == nil {
		t.Fatalf("expected duplicate name error")
	}
	registry, err := NewRegistry()
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if err := registry.Register(&stubJob{name: " "}); err == nil {
		t.Fatalf("expected blank name error")
	}
}

func TestRegistrySelect(t *testing.T) {
	registry, err := NewRegistry(&stubJob{name: "ledger-reconcile"}, &stubJob{name: "stale-release-requests"})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	all, err := registry.Select()
	if err != nil || len(all.Jobs()) != 2 {
		t.Fatalf("empty selection should keep every job: %v %v", all, err)
	}

	only, err := registry.Select("stale-release-requests", " ")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if names := only.Names(); len(names) != 1 || names[0] != "stale-release-requests" {
		t.Fatalf("unexpected selection %v", names)
	}

	_, err = registry.Select("order-ttl")
	if err == nil || !strings.Contains(err.Error(), "ledger-reconcile") {
		t.Fatalf("expected unknown job error listing known jobs, got %v", err)
	}
}
