package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/reliefbridge/fundledger/internal/allocations"
	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
	"github.com/reliefbridge/fundledger/pkg/logger"
)

const defaultStaleReleaseAfter = 7 * 24 * time.Hour

type releaseLister interface {
	ListReleaseRequests(ctx context.Context, filter allocations.ReleaseFilter) ([]models.ReleaseRequest, error)
}

type StaleReleaseJobParams struct {
	Logger   *logger.Logger
	Releases releaseLister
	After    time.Duration
}

// NewStaleReleaseJob reports release requests left pending longer than After.
// It never decides a request.
func NewStaleReleaseJob(params StaleReleaseJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Releases == nil {
		return nil, fmt.Errorf("release lister required")
	}
	after := params.After
	if after <= 0 {
		after = defaultStaleReleaseAfter
	}
	return &staleReleaseJob{
		logg:     params.Logger,
		releases: params.Releases,
		after:    after,
		now:      time.Now,
	}, nil
}

type staleReleaseJob struct {
	logg     *logger.Logger
	releases releaseLister
	after    time.Duration
	now      func() time.Time
}

func (j *staleReleaseJob) Name() string { return "stale-release-requests" }

func (j *staleReleaseJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.after)
	status := enums.ReleaseStatusPending
	stale, err := j.releases.ListReleaseRequests(ctx, allocations.ReleaseFilter{
		Status:        &status,
		CreatedBefore: &cutoff,
	})
	if err != nil {
		return fmt.Errorf("list stale releases: %w", err)
	}
	for _, req := range stale {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"release_id": req.ID.String(),
			"scope":      req.Scope,
			"target_id":  req.TargetID,
			"amount":     req.Amount.String(),
			"age_hours":  int(j.now().UTC().Sub(req.CreatedAt).Hours()),
		})
		j.logg.Warn(logCtx, "allocations.release_stale")
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff": cutoff,
		"stale":  len(stale),
	})
	j.logg.Info(logCtx, "allocations.stale_scan_complete")
	return nil
}
