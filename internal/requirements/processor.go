// Package requirements turns case and project workflow milestones into fund
// operations. Each milestone is a named requirement with one handler.
package requirements

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/reliefbridge/fundledger/internal/allocations"
	"github.com/reliefbridge/fundledger/internal/holds"
	"github.com/reliefbridge/fundledger/internal/ledger"
	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
	"github.com/reliefbridge/fundledger/pkg/logger"
)

// ID names a workflow requirement.
type ID string

const (
	// HoldBudget reserves the case or project amount on the officer's budget.
	HoldBudget ID = "hold_budget"
	// Approve commits the hold and, given allocation data, records the
	// allocation in the same transaction.
	Approve ID = "approve"
	// Reject returns held funds to the budget.
	Reject ID = "reject"
	// Allocate records an allocation for targets created without a hold.
	Allocate ID = "allocate"
	// RequestRelease asks to draw down part of the allocation.
	RequestRelease ID = "request_release"
)

// Request carries everything a handler may need. Which fields are required
// depends on the requirement.
type Request struct {
	Scope     enums.AllocationScope
	TargetID  string
	Actor     uuid.UUID
	BudgetID  uuid.UUID
	AccountID uuid.UUID
	Amount    decimal.Decimal
	Currency  string
	Category  *enums.Category
}

// Result reports what a handler changed. Fields are nil when untouched.
type Result struct {
	Requirement ID                     `json:"requirement"`
	Transaction *models.FundTransaction `json:"transaction,omitempty"`
	Allocation  *models.Allocation      `json:"allocation,omitempty"`
	Release     *models.ReleaseRequest  `json:"release,omitempty"`
}

// Handler runs one requirement.
type Handler func(ctx context.Context, req Request) (*Result, error)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Processor dispatches requirement ids to their handlers.
type Processor struct {
	handlers    map[ID]Handler
	holds       holds.Service
	allocations allocations.Service
	tx          txRunner
	recorder    *ledger.Recorder
	logg        *logger.Logger
}

func NewProcessor(holdSvc holds.Service, allocationSvc allocations.Service, tx txRunner, recorder *ledger.Recorder, logg *logger.Logger) (*Processor, error) {
	if holdSvc == nil {
		return nil, fmt.Errorf("holds service required")
	}
	if allocationSvc == nil {
		return nil, fmt.Errorf("allocations service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if recorder == nil {
		recorder = ledger.NewRecorder(logg, nil)
	}
	p := &Processor{holds: holdSvc, allocations: allocationSvc, tx: tx, recorder: recorder, logg: logg}
	p.handlers = map[ID]Handler{
		HoldBudget:     p.holdBudget,
		Approve:        p.approve,
		Reject:         p.reject,
		Allocate:       p.allocate,
		RequestRelease: p.requestRelease,
	}
	return p, nil
}

// Requirements lists the registered ids in sorted order.
func (p *Processor) Requirements() []ID {
	out := make([]ID, 0, len(p.handlers))
	for id := range p.handlers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (p *Processor) Process(ctx context.Context, id ID, req Request) (*Result, error) {
	handler, ok := p.handlers[ID(strings.ToLower(strings.TrimSpace(string(id))))]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown requirement %q", id)).
			WithDetails(map[string]any{"known": p.Requirements()})
	}
	result, err := handler(ctx, req)
	if err != nil {
		return nil, err
	}
	p.logg.Info(p.logg.WithFields(ctx, map[string]any{
		"requirement": result.Requirement,
		"scope":       req.Scope,
		"target_id":   req.TargetID,
	}), "requirements.processed")
	return result, nil
}

func (p *Processor) holdBudget(ctx context.Context, req Request) (*Result, error) {
	txn, err := p.holds.Hold(ctx, holds.HoldInput{
		BudgetID: req.BudgetID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Scope:    req.Scope,
		TargetID: req.TargetID,
		Category: req.Category,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Requirement: HoldBudget, Transaction: txn}, nil
}

// approve commits the hold and, when the request names a region account and
// an amount, records the allocation in the same transaction.
func (p *Processor) approve(ctx context.Context, req Request) (*Result, error) {
	allocate := req.AccountID != uuid.Nil && req.Amount.IsPositive()
	if allocate && req.Category == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category is required to record the allocation")
	}
	result := &Result{Requirement: Approve}
	err := p.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txn, err := p.holds.Settle(ctx, tx, req.Scope, req.TargetID, enums.TransactionStatusCompleted)
		if err != nil {
			return err
		}
		result.Transaction = txn
		if !allocate {
			return nil
		}
		allocation, err := p.allocations.AllocateTx(ctx, tx, allocations.AllocateInput{
			Scope:     req.Scope,
			TargetID:  req.TargetID,
			AccountID: req.AccountID,
			Amount:    req.Amount,
			Category:  *req.Category,
			Actor:     actorPtr(req.Actor),
		})
		if err != nil {
			return err
		}
		result.Allocation = allocation
		return nil
	})
	if err != nil {
		p.recorder.Record(ctx, "commit_hold", err)
		return nil, err
	}
	if result.Transaction != nil {
		p.recorder.Record(ctx, "commit_hold", nil, result.Transaction)
	}
	return result, nil
}

func (p *Processor) reject(ctx context.Context, req Request) (*Result, error) {
	txn, err := p.holds.Reverse(ctx, req.Scope, req.TargetID)
	if err != nil {
		return nil, err
	}
	return &Result{Requirement: Reject, Transaction: txn}, nil
}

func (p *Processor) allocate(ctx context.Context, req Request) (*Result, error) {
	if req.Category == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category is required")
	}
	allocation, err := p.allocations.Allocate(ctx, allocations.AllocateInput{
		Scope:     req.Scope,
		TargetID:  req.TargetID,
		AccountID: req.AccountID,
		Amount:    req.Amount,
		Category:  *req.Category,
		Actor:     actorPtr(req.Actor),
	})
	if err != nil {
		return nil, err
	}
	return &Result{Requirement: Allocate, Allocation: allocation}, nil
}

func (p *Processor) requestRelease(ctx context.Context, req Request) (*Result, error) {
	release, err := p.allocations.RequestRelease(ctx, allocations.ReleaseInput{
		Scope:       req.Scope,
		TargetID:    req.TargetID,
		Amount:      req.Amount,
		RequestedBy: req.Actor,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Requirement: RequestRelease, Release: release}, nil
}

func actorPtr(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
