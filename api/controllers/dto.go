package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/reliefbridge/fundledger/internal/allocations"
	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
)

type accountResponse struct {
	ID            uuid.UUID         `json:"id"`
	Kind          enums.AccountKind `json:"kind"`
	Name          string            `json:"name"`
	OwnerRef      *string           `json:"owner_ref,omitempty"`
	ParentID      *uuid.UUID        `json:"parent_id,omitempty"`
	Currency      string            `json:"currency"`
	TotalFund     decimal.Decimal   `json:"total_fund"`
	UsedFund      decimal.Decimal   `json:"used_fund"`
	OnHoldFund    decimal.Decimal   `json:"on_hold_fund"`
	AvailableFund decimal.Decimal   `json:"available_fund"`
	Version       int64             `json:"version"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func accountResponseFromModel(m *models.LedgerAccount) *accountResponse {
	if m == nil {
		return nil
	}
	return &accountResponse{
		ID:            m.ID,
		Kind:          m.Kind,
		Name:          m.Name,
		OwnerRef:      m.OwnerRef,
		ParentID:      m.ParentID,
		Currency:      m.Currency,
		TotalFund:     m.TotalFund,
		UsedFund:      m.UsedFund,
		OnHoldFund:    m.OnHoldFund,
		AvailableFund: m.AvailableFund,
		Version:       m.Version,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

type transactionResponse struct {
	ID              uuid.UUID                `json:"id"`
	AccountID       uuid.UUID                `json:"account_id"`
	Currency        string                   `json:"currency"`
	Amount          decimal.Decimal          `json:"amount"`
	BaseAmount      decimal.Decimal          `json:"base_amount"`
	Type            enums.TransactionType    `json:"type"`
	Subtype         enums.TransactionSubtype `json:"subtype"`
	Status          enums.TransactionStatus  `json:"status"`
	Category        *enums.Category          `json:"category,omitempty"`
	TargetType      *enums.TargetType        `json:"target_type,omitempty"`
	TargetID        *string                  `json:"target_id,omitempty"`
	PaymentSequence *int                     `json:"payment_sequence,omitempty"`
	Note            *string                  `json:"note,omitempty"`
	SettledAt       *time.Time               `json:"settled_at,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
}

func transactionResponseFromModel(m *models.FundTransaction) *transactionResponse {
	if m == nil {
		return nil
	}
	return &transactionResponse{
		ID:              m.ID,
		AccountID:       m.AccountID,
		Currency:        m.Currency,
		Amount:          m.Amount,
		BaseAmount:      m.BaseAmount,
		Type:            m.Type,
		Subtype:         m.Subtype,
		Status:          m.Status,
		Category:        m.Category,
		TargetType:      m.TargetType,
		TargetID:        m.TargetID,
		PaymentSequence: m.PaymentSequence,
		Note:            m.Note,
		SettledAt:       m.SettledAt,
		CreatedAt:       m.CreatedAt,
	}
}

type currencyResponse struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Rate        decimal.Decimal `json:"rate"`
	IsBase      bool            `json:"is_base"`
	LastUpdated time.Time       `json:"last_updated"`
}

func currencyResponseFromModel(m *models.Currency) *currencyResponse {
	if m == nil {
		return nil
	}
	return &currencyResponse{
		Code:        m.Code,
		Name:        m.Name,
		Rate:        m.Rate,
		IsBase:      m.IsBase,
		LastUpdated: m.LastUpdated,
	}
}

type allocationResponse struct {
	ID             uuid.UUID             `json:"id"`
	Scope          enums.AllocationScope `json:"scope"`
	TargetID       string                `json:"target_id"`
	AccountID      uuid.UUID             `json:"account_id"`
	Category       enums.Category        `json:"category"`
	InitialAmount  decimal.Decimal       `json:"initial_amount"`
	FundsAllocated decimal.Decimal       `json:"funds_allocated"`
	CreatedBy      *uuid.UUID            `json:"created_by,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

func allocationResponseFromModel(m *models.Allocation) *allocationResponse {
	if m == nil {
		return nil
	}
	return &allocationResponse{
		ID:             m.ID,
		Scope:          m.Scope,
		TargetID:       m.TargetID,
		AccountID:      m.AccountID,
		Category:       m.Category,
		InitialAmount:  m.InitialAmount,
		FundsAllocated: m.FundsAllocated,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

type allocationViewResponse struct {
	State      allocations.State   `json:"state"`
	Allocation *allocationResponse `json:"allocation,omitempty"`
	Released   decimal.Decimal     `json:"released"`
}

func allocationViewResponseFrom(v *allocations.View) allocationViewResponse {
	return allocationViewResponse{
		State:      v.State,
		Allocation: allocationResponseFromModel(v.Allocation),
		Released:   v.Released,
	}
}

type releaseResponse struct {
	ID           uuid.UUID             `json:"id"`
	AllocationID uuid.UUID             `json:"allocation_id"`
	Scope        enums.AllocationScope `json:"scope"`
	TargetID     string                `json:"target_id"`
	Amount       decimal.Decimal       `json:"amount"`
	RequestedBy  uuid.UUID             `json:"requested_by"`
	Status       enums.ReleaseStatus   `json:"status"`
	Approved     bool                  `json:"approved"`
	ApprovedAt   *time.Time            `json:"approved_at,omitempty"`
	DecidedBy    *uuid.UUID            `json:"decided_by,omitempty"`
	DecidedAt    *time.Time            `json:"decided_at,omitempty"`
	Reason       *string               `json:"reason,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}

func releaseResponseFromModel(m *models.ReleaseRequest) *releaseResponse {
	if m == nil {
		return nil
	}
	return &releaseResponse{
		ID:           m.ID,
		AllocationID: m.AllocationID,
		Scope:        m.Scope,
		TargetID:     m.TargetID,
		Amount:       m.Amount,
		RequestedBy:  m.RequestedBy,
		Status:       m.Status,
		Approved:     m.Approved,
		ApprovedAt:   m.ApprovedAt,
		DecidedBy:    m.DecidedBy,
		DecidedAt:    m.DecidedAt,
		Reason:       m.Reason,
		CreatedAt:    m.CreatedAt,
	}
}

type transferResponse struct {
	ID            uuid.UUID           `json:"id"`
	FromAccountID uuid.UUID           `json:"from_account_id"`
	ToAccountID   uuid.UUID           `json:"to_account_id"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      string              `json:"currency"`
	Notes         *string             `json:"notes,omitempty"`
	RequestedBy   uuid.UUID           `json:"requested_by"`
	Stage         enums.TransferStage `json:"stage"`
	ApprovedBy    *uuid.UUID          `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time          `json:"approved_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func transferResponseFromModel(m *models.TransferRequest) *transferResponse {
	if m == nil {
		return nil
	}
	return &transferResponse{
		ID:            m.ID,
		FromAccountID: m.FromAccountID,
		ToAccountID:   m.ToAccountID,
		Amount:        m.Amount,
		Currency:      m.Currency,
		Notes:         m.Notes,
		RequestedBy:   m.RequestedBy,
		Stage:         m.Stage,
		ApprovedBy:    m.ApprovedBy,
		ApprovedAt:    m.ApprovedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

type paymentResponse struct {
	ID         uuid.UUID           `json:"id"`
	FundID     uuid.UUID           `json:"fund_id"`
	Amount     decimal.Decimal     `json:"amount"`
	Currency   string              `json:"currency"`
	Payee      string              `json:"payee"`
	Method     enums.PaymentMethod `json:"method"`
	Notes      *string             `json:"notes,omitempty"`
	Category   *enums.Category     `json:"category,omitempty"`
	TargetType *enums.TargetType   `json:"target_type,omitempty"`
	TargetID   *string             `json:"target_id,omitempty"`
	Sequence   *int                `json:"sequence,omitempty"`
	RecordedBy uuid.UUID           `json:"recorded_by"`
	CreatedAt  time.Time           `json:"created_at"`
}

func paymentResponseFromModel(m *models.Payment) *paymentResponse {
	if m == nil {
		return nil
	}
	return &paymentResponse{
		ID:         m.ID,
		FundID:     m.FundID,
		Amount:     m.Amount,
		Currency:   m.Currency,
		Payee:      m.Payee,
		Method:     m.Method,
		Notes:      m.Notes,
		Category:   m.Category,
		TargetType: m.TargetType,
		TargetID:   m.TargetID,
		Sequence:   m.Sequence,
		RecordedBy: m.RecordedBy,
		CreatedAt:  m.CreatedAt,
	}
}

type donationResponse struct {
	ID         uuid.UUID         `json:"id"`
	Donor      string            `json:"donor"`
	AccountID  uuid.UUID         `json:"account_id"`
	FundID     uuid.UUID         `json:"fund_id"`
	Amount     decimal.Decimal   `json:"amount"`
	Currency   string            `json:"currency"`
	Category   *enums.Category   `json:"category,omitempty"`
	TargetType *enums.TargetType `json:"target_type,omitempty"`
	TargetID   *string           `json:"target_id,omitempty"`
	RecordedBy uuid.UUID         `json:"recorded_by"`
	CreatedAt  time.Time         `json:"created_at"`
}

func donationResponseFromModel(m *models.Donation) *donationResponse {
	if m == nil {
		return nil
	}
	return &donationResponse{
		ID:         m.ID,
		Donor:      m.Donor,
		AccountID:  m.AccountID,
		FundID:     m.FundID,
		Amount:     m.Amount,
		Currency:   m.Currency,
		Category:   m.Category,
		TargetType: m.TargetType,
		TargetID:   m.TargetID,
		RecordedBy: m.RecordedBy,
		CreatedAt:  m.CreatedAt,
	}
}

func mapSlice[M any, R any](items []M, fn func(*M) R) []R {
	out := make([]R, 0, len(items))
	for i := range items {
		out = append(out, fn(&items[i]))
	}
	return out
}
