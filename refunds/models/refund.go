package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RefundStatus classifies a candidate after enrichment.
type RefundStatus string

const (
	RefundStatusValid   RefundStatus = "valid"
	RefundStatusWarning RefundStatus = "warning"
	RefundStatusError   RefundStatus = "error"
)

// Validation error codes attached to rejected candidates.
const (
	ValidationCodeInvalidData = "invalid_data"
	ValidationCodeMissingCard = "missing_card"
)

// RawCandidate is a pending reimbursement request as recorded when the
// post-edition balance snapshot was taken. It is read-only until the
// export flag is flipped.
type RawCandidate struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Account   string    `json:"account"`
	Email     string    `json:"email"`
	CardID    string    `json:"card_id"`
	Exported  bool      `json:"exported"`
}

func (c RawCandidate) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// ValidatedRefund is a candidate that survived enrichment: identity
// fields normalized, the refundable amount recomputed from the
// authoritative card balance.
type ValidatedRefund struct {
	ID        int64           `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Account   string          `json:"account"`
	Email     string          `json:"email"`
	CardID    string          `json:"card_id"`
	NetAmount decimal.Decimal `json:"net_amount"`
	Status    RefundStatus    `json:"validation_status"`
	Notes     []string        `json:"validation_notes,omitempty"`
}

func (r ValidatedRefund) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// ValidationError records why a candidate was rejected during
// enrichment.
type ValidationError struct {
	CandidateID int64  `json:"candidate_id"`
	Code        string `json:"code"`
	Message     string `json:"message"`
}

// EnrichmentSummary aggregates one enrichment pass.
type EnrichmentSummary struct {
	Total       int             `json:"total"`
	Valid       int             `json:"valid"`
	Errors      int             `json:"errors"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Duration    time.Duration   `json:"-"`
}

// EnrichmentResult is the candidate source contract: every unexported
// candidate classified, plus the aggregate summary.
type EnrichmentResult struct {
	Refunds []ValidatedRefund `json:"valid_refunds"`
	Errors  []ValidationError `json:"validation_errors"`
	Summary EnrichmentSummary `json:"summary"`
}

// BatchOptions are the caller-selected batch policies.
type BatchOptions struct {
	MaxCandidates   *int `json:"max_candidates,omitempty"`
	IncludeWarnings bool `json:"include_warnings,omitempty"`
	DryRun          bool `json:"dry_run,omitempty"`
}
