package refunds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SachaDelcourt-Co/chateau-apero-charge-sub002/internal/iban"
	"github.com/SachaDelcourt-Co/chateau-apero-charge-sub002/internal/sepatext"
	"github.com/SachaDelcourt-Co/chateau-apero-charge-sub002/refunds/models"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"
)

// Enricher turns raw reimbursement requests into validated refunds. The
// refundable amount is always recomputed from the authoritative card
// balance; any amount declared by the requester is ignored, so stale or
// manipulated values can never reach a document.
type Enricher struct {
	repo   *Repository
	cfg    *Config
	logger *slog.Logger
}

func NewEnricher(repo *Repository, cfg *Config, logger *slog.Logger) *Enricher {
	return &Enricher{repo: repo, cfg: cfg, logger: logger}
}

// Enrich classifies every unexported candidate. Per candidate the checks
// short-circuit at the first failure; across candidates all failures are
// collected rather than aborting the pass.
func (e *Enricher) Enrich(ctx context.Context) (*models.EnrichmentResult, error) {
	start := time.Now()

	candidates, err := e.repo.ListUnexportedCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing candidates: %w", err)
	}

	result := &models.EnrichmentResult{
		Summary: models.EnrichmentSummary{Total: len(candidates), TotalAmount: decimal.Zero},
	}

	for _, c := range candidates {
		refund, vErr, err := e.enrichOne(ctx, c)
		if err != nil {
			// store failure, not a candidate outcome: abort the pass
			return nil, err
		}
		if vErr != nil {
			result.Errors = append(result.Errors, *vErr)
			continue
		}
		result.Refunds = append(result.Refunds, *refund)
		result.Summary.TotalAmount = result.Summary.TotalAmount.Add(refund.NetAmount)
	}

	result.Summary.Valid = len(result.Refunds)
	result.Summary.Errors = len(result.Errors)
	result.Summary.Duration = time.Since(start)

	e.logger.Info("enrichment pass complete",
		slog.Int("total", result.Summary.Total),
		slog.Int("valid", result.Summary.Valid),
		slog.Int("errors", result.Summary.Errors),
		slog.String("total_amount", result.Summary.TotalAmount.StringFixed(2)),
		slog.Duration("duration", result.Summary.Duration),
	)

	return result, nil
}

func (e *Enricher) enrichOne(ctx context.Context, c models.RawCandidate) (*models.ValidatedRefund, *models.ValidationError, error) {
	if c.FullName() == "" || c.Email == "" || c.CardID == "" {
		return nil, &models.ValidationError{
			CandidateID: c.ID,
			Code:        models.ValidationCodeInvalidData,
			Message:     "missing required field (name, email or card identifier)",
		}, nil
	}

	if !iban.Valid(c.Account) {
		return nil, &models.ValidationError{
			CandidateID: c.ID,
			Code:        models.ValidationCodeInvalidData,
			Message:     fmt.Sprintf("account number %q failed validation", c.Account),
		}, nil
	}

	balance, err := e.repo.CardBalance(ctx, c.CardID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, nil, fmt.Errorf("ledger lookup for card %s: %w", c.CardID, err)
	}
	if errors.Is(err, ErrNotFound) || !balance.IsPositive() {
		return nil, &models.ValidationError{
			CandidateID: c.ID,
			Code:        models.ValidationCodeMissingCard,
			Message:     fmt.Sprintf("card %s has no positive balance on record", c.CardID),
		}, nil
	}

	net := balance.Sub(e.cfg.RefundFee).Round(2)
	if net.LessThan(e.cfg.MinimumRefund) {
		return nil, &models.ValidationError{
			CandidateID: c.ID,
			Code:        models.ValidationCodeInvalidData,
			Message: fmt.Sprintf("net amount %s after %s fee is below the %s minimum",
				net.StringFixed(2), e.cfg.RefundFee.StringFixed(2), e.cfg.MinimumRefund.StringFixed(2)),
		}, nil
	}

	refund := &models.ValidatedRefund{
		ID:        c.ID,
		CreatedAt: c.CreatedAt,
		FirstName: strings.TrimSpace(c.FirstName),
		LastName:  strings.TrimSpace(c.LastName),
		Account:   iban.Normalize(c.Account),
		Email:     strings.TrimSpace(c.Email),
		CardID:    c.CardID,
		NetAmount: net,
		Status:    models.RefundStatusValid,
		Notes: []string{
			fmt.Sprintf("fee of %s deducted from card balance %s",
				e.cfg.RefundFee.StringFixed(2), balance.StringFixed(2)),
		},
	}

	// A refund with an undeliverable notification address is still
	// payable; it is parked behind the include_warnings switch for
	// operator review instead of being dropped.
	if !strings.Contains(refund.Email, "@") {
		refund.Status = models.RefundStatusWarning
		refund.Notes = append(refund.Notes, fmt.Sprintf("contact email %q looks invalid", refund.Email))
	}

	if sanitized := sepatext.Sanitize(refund.FullName()); sanitized != refund.FullName() {
		refund.Notes = append(refund.Notes, "name contained unsupported characters and was sanitized")
	}

	return refund, nil, nil
}
