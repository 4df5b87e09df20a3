package refunds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SachaDelcourt-Co/chateau-apero-charge-sub002/internal/sepa"
	"github.com/SachaDelcourt-Co/chateau-apero-charge-sub002/refunds/models"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"
)

// ExportRequest is one batch-export invocation: payer configuration,
// optional document tuning and optional batch policies.
type ExportRequest struct {
	Payer    sepa.PayerConfig     `json:"payer_config"`
	Document sepa.DocumentOptions `json:"document_options"`
	Batch    models.BatchOptions  `json:"batch_options"`
}

// ProcessingSummary reports pipeline timings and counts back to the
// caller.
type ProcessingSummary struct {
	RefundsProcessed int   `json:"refunds_processed"`
	ValidationErrors int   `json:"validation_errors"`
	GenerationTimeMs int64 `json:"generation_time_ms"`
	TotalTimeMs      int64 `json:"total_time_ms"`
}

// ExportResult is a completed run: either a generated document or, for
// dry runs, the summary alone.
type ExportResult struct {
	MessageID        string
	TransactionCount int
	TotalAmount      decimal.Decimal
	Document         []byte
	Filename         string
	DryRun           bool
	Summary          ProcessingSummary
}

// Service is the orchestrator: it sequences enrichment, batch policy
// filtering, document generation and completion marking as one
// synchronous, strictly forward pipeline. A failed stage ends the
// request with a stage-tagged error; there are no retries or loops.
//
// Concurrent invocations are independent: the pipeline holds no
// cross-request lock, so callers must guarantee a single writer (two
// overlapping exports could both pick up the same candidates before
// either marks them).
type Service struct {
	repo     *Repository
	enricher *Enricher
	cfg      *Config
	logger   *slog.Logger
}

func NewService(repo *Repository, cfg *Config, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		enricher: NewEnricher(repo, cfg, logger),
		cfg:      cfg,
		logger:   logger,
	}
}

// Export runs the pipeline end to end. The returned *Error is nil on
// success (including dry runs).
func (s *Service) Export(ctx context.Context, req ExportRequest) (*ExportResult, *Error) {
	start := time.Now()

	// Payer misconfiguration rejects the batch before any store work.
	generator, err := sepa.NewGenerator(req.Payer, req.Document, s.cfg.MinimumRefund, s.cfg.MaximumRefund)
	if err != nil {
		return nil, wrapError(StageReceived, CodeConfigurationError, "invalid payer or document configuration", err)
	}

	result, err := s.enricher.Enrich(ctx)
	if err != nil {
		return nil, wrapError(StageCandidatesFetched, CodeRefundDataError, "candidate source failed", err)
	}
	if len(result.Refunds) == 0 {
		e := newError(StageCandidatesFetched, CodeNoRefundsAvailable, "no refund candidates available")
		if result.Summary.Errors > 0 {
			e.Details = append(e.Details, fmt.Sprintf("%d candidate(s) failed validation", result.Summary.Errors))
		}
		return nil, e
	}

	filtered := applyBatchPolicy(result.Refunds, req.Batch)
	if len(filtered) == 0 {
		e := newError(StageFiltered, CodeNoRefundsAvailable, "no candidates left after applying batch options")
		e.Details = append(e.Details, fmt.Sprintf("%d valid refund(s) were filtered out", len(result.Refunds)))
		return nil, e
	}

	total := decimal.Zero
	for _, r := range filtered {
		total = total.Add(r.NetAmount)
	}

	if req.Batch.DryRun {
		s.logger.Info("dry run complete",
			slog.Int("transaction_count", len(filtered)),
			slog.String("total_amount", total.StringFixed(2)),
		)
		return &ExportResult{
			MessageID:        "DRY_RUN",
			TransactionCount: len(filtered),
			TotalAmount:      total,
			DryRun:           true,
			Summary: ProcessingSummary{
				RefundsProcessed: len(filtered),
				ValidationErrors: result.Summary.Errors,
				TotalTimeMs:      time.Since(start).Milliseconds(),
			},
		}, nil
	}

	genStart := time.Now()
	transfers := make([]sepa.CreditTransfer, 0, len(filtered))
	for _, r := range filtered {
		transfers = append(transfers, sepa.CreditTransfer{
			ID:           r.ID,
			CreditorName: r.FullName(),
			IBAN:         r.Account,
			Amount:       r.NetAmount,
		})
	}

	doc, err := generator.Generate(transfers)
	if err != nil {
		e := wrapError(StageGenerated, CodeXMLGenerationError, "document generation failed", err)
		var reErr *sepa.RevalidationError
		if errors.As(err, &reErr) {
			e.Details = reErr.Errors
		}
		return nil, e
	}

	s.markExported(ctx, filtered)

	return &ExportResult{
		MessageID:        doc.MessageID,
		TransactionCount: doc.TransactionCount,
		TotalAmount:      doc.ControlSum,
		Document:         doc.XML,
		Filename: fmt.Sprintf("%s_Refunds_%s_%s.xml",
			s.cfg.FilenamePrefix, doc.MessageID, doc.CreatedAt.Format("20060102150405")),
		Summary: ProcessingSummary{
			RefundsProcessed: doc.TransactionCount,
			ValidationErrors: result.Summary.Errors,
			GenerationTimeMs: time.Since(genStart).Milliseconds(),
			TotalTimeMs:      time.Since(start).Milliseconds(),
		},
	}, nil
}

// markExported flips the export flag for exactly the refunds in the
// document. The document is already produced at this point, so a
// shortfall must never fail the request: it is logged for manual
// reconciliation instead.
func (s *Service) markExported(ctx context.Context, refunds []models.ValidatedRefund) {
	ids := make([]int64, 0, len(refunds))
	for _, r := range refunds {
		ids = append(ids, r.ID)
	}

	updated, err := s.repo.MarkExported(ctx, ids)
	if err != nil {
		s.logger.Error("marking candidates exported failed; verify state manually",
			slog.Int("requested", len(ids)), slog.Any("err", err))
		return
	}
	if len(updated) < len(ids) {
		s.logger.Warn("export marker shortfall; verify state manually",
			slog.Int("requested", len(ids)), slog.Int("updated", len(updated)))
	}
}

// applyBatchPolicy truncates to the first max_candidates entries in
// stable order, then drops warning-status refunds unless the caller
// opted in.
func applyBatchPolicy(refunds []models.ValidatedRefund, opts models.BatchOptions) []models.ValidatedRefund {
	if opts.MaxCandidates != nil && *opts.MaxCandidates > 0 && len(refunds) > *opts.MaxCandidates {
		refunds = refunds[:*opts.MaxCandidates]
	}

	out := make([]models.ValidatedRefund, 0, len(refunds))
	for _, r := range refunds {
		if r.Status == models.RefundStatusWarning && !opts.IncludeWarnings {
			continue
		}
		out = append(out, r)
	}
	return out
}
