package refunds

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/SachaDelcourt-Co/chateau-apero-charge-sub002/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// APIKeyHeader carries the export credential.
const APIKeyHeader = "X-API-Key"

// API is the HTTP surface of the refund export pipeline.
type API struct {
	service *Service
	cfg     *Config
}

func NewAPI(service *Service, cfg *Config) *API {
	return &API{service: service, cfg: cfg}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Post("/refunds/export", a.exportRefunds)
}

type errorResponse struct {
	Success   bool     `json:"success"`
	Error     string   `json:"error"`
	ErrorCode string   `json:"error_code"`
	Details   []string `json:"details,omitempty"`
	RequestID string   `json:"request_id"`
}

type exportResponse struct {
	Success          bool              `json:"success"`
	MessageID        string            `json:"message_id"`
	TransactionCount int               `json:"transaction_count"`
	TotalAmount      string            `json:"total_amount"`
	Document         string            `json:"document,omitempty"`
	Filename         string            `json:"filename,omitempty"`
	Summary          ProcessingSummary `json:"processing_summary"`
	RequestID        string            `json:"request_id"`
}

func (a *API) exportRefunds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !a.authenticated(r) {
		writeError(w, r, newError(StageReceived, CodeUnauthorized, "missing or invalid API key"))
		return
	}

	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, wrapError(StageAuthenticated, CodeInvalidRequest, "malformed request body", err))
		return
	}
	if req.Batch.MaxCandidates != nil && *req.Batch.MaxCandidates <= 0 {
		writeError(w, r, newError(StageAuthenticated, CodeInvalidRequest, "max_candidates must be a positive integer"))
		return
	}

	result, expErr := a.service.Export(ctx, req)
	if expErr != nil {
		middleware.Logger(ctx).Error("export failed",
			"stage", string(expErr.Stage), "code", string(expErr.Code), "err", expErr)
		writeError(w, r, expErr)
		return
	}

	resp := exportResponse{
		Success:          true,
		MessageID:        result.MessageID,
		TransactionCount: result.TransactionCount,
		TotalAmount:      result.TotalAmount.StringFixed(2),
		Document:         string(result.Document),
		Filename:         result.Filename,
		Summary:          result.Summary,
		RequestID:        middleware.GetRequestID(ctx),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// authenticated checks the export credential. An empty configured key
// disables the check (tests and local runs).
func (a *API) authenticated(r *http.Request) bool {
	if a.cfg.APIKey == "" {
		return true
	}
	got := r.Header.Get(APIKeyHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(a.cfg.APIKey)) == 1
}

func writeError(w http.ResponseWriter, r *http.Request, e *Error) {
	resp := errorResponse{
		Error:     e.Message,
		ErrorCode: string(e.Code),
		Details:   e.Details,
		RequestID: middleware.GetRequestID(r.Context()),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code.HTTPStatus())
	json.NewEncoder(w).Encode(resp)
}
