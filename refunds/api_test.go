package refunds_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SachaDelcourt-Co/chateau-apero-charge-sub002/refunds"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, cfg *refunds.Config) (chi.Router, *refunds.Repository) {
	t.Helper()
	repo := refunds.NewRepository()
	api := refunds.NewAPI(refunds.NewService(repo, cfg, testLogger()), cfg)
	router := chi.NewRouter()
	api.AppendRoutes(router)
	return router, repo
}

func exportBody(t *testing.T, extra map[string]any) *bytes.Buffer {
	t.Helper()
	body := map[string]any{
		"payer_config": map[string]any{
			"name":           "Acme",
			"account_number": "BE68539007547034",
			"country":        "BE",
		},
	}
	for k, v := range extra {
		body[k] = v
	}
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	return bytes.NewBuffer(buf)
}

func TestExportEndpoint(t *testing.T) {
	router, repo := newTestRouter(t, refunds.DefaultConfig())
	seedCandidate(t, repo, "card-1", "25.00")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/refunds/export", exportBody(t, nil))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success          bool   `json:"success"`
		MessageID        string `json:"message_id"`
		TransactionCount int    `json:"transaction_count"`
		TotalAmount      string `json:"total_amount"`
		Document         string `json:"document"`
		Filename         string `json:"filename"`
		Summary          struct {
			RefundsProcessed int `json:"refunds_processed"`
		} `json:"processing_summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.MessageID)
	require.Equal(t, 1, resp.TransactionCount)
	require.Equal(t, "23.00", resp.TotalAmount)
	require.Contains(t, resp.Document, "pain.001.001.03")
	require.Contains(t, resp.Filename, ".xml")
	require.Equal(t, 1, resp.Summary.RefundsProcessed)
}

func TestExportEndpointDryRun(t *testing.T) {
	router, repo := newTestRouter(t, refunds.DefaultConfig())
	seedCandidate(t, repo, "card-1", "25.00")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/refunds/export",
		exportBody(t, map[string]any{"batch_options": map[string]any{"dry_run": true}}))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		MessageID string `json:"message_id"`
		Document  string `json:"document"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "DRY_RUN", resp.MessageID)
	require.Empty(t, resp.Document)

	remaining, err := repo.ListUnexportedCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestExportEndpointUnauthorized(t *testing.T) {
	cfg := refunds.DefaultConfig()
	cfg.APIKey = "sekret"
	router, repo := newTestRouter(t, cfg)
	seedCandidate(t, repo, "card-1", "25.00")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/refunds/export", exportBody(t, nil))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var resp struct {
		Success   bool   `json:"success"`
		ErrorCode string `json:"error_code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.Equal(t, "UNAUTHORIZED", resp.ErrorCode)

	// with the right key the same request succeeds
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/refunds/export", exportBody(t, nil))
	req.Header.Set(refunds.APIKeyHeader, "sekret")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestExportEndpointMalformedBody(t *testing.T) {
	router, _ := newTestRouter(t, refunds.DefaultConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/refunds/export", bytes.NewBufferString("{"))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		ErrorCode string `json:"error_code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "INVALID_REQUEST", resp.ErrorCode)
}

func TestExportEndpointInvalidMaxCandidates(t *testing.T) {
	router, repo := newTestRouter(t, refunds.DefaultConfig())
	seedCandidate(t, repo, "card-1", "25.00")

	for _, max := range []int{0, -3} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/refunds/export",
			exportBody(t, map[string]any{"batch_options": map[string]any{"max_candidates": max}}))
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp struct {
			ErrorCode string `json:"error_code"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, "INVALID_REQUEST", resp.ErrorCode)
	}

	// the rejected request must not have exported anything
	remaining, err := repo.ListUnexportedCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestExportEndpointNoRefunds(t *testing.T) {
	router, _ := newTestRouter(t, refunds.DefaultConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/refunds/export", exportBody(t, nil))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		ErrorCode string `json:"error_code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "NO_REFUNDS_AVAILABLE", resp.ErrorCode)
}

func TestExportEndpointBadPayer(t *testing.T) {
	router, repo := newTestRouter(t, refunds.DefaultConfig())
	seedCandidate(t, repo, "card-1", "25.00")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/refunds/export",
		exportBody(t, map[string]any{"payer_config": map[string]any{
			"name": "Acme", "account_number": "oops", "country": "BE",
		}}))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		ErrorCode string `json:"error_code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "CONFIGURATION_ERROR", resp.ErrorCode)
}
