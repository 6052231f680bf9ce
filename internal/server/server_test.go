package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/auditflow/reconcile/internal/config"
	"github.com/auditflow/reconcile/internal/model"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv, err := New(zap.NewNop(), config.DefaultEngine())
	require.NoError(t, err)
	return srv
}

func postJSON(t *testing.T, srv *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReconcileEndpoint(t *testing.T) {
	srv := testServer(t)

	w := postJSON(t, srv, "/api/v1/reconcile", gin.H{
		"bank": []gin.H{
			{"bank_id": "B1", "txn_date": "2024-01-05", "amount": "100.00", "description": "ACH Payment Acme"},
		},
		"gl": []gin.H{
			{"gl_id": "G1", "posting_date": "2024-01-05", "amount": "100.00", "memo": "Acme ACH"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var rep model.ReconciliationReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	require.Len(t, rep.Results, 1)
	assert.Equal(t, model.MatchExact, rep.Results[0].MatchType)
	assert.Empty(t, rep.UnmatchedBank)
	assert.Empty(t, rep.UnmatchedGL)
}

func TestReconcileEndpointAppliesOptions(t *testing.T) {
	srv := testServer(t)

	w := postJSON(t, srv, "/api/v1/reconcile", gin.H{
		"bank": []gin.H{
			{"bank_id": "B4", "txn_date": "2024-01-05", "amount": "50.00", "description": "partial a"},
			{"bank_id": "B5", "txn_date": "2024-01-05", "amount": "50.00", "description": "partial b"},
		},
		"gl": []gin.H{
			{"gl_id": "G4", "posting_date": "2024-01-05", "amount": "100.00", "memo": "combined"},
		},
		"options": gin.H{
			"enable_grouped_matching": true,
			"max_group_size":          2,
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var rep model.ReconciliationReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	require.Len(t, rep.Results, 1)
	assert.Equal(t, model.MatchGrouped, rep.Results[0].MatchType)
}

func TestReconcileEndpointRejectsBadRecord(t *testing.T) {
	srv := testServer(t)

	w := postJSON(t, srv, "/api/v1/reconcile", gin.H{
		"bank": []gin.H{
			{"bank_id": "B1", "txn_date": "2024-01-05", "amount": "not-a-number", "description": "x"},
		},
		"gl": []gin.H{
			{"gl_id": "G1", "posting_date": "2024-01-05", "amount": "1.00", "memo": "y"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReconcileEndpointRejectsBadOptions(t *testing.T) {
	srv := testServer(t)

	w := postJSON(t, srv, "/api/v1/reconcile", gin.H{
		"bank": []gin.H{
			{"bank_id": "B1", "txn_date": "2024-01-05", "amount": "1.00", "description": "x"},
		},
		"gl": []gin.H{
			{"gl_id": "G1", "posting_date": "2024-01-05", "amount": "1.00", "memo": "y"},
		},
		"options": gin.H{"similarity_threshold": 4.2},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "recon_run")
}