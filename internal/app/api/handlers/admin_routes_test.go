package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/coralpay/paysync/internal/app/service/audit"
	"github.com/coralpay/paysync/internal/app/service/pipeline"
	"github.com/coralpay/paysync/internal/models"
	"github.com/coralpay/paysync/pkg/types"
)

type stubPaymentScanner struct{}

func (s *stubPaymentScanner) ScanPayments(_ context.Context, _ *pipeline.ScanPaymentsRequest) (*pipeline.ScanPaymentsResponse, error) {
	return &pipeline.ScanPaymentsResponse{
		Items: []*models.Payment{{
			ID:         "0191f000-0000-7000-8000-000000000001",
			ExternalID: "pi_A",
			Source:     "stripe",
			Direction:  types.DirectionInbound,
			Amount:     2000,
			Currency:   types.CurrencyUSD,
			Status:     types.PaymentStatusSucceeded,
		}},
		Total: 1,
	}, nil
}

type stubAuditScanner struct{}

func (s *stubAuditScanner) Scan(_ context.Context, _ *audit.ScanRequest) (*audit.ScanResponse, error) {
	return &audit.ScanResponse{Items: []*models.AuditEntry{{Action: models.AuditActionCreated, Actor: "worker:stripe"}}, Total: 1}, nil
}

type stubJobAdmin struct {
	retried []string
	err     error
}

func (s *stubJobAdmin) List(_ context.Context, _ models.JobStatus, _, _ int) ([]*models.PaymentJob, int64, error) {
	return []*models.PaymentJob{{EventID: "evt_1", Status: models.JobStatusFailed}}, 1, nil
}

func (s *stubJobAdmin) Retry(_ context.Context, id string) error {
	if s.err != nil {
		return s.err
	}
	s.retried = append(s.retried, id)
	return nil
}

func adminRouter(jobs JobAdmin) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterAdminRoutes(r.Group("/api/v1/admin"), &stubPaymentScanner{}, &stubAuditScanner{}, jobs)
	return r
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestApiListPayments(t *testing.T) {
	w := postJSON(adminRouter(&stubJobAdmin{}), "/api/v1/admin/list_payments", map[string]any{"size": 10})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "pi_A")
	require.Contains(t, w.Body.String(), `"total":1`)
}

func TestApiListAuditEntries(t *testing.T) {
	w := postJSON(adminRouter(&stubJobAdmin{}), "/api/v1/admin/list_audit_entries", map[string]any{"action": "created"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "created")
}

func TestApiListJobs(t *testing.T) {
	w := postJSON(adminRouter(&stubJobAdmin{}), "/api/v1/admin/list_jobs", map[string]any{"status": "failed"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "evt_1")
}

func TestApiRetryJob(t *testing.T) {
	jobs := &stubJobAdmin{}
	w := postJSON(adminRouter(jobs), "/api/v1/admin/retry_job", map[string]any{"job_id": "job-1"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"job-1"}, jobs.retried)
}

func TestApiRetryJob_MissingID(t *testing.T) {
	jobs := &stubJobAdmin{}
	w := postJSON(adminRouter(jobs), "/api/v1/admin/retry_job", map[string]any{})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "missing job_id")
	require.Empty(t, jobs.retried)
}

func TestApiRetryJob_ServiceError(t *testing.T) {
	jobs := &stubJobAdmin{err: fmt.Errorf("job j1 is not in failed state")}
	w := postJSON(adminRouter(jobs), "/api/v1/admin/retry_job", map[string]any{"job_id": "j1"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "not in failed state")
}
