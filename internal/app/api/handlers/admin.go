package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coralpay/paysync/internal/app/service/audit"
	"github.com/coralpay/paysync/internal/app/service/pipeline"
	"github.com/coralpay/paysync/internal/models"
	"github.com/coralpay/paysync/pkg/response"
	"github.com/coralpay/paysync/pkg/types"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// PaymentScanner is the read-only payment listing surface.
type PaymentScanner interface {
	ScanPayments(ctx context.Context, req *pipeline.ScanPaymentsRequest) (*pipeline.ScanPaymentsResponse, error)
}

// AuditScanner pages the audit trail. Read-only; there is no write surface.
type AuditScanner interface {
	Scan(ctx context.Context, req *audit.ScanRequest) (*audit.ScanResponse, error)
}

// JobAdmin exposes queue inspection and the retry intervention for
// terminally failed jobs.
type JobAdmin interface {
	List(ctx context.Context, status models.JobStatus, from, size int) ([]*models.PaymentJob, int64, error)
	Retry(ctx context.Context, id string) error
}

type PaymentItem struct {
	ID               string    `json:"id"`
	ExternalID       string    `json:"external_id"`
	Source           string    `json:"source"`
	EventType        string    `json:"event_type"`
	Direction        string    `json:"direction"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status"`
	LastEventID      string    `json:"last_event_id"`
	ParentExternalID *string   `json:"parent_external_id"`
	LastProviderTS   int64     `json:"last_provider_ts"`
	ReceivedAt       time.Time `json:"received_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toPaymentItem(m *models.Payment) *PaymentItem {
	return &PaymentItem{
		ID:               m.ID,
		ExternalID:       m.ExternalID,
		Source:           m.Source,
		EventType:        m.EventType,
		Direction:        m.Direction.String(),
		Amount:           m.Amount,
		Currency:         m.Currency.String(),
		Status:           m.Status.String(),
		LastEventID:      m.LastEventID,
		ParentExternalID: m.ParentExternalID,
		LastProviderTS:   m.LastProviderTS,
		ReceivedAt:       m.ReceivedAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

type ListPaymentsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ListPaymentsResponse struct {
	Items []*PaymentItem `json:"items"`
	Total int64          `json:"total"`
}

// ApiListPayments handles POST /api/v1/admin/list_payments
func ApiListPayments(scanner PaymentScanner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListPaymentsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := scanner.ScanPayments(c.Request.Context(), &pipeline.ScanPaymentsRequest{
			Filters: req.Filters, From: req.From, Size: req.Size, SortBy: req.SortBy, SortOrder: req.SortOrder,
		})
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		items := lo.Map(res.Items, func(it *models.Payment, _ int) *PaymentItem { return toPaymentItem(it) })
		c.JSON(http.StatusOK, response.OKT(&ListPaymentsResponse{Items: items, Total: res.Total}))
	}
}

type ListAuditEntriesRequest struct {
	ExternalID string `json:"external_id"`
	EventID    string `json:"event_id"`
	Action     string `json:"action"`
	From       int    `json:"from"`
	Size       int    `json:"size"`
}

type ListAuditEntriesResponse struct {
	Items []*models.AuditEntry `json:"items"`
	Total int64                `json:"total"`
}

// ApiListAuditEntries handles POST /api/v1/admin/list_audit_entries
func ApiListAuditEntries(scanner AuditScanner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListAuditEntriesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := scanner.Scan(c.Request.Context(), &audit.ScanRequest{
			ExternalID: req.ExternalID, EventID: req.EventID, Action: req.Action, From: req.From, Size: req.Size,
		})
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ListAuditEntriesResponse{Items: res.Items, Total: res.Total}))
	}
}

type ListJobsRequest struct {
	Status string `json:"status"`
	From   int    `json:"from"`
	Size   int    `json:"size"`
}

type ListJobsResponse struct {
	Items []*models.PaymentJob `json:"items"`
	Total int64                `json:"total"`
}

// ApiListJobs handles POST /api/v1/admin/list_jobs
func ApiListJobs(jobs JobAdmin) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListJobsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		items, total, err := jobs.List(c.Request.Context(), models.JobStatus(req.Status), req.From, req.Size)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ListJobsResponse{Items: items, Total: total}))
	}
}

// ApiRetryJob handles POST /api/v1/admin/retry_job
func ApiRetryJob(jobs JobAdmin) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			JobID string `json:"job_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if req.JobID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing job_id"))
			return
		}
		if err := jobs.Retry(c.Request.Context(), req.JobID); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

func RegisterAdminRoutes(r gin.IRouter, payments PaymentScanner, audits AuditScanner, jobs JobAdmin) {
	r.POST("/list_payments", ApiListPayments(payments))
	r.POST("/list_audit_entries", ApiListAuditEntries(audits))
	r.POST("/list_jobs", ApiListJobs(jobs))
	r.POST("/retry_job", ApiRetryJob(jobs))
}
