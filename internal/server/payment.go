package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	invoicedomain "github.com/guardline/aegis/internal/invoice/domain"
	"github.com/guardline/aegis/pkg/db/pagination"
)

// maxWebhookBody bounds how much of a webhook delivery is read into memory.
const maxWebhookBody = 1 << 20

type createInvoiceRequest struct {
	BookingID     string `json:"booking_id" binding:"required"`
	TotalAmount   int64  `json:"total_amount"`
	DepositAmount int64  `json:"deposit_amount"`
	ServiceType   string `json:"service_type"`
	DueAt         string `json:"due_at"`
	Notes         string `json:"notes"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("booking_id", "required", "booking_id is required"))
		return
	}

	bookingID, err := snowflake.ParseString(strings.TrimSpace(req.BookingID))
	if err != nil || bookingID == 0 {
		AbortWithError(c, newValidationError("booking_id", "invalid_id", "invalid booking id"))
		return
	}

	domainReq := invoicedomain.CreateInvoiceRequest{
		BookingID:     bookingID,
		TotalAmount:   req.TotalAmount,
		DepositAmount: req.DepositAmount,
		ServiceType:   req.ServiceType,
		Notes:         req.Notes,
	}
	if strings.TrimSpace(req.DueAt) != "" {
		dueAt, err := parseOptionalTime(req.DueAt, true)
		if err != nil {
			AbortWithError(c, newValidationError("due_at", "invalid_date", "invalid due date"))
			return
		}
		domainReq.DueAt = *dueAt
	}

	invoice, err := s.invoiceSvc.Create(c.Request.Context(), domainReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func (s *Server) SendInvoice(c *gin.Context) {
	id, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invoice, err := s.invoiceSvc.Send(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (s *Server) ListInvoices(c *gin.Context) {
	filter := invoicedomain.ListInvoiceFilter{
		Status: invoicedomain.InvoiceStatus(strings.TrimSpace(c.Query("status"))),
	}
	if raw := strings.TrimSpace(c.Query("booking_id")); raw != "" {
		bookingID, err := snowflake.ParseString(raw)
		if err != nil || bookingID == 0 {
			AbortWithError(c, newValidationError("booking_id", "invalid_id", "invalid booking id"))
			return
		}
		filter.BookingID = bookingID
	}
	dueBefore, err := parseOptionalTime(c.Query("due_before"), true)
	if err != nil {
		AbortWithError(c, newValidationError("due_before", "invalid_date", "invalid due_before"))
		return
	}
	filter.DueBefore = dueBefore

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoiceRequest{
		Filter: filter,
		Page: pagination.Pagination{
			PageToken: c.Query("page_token"),
			PageSize:  parsePageSize(c.Query("page_size")),
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetInvoice(c *gin.Context) {
	id, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invoice, err := s.invoiceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (s *Server) CancelInvoice(c *gin.Context) {
	id, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invoice, err := s.invoiceSvc.Cancel(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// GetPaymentStatus proxies a live status lookup to the payment provider.
// It never mutates local state; settlement only happens through the webhook.
func (s *Server) GetPaymentStatus(c *gin.Context) {
	paymentID := strings.TrimSpace(c.Param("paymentId"))
	if paymentID == "" {
		AbortWithError(c, newValidationError("paymentId", "required", "payment id is required"))
		return
	}

	payment, err := s.gatewaySvc.QueryPaymentStatus(c.Request.Context(), paymentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (s *Server) GetInvoiceByProviderID(c *gin.Context) {
	providerInvoiceID := strings.TrimSpace(c.Param("invoiceId"))
	if providerInvoiceID == "" {
		AbortWithError(c, newValidationError("invoiceId", "required", "invoice id is required"))
		return
	}

	invoice, err := s.invoiceSvc.GetByProviderInvoiceID(c.Request.Context(), providerInvoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (s *Server) GetPaymentSchedule(c *gin.Context) {
	totalAmount, err := strconv.ParseInt(strings.TrimSpace(c.Query("total_amount")), 10, 64)
	if err != nil {
		AbortWithError(c, newValidationError("total_amount", "invalid_amount", "total_amount is required"))
		return
	}

	depositFraction := 0.0
	if raw := strings.TrimSpace(c.Query("deposit_fraction")); raw != "" {
		depositFraction, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			AbortWithError(c, newValidationError("deposit_fraction", "invalid_fraction", "invalid deposit_fraction"))
			return
		}
	}

	schedule, err := s.gatewaySvc.ComputePaymentSchedule(totalAmount, depositFraction)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

// HandlePaymentWebhook receives provider events. The body is passed to the
// verifier exactly as read; any reshaping would break the signature. A
// verified delivery is always acknowledged with 200 so the provider stops
// retrying, whatever the reconciliation outcome was.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, newValidationError("body", "invalid_request", "unreadable body"))
		return
	}

	outcome, err := s.webhookSvc.IngestWebhook(c.Request.Context(), payload, c.Request.Header)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "outcome": string(outcome)})
}
