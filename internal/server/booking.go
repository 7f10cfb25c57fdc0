package server

import (
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	bookingdomain "github.com/guardline/aegis/internal/booking/domain"
	"github.com/guardline/aegis/pkg/db/pagination"
)

type createBookingRequest struct {
	ClientName          string `json:"client_name"`
	Email               string `json:"email"`
	Phone               string `json:"phone"`
	EventType           string `json:"event_type"`
	EventDate           string `json:"event_date"`
	VenueAddress        string `json:"venue_address"`
	GuardCount          int    `json:"guard_count"`
	SpecialRequirements string `json:"special_requirements"`
	TotalAmount         int64  `json:"total_amount"`
	DepositAmount       int64  `json:"deposit_amount"`
	Method              string `json:"method"`

	ContactPrefs *struct {
		EmailEnabled     bool   `json:"email_enabled"`
		SMSEnabled       bool   `json:"sms_enabled"`
		PreferredChannel string `json:"preferred_channel"`
	} `json:"contact_prefs"`
}

func (s *Server) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	var fieldErrs []ValidationError
	if strings.TrimSpace(req.ClientName) == "" {
		fieldErrs = append(fieldErrs, ValidationError{Field: "client_name", Code: "required", Message: "client name is required"})
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
		fieldErrs = append(fieldErrs, ValidationError{Field: "email", Code: "invalid_email", Message: "a valid email is required"})
	}
	if strings.TrimSpace(req.Phone) == "" {
		fieldErrs = append(fieldErrs, ValidationError{Field: "phone", Code: "required", Message: "contact phone is required"})
	}
	if strings.TrimSpace(req.EventType) == "" {
		fieldErrs = append(fieldErrs, ValidationError{Field: "event_type", Code: "required", Message: "event type is required"})
	}
	if strings.TrimSpace(req.VenueAddress) == "" {
		fieldErrs = append(fieldErrs, ValidationError{Field: "venue_address", Code: "required", Message: "venue address is required"})
	}
	if req.GuardCount < 1 {
		fieldErrs = append(fieldErrs, ValidationError{Field: "guard_count", Code: "min", Message: "at least one guard is required"})
	}
	eventDate, err := time.Parse(time.RFC3339, strings.TrimSpace(req.EventDate))
	if err != nil {
		fieldErrs = append(fieldErrs, ValidationError{Field: "event_date", Code: "invalid_date", Message: "event date must be RFC 3339"})
	}
	if len(fieldErrs) > 0 {
		AbortWithError(c, &ValidationErrors{Errors: fieldErrs})
		return
	}

	domainReq := bookingdomain.CreateBookingRequest{
		ClientName:          req.ClientName,
		Email:               req.Email,
		Phone:               req.Phone,
		EventType:           req.EventType,
		EventDate:           eventDate,
		VenueAddress:        req.VenueAddress,
		GuardCount:          req.GuardCount,
		SpecialRequirements: req.SpecialRequirements,
		TotalAmount:         req.TotalAmount,
		DepositAmount:       req.DepositAmount,
		Method:              bookingdomain.PaymentMethod(req.Method),
	}
	if req.ContactPrefs != nil {
		domainReq.ContactPrefs = &bookingdomain.ContactPrefs{
			EmailEnabled:     req.ContactPrefs.EmailEnabled,
			SMSEnabled:       req.ContactPrefs.SMSEnabled,
			PreferredChannel: bookingdomain.Channel(req.ContactPrefs.PreferredChannel),
		}
	}

	created, err := s.bookingSvc.Create(c.Request.Context(), domainReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) ListBookings(c *gin.Context) {
	filter := bookingdomain.ListBookingFilter{
		Status: bookingdomain.Status(strings.TrimSpace(c.Query("status"))),
		Email:  strings.TrimSpace(c.Query("email")),
	}

	from, err := parseOptionalTime(c.Query("event_from"), false)
	if err != nil {
		AbortWithError(c, newValidationError("event_from", "invalid_date", "invalid event_from"))
		return
	}
	to, err := parseOptionalTime(c.Query("event_to"), true)
	if err != nil {
		AbortWithError(c, newValidationError("event_to", "invalid_date", "invalid event_to"))
		return
	}
	filter.EventFrom = from
	filter.EventTo = to

	resp, err := s.bookingSvc.List(c.Request.Context(), bookingdomain.ListBookingRequest{
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

func (s *Server) GetBooking(c *gin.Context) {
	id, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	booking, err := s.bookingSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

type updateBookingStatusRequest struct {
	Status     string `json:"status" binding:"required"`
	AdminNotes string `json:"admin_notes"`
}

func (s *Server) UpdateBookingStatus(c *gin.Context) {
	id, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateBookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("status", "required", "status is required"))
		return
	}

	booking, err := s.bookingSvc.UpdateStatus(c.Request.Context(), id, bookingdomain.Status(req.Status), req.AdminNotes)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

type setPaymentReferenceRequest struct {
	ProviderPaymentID string `json:"provider_payment_id" binding:"required"`
}

// SetBookingPaymentReference links a booking to the provider payment id a
// checkout was opened under, so the webhook reconciler can match its
// captures.
func (s *Server) SetBookingPaymentReference(c *gin.Context) {
	id, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req setPaymentReferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("provider_payment_id", "required", "provider payment id is required"))
		return
	}

	booking, err := s.bookingSvc.SetPaymentReference(c.Request.Context(), id, req.ProviderPaymentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}
