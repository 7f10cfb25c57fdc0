package domain

import "errors"

var (
	ErrBookingNotFound       = errors.New("booking_not_found")
	ErrEventDateTooSoon      = errors.New("event date must be at least 7 days in the future")
	ErrDepositBelowMinimum   = errors.New("deposit must be at least 25% of total amount")
	ErrInvalidTotalAmount    = errors.New("total amount must be greater than zero")
	ErrMissingContactPhone   = errors.New("contact phone is required")
	ErrMissingVenueAddress   = errors.New("venue address is required")
	ErrInvalidStatus         = errors.New("invalid_status")
	ErrInvalidTransition     = errors.New("invalid_status_transition")
	ErrInvalidGuardCount     = errors.New("number of guards must be at least 1")
	ErrInvalidPaymentRef     = errors.New("payment reference is required")
	ErrPaymentAlreadySettled = errors.New("payment_already_settled")
)
