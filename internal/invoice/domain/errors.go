package domain

import "errors"

var (
	ErrInvoiceNotFound        = errors.New("invoice_not_found")
	ErrInvalidTransition      = errors.New("invalid_invoice_transition")
	ErrBookingNotApproved     = errors.New("booking must be approved before invoicing")
	ErrDuplicateProviderRef   = errors.New("provider invoice reference already recorded")
	ErrInvoiceAlreadySettled  = errors.New("invoice_already_settled")
)
