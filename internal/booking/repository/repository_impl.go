package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/guardline/aegis/internal/booking/domain"
	"github.com/guardline/aegis/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, booking *domain.Booking) error {
	return db.WithContext(ctx).Create(booking).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Booking, error) {
	var booking domain.Booking
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Take(&booking).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repo) FindByProviderPaymentID(ctx context.Context, db *gorm.DB, providerPaymentID string) (*domain.Booking, error) {
	providerPaymentID = strings.TrimSpace(providerPaymentID)
	if providerPaymentID == "" {
		return nil, nil
	}
	var booking domain.Booking
	err := db.WithContext(ctx).
		Where("payment_provider_payment_id = ?", providerPaymentID).
		Take(&booking).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListBookingFilter, page pagination.Pagination) ([]*domain.Booking, error) {
	var bookings []*domain.Booking
	stmt := db.WithContext(ctx).Model(&domain.Booking{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Email != "" {
		stmt = stmt.Where("email = ?", filter.Email)
	}
	if filter.EventFrom != nil {
		stmt = stmt.Where("event_date >= ?", *filter.EventFrom)
	}
	if filter.EventTo != nil {
		stmt = stmt.Where("event_date <= ?", *filter.EventTo)
	}
	if page.PageToken != "" {
		createdAt, id, err := pagination.DecodeKeyset(page.PageToken)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("created_at < ? OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
	}
	if page.PageSize > 0 {
		// One extra row so the caller can tell whether more pages exist.
		stmt = stmt.Limit(page.PageSize + 1)
	}
	err := stmt.
		Order("created_at desc, id desc").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status, adminNotes string, updatedAt time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      status,
			"admin_notes": adminNotes,
			"updated_at":  updatedAt,
		})
	return res.RowsAffected, res.Error
}

func (r *repo) UpdatePayment(ctx context.Context, db *gorm.DB, id snowflake.ID, update domain.PaymentUpdate, updatedAt time.Time) (int64, error) {
	values := map[string]any{
		"payment_status":      update.Status,
		"payment_paid_amount": update.PaidAmount,
		"updated_at":          updatedAt,
	}
	if !update.PaidAt.IsZero() {
		values["payment_paid_at"] = update.PaidAt
	}
	if update.ProviderPaymentID != "" {
		values["payment_provider_payment_id"] = update.ProviderPaymentID
	}
	res := db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("id = ?", id).
		Updates(values)
	return res.RowsAffected, res.Error
}

func (r *repo) SetProviderPaymentID(ctx context.Context, db *gorm.DB, id snowflake.ID, providerPaymentID string, updatedAt time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"payment_provider_payment_id": providerPaymentID,
			"updated_at":                  updatedAt,
		})
	return res.RowsAffected, res.Error
}
