package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/guardline/aegis/internal/invoice/domain"
	pkgdb "github.com/guardline/aegis/pkg/db"
	"github.com/guardline/aegis/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Take(&invoice).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) FindByProviderInvoiceID(ctx context.Context, db *gorm.DB, providerInvoiceID string) (*domain.Invoice, error) {
	providerInvoiceID = strings.TrimSpace(providerInvoiceID)
	if providerInvoiceID == "" {
		return nil, nil
	}
	var invoice domain.Invoice
	err := db.WithContext(ctx).
		Where("provider_invoice_id = ?", providerInvoiceID).
		Take(&invoice).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListInvoiceFilter, page pagination.Pagination) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	stmt := db.WithContext(ctx).Model(&domain.Invoice{})
	if filter.BookingID != 0 {
		stmt = stmt.Where("booking_id = ?", filter.BookingID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.DueBefore != nil {
		stmt = stmt.Where("due_at < ?", *filter.DueBefore)
	}
	if page.PageToken != "" {
		createdAt, id, err := pagination.DecodeKeyset(page.PageToken)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("created_at < ? OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
	}
	if page.PageSize > 0 {
		stmt = stmt.Limit(page.PageSize + 1)
	}
	err := stmt.
		Order("created_at desc, id desc").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.InvoiceStatus, paidAt *time.Time, providerPaymentID string, updatedAt time.Time) (int64, error) {
	values := map[string]any{
		"status":     status,
		"updated_at": updatedAt,
	}
	if paidAt != nil {
		values["paid_at"] = *paidAt
	}
	if providerPaymentID != "" {
		values["provider_payment_id"] = providerPaymentID
	}
	res := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id = ?", id).
		Updates(values)
	return res.RowsAffected, res.Error
}

func (r *repo) MarkReminderSent(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"reminder_sent_at": at,
			"updated_at":       at,
		}).Error
}

// NextSequence advances the counter row with a single UPDATE so two
// concurrent invoice creations can never observe the same value.
func (r *repo) NextSequence(ctx context.Context, tx *gorm.DB) (int64, error) {
	res := tx.WithContext(ctx).Exec(`UPDATE invoice_sequences SET value = value + 1 WHERE id = 1`)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		// First allocation: seed the row. A concurrent seeder loses on the
		// primary key and falls back to the update.
		err := tx.WithContext(ctx).Exec(`INSERT INTO invoice_sequences (id, value) VALUES (1, 1)`).Error
		if err == nil {
			return 1, nil
		}
		if !pkgdb.IsDuplicateKeyErr(err) {
			return 0, err
		}
		if err := tx.WithContext(ctx).Exec(`UPDATE invoice_sequences SET value = value + 1 WHERE id = 1`).Error; err != nil {
			return 0, err
		}
	}

	var value int64
	if err := tx.WithContext(ctx).Raw(`SELECT value FROM invoice_sequences WHERE id = 1`).Scan(&value).Error; err != nil {
		return 0, err
	}
	if value <= 0 {
		return 0, errors.New("invoice sequence returned no value")
	}
	return value, nil
}

func (r *repo) ListDueForReminder(ctx context.Context, db *gorm.DB, dueBefore time.Time, limit int) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	err := db.WithContext(ctx).
		Where("status = ?", domain.InvoiceStatusSent).
		Where("due_at <= ?", dueBefore).
		Where("reminder_sent_at IS NULL").
		Order("due_at asc").
		Limit(limit).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) ListOverdue(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	err := db.WithContext(ctx).
		Where("status = ?", domain.InvoiceStatusSent).
		Where("due_at < ?", cutoff).
		Order("due_at asc").
		Limit(limit).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}
