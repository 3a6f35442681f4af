package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	orderdomain "github.com/boilermanc/onceuponadrawing/internal/order/domain"
)

type repository struct{}

// Provide wires the gorm-backed repository.
func Provide() orderdomain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, order *orderdomain.Order) error {
	if order == nil {
		return orderdomain.ErrInvalidOrder
	}
	return db.WithContext(ctx).Create(order).Error
}

func (r *repository) Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*orderdomain.Order, error) {
	var order orderdomain.Order
	err := db.WithContext(ctx).First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, orderdomain.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByPrintJob(ctx context.Context, db *gorm.DB, printJobID int64) (*orderdomain.Order, error) {
	var order orderdomain.Order
	err := db.WithContext(ctx).First(&order, "print_job_id = ?", printJobID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, orderdomain.ErrUnknownPrintJob
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []orderdomain.Status, to orderdomain.Status, now time.Time) (bool, error) {
	if len(from) == 0 {
		return false, orderdomain.ErrInvalidTransition
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status IN (?)`,
		to,
		now,
		id,
		statusStrings(from),
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) MarkPaymentReceived(ctx context.Context, db *gorm.DB, id snowflake.ID, pay orderdomain.PaymentConfirmation, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, payment_ref = ?, amount_cents = ?, currency = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		orderdomain.StatusPaymentReceived,
		pay.Ref,
		pay.AmountCents,
		pay.Currency,
		now,
		id,
		orderdomain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) MarkSubmitted(ctx context.Context, db *gorm.DB, id snowflake.ID, printJobID int64, pageCount int, interiorURL, coverURL string, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, print_job_id = ?, page_count = ?, interior_url = ?, cover_url = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		orderdomain.StatusSubmitted,
		printJobID,
		pageCount,
		interiorURL,
		coverURL,
		now,
		id,
		orderdomain.StatusProcessing,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) SetTracking(ctx context.Context, db *gorm.DB, id snowflake.ID, trackingNumber, trackingURL string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET tracking_number = ?, tracking_url = ?, updated_at = ?
		 WHERE id = ?`,
		trackingNumber,
		trackingURL,
		now,
		id,
	).Error
}

func statusStrings(statuses []orderdomain.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}

type contentProvider struct {
	db *gorm.DB
}

// ProvideContent wires the creation-backed content provider.
func ProvideContent(db *gorm.DB) orderdomain.ContentProvider {
	return &contentProvider{db: db}
}

func (p *contentProvider) Content(ctx context.Context, creationID snowflake.ID) (*orderdomain.Creation, error) {
	var creation orderdomain.Creation
	err := p.db.WithContext(ctx).First(&creation, "id = ?", creationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, orderdomain.ErrCreationNotFound
		}
		return nil, err
	}
	if _, err := creation.StoryPages(); err != nil {
		return nil, err
	}
	return &creation, nil
}
