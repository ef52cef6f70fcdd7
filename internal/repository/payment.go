package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Kalpla-elearning/kalpla-sub005/internal/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error
	FindByID(ctx context.Context, paymentID string) (*model.Payment, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Payment, error)
	ListByOrder(ctx context.Context, orderID string) ([]*model.Payment, error)
	// TransitionStatus is the conditional write every lifecycle edge
	// goes through: the row moves from -> to only if it is still at
	// `from`, and `updates` (gateway ids, refund bookkeeping) land in
	// the same statement. Returns false if a concurrent writer won.
	TransitionStatus(ctx context.Context, tx *gorm.DB, paymentID string, from, to model.PaymentStatus, updates map[string]interface{}) (bool, error)
}

type paymentRepoImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepoImpl{
		db: db,
	}
}

func (r *paymentRepoImpl) Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	return tx.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepoImpl) FindByID(ctx context.Context, paymentID string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("id = ?", paymentID).
		First(&payment).Error

	if err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepoImpl) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("gateway_order_id = ?", gatewayOrderID).
		First(&payment).Error

	if err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepoImpl) ListByOrder(ctx context.Context, orderID string) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC, id DESC").
		Find(&payments).Error

	if err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *paymentRepoImpl) TransitionStatus(ctx context.Context, tx *gorm.DB, paymentID string, from, to model.PaymentStatus, updates map[string]interface{}) (bool, error) {
	values := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range updates {
		values[k] = v
	}

	result := tx.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND status = ?", paymentID, from).
		Updates(values)

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}
