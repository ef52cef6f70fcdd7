package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Kalpla-elearning/kalpla-sub005/internal/model"
)

type ReferralRepository interface {
	Create(ctx context.Context, referral *model.Referral) error
	FindByID(ctx context.Context, referralID string) (*model.Referral, error)
	FindByCode(ctx context.Context, code string) (*model.Referral, error)
	FindPendingByReferredUser(ctx context.Context, userID string) (*model.Referral, error)
	ListByReferrer(ctx context.Context, referrerID string) ([]*model.Referral, error)
	// Complete moves PENDING -> COMPLETED and records the reward in one
	// conditional update. When two completions race, exactly one call
	// returns true; the loser sees false and must re-read the row.
	Complete(ctx context.Context, referralID string, rewardAmount, purchaseAmount int64) (bool, error)
}

type referralRepoImpl struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) ReferralRepository {
	return &referralRepoImpl{
		db: db,
	}
}

func (r *referralRepoImpl) Create(ctx context.Context, referral *model.Referral) error {
	return r.db.WithContext(ctx).Create(referral).Error
}

func (r *referralRepoImpl) FindByID(ctx context.Context, referralID string) (*model.Referral, error) {
	var referral model.Referral
	err := r.db.WithContext(ctx).
		Where("id = ?", referralID).
		First(&referral).Error

	if err != nil {
		return nil, err
	}

	return &referral, nil
}

func (r *referralRepoImpl) FindByCode(ctx context.Context, code string) (*model.Referral, error) {
	var referral model.Referral
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&referral).Error

	if err != nil {
		return nil, err
	}

	return &referral, nil
}

func (r *referralRepoImpl) FindPendingByReferredUser(ctx context.Context, userID string) (*model.Referral, error) {
	var referral model.Referral
	err := r.db.WithContext(ctx).
		Where("referred_user_id = ? AND status = ?", userID, model.ReferralPending).
		Order("created_at ASC").
		First(&referral).Error

	if err != nil {
		return nil, err
	}

	return &referral, nil
}

func (r *referralRepoImpl) ListByReferrer(ctx context.Context, referrerID string) ([]*model.Referral, error) {
	var referrals []*model.Referral
	err := r.db.WithContext(ctx).
		Where("referrer_id = ?", referrerID).
		Order("created_at DESC").
		Find(&referrals).Error

	if err != nil {
		return nil, err
	}

	return referrals, nil
}

func (r *referralRepoImpl) Complete(ctx context.Context, referralID string, rewardAmount, purchaseAmount int64) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&model.Referral{}).
		Where("id = ? AND status = ?", referralID, model.ReferralPending).
		Updates(map[string]interface{}{
			"status":          model.ReferralCompleted,
			"reward_amount":   rewardAmount,
			"purchase_amount": purchaseAmount,
			"completed_at":    now,
			"updated_at":      now,
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}
