package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Kalpla-elearning/kalpla-sub005/internal/apperr"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/config"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/dto"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/model"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/repository"
)

// ReferralPolicy decides the reward for a qualifying purchase. Amounts
// are paise.
type ReferralPolicy struct {
	MinPurchaseAmount int64
	RewardRate        decimal.Decimal
	RewardCap         int64
	CodeTTL           time.Duration
}

func PolicyFromConfig(cfg *config.Referral) ReferralPolicy {
	return ReferralPolicy{
		MinPurchaseAmount: cfg.MinPurchaseAmount,
		RewardRate:        decimal.NewFromFloat(cfg.RewardRate),
		RewardCap:         cfg.RewardCap,
		CodeTTL:           time.Duration(cfg.CodeTTLDays) * 24 * time.Hour,
	}
}

// Reward computes rate × purchaseAmount, floored to whole paise and
// capped.
func (p ReferralPolicy) Reward(purchaseAmount int64) int64 {
	reward := decimal.NewFromInt(purchaseAmount).
		Mul(p.RewardRate).
		Floor().
		IntPart()

	if p.RewardCap > 0 && reward > p.RewardCap {
		return p.RewardCap
	}
	return reward
}

type ReferralService interface {
	CreateReferral(ctx context.Context, referrerID, referredUserID string) (*model.Referral, error)
	ValidateReferralCode(ctx context.Context, code, presentingUserID string) (*dto.ReferralValidationResponse, error)
	CompleteReferral(ctx context.Context, referralID string, purchaseAmount int64) (*model.Referral, error)
	// CompleteForPurchase is the qualifying-purchase trigger: it looks
	// up the buyer's pending referral, if any, and completes it.
	CompleteForPurchase(ctx context.Context, userID string, purchaseAmount int64) (*model.Referral, error)
	GetUserReferrals(ctx context.Context, identity model.Identity) ([]*model.Referral, error)
}

type referralServiceImpl struct {
	referralRepo repository.ReferralRepository
	policy       ReferralPolicy
}

func NewReferralService(referralRepo repository.ReferralRepository, policy ReferralPolicy) ReferralService {
	return &referralServiceImpl{
		referralRepo: referralRepo,
		policy:       policy,
	}
}

func newReferralCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "KPL-" + strings.ToUpper(raw[:8])
}

func (s *referralServiceImpl) CreateReferral(ctx context.Context, referrerID, referredUserID string) (*model.Referral, error) {
	if referrerID == "" || referredUserID == "" {
		return nil, apperr.New(apperr.KindValidation, "referrer and referred user are required")
	}
	if referrerID == referredUserID {
		return nil, apperr.New(apperr.KindValidation, "self-referral is not allowed")
	}

	referral := &model.Referral{
		ID:             uuid.NewString(),
		ReferrerID:     referrerID,
		ReferredUserID: referredUserID,
		Code:           newReferralCode(),
		Status:         model.ReferralPending,
		ExpiresAt:      time.Now().Add(s.policy.CodeTTL),
	}

	if err := s.referralRepo.Create(ctx, referral); err != nil {
		return nil, err
	}

	return referral, nil
}

// ValidateReferralCode fails closed: every unknown, expired, consumed or
// self-referral code comes back valid=false with a reason, never an
// error the caller could mistake for a transient failure.
func (s *referralServiceImpl) ValidateReferralCode(ctx context.Context, code, presentingUserID string) (*dto.ReferralValidationResponse, error) {
	referral, err := s.referralRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &dto.ReferralValidationResponse{Valid: false, Reason: "unknown code"}, nil
		}
		return nil, err
	}

	if referral.Status != model.ReferralPending {
		return &dto.ReferralValidationResponse{Valid: false, Reason: "code already used"}, nil
	}
	if time.Now().After(referral.ExpiresAt) {
		return &dto.ReferralValidationResponse{Valid: false, Reason: "code expired"}, nil
	}
	if referral.ReferrerID == presentingUserID {
		return &dto.ReferralValidationResponse{Valid: false, Reason: "self-referral"}, nil
	}

	return &dto.ReferralValidationResponse{
		Valid:      true,
		ReferrerID: referral.ReferrerID,
	}, nil
}

func (s *referralServiceImpl) CompleteReferral(ctx context.Context, referralID string, purchaseAmount int64) (*model.Referral, error) {
	referral, err := s.referralRepo.FindByID(ctx, referralID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "referral not found")
		}
		return nil, err
	}

	// idempotent: a second completion returns the existing record
	// unchanged, no second credit
	if referral.Status == model.ReferralCompleted {
		return referral, nil
	}
	if referral.Status == model.ReferralInvalid {
		return nil, apperr.New(apperr.KindNotEligible, "referral is invalid")
	}
	if time.Now().After(referral.ExpiresAt) {
		return nil, apperr.New(apperr.KindNotEligible, "referral code expired")
	}
	if purchaseAmount < s.policy.MinPurchaseAmount {
		return nil, apperr.Newf(apperr.KindBelowThreshold,
			"purchase amount %d below minimum %d", purchaseAmount, s.policy.MinPurchaseAmount)
	}

	reward := s.policy.Reward(purchaseAmount)

	won, err := s.referralRepo.Complete(ctx, referralID, reward, purchaseAmount)
	if err != nil {
		return nil, err
	}

	updated, err := s.referralRepo.FindByID(ctx, referralID)
	if err != nil {
		return nil, err
	}

	if !won && updated.Status != model.ReferralCompleted {
		// lost the conditional update to something other than a
		// completion (e.g. the code was invalidated concurrently)
		return nil, apperr.New(apperr.KindNotEligible, "referral is no longer pending")
	}

	return updated, nil
}

func (s *referralServiceImpl) CompleteForPurchase(ctx context.Context, userID string, purchaseAmount int64) (*model.Referral, error) {
	referral, err := s.referralRepo.FindPendingByReferredUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	completed, err := s.CompleteReferral(ctx, referral.ID, purchaseAmount)
	if err != nil {
		if apperr.Is(err, apperr.KindBelowThreshold) || apperr.Is(err, apperr.KindNotEligible) {
			// non-qualifying purchase, the referral stays pending
			return nil, nil
		}
		return nil, err
	}

	return completed, nil
}

func (s *referralServiceImpl) GetUserReferrals(ctx context.Context, identity model.Identity) ([]*model.Referral, error) {
	referrals, err := s.referralRepo.ListByReferrer(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}

	if referrals == nil {
		referrals = []*model.Referral{}
	}

	return referrals, nil
}
