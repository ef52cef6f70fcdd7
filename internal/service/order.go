package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Kalpla-elearning/kalpla-sub005/internal/apperr"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/dto"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/model"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type OrderService interface {
	CreateOrder(ctx context.Context, identity model.Identity, req *dto.CreateOrderRequest) (*model.Order, error)
	GetUserOrders(ctx context.Context, identity model.Identity, page, pageSize int) (*dto.OrderListResponse, error)
	GetOrder(ctx context.Context, identity model.Identity, orderID string) (*dto.OrderWithPayments, error)
}

type orderServiceImpl struct {
	db          *gorm.DB
	orderRepo   repository.OrderRepository
	paymentRepo repository.PaymentRepository
}

func NewOrderService(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
) OrderService {
	return &orderServiceImpl{
		db:          db,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
	}
}

func validItemType(t model.ItemType) bool {
	switch t {
	case model.ItemCourse, model.ItemDegreeProgram, model.ItemMentorship, model.ItemSubscription:
		return true
	}
	return false
}

func (s *orderServiceImpl) CreateOrder(ctx context.Context, identity model.Identity, req *dto.CreateOrderRequest) (*model.Order, error) {
	if req.UnitPrice <= 0 {
		return nil, apperr.New(apperr.KindValidation, "unit price must be positive")
	}
	if req.Quantity <= 0 {
		return nil, apperr.New(apperr.KindValidation, "quantity must be positive")
	}
	if req.ItemID == "" {
		return nil, apperr.New(apperr.KindValidation, "item id is required")
	}
	itemType := model.ItemType(req.ItemType)
	if !validItemType(itemType) {
		return nil, apperr.Newf(apperr.KindValidation, "unknown item type %q", req.ItemType)
	}

	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}

	total := decimal.NewFromInt(req.UnitPrice).
		Mul(decimal.NewFromInt(int64(req.Quantity))).
		IntPart()

	order := &model.Order{
		ID:           uuid.NewString(),
		UserID:       identity.UserID,
		ItemID:       req.ItemID,
		ItemTitle:    req.ItemTitle,
		ItemType:     itemType,
		UnitPrice:    req.UnitPrice,
		Quantity:     req.Quantity,
		Currency:     currency,
		TotalAmount:  total,
		Status:       model.OrderCreated,
		BillingName:  req.BillingName,
		BillingEmail: req.BillingEmail,
	}

	if err := s.orderRepo.Create(ctx, s.db, order); err != nil {
		return nil, err
	}

	return order, nil
}

func (s *orderServiceImpl) GetUserOrders(ctx context.Context, identity model.Identity, page, pageSize int) (*dto.OrderListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	orders, total, err := s.orderRepo.ListByUser(ctx, identity.UserID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}

	if orders == nil {
		orders = []*model.Order{}
	}

	return &dto.OrderListResponse{
		Orders: orders,
		Pagination: dto.Pagination{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
		},
	}, nil
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, identity model.Identity, orderID string) (*dto.OrderWithPayments, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "order not found")
		}
		return nil, err
	}

	if order.UserID != identity.UserID && identity.Role != "admin" {
		return nil, apperr.New(apperr.KindForbidden, "order belongs to another user")
	}

	payments, err := s.paymentRepo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &dto.OrderWithPayments{
		Order:    order,
		Payments: payments,
	}, nil
}
