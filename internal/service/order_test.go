package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/Kalpla-elearning/kalpla-sub005/internal/apperr"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/dto"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/model"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/repository"
)

func newOrderService(t *testing.T) (OrderService, *gorm.DB) {
	t.Helper()

	db := newTestDB(t)
	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	return NewOrderService(db, orderRepo, paymentRepo), db
}

func courseOrderRequest() *dto.CreateOrderRequest {
	return &dto.CreateOrderRequest{
		ItemID:    "course-golang-101",
		ItemTitle: "Practical Go",
		ItemType:  "COURSE",
		UnitPrice: 999,
		Quantity:  1,
		Currency:  "INR",
	}
}

func TestCreateOrder_ComputesTotal(t *testing.T) {
	svc, _ := newOrderService(t)

	req := courseOrderRequest()
	req.UnitPrice = 250
	req.Quantity = 4

	order, err := svc.CreateOrder(context.Background(), testIdentity("user1"), req)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if order.TotalAmount != 1000 {
		t.Errorf("Expected total 1000, got %d", order.TotalAmount)
	}
	if order.Status != model.OrderCreated {
		t.Errorf("Expected status %s, got %s", model.OrderCreated, order.Status)
	}
	if order.ID == "" {
		t.Error("Expected order ID to be set")
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	svc, _ := newOrderService(t)
	ctx := context.Background()
	identity := testIdentity("user1")

	badPrice := courseOrderRequest()
	badPrice.UnitPrice = 0
	if _, err := svc.CreateOrder(ctx, identity, badPrice); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Expected validation error for zero price, got: %v", err)
	}

	badQty := courseOrderRequest()
	badQty.Quantity = -1
	if _, err := svc.CreateOrder(ctx, identity, badQty); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Expected validation error for negative quantity, got: %v", err)
	}

	badType := courseOrderRequest()
	badType.ItemType = "EBOOK"
	if _, err := svc.CreateOrder(ctx, identity, badType); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Expected validation error for unknown item type, got: %v", err)
	}
}

func TestGetUserOrders_Pagination(t *testing.T) {
	svc, db := newOrderService(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		order := &model.Order{
			ID:          fmt.Sprintf("order-%d", i),
			UserID:      "user1",
			ItemID:      "course-golang-101",
			ItemType:    model.ItemCourse,
			UnitPrice:   100,
			Quantity:    1,
			Currency:    "INR",
			TotalAmount: 100,
			Status:      model.OrderCreated,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.Create(order).Error; err != nil {
			t.Fatalf("create order %d: %v", i, err)
		}
	}

	page1, err := svc.GetUserOrders(ctx, testIdentity("user1"), 1, 2)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(page1.Orders) != 2 {
		t.Fatalf("Expected 2 orders on page 1, got %d", len(page1.Orders))
	}
	if page1.Pagination.Total != 5 {
		t.Errorf("Expected total 5, got %d", page1.Pagination.Total)
	}
	if page1.Orders[0].ID != "order-4" || page1.Orders[1].ID != "order-3" {
		t.Errorf("Expected reverse-chronological page, got %s, %s",
			page1.Orders[0].ID, page1.Orders[1].ID)
	}

	page3, err := svc.GetUserOrders(ctx, testIdentity("user1"), 3, 2)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(page3.Orders) != 1 || page3.Orders[0].ID != "order-0" {
		t.Errorf("Expected last page with order-0, got %+v", page3.Orders)
	}

	empty, err := svc.GetUserOrders(ctx, testIdentity("nobody"), 1, 10)
	if err != nil {
		t.Fatalf("Expected no error for user without orders, got: %v", err)
	}
	if len(empty.Orders) != 0 || empty.Pagination.Total != 0 {
		t.Errorf("Expected empty page, got %+v", empty)
	}
}

func TestGetOrder_WithPayments(t *testing.T) {
	svc, db := newOrderService(t)
	ctx := context.Background()
	identity := testIdentity("user1")

	order, err := svc.CreateOrder(ctx, identity, courseOrderRequest())
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	payment := &model.Payment{
		ID:             "pay-1",
		OrderID:        order.ID,
		Amount:         order.TotalAmount,
		Currency:       order.Currency,
		Status:         model.PaymentPending,
		GatewayOrderID: "order_rzp_1",
	}
	if err := db.Create(payment).Error; err != nil {
		t.Fatalf("create payment: %v", err)
	}

	result, err := svc.GetOrder(ctx, identity, order.ID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Order.ID != order.ID {
		t.Errorf("Expected order %s, got %s", order.ID, result.Order.ID)
	}
	if len(result.Payments) != 1 || result.Payments[0].ID != "pay-1" {
		t.Errorf("Expected the order's payment in the read model, got %+v", result.Payments)
	}

	if _, err := svc.GetOrder(ctx, testIdentity("user2"), order.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("Expected forbidden for another user, got: %v", err)
	}

	if _, err := svc.GetOrder(ctx, identity, "missing"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Expected not found, got: %v", err)
	}
}
