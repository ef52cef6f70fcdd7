package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/Kalpla-elearning/kalpla-sub005/internal/client"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/config"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/notify"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/repository"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/server"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/service"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	db := client.InitDBClient(cfg.DatabaseURL)
	razorpayClient := client.NewRazorpayClient(&cfg.Razorpay)

	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	notifier := notify.NewLogSender()

	referralService := service.NewReferralService(referralRepo, service.PolicyFromConfig(&cfg.Referral))
	orderService := service.NewOrderService(db, orderRepo, paymentRepo)
	paymentService := service.NewPaymentService(
		db, razorpayClient,
		orderRepo,
		paymentRepo,
		webhookEventRepo,
		referralService,
		notifier,
	)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	srv := server.NewServer(cfg.JWT.Secret, orderService, paymentService, referralService)

	log.Println("Starting HTTP server on", serverAddr)
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Println("Signal received, starting graceful shutdown...")

	_, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(); err != nil {
		log.Fatal("HTTP server shutdown error")
	}
}
