package client

import (
	"log"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Kalpla-elearning/kalpla-sub005/internal/model"
)

func InitDBClient(databaseURL string) *gorm.DB {
	var err error
	var db *gorm.DB

	// sqlite DSNs (file: or a bare path) are used for local development,
	// mysql everywhere else
	if strings.HasPrefix(databaseURL, "file:") || strings.HasSuffix(databaseURL, ".db") {
		db, err = gorm.Open(sqlite.Open(databaseURL), &gorm.Config{})
	} else {
		db, err = gorm.Open(mysql.Open(databaseURL), &gorm.Config{})
	}
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal(err)
	}

	// Connection pool (important for webhooks)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&model.Order{},
		&model.Payment{},
		&model.Referral{},
		&model.WebhookEvent{},
	); err != nil {
		log.Fatal(err)
	}

	return db
}
