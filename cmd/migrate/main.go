package main

import (
	"fmt"
	"log"

	"whatsapp-gateway/internal/adapters/db/postgres"
	"whatsapp-gateway/internal/config"

	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	conf := config.FromEnv()

	fmt.Println("Connecting to database...")

	db, err := gorm.Open(pgdriver.Open(conf.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}

	sqlDB, _ := db.DB()
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}

	fmt.Println("Running migrations...")

	if err := db.AutoMigrate(&postgres.MessageRecord{}); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	fmt.Println("Migration complete")
}
