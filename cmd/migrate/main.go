package main

import (
	"log"

	"agro-assistant-be/internal/config"
	"agro-assistant-be/internal/model"
	"agro-assistant-be/pkg/database"
)

func main() {
	cfg := config.Load()

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Running migrations...")
	err = db.AutoMigrate(
		&model.User{},
		&model.SubscriptionPlan{},
		&model.UserSubscription{},
		&model.ChatSession{},
		&model.ChatMessage{},
		&model.Document{},
		&model.PesticideProduct{},
		&model.Notification{},
	)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migrations completed")
}
