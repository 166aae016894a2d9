package main

import (
	"log"
	"os"

	"sacco/internal/config"
	"sacco/internal/db"

	"github.com/joho/godotenv"
)

// Usage: migrate [up|down|status]
func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	if err := db.Migrate(database.DB, command); err != nil {
		log.Fatalf("migrate %s: %v", command, err)
	}
	log.Printf("migrate %s: done", command)
}
