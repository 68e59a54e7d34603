// Command seed fills a development database with demo listings.
package main

import (
	"context"
	"flag"
	"log"

	"marketplace/internal/bootstrap"
	"marketplace/internal/config"
	"marketplace/internal/database"
	"marketplace/internal/models"

	"gorm.io/gorm"
)

func main() {
	numListings := flag.Int("listings", 40, "Number of listings to create")
	seedValue := flag.Int64("seed", 0, "Random seed (0 uses the clock)")
	shouldClean := flag.Bool("clean", false, "Delete existing listings before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if *shouldClean {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Listing{}).Error; err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	n, err := bootstrap.SeedIfEmpty(context.Background(), db, *numListings, *seedValue)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Inserted %d listings", n)
}
