package main

import (
	"context"
	"log"
	"time"

	"ai-waiter-service/internal/bootstrap"
	"ai-waiter-service/internal/config"
	"ai-waiter-service/internal/model"
	"ai-waiter-service/internal/server"
	"ai-waiter-service/internal/tracer"
	"ai-waiter-service/pkg/database"

	"gorm.io/gorm"
)

func main() {
	// 0. Initialize Tracer
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database (transcript archive; optional)
	var gormDB *gorm.DB
	if cfg.Store.Connection != "" {
		db, err := database.NewGormDBFromDSN(cfg.Store.Connection)
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
		if err := db.AutoMigrate(&model.TranscriptTurn{}); err != nil {
			log.Panicf("Unable to migrate transcript schema: %v", err)
		}
		gormDB = db
	} else {
		log.Println("[WARN] DB_CONNECTION_STRING not set, transcript archive disabled")
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	ctx := context.Background()

	// 4. Warm the menu catalog and keep it fresh
	if err := container.CatalogFetcher.Refresh(ctx, container.Catalog); err != nil {
		log.Printf("[WARN] Initial catalog fetch failed: %v", err)
	}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if err := container.CatalogFetcher.Refresh(ctx, container.Catalog); err != nil {
				log.Printf("[WARN] Catalog refresh failed: %v", err)
			}
		}
	}()

	// 5. Start Background Services
	go container.SpeechEngine.Run(ctx)
	go container.VoiceService.Run(ctx)
	go func() {
		log.Println("Background: Starting Archiver Service...")
		if err := container.ArchiverService.Consume(ctx); err != nil {
			log.Printf("Background Archiver Error: %v", err)
		}
	}()

	// 6. Initialize Server
	srv := server.New(cfg, container)

	// 7. Run Server
	log.Fatal(srv.Run())
}
