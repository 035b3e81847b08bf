package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"inferxgate.backend/internal/config"
	"inferxgate.backend/internal/domain/entities"
	"inferxgate.backend/internal/infrastructure/repositories"
	"inferxgate.backend/internal/usecases"
	"inferxgate.backend/pkg/logger"
)

// keygen mints a virtual key directly against the database, for
// bootstrapping before the admin API is reachable.
func main() {
	name := flag.String("name", "", "key name (required)")
	budget := flag.Float64("budget", 0, "max budget in USD, 0 for unlimited")
	rpm := flag.Int("rpm", 0, "requests per minute, 0 for unlimited")
	tpm := flag.Int("tpm", 0, "tokens per minute, 0 for unlimited")
	models := flag.String("models", "", "comma-separated model allow-list, empty for all")
	expires := flag.Duration("expires", 0, "key lifetime, 0 for no expiry")
	flag.Parse()

	if *name == "" {
		log.Fatal("-name is required")
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := config.Load()
	logger.Init(cfg.Server.Env)

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.Database.URL(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	input := &entities.CreateVirtualKeyInput{Name: *name}
	if *budget > 0 {
		input.MaxBudget = budget
	}
	if *rpm > 0 {
		input.RateLimitRPM = rpm
	}
	if *tpm > 0 {
		input.RateLimitTPM = tpm
	}
	if *models != "" {
		for _, m := range strings.Split(*models, ",") {
			input.AllowedModels = append(input.AllowedModels, strings.TrimSpace(m))
		}
	}
	if *expires > 0 {
		t := time.Now().Add(*expires)
		input.ExpiresAt = &t
	}

	keyRepo := repositories.NewVirtualKeyRepository(db)
	uc := usecases.NewVirtualKeyUseCase(keyRepo, usecases.NewKeyResolver(keyRepo))

	resp, err := uc.Create(context.Background(), input)
	if err != nil {
		log.Fatalf("failed to create key: %v", err)
	}

	fmt.Printf("id:     %s\n", resp.ID)
	fmt.Printf("name:   %s\n", resp.Name)
	fmt.Printf("prefix: %s\n", resp.KeyPrefix)
	fmt.Printf("key:    %s\n", resp.Key)
	fmt.Println("store the key now, it is not shown again")
}
