package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/weiwei-tsao/form-relay/apps/api/internal/platform/config"
	firestoreclient "github.com/weiwei-tsao/form-relay/apps/api/internal/platform/firestore"
	"github.com/weiwei-tsao/form-relay/apps/api/internal/repository"
)

func main() {
	_ = godotenv.Load(".env.local", ".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	if !cfg.StatsEnabled() {
		log.Fatal("FIREBASE_PROJECT_ID is not set; outcome counters are disabled")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, source, err := firestoreclient.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer client.Close()
	fmt.Printf("Connected to Firestore project %s using %s credentials\n\n", cfg.Firebase.ProjectID, source)

	stats, err := repository.NewStatsRepository(client).GetOutcomeStats(ctx)
	if err != nil {
		log.Fatalf("Failed to read outcome stats: %v", err)
	}

	jsonData, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal: %v", err)
	}
	fmt.Println("Outcome counters:")
	fmt.Println(string(jsonData))

	total := stats.Accepted + stats.Rejected + stats.Indeterminate
	if total > 0 {
		fmt.Printf("\nRelay acceptance: %.1f%% of %d relayed submissions\n", 100*float64(stats.Accepted)/float64(total), total)
	}
	if stats.Indeterminate > 0 {
		fmt.Printf("WARNING: %d relays hit the hop limit; check RELAY_MAX_HOPS and the form's thank-you redirect.\n", stats.Indeterminate)
	}
}
