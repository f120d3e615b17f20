package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/chimera-labs/trend-skills/internal/config"
	"github.com/chimera-labs/trend-skills/internal/media"
	"github.com/chimera-labs/trend-skills/internal/models"
	"github.com/chimera-labs/trend-skills/internal/publish"
	"github.com/chimera-labs/trend-skills/internal/storage"
	"github.com/chimera-labs/trend-skills/internal/trends"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Runs ingest, draft generation and a sandbox publish end to end against
// live trend sources with in-memory storage.
func main() {
	fmt.Println("Trend Skills - Local End-to-End Run")
	fmt.Println("===================================")

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store := storage.NewMemoryStorage()
	fetcher := trends.NewFetcher(cfg, store, nil, trends.DefaultSources(cfg, store)...)
	generator := media.NewGenerator(cfg, store, nil, media.NewTemplateBackend())
	executor := publish.NewExecutor(store, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	planID := "demo-" + uuid.NewString()[:8]

	fmt.Println("\n1. Ingesting trend feeds (this calls real APIs)...")
	feed, err := fetcher.FetchTrends(ctx, models.TrendIngestRequest{
		RequestID: uuid.NewString(),
		Goal:      models.Goal{ID: "demo-goal", Title: "Local demo"},
		Trace:     models.Trace{PlanID: planID, TaskID: "ingest"},
	})
	if err != nil {
		log.Fatalf("Trend ingestion failed: %v", err)
	}
	fmt.Printf("   %d items\n", len(feed.Items))

	var refs []string
	for i, item := range feed.Items {
		if i >= 3 {
			break
		}
		refs = append(refs, item.TrendID)
	}

	fmt.Println("\n2. Generating a text draft...")
	asset, err := generator.Run(ctx, models.MediaGenerationRequest{
		TaskID: "draft",
		PlanID: planID,
		Type:   models.MediaTypeText,
		Brief: models.Brief{
			Prompt:    "Summarize what developers are talking about this week",
			Persona:   "community digest",
			GoalID:    "demo-goal",
			TrendRefs: refs,
		},
		Constraints: models.Constraints{Length: 80, MaxLatencySec: 5},
		Trace:       models.Trace{RequestID: feed.RequestID},
	})
	if err != nil {
		log.Fatalf("Media generation failed: %v", err)
	}
	printJSON(asset)

	fmt.Println("\n3. Publishing to the sandbox...")
	result, err := executor.Run(ctx, models.ExecutionIntentRequest{
		Environment: models.EnvironmentSandbox,
		Intent: models.ExecutionIntent{
			IntentID: uuid.NewString(),
			PlanID:   planID,
			TaskID:   "publish",
			Action:   models.ActionPublishPost,
			Channel:  "teams",
			Content: models.IntentContent{
				Title:     "Weekly developer trends",
				Body:      asset.Output.Text,
				MediaRefs: []string{asset.Output.URI},
			},
		},
	})
	if err != nil {
		log.Fatalf("Publish failed: %v", err)
	}
	printJSON(result)

	keys, _ := store.List(ctx, "")
	fmt.Printf("\nStored %d objects:\n", len(keys))
	for _, k := range keys {
		fmt.Printf("   %s\n", k)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("   ", "  ")
	fmt.Print("   ")
	if err := enc.Encode(v); err != nil {
		log.Printf("failed to print result: %v", err)
	}
}
