package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chimera-labs/trend-skills/internal/config"
	"github.com/chimera-labs/trend-skills/internal/sources"
	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("Trend Skills - Source Connectivity Probe")
	fmt.Println("========================================")

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	window := time.Duration(cfg.TrendLookbackHours) * time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	fmt.Printf("\nProbing sources (tags: %s, window: %v)\n", strings.Join(cfg.TrendTags, ", "), window)
	fmt.Println(strings.Repeat("-", 40))

	probe(ctx, sources.NewRedditSource(cfg.RedditClientID, cfg.RedditClientSecret), cfg.TrendTags, window)
	probe(ctx, sources.NewStackOverflowSource(), cfg.TrendTags, window)
	probe(ctx, sources.NewHackerNewsSource(), cfg.TrendTags, window)

	fmt.Println("\nProbe completed.")
}

func probe(ctx context.Context, source sources.Source, tags []string, window time.Duration) {
	fmt.Printf("- %s (%s)... ", source.GetName(), source.GetKind())

	if !source.IsEnabled() {
		fmt.Printf("DISABLED (missing credentials)\n")
		return
	}

	start := time.Now()
	items, err := source.FetchTrends(ctx, tags, window)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		return
	}

	fmt.Printf("OK (%d items in %v)\n", len(items), time.Since(start).Round(time.Millisecond))

	// Show sample item
	if len(items) > 0 {
		fmt.Printf("    sample [%s, score %.3f]: %v\n", items[0].Tag, items[0].Score, items[0].Payload["title"])
	}
}
