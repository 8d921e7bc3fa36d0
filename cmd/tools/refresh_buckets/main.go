package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/david/jd-copilot/internal/db"
	"github.com/david/jd-copilot/internal/tracker"
)

type output struct {
	RanAt       time.Time      `json:"ran_at"`
	BatchSize   int            `json:"batch_size"`
	Scanned     int            `json:"scanned"`
	Updated     int            `json:"updated"`
	StageCounts map[string]int `json:"stage_counts"`
	Duration    string         `json:"duration"`
	Error       string         `json:"error,omitempty"`
}

func main() {
	batchSize := flag.Int("batch-size", 500, "rows per sweep batch")
	timeoutSec := flag.Int("timeout-sec", 300, "overall sweep timeout")
	flag.Parse()

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	sweepCtx, cancel := context.WithTimeout(ctx, time.Duration(*timeoutSec)*time.Second)
	defer cancel()

	started := time.Now().UTC()
	stats, err := tracker.NewRefresher(db.NewStore(pool)).RefreshAll(sweepCtx, started, *batchSize)

	result := output{
		RanAt:       started,
		BatchSize:   *batchSize,
		Scanned:     stats.Scanned,
		Updated:     stats.Updated,
		StageCounts: stats.StageCounts,
		Duration:    time.Since(started).Round(time.Millisecond).String(),
	}
	if err != nil {
		result.Error = err.Error()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if result.Error != "" {
		os.Exit(1)
	}
}
