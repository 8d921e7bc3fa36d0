package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/jd-copilot/internal/db"
)

func main() {
	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	report, err := db.MigrationReport(ctx, pool)
	if err != nil {
		log.Fatalf("Migration report failed: %v", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Migration", "Applied At"})
	pending := 0
	for _, m := range report {
		applied := "pending"
		if m.AppliedAt != nil {
			applied = m.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		} else {
			pending++
		}
		t.AppendRow(table.Row{m.Filename, applied})
	}
	t.Render()

	var total, withJD, analyzed, embedded int
	err = pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(NULLIF(jd_text, '')),
			count(analysis),
			count(jd_embedding)
		FROM opportunities
	`).Scan(&total, &withJD, &analyzed, &embedded)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	fmt.Printf("Opportunities: %d\n", total)
	fmt.Printf("With JD text: %d\n", withJD)
	fmt.Printf("Analyzed: %d\n", analyzed)
	fmt.Printf("With embedding: %d\n", embedded)

	if pending > 0 {
		fmt.Printf("%d migration(s) pending\n", pending)
		os.Exit(1)
	}
}
