package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/jd-copilot/internal/db"
	"github.com/david/jd-copilot/internal/models"
)

func main() {
	stage := flag.String("stage", "", "only show this stage (e.g. DECISION_PENDING)")
	limit := flag.Int("limit", 20, "max rows")
	flag.Parse()

	filter := strings.ToUpper(strings.TrimSpace(*stage))
	if filter != "" && !models.Stage(filter).Valid() {
		log.Fatalf("unknown stage %q", *stage)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, `
		SELECT id, company, role_title, stage, decision, COALESCE(next_action, ''), bucket_due, day0_at
		FROM opportunities
		WHERE ($1 = '' OR stage = $1)
		ORDER BY bucket_due ASC NULLS LAST, id
		LIMIT $2`, filter, *limit)
	if err != nil {
		log.Fatal(err)
	}
	defer rows.Close()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Company", "Role", "Stage", "Decision", "Due", "Age", "Next Action"})

	now := time.Now().UTC()
	for rows.Next() {
		var id int64
		var company, role, stage, decision, action string
		var due *time.Time
		var day0 time.Time

		if err := rows.Scan(&id, &company, &role, &stage, &decision, &action, &due, &day0); err != nil {
			log.Printf("Scan error: %v", err)
			continue
		}

		dueText := "-"
		if due != nil {
			dueText = due.UTC().Format("2006-01-02")
			if due.Before(now) {
				dueText += " (overdue)"
			}
		}
		age := int(now.Sub(day0).Hours() / 24)

		t.AppendRow(table.Row{id, company, role, stage, decision, dueText, age, truncate(action, 40)})
	}
	if err := rows.Err(); err != nil {
		log.Fatal(err)
	}
	t.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
