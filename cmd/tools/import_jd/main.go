package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/david/jd-copilot/internal/ingest"
)

// Fetches a posting and prints the normalized JD text without touching the
// database. Handy for checking extraction on a new job board.
func main() {
	link := flag.String("url", "", "JD link to import")
	useHTTP := flag.Bool("http", false, "use the plain net/http fetcher instead of colly")
	allowPrivate := flag.Bool("allow-private", false, "allow private network targets with the colly fetcher (local testing)")
	asJSON := flag.Bool("json", false, "print the full result as JSON")
	timeoutSec := flag.Int("timeout-sec", 60, "overall timeout")
	flag.Parse()

	if *link == "" {
		log.Fatal("Please provide a link using -url flag")
	}

	var fetcher ingest.Fetcher
	if *useHTTP {
		if *allowPrivate {
			log.Fatal("-allow-private is not supported with -http")
		}
		fetcher = ingest.NewHTTPFetcher()
	} else {
		f := ingest.NewCollyFetcher()
		f.AllowPrivateNetworks = *allowPrivate
		fetcher = f
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeoutSec)*time.Second)
	defer cancel()

	result, err := ingest.NewImporter(fetcher).Import(ctx, *link)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			log.Fatal(err)
		}
		return
	}

	log.Printf("Imported %s (%s, %d chars, truncated=%v)", result.CanonicalURL, result.Format, len([]rune(result.Text)), result.Truncated)
	if result.Title != "" {
		fmt.Printf("# %s\n\n", result.Title)
	}
	fmt.Println(result.Text)
}
