package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type jobStatus struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`
	Result map[string]any `json:"result"`
	Error  string         `json:"error"`
}

func main() {
	baseURL := flag.String("base-url", "http://localhost:8081", "API base URL")
	batchSize := flag.Int("batch-size", 0, "sweep batch size (0 uses the server default)")
	wait := flag.Bool("wait", true, "poll the job until it finishes")
	flag.Parse()

	adminSecret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
	if adminSecret == "" {
		fmt.Println("Missing ADMIN_SECRET environment variable")
		os.Exit(1)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	base := strings.TrimRight(*baseURL, "/")

	url := base + "/api/v1/admin/refresh-buckets"
	if *batchSize > 0 {
		url = fmt.Sprintf("%s?batch_size=%d", url, *batchSize)
	}

	var started struct {
		JobID string `json:"job_id"`
		Poll  string `json:"poll"`
	}
	status, err := call(client, http.MethodPost, url, adminSecret, &started)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Response Status: %d, job %s\n", status, started.JobID)
	if status != http.StatusAccepted {
		os.Exit(1)
	}
	if !*wait {
		return
	}

	for {
		time.Sleep(2 * time.Second)
		var job jobStatus
		if _, err := call(client, http.MethodGet, base+started.Poll, adminSecret, &job); err != nil {
			fmt.Printf("Error polling job: %v\n", err)
			os.Exit(1)
		}
		if job.Status == "running" {
			continue
		}
		fmt.Printf("Job %s %s\n", job.ID, job.Status)
		if job.Error != "" {
			fmt.Printf("Error: %s\n", job.Error)
			os.Exit(1)
		}
		out, _ := json.MarshalIndent(job.Result, "", "  ")
		fmt.Println(string(out))
		return
	}
}

func call(client *http.Client, method, url, secret string, out any) (int, error) {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("X-Admin-Secret", secret)

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return resp.StatusCode, json.Unmarshal(body, out)
}
