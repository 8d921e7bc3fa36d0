package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const sweepJobTimeout = 30 * time.Minute

func (s *Server) handleRefreshBuckets(c echo.Context) error {
	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		job := s.runningJob
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":  "A bucket refresh job is already running",
			"job_id": job.ID,
		})
	}

	batchSize := s.batchSize
	if raw := strings.TrimSpace(c.QueryParam("batch_size")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 5000 {
			batchSize = parsed
		}
	}
	if batchSize <= 0 {
		batchSize = 500
	}

	// Detached from the request; the job outlives the 202 response.
	jobCtx, jobCancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), sweepJobTimeout)

	jobID := uuid.New().String()[:8]
	job := &backgroundJob{
		ID:        jobID,
		Status:    "running",
		StartedAt: time.Now(),
		Cancel:    jobCancel,
	}
	s.runningJob = job
	s.jobMu.Unlock()

	go func() {
		defer jobCancel()

		stats, err := s.refresher.RefreshAll(jobCtx, s.now().UTC(), batchSize)

		s.jobMu.Lock()
		defer s.jobMu.Unlock()
		job.EndedAt = time.Now()
		if err != nil {
			job.Status = "failed"
			job.Error = err.Error()
			log.Printf("[bucket-job %s] failed after %d rows: %v", jobID, stats.Scanned, err)
			return
		}
		job.Status = "completed"
		job.Result = map[string]interface{}{
			"scanned":         stats.Scanned,
			"updated":         stats.Updated,
			"stage_counts":    stats.StageCounts,
			"batch_size_used": batchSize,
		}
		log.Printf("[bucket-job %s] completed: scanned=%d updated=%d", jobID, stats.Scanned, stats.Updated)
	}()

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": "Bucket refresh job started",
		"job_id":  jobID,
		"poll":    jobPollPath(jobID),
	})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	queried := c.Param("id")

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	job := s.runningJob
	if job == nil || job.ID != queried {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	resp := map[string]interface{}{
		"id":         job.ID,
		"status":     job.Status,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	return c.JSON(http.StatusOK, resp)
}
