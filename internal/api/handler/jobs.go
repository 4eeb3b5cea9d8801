package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/colby/bambulog/internal/domain"
	"github.com/colby/bambulog/internal/repository"
)

// JobHandler serves the print job history.
type JobHandler struct {
	jobRepo *repository.JobRepository
}

// NewJobHandler creates a new job handler.
// Parameters:
//   - jobRepo: job repository backing the endpoints.
// Returns:
//   - *JobHandler: initialized handler.
func NewJobHandler(jobRepo *repository.JobRepository) *JobHandler {
	return &JobHandler{jobRepo: jobRepo}
}

// ListJobs handles GET /api/v1/jobs.
// Query parameters: status (RUNNING|FINISH), limit, offset.
func (h *JobHandler) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	status := domain.JobStatus(c.Query("status"))
	if status != "" && status != domain.JobStatusRunning && status != domain.JobStatusFinish {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be RUNNING or FINISH"})
		return
	}

	jobs, err := h.jobRepo.ListRecent(c.Request.Context(), status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":   jobs,
		"limit":  limit,
		"offset": offset,
	})
}

// GetJob handles GET /api/v1/jobs/:id, where id is the numeric row id.
func (h *JobHandler) GetJob(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be numeric"})
		return
	}

	job, err := h.jobRepo.GetByRowID(c.Request.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// Watermark handles GET /api/v1/watermark. The returned mark is the
// largest finished-job row id; consumers treat any increase as "new
// finished work exists" and use the mark itself as their dedup key.
func (h *JobHandler) Watermark(c *gin.Context) {
	mark, err := h.jobRepo.FinishedHighWaterMark(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read watermark"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"high_water_mark": mark})
}

// Stats handles GET /api/v1/stats.
func (h *JobHandler) Stats(c *gin.Context) {
	running, err := h.jobRepo.CountByStatus(c.Request.Context(), domain.JobStatusRunning)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count jobs"})
		return
	}
	finished, err := h.jobRepo.CountByStatus(c.Request.Context(), domain.JobStatusFinish)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"running":  running,
		"finished": finished,
	})
}
