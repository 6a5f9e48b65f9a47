package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pagesentry/pagesentry/internal/infrastructure/tracing"
	"github.com/pagesentry/pagesentry/internal/run"
)

// RunStep is the wire form of a run step. WaitTimeout travels as
// milliseconds.
type RunStep struct {
	run.Step
	WaitTimeoutMS int64 `json:"waitTimeoutMs,omitempty"`
}

// RunRequest is the body of POST /run.
type RunRequest struct {
	pageRequest
	Steps []RunStep `json:"steps"`
}

// StartRun executes a multi-step run against a page
func (h *Handlers) StartRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid request: " + err.Error(),
		})
		return
	}

	if err := req.pageRequest.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	steps := make([]run.Step, 0, len(req.Steps))
	for _, s := range req.Steps {
		step := s.Step
		if s.WaitTimeoutMS > 0 {
			step.WaitTimeout = time.Duration(s.WaitTimeoutMS) * time.Millisecond
		}
		steps = append(steps, step)
	}

	ev, closer, err := h.acquirePage(c, req.pageRequest)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	if closer != nil {
		defer closer()
	}

	span, ctx := h.tracer.StartSpan(c.Request.Context(), tracing.StageRun)
	report, err := h.runner.Run(ctx, steps, ev)
	if err != nil {
		span.SetError(err)
		h.tracer.End(span)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	span.SetTag("run.status", string(report.Status))
	h.tracer.End(span)

	c.JSON(http.StatusOK, gin.H{
		"success": report.Passed,
		"report":  report,
	})
}

// ListRuns lists recorded runs, newest first
func (h *Handlers) ListRuns(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "run history is disabled",
		})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "limit must be a positive integer",
			})
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(c.Request.Context(), c.Query("status"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	totals, err := h.store.Aggregate(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"runs":    runs,
		"totals":  totals,
	})
}

// GetRun returns one run with its captured artifacts
func (h *Handlers) GetRun(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "run history is disabled",
		})
		return
	}

	runID := c.Param("id")
	record, err := h.store.GetRun(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "run not found",
		})
		return
	}

	captures, err := h.store.RunCaptures(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"run":      record,
		"captures": captures,
	})
}
