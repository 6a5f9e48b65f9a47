package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pagesentry/pagesentry/internal/extract"
	"github.com/pagesentry/pagesentry/internal/infrastructure/tracing"
)

// ExtractRequest is the body of POST /extract.
type ExtractRequest struct {
	pageRequest
	Request extract.Request      `json:"request"`
	Retry   *extract.RetryPolicy `json:"retry,omitempty"`
}

// Extract runs one extraction request against a page
func (h *Handlers) Extract(c *gin.Context) {
	var req ExtractRequest
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

	compiled, err := req.Request.Compile()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	acquire, _ := h.tracer.StartSpan(c.Request.Context(), tracing.StageAcquire)
	ev, closer, err := h.acquirePage(c, req.pageRequest)
	if err != nil {
		acquire.SetError(err)
		h.tracer.End(acquire)
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	h.tracer.End(acquire)
	if closer != nil {
		defer closer()
	}

	span, ctx := h.tracer.StartSpan(c.Request.Context(), tracing.StageExtract)
	res, attempts := h.engine.ExtractWithRetry(ctx, compiled, ev, req.Retry)
	span.SetTag("extract.method", string(res.Method))
	h.tracer.End(span)

	h.logger.Debug("extraction served",
		zap.String("url", req.URL),
		zap.String("method", string(res.Method)),
		zap.Float64("confidence", res.Confidence),
		zap.Int("attempts", attempts))

	c.JSON(http.StatusOK, gin.H{
		"success":  res.Usable(),
		"result":   res,
		"attempts": attempts,
	})
}
