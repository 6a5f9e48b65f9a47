package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// requireStore aborts with 503 when the selector cache is disabled.
func (h *Handlers) requireStore(c *gin.Context) bool {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "selector cache is disabled",
		})
		return false
	}
	return true
}

// SelectorStats returns aggregate selector cache statistics
func (h *Handlers) SelectorStats(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}

	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   stats,
	})
}

// SelectorDomains lists all domains with learned selectors
func (h *Handlers) SelectorDomains(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}

	domains, err := h.store.Domains(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"domains": domains,
	})
}

// DomainSelectors lists the learned selectors for one page's domain
func (h *Handlers) DomainSelectors(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}

	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "url query parameter is required",
		})
		return
	}

	selectors, err := h.store.DomainSelectors(c.Request.Context(), url)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"selectors": selectors,
	})
}

// ClearSelectors drops learned selectors, for one domain or all of them
func (h *Handlers) ClearSelectors(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}

	removed, err := h.store.Clear(c.Request.Context(), c.Query("domain"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"removed": removed,
	})
}
