package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clarad/clarad/internal/model"
	"github.com/clarad/clarad/internal/supervisor"
)

type handlers struct {
	facade *supervisor.Facade
}

type startRequest struct {
	SkipConfigGeneration bool `json:"skipConfigGeneration"`
}

func (h *handlers) start(c *gin.Context) {
	var req startRequest
	_ = c.ShouldBindJSON(&req)
	res := h.facade.Start(c.Request.Context(), req.SkipConfigGeneration)
	respondResult(c, res)
}

func (h *handlers) stop(c *gin.Context) {
	res := h.facade.Stop(c.Request.Context())
	respondResult(c, res)
}

type restartRequest struct {
	SkipConfigRegeneration bool `json:"skipConfigRegeneration"`
}

func (h *handlers) restart(c *gin.Context) {
	var req restartRequest
	_ = c.ShouldBindJSON(&req)
	res := h.facade.Restart(c.Request.Context(), req.SkipConfigRegeneration)
	respondResult(c, res)
}

func (h *handlers) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.facade.GetStatus())
}

func (h *handlers) getStatusWithHealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, h.facade.GetStatusWithHealthCheck(c.Request.Context()))
}

func (h *handlers) getGPUDiagnostics(c *gin.Context) {
	c.JSON(http.StatusOK, h.facade.GetGPUDiagnostics(c.Request.Context()))
}

func (h *handlers) getAvailableBackends(c *gin.Context) {
	c.JSON(http.StatusOK, h.facade.GetAvailableBackends(c.Request.Context()))
}

type backendOverrideRequest struct {
	ID string `json:"id" binding:"required"`
}

func (h *handlers) setBackendOverride(c *gin.Context) {
	var req backendOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.facade.SetBackendOverride(req.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handlers) getModelConfigurations(c *gin.Context) {
	all, err := h.facade.GetModelConfigurations()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, all)
}

func (h *handlers) saveModelConfiguration(c *gin.Context) {
	name := c.Param("name")
	var cfg model.PerModelOverride
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.facade.SaveModelConfiguration(name, cfg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handlers) saveAllModelConfigurations(c *gin.Context) {
	var all map[string]model.PerModelOverride
	if err := c.ShouldBindJSON(&all); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.facade.SaveAllModelConfigurations(all); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handlers) saveMmprojMappings(c *gin.Context) {
	var mappings map[string]model.ProjectionEntry
	if err := c.ShouldBindJSON(&mappings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.facade.SaveMmprojMappings(mappings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handlers) loadMmprojMappings(c *gin.Context) {
	mappings, err := h.facade.LoadMmprojMappings()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, mappings)
}

func (h *handlers) forceReconfigure(c *gin.Context) {
	if err := h.facade.ForceReconfigure(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handlers) saveConfigAndRestart(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res := h.facade.SaveConfigAndRestart(c.Request.Context(), string(raw))
	respondResult(c, res)
}

func (h *handlers) runLlamaOptimizer(c *gin.Context) {
	preset := c.Param("preset")
	if err := h.facade.RunLlamaOptimizer(c.Request.Context(), preset); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func respondResult(c *gin.Context, res model.Result) {
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, res)
}
