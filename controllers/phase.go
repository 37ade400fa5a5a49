package controllers

import (
	"net/http"
	"strconv"
	"time"

	"pkm-review-api/services"
	"pkm-review-api/utils"

	"github.com/gin-gonic/gin"
)

type setToggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// GetPhase returns the current phase and toggle values.
func GetPhase(c *gin.Context) {
	row, toggles, err := services.NewPhaseController(nil).CurrentPhase(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"phase":      row.CurrentPhase,
		"toggles":    toggles,
		"version":    row.Version,
		"updated_by": row.UpdatedBy,
		"updated_at": row.UpdatedAt,
	})
}

// SetPhaseToggle applies one toggle change for the calling admin.
func SetPhaseToggle(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	key, known := utils.NormalizeToggleKey(c.Param("key"))
	if !known {
		respondError(c, services.UnknownToggle(string(key)))
		return
	}

	var req setToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body must be {\"enabled\": true|false}")
		return
	}

	result, err := services.NewPhaseController(nil).ApplyToggle(c.Request.Context(), key, *req.Enabled, userID)
	if err != nil {
		if result != nil {
			// Flips are committed; only part of the cascade ran.
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":  err.Error(),
				"code":   services.ErrorCode(err),
				"result": result,
			})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

// GetPhaseAudit lists toggle audit entries, newest first.
func GetPhaseAudit(c *gin.Context) {
	filter := services.AuditFilter{BatchID: c.Query("batch_id")}

	if raw := c.Query("toggle_key"); raw != "" {
		key, known := utils.NormalizeToggleKey(raw)
		if !known {
			respondError(c, services.UnknownToggle(raw))
			return
		}
		filter.ToggleKey = key
	}
	if raw := c.Query("actor_id"); raw != "" {
		actor, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "invalid actor_id")
			return
		}
		filter.ActorID = actor
	}
	for name, dst := range map[string]**time.Time{"since": &filter.Since, "until": &filter.Until} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, "invalid "+name+", expected RFC3339")
			return
		}
		*dst = &t
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := services.NewAuditLogService(nil).Query(c.Request.Context(), filter, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": entries, "count": len(entries)})
}
