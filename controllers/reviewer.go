package controllers

import (
	"net/http"

	"pkm-review-api/middleware"
	"pkm-review-api/services"

	"github.com/gin-gonic/gin"
)

// GetMyAssignments lists the calling reviewer's roster.
func GetMyAssignments(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	rows, err := services.NewAssignmentService(nil).ListForReviewer(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": rows, "count": len(rows)})
}

// SaveAdministrativeAssessment upserts administrative checklist entries.
func SaveAdministrativeAssessment(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var input services.AdministrativeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid administrative assessment payload")
		return
	}
	summary, err := services.NewAssessmentService(nil).SaveAdministrative(c.Request.Context(), id, userID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": summary})
}

// SaveSubstantiveAssessment upserts substantive scores.
func SaveSubstantiveAssessment(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var input services.SubstantiveInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid substantive assessment payload")
		return
	}
	summary, err := services.NewAssessmentService(nil).SaveSubstantive(c.Request.Context(), id, userID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": summary})
}

// GetAssessmentSummary returns completeness and totals for an assignment.
// Admins may read any assignment.
func GetAssessmentSummary(c *gin.Context) {
	userID, roleID, ok := identity(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	owner := userID
	if roleID == middleware.RoleAdmin {
		owner = 0
	}
	summary, err := services.NewAssessmentService(nil).Summary(c.Request.Context(), id, owner)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": summary})
}
