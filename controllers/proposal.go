package controllers

import (
	"context"
	"net/http"

	"pkm-review-api/middleware"
	"pkm-review-api/models"
	"pkm-review-api/services"
	"pkm-review-api/utils"

	"github.com/gin-gonic/gin"
)

// GetProposal returns one proposal. Students only see their own team's.
func GetProposal(c *gin.Context) {
	userID, roleID, ok := identity(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	svc := services.NewProposalService(nil)
	proposal, err := svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if roleID == middleware.RoleStudent {
		member, err := svc.IsTeamMember(c.Request.Context(), proposal, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		if !member {
			c.JSON(http.StatusForbidden, gin.H{"error": "proposal belongs to another team", "code": "forbidden"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": proposal, "next_statuses": services.NextStatuses(proposal.Status)})
}

// GetProposalHistory returns the status history of a proposal.
func GetProposalHistory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	rows, err := services.NewProposalService(nil).History(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": rows})
}

// SubmitProposal moves the caller's draft to submitted.
func SubmitProposal(c *gin.Context) {
	studentTransition(c, (*services.ProposalService).Submit)
}

// SubmitProposalRevision moves the caller's needs_revision proposal to revised.
func SubmitProposalRevision(c *gin.Context) {
	studentTransition(c, (*services.ProposalService).SubmitRevision)
}

type studentAction func(*services.ProposalService, context.Context, int, int) (*models.Proposal, error)

func studentTransition(c *gin.Context, action studentAction) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	proposal, err := action(services.NewProposalService(nil), c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": proposal})
}

// GetProposalStatusSummary counts proposals per status.
func GetProposalStatusSummary(c *gin.Context) {
	statuses, err := utils.ParseStatusList(c.Query("status"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	counts, err := services.NewProposalService(nil).StatusSummary(c.Request.Context(), statuses...)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": counts})
}

// PreviewFinalize evaluates what closing review would decide for a proposal
// without writing anything.
func PreviewFinalize(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	proposal, err := services.NewProposalService(nil).Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := services.NewReviewAggregator(nil).FinalizeProposal(c.Request.Context(), proposal)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "current_status": proposal.Status, "data": result})
}

type assignReviewerRequest struct {
	ReviewerID int `json:"reviewer_id" binding:"required,gt=0"`
	SlotNumber int `json:"slot_number" binding:"required,gt=0"`
}

// AssignReviewer places a reviewer on a proposal slot.
func AssignReviewer(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req assignReviewerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body must be {\"reviewer_id\": n, \"slot_number\": n}")
		return
	}
	assignment, err := services.NewAssignmentService(nil).Assign(c.Request.Context(), id, req.ReviewerID, req.SlotNumber)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": assignment})
}
