package controllers

import (
	"log"
	"net/http"
	"strconv"

	"pkm-review-api/middleware"
	"pkm-review-api/services"

	"github.com/gin-gonic/gin"
)

// statusForCode maps service error tags onto HTTP status codes.
var statusForCode = map[string]int{
	"unknown_toggle":        http.StatusBadRequest,
	"validation_failed":     http.StatusUnprocessableEntity,
	"invalid_transition":    http.StatusConflict,
	"phase_closed":          http.StatusConflict,
	"incomplete_assessment": http.StatusConflict,
	"phase_busy":            http.StatusConflict,
	"forbidden":             http.StatusForbidden,
	"not_found":             http.StatusNotFound,
	"persistence_failure":   http.StatusInternalServerError,
	"internal_error":        http.StatusInternalServerError,
}

// respondError writes {"error","code"} for err. Server-side failures are
// logged with the route.
func respondError(c *gin.Context, err error) {
	code := services.ErrorCode(err)
	status, ok := statusForCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": "bad_request"})
}

func parseIDParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// identity returns the caller's user and role ids; AuthMiddleware guarantees both.
func identity(c *gin.Context) (int, int, bool) {
	userID, okUser := middleware.CurrentUserID(c)
	roleID, okRole := middleware.CurrentRoleID(c)
	if !okUser || !okRole {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity", "code": "unauthorized"})
		return 0, 0, false
	}
	return userID, roleID, true
}
