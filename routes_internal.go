package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/photoproos/studio_backend/models"
	"github.com/photoproos/studio_backend/utils"
	"github.com/photoproos/studio_backend/workflow"
)

type recurringRunRequest struct {
	AsOf string `json:"as_of"`
}

// internalRoutes are for super admins; their context bypasses the tenant guard.
func (s *server) internalRoutes(internal *gin.RouterGroup) {
	internal.POST("/admin/organizations", createOrganizationHandler)
	internal.GET("/admin/revenue", s.revenueDashboardHandler)
	internal.POST("/ops/recurring/run", s.recurringRunHandler)
	internal.POST("/ops/outbox/:id/replay", outboxReplayHandler)
}

func createOrganizationHandler(c *gin.Context) {
	var input models.NewOrganization
	if !bindJSON(c, &input) {
		return
	}
	org, err := models.CreateOrganization(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, org)
}

func (s *server) revenueDashboardHandler(c *gin.Context) {
	asOf, ok := s.asOfParam(c, c.Query("as_of"))
	if !ok {
		return
	}
	dashboard, err := models.GetRevenueDashboard(c.Request.Context(), asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (s *server) recurringRunHandler(c *gin.Context) {
	var req recurringRunRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	asOf, ok := s.asOfParam(c, req.AsOf)
	if !ok {
		return
	}
	summary, err := s.runner.Run(c.Request.Context(), asOf)
	if errors.Is(err, workflow.ErrRunnerLockNotAcquired) {
		respondError(c, utils.NewConcurrencyConflictError("recurring run"))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func outboxReplayHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	event, err := models.ReplayOutboxEvent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":              event.ID,
		"organization_id": event.OrganizationId,
		"event_type":      event.EventType,
		"publish_status":  event.PublishStatus,
	})
}
