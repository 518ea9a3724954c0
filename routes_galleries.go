package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/photoproos/studio_backend/models"
)

type completeAddonRequest struct {
	DeliveryNote string `json:"delivery_note"`
}

// addonRequestView adds the actions a caller may take next.
type addonRequestView struct {
	*models.GalleryAddonRequest
	AvailableActions []models.AddonRequestAction `json:"available_actions"`
	Terminal         bool                        `json:"terminal"`
}

func newAddonRequestView(req *models.GalleryAddonRequest) addonRequestView {
	actions := models.AvailableAddonRequestActions(req.Status)
	if actions == nil {
		actions = []models.AddonRequestAction{}
	}
	return addonRequestView{
		GalleryAddonRequest: req,
		AvailableActions:    actions,
		Terminal:            models.IsAddonRequestTerminal(req.Status),
	}
}

// withActions wraps an add-on request operation so its response carries the next actions.
func withActions(fn func(ctx context.Context, organizationId string, id int) (*models.GalleryAddonRequest, error)) func(ctx context.Context, organizationId string, id int) (*addonRequestView, error) {
	return func(ctx context.Context, organizationId string, id int) (*addonRequestView, error) {
		req, err := fn(ctx, organizationId, id)
		if err != nil {
			return nil, err
		}
		view := newAddonRequestView(req)
		return &view, nil
	}
}

func (s *server) galleryRoutes(api *gin.RouterGroup) {
	galleries := api.Group("/galleries")
	galleries.POST("", entityCreate(models.CreateGallery))
	galleries.GET("/:id", entityById(models.GetGallery))
	galleries.POST("/:id/deliver", entityById(models.MarkGalleryDelivered))

	addons := api.Group("/addons")
	addons.POST("", entityCreate(models.CreateGalleryAddon))
	addons.GET("", listAddonsHandler)

	requests := api.Group("/addon-requests")
	requests.POST("", entityCreate(models.CreateAddonRequest))
	requests.GET("", entityList(models.PaginateAddonRequests))
	requests.GET("/:id", entityById(withActions(models.GetAddonRequest)))
	requests.POST("/:id/quote", sendQuoteHandler)
	requests.POST("/:id/start", entityById(withActions(models.StartAddonRequestWithoutQuote)))
	requests.POST("/:id/approve", entityById(withActions(models.ApproveAddonRequest)))
	requests.POST("/:id/decline", entityById(withActions(models.DeclineAddonRequest)))
	requests.POST("/:id/start-work", entityById(withActions(models.StartAddonRequestWork)))
	requests.POST("/:id/complete", completeAddonRequestHandler)
	requests.POST("/:id/cancel", entityById(withActions(models.CancelAddonRequest)))
}

func listAddonsHandler(c *gin.Context) {
	orgId, ok := organizationId(c)
	if !ok {
		return
	}
	addons, err := models.ListGalleryAddons(c.Request.Context(), orgId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"addons": addons})
}

func sendQuoteHandler(c *gin.Context) {
	orgId, ok := organizationId(c)
	if !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.AddonQuoteInput
	if !bindJSON(c, &input) {
		return
	}
	req, err := models.SendAddonQuote(c.Request.Context(), orgId, id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAddonRequestView(req))
}

func completeAddonRequestHandler(c *gin.Context) {
	orgId, ok := organizationId(c)
	if !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input completeAddonRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &input) {
		return
	}
	req, err := models.CompleteAddonRequest(c.Request.Context(), orgId, id, input.DeliveryNote)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAddonRequestView(req))
}
