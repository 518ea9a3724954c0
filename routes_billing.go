package main

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/photoproos/studio_backend/models"
	"github.com/photoproos/studio_backend/utils"
)

type clientFilter struct {
	Search string `form:"search"`
}

type paymentRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

type materializeRequest struct {
	AsOf string `json:"as_of"`
}

type applyCreditRequest struct {
	InvoiceId   int    `json:"invoice_id"`
	AmountCents *int64 `json:"amount_cents"`
}

func (s *server) billingRoutes(api *gin.RouterGroup) {
	clients := api.Group("/clients")
	clients.POST("", entityCreate(models.CreateClient))
	clients.GET("", entityList(func(ctx context.Context, orgId string, limit int, after *string, f clientFilter) (*models.Connection[models.Client], error) {
		return models.PaginateClients(ctx, orgId, limit, after, f.Search)
	}))
	clients.GET("/:id", entityById(models.GetClient))
	clients.PUT("/:id", updateClientHandler)

	invoices := api.Group("/invoices")
	invoices.POST("", entityCreate(models.CreateInvoice))
	invoices.GET("", entityList(models.PaginateInvoices))
	invoices.GET("/:id", entityById(models.GetInvoice))
	invoices.POST("/:id/issue", entityById(models.IssueInvoice))
	invoices.POST("/:id/payments", recordPaymentHandler)
	invoices.POST("/:id/void", entityById(models.VoidInvoice))

	recurring := api.Group("/recurring-invoices")
	recurring.POST("", entityCreate(models.CreateRecurringInvoice))
	recurring.GET("", entityList(models.PaginateRecurringInvoices))
	recurring.GET("/:id", entityById(models.GetRecurringInvoice))
	recurring.PUT("/:id", updateRecurringInvoiceHandler)
	recurring.DELETE("/:id", deleteRecurringInvoiceHandler)
	recurring.POST("/:id/pause", entityById(models.PauseRecurringInvoice))
	recurring.POST("/:id/resume", entityById(models.ResumeRecurringInvoice))
	recurring.POST("/:id/materialize", s.materializeHandler)

	credits := api.Group("/credit-notes")
	credits.POST("", entityCreate(models.CreateCreditNote))
	credits.GET("", entityList(models.PaginateCreditNotes))
	credits.GET("/:id", entityById(models.GetCreditNote))
	credits.DELETE("/:id", deleteCreditNoteHandler)
	credits.POST("/:id/issue", entityById(models.IssueCreditNote))
	credits.POST("/:id/apply", applyCreditNoteHandler)
	credits.POST("/:id/refund", entityById(models.MarkCreditNoteRefunded))
	credits.POST("/:id/void", entityById(models.VoidCreditNote))
	credits.GET("/:id/applications", creditNoteApplicationsHandler)
}

func updateClientHandler(c *gin.Context) {
	orgId, ok := organizationId(c)
	if !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewClient
	if !bindJSON(c, &input) {
		return
	}
	client, err := models.UpdateClient(c.Request.Context(), orgId, id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func recordPaymentHandler(c *gin.Context) {
	orgId, ok := organizationId(c)
	if !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	var req paymentRequest
	if !bindJSON(c, &req) {
		return
	}
	inv, err := models.RecordInvoicePayment(c.Request.Context(), orgId, id, req.AmountCents)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func updateRecurringInvoiceHandler(c *gin.Context) {
	orgId, ok := organizationId(c)
	if !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.UpdateRecurringInvoiceInput
	if !bindJSON(c, &input) {
		return
	}
	ri, err := models.UpdateRecurringInvoice(c.Request.Context(), orgId, id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ri)
}

func deleteRecurringInvoiceHandler(c *gin.Context) {
	orgId, ok := organizationId(c)
	if !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	hard := false
	if v := c.Query("hard"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			respondError(c, utils.NewValidationError("invalid hard flag %q", v))
			return
		}
		hard = parsed
	}
	if err := models.DeleteRecurringInvoice(c.Request.Context(), orgId, id, hard); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// materializeHandler answers 201 when an invoice was created and 200 when the cycle had already been invoiced.
func (s *server) materializeHandler(c *gin.Context) {
	orgId, ok := organizationId(c)
	if !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	var req materializeRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	asOf, ok := s.asOfParam(c, req.AsOf)
	if !ok {
		return
	}
	result, err := models.MaterializeRecurringInvoice(c.Request.Context(), orgId, id, asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	c.JSON(status, result)
}

func deleteCreditNoteHandler(c *gin.Context) {
	orgId, ok := organizationId(c)
	if !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	if err := models.DeleteCreditNote(c.Request.Context(), orgId, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func applyCreditNoteHandler(c *gin.Context) {
	orgId, ok := organizationId(c)
	if !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	var req applyCreditRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.InvoiceId <= 0 {
		respondError(c, utils.NewValidationFieldsError(map[string]string{"invoice_id": "required"}))
		return
	}
	result, err := models.ApplyCreditNoteToInvoice(c.Request.Context(), orgId, id, req.InvoiceId, req.AmountCents)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func creditNoteApplicationsHandler(c *gin.Context) {
	orgId, ok := organizationId(c)
	if !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	applications, err := models.ListCreditNoteApplications(c.Request.Context(), orgId, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": applications})
}
