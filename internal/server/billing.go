package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/invoicely/internal/billing/checkout"
	"github.com/smallbiznis/invoicely/internal/providers/pdf"
	"github.com/smallbiznis/invoicely/pkg/tenantctx"
)

func (s *Server) ListPlans(c *gin.Context) {
	plans, err := s.planSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plans})
}

func (s *Server) GetSubscription(c *gin.Context) {
	resp, err := s.subscriptionSvc.GetCurrent(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) Checkout(c *gin.Context) {
	var req checkout.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.PlanName) == "" {
		AbortWithError(c, newValidationError("plan", "required", "plan is required"))
		return
	}

	resp, err := s.checkoutSvc.Checkout(c.Request.Context(), checkout.Request{
		PlanName: strings.TrimSpace(req.PlanName),
		Interval: strings.TrimSpace(req.Interval),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// VerifyPayment always answers 200; the outcome is in the result body.
func (s *Server) VerifyPayment(c *gin.Context) {
	reference := strings.TrimSpace(c.Query("reference"))
	if reference == "" {
		reference = strings.TrimSpace(c.Query("trxref"))
	}

	result := s.verificationSvc.VerifyAndApply(c.Request.Context(), reference, strings.TrimSpace(c.Query("subscription_id")))
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) CancelSubscription(c *gin.Context) {
	resp, err := s.subscriptionSvc.Cancel(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetUsage(c *gin.Context) {
	resp, err := s.usage.Usage(c.Request.Context(), s.db)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListBillingInvoices(c *gin.Context) {
	resp, err := s.subscriptionSvc.ListInvoices(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBillingInvoice(c *gin.Context) {
	resp, err := s.subscriptionSvc.GetInvoice(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DownloadBillingInvoice(c *gin.Context) {
	ctx := c.Request.Context()
	entry, err := s.subscriptionSvc.GetInvoice(ctx, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	plan, err := s.planSvc.GetByID(ctx, entry.PlanID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.renderer.SubscriptionInvoice(ctx, pdf.NewInvoiceData(entry, plan, tenantctx.Email(ctx)))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	writePDF(c, fmt.Sprintf("invoice-%s.pdf", entry.Reference), doc)
}

func writePDF(c *gin.Context, filename string, doc []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", doc)
}
