package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/invoicely/internal/invoice/domain"
	"github.com/smallbiznis/invoicely/internal/observability/logger"
	"github.com/smallbiznis/invoicely/internal/providers/pdf"
	receiptdomain "github.com/smallbiznis/invoicely/internal/receipt/domain"
	"go.uber.org/zap"
)

func (s *Server) CreateReceipt(c *gin.Context) {
	var req receiptdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.InvoiceID = strings.TrimSpace(req.InvoiceID)
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.Number = strings.TrimSpace(req.Number)

	resp, err := s.receiptSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListReceipts(c *gin.Context) {
	var query receiptdomain.ListRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.receiptSvc.List(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetReceipt(c *gin.Context) {
	resp, err := s.receiptSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DownloadReceipt(c *gin.Context) {
	ctx := c.Request.Context()
	receipt, err := s.receiptSvc.Get(ctx, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	business, err := s.businessSvc.Get(ctx, receipt.BusinessID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var clientName string
	if receipt.ClientID != nil {
		client, err := s.clientSvc.Get(ctx, receipt.ClientID.String())
		switch {
		case err == nil:
			clientName = client.Name
		case isNotFoundError(err):
			logger.FromContext(ctx).Info("receipt client no longer exists", zap.String("receipt_id", receipt.ID.String()))
		default:
			AbortWithError(c, err)
			return
		}
	}

	var invoice *invoicedomain.Invoice
	if receipt.InvoiceID != nil {
		linked, err := s.invoiceSvc.Get(ctx, invoicedomain.KindInvoice, receipt.InvoiceID.String())
		switch {
		case err == nil:
			invoice = &linked
		case isNotFoundError(err):
			// rendered without line items
		default:
			AbortWithError(c, err)
			return
		}
	}

	doc, err := s.renderer.Receipt(ctx, pdf.NewReceiptData(business.Name, business.Email, clientName, receipt, invoice))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	writePDF(c, fmt.Sprintf("receipt-%s.pdf", receipt.Number), doc)
}
