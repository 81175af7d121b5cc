package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/invoicely/internal/invoice/domain"
)

type updateInvoiceStatusRequest struct {
	Status string `json:"status"`
}

// Invoices and estimates share handlers; kind comes from the route.

func (s *Server) CreateInvoice(kind invoicedomain.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req invoicedomain.CreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		req.Kind = kind
		req.ClientID = strings.TrimSpace(req.ClientID)
		req.Number = strings.TrimSpace(req.Number)
		req.Currency = strings.TrimSpace(req.Currency)

		resp, err := s.invoiceSvc.Create(c.Request.Context(), req)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"data": resp})
	}
}

func (s *Server) ListInvoices(kind invoicedomain.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var query invoicedomain.ListRequest
		if err := c.ShouldBindQuery(&query); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		query.Kind = kind

		resp, err := s.invoiceSvc.List(c.Request.Context(), query)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": resp})
	}
}

func (s *Server) GetInvoice(kind invoicedomain.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := s.invoiceSvc.Get(c.Request.Context(), kind, strings.TrimSpace(c.Param("id")))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": resp})
	}
}

func (s *Server) UpdateInvoiceStatus(kind invoicedomain.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateInvoiceStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}

		status := invoicedomain.Status(strings.ToLower(strings.TrimSpace(req.Status)))
		resp, err := s.invoiceSvc.MarkStatus(c.Request.Context(), kind, strings.TrimSpace(c.Param("id")), status)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": resp})
	}
}
