package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// maxWebhookBody bounds the raw body read before the signature check.
const maxWebhookBody = 1 << 20

// PaystackWebhook hands the untouched body to the processor; the signature is
// computed over the exact bytes received.
func (s *Server) PaystackWebhook(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.webhookSvc.Process(c.Request.Context(), raw, c.GetHeader(HeaderPaystackSig)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
