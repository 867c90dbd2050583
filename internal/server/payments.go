package server

import (
	"net/http"
	"strings"

	paymentdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/payment/domain"
	"github.com/gin-gonic/gin"
)

type updatePaymentStatusRequest struct {
	Status    string `json:"status"`
	Method    string `json:"method"`
	Reference string `json:"reference"`
	Notes     string `json:"notes"`
}

type myPaymentsResponse struct {
	Eligibility *paymentdomain.Eligibility `json:"eligibility"`
	History     *paymentdomain.History     `json:"history"`
}

func (s *Server) MyPayments(c *gin.Context) {
	subject, ok := subjectFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	ctx := c.Request.Context()
	eligibility, err := s.paymentSvc.Eligibility(ctx, subject.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	history, err := s.paymentSvc.History(ctx, subject.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": myPaymentsResponse{
		Eligibility: eligibility,
		History:     history,
	}})
}

func (s *Server) RequestPayout(c *gin.Context) {
	subject, ok := subjectFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.paymentSvc.RequestPayout(c.Request.Context(), subject)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DownloadReceipt(c *gin.Context) {
	subject, ok := subjectFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	file, err := s.paymentSvc.Receipt(c.Request.Context(), subject, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+file.FileName+`"`)
	c.Data(http.StatusOK, "application/pdf", file.Content)
}

func (s *Server) ListEligibleUsers(c *gin.Context) {
	resp, err := s.paymentSvc.ListEligibleUsers(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SettleUser(c *gin.Context) {
	subject, ok := subjectFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.paymentSvc.Settle(c.Request.Context(), subject, strings.TrimSpace(c.Param("userId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdatePaymentStatus(c *gin.Context) {
	subject, ok := subjectFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req updatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.UpdateStatus(c.Request.Context(), subject, strings.TrimSpace(c.Param("id")), paymentdomain.UpdateStatusRequest{
		Status:    strings.TrimSpace(req.Status),
		Method:    strings.TrimSpace(req.Method),
		Reference: strings.TrimSpace(req.Reference),
		Notes:     strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
