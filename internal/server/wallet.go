package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	walletdomain "github.com/trinetlabs/trinet/internal/wallet/domain"
)

func (s *Server) GetWallet(c *gin.Context) {
	memberID := strings.TrimSpace(c.Param("memberId"))
	resp, err := s.walletSvc.GetByMemberID(c.Request.Context(), memberID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListWalletTransactions(c *gin.Context) {
	var query struct {
		Limit int `form:"limit,default=50"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	memberID := strings.TrimSpace(c.Param("memberId"))
	resp, err := s.walletSvc.ListTransactions(c.Request.Context(), memberID, query.Limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type withdrawalRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) RequestWithdrawal(c *gin.Context) {
	var req withdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	memberID := strings.TrimSpace(c.Param("memberId"))
	resp, err := s.walletSvc.WithdrawRequest(c.Request.Context(), memberID, req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListWithdrawals(c *gin.Context) {
	memberID := strings.TrimSpace(c.Param("memberId"))
	resp, err := s.walletSvc.ListWithdrawals(c.Request.Context(), memberID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type processWithdrawalRequest struct {
	Reference string `json:"reference"`
}

func (s *Server) ProcessWithdrawal(c *gin.Context) {
	id, err := parseWithdrawalID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid withdrawal id"))
		return
	}

	var req processWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.walletSvc.Withdraw(c.Request.Context(), id, strings.TrimSpace(req.Reference))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RejectWithdrawal(c *gin.Context) {
	id, err := parseWithdrawalID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid withdrawal id"))
		return
	}

	resp, err := s.walletSvc.RejectWithdrawal(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func parseWithdrawalID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, walletdomain.ErrWithdrawalNotFound
	}
	return id, nil
}
