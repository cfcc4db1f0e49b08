package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	rewarddomain "github.com/trinetlabs/trinet/internal/reward/domain"
)

type createThresholdRequest struct {
	Points float64 `json:"points"`
	Reward string  `json:"reward"`
}

func (s *Server) CreateRewardThreshold(c *gin.Context) {
	var req createThresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.rewardSvc.CreateThreshold(c.Request.Context(), rewarddomain.CreateThresholdRequest{
		Points: req.Points,
		Reward: strings.TrimSpace(req.Reward),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListRewardThresholds(c *gin.Context) {
	resp, err := s.rewardSvc.ListThresholds(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListMemberRewards(c *gin.Context) {
	memberID := strings.TrimSpace(c.Param("memberId"))
	resp, err := s.rewardSvc.ListByMember(c.Request.Context(), memberID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
