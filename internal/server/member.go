package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	memberdomain "github.com/trinetlabs/trinet/internal/member/domain"
	"github.com/trinetlabs/trinet/pkg/db/pagination"
)

type registerMemberRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
	ReferredBy string `json:"referred_by"`
}

// RegistrationRateLimit throttles signups per client address when redis is
// configured; otherwise it is a pass-through.
func (s *Server) RegistrationRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.regLimiter.Enabled() {
			c.Next()
			return
		}
		if !s.regLimiter.Allow(c.Request.Context(), c.ClientIP()) {
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}

func (s *Server) RegisterMember(c *gin.Context) {
	var req registerMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.memberSvc.Register(c.Request.Context(), memberdomain.RegisterMemberRequest{
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.TrimSpace(req.Email),
		Phone:      strings.TrimSpace(req.Phone),
		Password:   req.Password,
		ReferredBy: strings.TrimSpace(req.ReferredBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetMember(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.memberSvc.GetByMemberID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListMembers(c *gin.Context) {
	var query struct {
		pagination.Pagination
		ReferredBy string `form:"referred_by"`
		ParentID   string `form:"parent_id"`
		Active     *bool  `form:"active"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.memberSvc.List(c.Request.Context(), memberdomain.ListMemberRequest{
		PageToken:  query.PageToken,
		PageSize:   int32(query.PageSize),
		ReferredBy: strings.TrimSpace(query.ReferredBy),
		ParentID:   strings.TrimSpace(query.ParentID),
		Active:     query.Active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetDownline(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.memberSvc.Downline(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
