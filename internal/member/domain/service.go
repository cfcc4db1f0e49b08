package domain

import (
	"context"
	"errors"

	"github.com/trinetlabs/trinet/pkg/db/pagination"
)

type RegisterMemberRequest struct {
	Name       string
	Email      string
	Phone      string
	Password   string
	ReferredBy string
}

type ListMemberRequest struct {
	PageToken  string
	PageSize   int32
	ReferredBy string
	ParentID   string
	Active     *bool
}

type ListMemberResponse struct {
	pagination.PageInfo
	Members []Member `json:"members"`
}

type DownlineResponse struct {
	Member   Member   `json:"member"`
	Children []Member `json:"children"`
}

type Service interface {
	Register(context.Context, RegisterMemberRequest) (Member, error)
	GetByMemberID(ctx context.Context, memberID string) (Member, error)
	List(context.Context, ListMemberRequest) (ListMemberResponse, error)
	Downline(ctx context.Context, memberID string) (DownlineResponse, error)
	RecomputeRank(ctx context.Context, memberID string) (Member, error)
}

var (
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidEmail     = errors.New("invalid_email")
	ErrEmailTaken       = errors.New("email_taken")
	ErrReferrerNotFound = errors.New("referrer_not_found")
	ErrNotFound         = errors.New("member_not_found")
)
