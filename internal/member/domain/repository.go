package domain

import (
	"context"

	"github.com/trinetlabs/trinet/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListMemberFilter struct {
	ReferredBy string
	ParentID   string
	Active     *bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, member *Member) error
	FindByMemberID(ctx context.Context, db *gorm.DB, memberID string) (*Member, error)
	FindByMemberIDs(ctx context.Context, db *gorm.DB, memberIDs []string) ([]*Member, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Member, error)
	FindRoot(ctx context.Context, db *gorm.DB) (*Member, error)
	List(ctx context.Context, db *gorm.DB, filter ListMemberFilter, page pagination.Pagination) ([]*Member, error)
	Update(ctx context.Context, db *gorm.DB, member *Member) error
	UpdateFields(ctx context.Context, db *gorm.DB, memberID string, fields map[string]any) error
}
