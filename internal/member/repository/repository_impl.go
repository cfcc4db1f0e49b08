package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/trinetlabs/trinet/internal/member/domain"
	"github.com/trinetlabs/trinet/pkg/db/option"
	"github.com/trinetlabs/trinet/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, member *domain.Member) error {
	return db.WithContext(ctx).Create(member).Error
}

func (r *repo) FindByMemberID(ctx context.Context, db *gorm.DB, memberID string) (*domain.Member, error) {
	var member domain.Member
	err := db.WithContext(ctx).
		Where("member_id = ?", memberID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func (r *repo) FindByMemberIDs(ctx context.Context, db *gorm.DB, memberIDs []string) ([]*domain.Member, error) {
	if len(memberIDs) == 0 {
		return nil, nil
	}
	var members []*domain.Member
	err := db.WithContext(ctx).
		Where("member_id IN ?", memberIDs).
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Member, error) {
	var member domain.Member
	err := db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func (r *repo) FindRoot(ctx context.Context, db *gorm.DB) (*domain.Member, error) {
	var member domain.Member
	err := db.WithContext(ctx).
		Where("is_root = ?", true).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListMemberFilter, page pagination.Pagination) ([]*domain.Member, error) {
	var members []*domain.Member
	stmt := db.WithContext(ctx).Model(&domain.Member{})
	if filter.ReferredBy != "" {
		stmt = stmt.Where("referred_by = ?", filter.ReferredBy)
	}
	if filter.ParentID != "" {
		stmt = stmt.Where("parent_id = ?", filter.ParentID)
	}
	if filter.Active != nil {
		stmt = stmt.Where("is_active = ?", *filter.Active)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, member *domain.Member) error {
	return db.WithContext(ctx).Save(member).Error
}

func (r *repo) UpdateFields(ctx context.Context, db *gorm.DB, memberID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&domain.Member{}).
		Where("member_id = ?", memberID).
		Updates(fields).Error
}
