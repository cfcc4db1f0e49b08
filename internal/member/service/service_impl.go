package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/trinetlabs/trinet/internal/clock"
	"github.com/trinetlabs/trinet/internal/config"
	"github.com/trinetlabs/trinet/internal/member/domain"
	"github.com/trinetlabs/trinet/pkg/db"
	"github.com/trinetlabs/trinet/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	memberIDLength   = 10
	memberIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// Insert retries when a generated member_id collides.
	maxIDAttempts = 5
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Plans *config.PlanConfigHolder
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	plans *config.PlanConfigHolder
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("member.service"),
		genID: p.GenID,
		clock: p.Clock,
		plans: p.Plans,
		repo:  p.Repo,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterMemberRequest) (domain.Member, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Member{}, domain.ErrInvalidName
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.Member{}, domain.ErrInvalidEmail
	}

	existing, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return domain.Member{}, err
	}
	if existing != nil {
		return domain.Member{}, domain.ErrEmailTaken
	}

	referredBy := strings.TrimSpace(req.ReferredBy)
	if referredBy != "" {
		referrer, err := s.repo.FindByMemberID(ctx, s.db, referredBy)
		if err != nil {
			return domain.Member{}, err
		}
		if referrer == nil {
			return domain.Member{}, domain.ErrReferrerNotFound
		}
	}

	passwordHash := ""
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return domain.Member{}, err
		}
		passwordHash = string(hash)
	}

	isRoot := false
	if referredBy == "" {
		root, err := s.repo.FindRoot(ctx, s.db)
		if err != nil {
			return domain.Member{}, err
		}
		isRoot = root == nil
	}

	now := s.clock.Now()
	member := domain.Member{
		Name:              name,
		Email:             email,
		Phone:             strings.TrimSpace(req.Phone),
		PasswordHash:      passwordHash,
		ReferredBy:        referredBy,
		Children:          datatypes.JSONSlice[string]{},
		ReferredCustomers: datatypes.JSONSlice[string]{},
		// Members with a sponsor stay inactive until the placement job
		// attaches them to the tree.
		IsActive:  referredBy == "",
		IsRoot:    isRoot,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		member.ID = s.genID.Generate()
		member.MemberID = newMemberID()
		err = s.repo.Insert(ctx, s.db, &member)
		if err == nil {
			break
		}
		if !db.IsDuplicateKeyErr(err) {
			return domain.Member{}, err
		}
	}
	if err != nil {
		return domain.Member{}, fmt.Errorf("allocate member id: %w", err)
	}

	s.log.Info("member registered",
		zap.String("member_id", member.MemberID),
		zap.String("referred_by", member.ReferredBy),
		zap.Bool("is_root", member.IsRoot),
	)

	return member, nil
}

func (s *Service) GetByMemberID(ctx context.Context, memberID string) (domain.Member, error) {
	member, err := s.repo.FindByMemberID(ctx, s.db, strings.TrimSpace(memberID))
	if err != nil {
		return domain.Member{}, err
	}
	if member == nil {
		return domain.Member{}, domain.ErrNotFound
	}
	return *member, nil
}

func (s *Service) List(ctx context.Context, req domain.ListMemberRequest) (domain.ListMemberResponse, error) {
	filter := domain.ListMemberFilter{
		ReferredBy: strings.TrimSpace(req.ReferredBy),
		ParentID:   strings.TrimSpace(req.ParentID),
		Active:     req.Active,
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListMemberResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(member *domain.Member) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        member.ID.String(),
			CreatedAt: member.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	members := make([]domain.Member, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		members = append(members, *item)
	}

	resp := domain.ListMemberResponse{Members: members}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

func (s *Service) Downline(ctx context.Context, memberID string) (domain.DownlineResponse, error) {
	member, err := s.repo.FindByMemberID(ctx, s.db, strings.TrimSpace(memberID))
	if err != nil {
		return domain.DownlineResponse{}, err
	}
	if member == nil {
		return domain.DownlineResponse{}, domain.ErrNotFound
	}

	children, err := s.repo.FindByMemberIDs(ctx, s.db, member.Children)
	if err != nil {
		return domain.DownlineResponse{}, err
	}

	// Preserve placement order, not query order.
	byID := make(map[string]*domain.Member, len(children))
	for _, child := range children {
		byID[child.MemberID] = child
	}
	ordered := make([]domain.Member, 0, len(children))
	for _, childID := range member.Children {
		if child, ok := byID[childID]; ok {
			ordered = append(ordered, *child)
		}
	}

	return domain.DownlineResponse{Member: *member, Children: ordered}, nil
}

// RecomputeRank re-derives the rank from the referred-customer count. The
// operation is idempotent: applying it twice yields the same stored rank.
func (s *Service) RecomputeRank(ctx context.Context, memberID string) (domain.Member, error) {
	member, err := s.repo.FindByMemberID(ctx, s.db, strings.TrimSpace(memberID))
	if err != nil {
		return domain.Member{}, err
	}
	if member == nil {
		return domain.Member{}, domain.ErrNotFound
	}

	// Ranks only apply to active members.
	if !member.IsActive {
		return *member, nil
	}

	plan := s.plans.Current()
	tier, ok := plan.RankFor(member.ReferredCount)
	if !ok {
		return *member, nil
	}
	if member.Rank == tier.Rank && member.MaxMonthlyWithdrawal == tier.MaxMonthlyWithdrawal {
		return *member, nil
	}

	fields := map[string]any{
		"rank":                   tier.Rank,
		"max_monthly_withdrawal": tier.MaxMonthlyWithdrawal,
		"updated_at":             s.clock.Now(),
	}
	if err := s.repo.UpdateFields(ctx, s.db, member.MemberID, fields); err != nil {
		return domain.Member{}, err
	}
	member.Rank = tier.Rank
	member.MaxMonthlyWithdrawal = tier.MaxMonthlyWithdrawal

	s.log.Info("member rank updated",
		zap.String("member_id", member.MemberID),
		zap.String("rank", member.Rank),
		zap.Int("referred_count", member.ReferredCount),
	)

	return *member, nil
}

func newMemberID() string {
	buf := make([]byte, memberIDLength)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("member id entropy: %v", err))
	}
	for i, b := range buf {
		buf[i] = memberIDAlphabet[int(b)%len(memberIDAlphabet)]
	}
	return string(buf)
}
