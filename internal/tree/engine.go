package tree

import (
	"context"
	"errors"
	"sort"

	"github.com/trinetlabs/trinet/internal/config"
	memberdomain "github.com/trinetlabs/trinet/internal/member/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNoAvailableSlot = errors.New("no_available_slot")
	ErrMaxLevelReached = errors.New("max_level_reached")
	ErrSponsorNotFound = errors.New("sponsor_not_found")
)

type Params struct {
	fx.In

	Log   *zap.Logger
	Plans *config.PlanConfigHolder
	Repo  memberdomain.Repository
}

// Engine performs placement search and ancestor bookkeeping on the ternary
// tree. Every method reads and writes through the transaction handle it is
// given, so a queue worker can run search, attach and propagation atomically.
type Engine struct {
	log   *zap.Logger
	plans *config.PlanConfigHolder
	repo  memberdomain.Repository
}

func NewEngine(p Params) *Engine {
	return &Engine{
		log:   p.Log.Named("tree.engine"),
		plans: p.Plans,
		repo:  p.Repo,
	}
}

// FindAvailableSlot locates the node a new member should attach under,
// starting below the sponsor and widening to the sponsor's ancestors when the
// subtree is saturated. Pure read; no writes.
//
// Within a full node, the subtree holding the fewest descendants is searched
// exhaustively before its siblings, so growth stays balanced.
func (e *Engine) FindAvailableSlot(ctx context.Context, db *gorm.DB, sponsorID string) (*memberdomain.Member, error) {
	plan := e.plans.Current()

	sponsor, err := e.repo.FindByMemberID(ctx, db, sponsorID)
	if err != nil {
		return nil, err
	}
	if sponsor == nil {
		return nil, ErrSponsorNotFound
	}
	if sponsor.Level >= plan.MaxLevel {
		return nil, ErrMaxLevelReached
	}

	current := sponsor
	for {
		slot, err := e.searchSubtree(ctx, db, current, plan)
		if err != nil {
			return nil, err
		}
		if slot != nil {
			return slot, nil
		}

		if current.ParentID == "" {
			return nil, ErrNoAvailableSlot
		}
		parent, err := e.repo.FindByMemberID(ctx, db, current.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, ErrNoAvailableSlot
		}
		e.log.Debug("subtree exhausted, widening to parent",
			zap.String("from", current.MemberID),
			zap.String("to", parent.MemberID),
		)
		current = parent
	}
}

// searchSubtree walks the subtree rooted at start depth-first with an
// explicit stack, descending into lighter subtrees first.
func (e *Engine) searchSubtree(ctx context.Context, db *gorm.DB, start *memberdomain.Member, plan config.PlanConfig) (*memberdomain.Member, error) {
	stack := []*memberdomain.Member{start}

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if len(node.Children) < plan.MaxChildren && node.Level < plan.MaxLevel {
			return node, nil
		}

		children, err := e.repo.FindByMemberIDs(ctx, db, node.Children)
		if err != nil {
			return nil, err
		}
		// Heaviest first so the lightest subtree is popped next.
		sort.Slice(children, func(i, j int) bool {
			return children[i].TotalDescendantsCount > children[j].TotalDescendantsCount
		})
		stack = append(stack, children...)
	}

	return nil, nil
}

// CountDescendants counts every node beneath the member with an iterative
// worklist over the stored children lists.
func (e *Engine) CountDescendants(ctx context.Context, db *gorm.DB, memberID string) (int, error) {
	member, err := e.repo.FindByMemberID(ctx, db, memberID)
	if err != nil {
		return 0, err
	}
	if member == nil {
		return 0, nil
	}

	count := 0
	pending := append([]string(nil), member.Children...)
	for len(pending) > 0 {
		batch := pending
		pending = nil

		nodes, err := e.repo.FindByMemberIDs(ctx, db, batch)
		if err != nil {
			return 0, err
		}
		count += len(nodes)
		for _, node := range nodes {
			pending = append(pending, node.Children...)
		}
	}
	return count, nil
}

// RefreshDescendantCounts walks from the member up to the root, recomputing
// the derived counters on every ancestor. No early exit: a new leaf changes
// the descendant total of the whole ancestor chain.
func (e *Engine) RefreshDescendantCounts(ctx context.Context, db *gorm.DB, fromMemberID string) error {
	node, err := e.repo.FindByMemberID(ctx, db, fromMemberID)
	if err != nil {
		return err
	}

	for node != nil {
		total, err := e.CountDescendants(ctx, db, node.MemberID)
		if err != nil {
			return err
		}

		fields := map[string]any{
			"child_count":             len(node.Children),
			"is_complete":             len(node.Children) >= e.plans.Current().MaxChildren,
			"referred_count":          len(node.ReferredCustomers),
			"total_descendants_count": total,
		}
		if err := e.repo.UpdateFields(ctx, db, node.MemberID, fields); err != nil {
			return err
		}

		if node.ParentID == "" {
			return nil
		}
		node, err = e.repo.FindByMemberID(ctx, db, node.ParentID)
		if err != nil {
			return err
		}
	}
	return nil
}

// Propagate recomputes levels bottom-up along the ancestor chain. A node's
// level is zero until all three slots are filled, then one past the minimum
// child level, capped. The walk stops early when a complete node's level is
// unchanged, since nothing above it can change either.
func (e *Engine) Propagate(ctx context.Context, db *gorm.DB, fromMemberID string) error {
	plan := e.plans.Current()

	node, err := e.repo.FindByMemberID(ctx, db, fromMemberID)
	if err != nil {
		return err
	}

	for node != nil {
		level, err := e.computeLevel(ctx, db, node, plan)
		if err != nil {
			return err
		}

		if level != node.Level {
			if err := e.repo.UpdateFields(ctx, db, node.MemberID, map[string]any{"level": level}); err != nil {
				return err
			}
		} else if len(node.Children) >= plan.MaxChildren {
			// Complete node with a settled level: ancestors are settled too.
			return nil
		}

		if node.ParentID == "" {
			return nil
		}
		node, err = e.repo.FindByMemberID(ctx, db, node.ParentID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) computeLevel(ctx context.Context, db *gorm.DB, node *memberdomain.Member, plan config.PlanConfig) (int, error) {
	if len(node.Children) < plan.MaxChildren {
		return 0, nil
	}

	children, err := e.repo.FindByMemberIDs(ctx, db, node.Children)
	if err != nil {
		return 0, err
	}
	if len(children) < plan.MaxChildren {
		return 0, nil
	}

	min := children[0].Level
	for _, child := range children[1:] {
		if child.Level < min {
			min = child.Level
		}
	}
	level := min + 1
	if level > plan.MaxLevel {
		level = plan.MaxLevel
	}
	return level, nil
}
