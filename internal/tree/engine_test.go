package tree

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trinetlabs/trinet/internal/config"
	memberdomain "github.com/trinetlabs/trinet/internal/member/domain"
	memberrepository "github.com/trinetlabs/trinet/internal/member/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type treeFixture struct {
	db     *gorm.DB
	node   *snowflake.Node
	repo   memberdomain.Repository
	engine *Engine
}

func newTreeFixture(t *testing.T) *treeFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&memberdomain.Member{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	plans := &config.PlanConfigHolder{}
	plans.Store(config.DefaultPlanConfig())

	repo := memberrepository.Provide()
	engine := NewEngine(Params{Log: zap.NewNop(), Plans: plans, Repo: repo})

	return &treeFixture{db: db, node: node, repo: repo, engine: engine}
}

type nodeSpec struct {
	memberID  string
	parentID  string
	children  []string
	level     int
	totalDesc int
}

func (f *treeFixture) seed(t *testing.T, specs ...nodeSpec) {
	t.Helper()
	now := time.Now().UTC()
	for _, spec := range specs {
		err := f.repo.Insert(context.Background(), f.db, &memberdomain.Member{
			ID:                    f.node.Generate(),
			MemberID:              spec.memberID,
			Name:                  spec.memberID,
			Email:                 spec.memberID + "@example.com",
			ParentID:              spec.parentID,
			Children:              datatypes.JSONSlice[string](spec.children),
			ChildCount:            len(spec.children),
			IsComplete:            len(spec.children) >= memberdomain.MaxChildren,
			Level:                 spec.level,
			TotalDescendantsCount: spec.totalDesc,
			IsActive:              true,
			CreatedAt:             now,
			UpdatedAt:             now,
		})
		require.NoError(t, err)
	}
}

func TestFindAvailableSlotSponsorOpen(t *testing.T) {
	f := newTreeFixture(t)
	f.seed(t, nodeSpec{memberID: "ROOT", children: []string{"A"}},
		nodeSpec{memberID: "A", parentID: "ROOT"})

	slot, err := f.engine.FindAvailableSlot(context.Background(), f.db, "A")
	require.NoError(t, err)
	assert.Equal(t, "A", slot.MemberID)
}

func TestFindAvailableSlotPrefersLightestSubtree(t *testing.T) {
	f := newTreeFixture(t)
	f.seed(t,
		nodeSpec{memberID: "S", children: []string{"C1", "C2", "C3"}},
		nodeSpec{memberID: "C1", parentID: "S", totalDesc: 5},
		nodeSpec{memberID: "C2", parentID: "S", totalDesc: 1},
		nodeSpec{memberID: "C3", parentID: "S", totalDesc: 3},
	)

	slot, err := f.engine.FindAvailableSlot(context.Background(), f.db, "S")
	require.NoError(t, err)
	assert.Equal(t, "C2", slot.MemberID)
}

func TestFindAvailableSlotSpillsOverToAncestor(t *testing.T) {
	f := newTreeFixture(t)
	// Every node below S is saturated: the children are at the depth cap so
	// they can neither take children nor be descended into.
	f.seed(t,
		nodeSpec{memberID: "P", children: []string{"S"}},
		nodeSpec{memberID: "S", parentID: "P", children: []string{"C1", "C2", "C3"}},
		nodeSpec{memberID: "C1", parentID: "S", level: memberdomain.MaxLevel},
		nodeSpec{memberID: "C2", parentID: "S", level: memberdomain.MaxLevel},
		nodeSpec{memberID: "C3", parentID: "S", level: memberdomain.MaxLevel},
	)

	slot, err := f.engine.FindAvailableSlot(context.Background(), f.db, "S")
	require.NoError(t, err)
	assert.Equal(t, "P", slot.MemberID)
}

func TestFindAvailableSlotExhaustedTree(t *testing.T) {
	f := newTreeFixture(t)
	f.seed(t,
		nodeSpec{memberID: "ROOT", children: []string{"C1", "C2", "C3"}},
		nodeSpec{memberID: "C1", parentID: "ROOT", level: memberdomain.MaxLevel},
		nodeSpec{memberID: "C2", parentID: "ROOT", level: memberdomain.MaxLevel},
		nodeSpec{memberID: "C3", parentID: "ROOT", level: memberdomain.MaxLevel},
	)

	_, err := f.engine.FindAvailableSlot(context.Background(), f.db, "ROOT")
	assert.ErrorIs(t, err, ErrNoAvailableSlot)
}

func TestFindAvailableSlotSponsorAtDepthCap(t *testing.T) {
	f := newTreeFixture(t)
	f.seed(t, nodeSpec{memberID: "DEEP", level: memberdomain.MaxLevel})

	_, err := f.engine.FindAvailableSlot(context.Background(), f.db, "DEEP")
	assert.ErrorIs(t, err, ErrMaxLevelReached)
}

func TestFindAvailableSlotUnknownSponsor(t *testing.T) {
	f := newTreeFixture(t)

	_, err := f.engine.FindAvailableSlot(context.Background(), f.db, "MISSING")
	assert.ErrorIs(t, err, ErrSponsorNotFound)
}

func TestCountDescendants(t *testing.T) {
	f := newTreeFixture(t)
	f.seed(t,
		nodeSpec{memberID: "R", children: []string{"A", "B"}},
		nodeSpec{memberID: "A", parentID: "R", children: []string{"A1"}},
		nodeSpec{memberID: "A1", parentID: "A"},
		nodeSpec{memberID: "B", parentID: "R"},
	)

	count, err := f.engine.CountDescendants(context.Background(), f.db, "R")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = f.engine.CountDescendants(context.Background(), f.db, "B")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRefreshDescendantCountsWalksUpToRoot(t *testing.T) {
	f := newTreeFixture(t)
	f.seed(t,
		nodeSpec{memberID: "R", children: []string{"A"}},
		nodeSpec{memberID: "A", parentID: "R", children: []string{"B"}},
		nodeSpec{memberID: "B", parentID: "A"},
	)

	require.NoError(t, f.engine.RefreshDescendantCounts(context.Background(), f.db, "B"))

	refreshed, err := f.repo.FindByMemberID(context.Background(), f.db, "R")
	require.NoError(t, err)
	assert.Equal(t, 2, refreshed.TotalDescendantsCount)
	assert.Equal(t, 1, refreshed.ChildCount)
	assert.False(t, refreshed.IsComplete)

	refreshed, err = f.repo.FindByMemberID(context.Background(), f.db, "A")
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed.TotalDescendantsCount)
}

func TestPropagateRequiresFullNode(t *testing.T) {
	f := newTreeFixture(t)
	f.seed(t,
		nodeSpec{memberID: "R", children: []string{"A", "B"}},
		nodeSpec{memberID: "A", parentID: "R"},
		nodeSpec{memberID: "B", parentID: "R"},
	)

	require.NoError(t, f.engine.Propagate(context.Background(), f.db, "A"))

	root, err := f.repo.FindByMemberID(context.Background(), f.db, "R")
	require.NoError(t, err)
	assert.Zero(t, root.Level)
}

func TestPropagateRaisesAncestorLevels(t *testing.T) {
	f := newTreeFixture(t)
	f.seed(t,
		nodeSpec{memberID: "G", children: []string{"R", "X", "Y"}},
		nodeSpec{memberID: "R", parentID: "G", children: []string{"A", "B", "C"}},
		nodeSpec{memberID: "X", parentID: "G"},
		nodeSpec{memberID: "Y", parentID: "G"},
		nodeSpec{memberID: "A", parentID: "R"},
		nodeSpec{memberID: "B", parentID: "R"},
		nodeSpec{memberID: "C", parentID: "R"},
	)

	require.NoError(t, f.engine.Propagate(context.Background(), f.db, "A"))

	r, err := f.repo.FindByMemberID(context.Background(), f.db, "R")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Level)

	// G is full but its level stays at the minimum child level plus one,
	// which the two leaf children hold at 1.
	g, err := f.repo.FindByMemberID(context.Background(), f.db, "G")
	require.NoError(t, err)
	assert.Equal(t, 1, g.Level)
}
