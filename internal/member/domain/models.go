package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// MaxChildren is the tree arity. Every node holds at most three direct
// children, in placement order.
const MaxChildren = 3

// MaxLevel caps tree depth growth. A sponsor at this level cannot receive
// placements beneath it.
const MaxLevel = 15

// Member is a network participant and a node in the placement tree.
//
// referred_by is the sponsoring member and may differ from parent_id when
// the sponsor's subtree was full and the member spilled over to an ancestor.
type Member struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	MemberID     string       `gorm:"type:varchar(16);not null;uniqueIndex" json:"member_id"`
	Name         string       `gorm:"type:varchar(255);not null" json:"name"`
	Email        string       `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	Phone        string       `gorm:"type:varchar(32)" json:"phone,omitempty"`
	PasswordHash string       `gorm:"type:varchar(255);not null;default:''" json:"-"`

	ReferredBy        string                      `gorm:"type:varchar(16);index" json:"referred_by,omitempty"`
	ParentID          string                      `gorm:"type:varchar(16);index" json:"parent_id,omitempty"`
	Children          datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"children"`
	ChildCount        int                         `gorm:"not null;default:0" json:"child_count"`
	IsComplete        bool                        `gorm:"not null;default:false" json:"is_complete"`
	ReferredCustomers datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"referred_customers"`
	ReferredCount     int                         `gorm:"not null;default:0" json:"referred_count"`

	Level                 int `gorm:"not null;default:0" json:"level"`
	TotalDescendantsCount int `gorm:"not null;default:0" json:"total_descendants_count"`

	Rank                 string `gorm:"type:varchar(32);not null;default:''" json:"rank"`
	MaxMonthlyWithdrawal int64  `gorm:"not null;default:0" json:"max_monthly_withdrawal"`
	Club                 string `gorm:"type:varchar(32);not null;default:''" json:"club"`

	IsActive bool `gorm:"not null;default:false;index" json:"is_active"`
	IsRoot   bool `gorm:"not null;default:false" json:"is_root"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Member) TableName() string { return "members" }

// HasOpenSlot reports whether the node can take another direct child.
func (m *Member) HasOpenSlot() bool {
	return len(m.Children) < MaxChildren
}
