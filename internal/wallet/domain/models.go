package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type TransactionType string

const (
	TransactionTypePersonal TransactionType = "personal_income"
	TransactionTypeDirect   TransactionType = "direct_income"
	TransactionTypeLevel    TransactionType = "level_income"
	TransactionTypePool     TransactionType = "pool_distribution"
	TransactionTypeWithdraw TransactionType = "withdrawal"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusProcessed WithdrawalStatus = "processed"
	WithdrawalStatusRejected  WithdrawalStatus = "rejected"
)

// Wallet holds a member's point balances. Balances are points, not currency;
// conversion to rupees happens only at withdrawal time.
type Wallet struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	MemberID string       `gorm:"type:varchar(16);not null;uniqueIndex" json:"member_id"`

	CurrentBalance        float64 `gorm:"not null;default:0" json:"current_balance"`
	CurrentMonthlyBalance float64 `gorm:"not null;default:0" json:"current_monthly_balance"`

	DirectIncomeCurrent float64 `gorm:"not null;default:0" json:"direct_income_current"`
	DirectIncomeMonthly float64 `gorm:"not null;default:0" json:"direct_income_monthly"`
	LevelIncomeCurrent  float64 `gorm:"not null;default:0" json:"level_income_current"`
	LevelIncomeMonthly  float64 `gorm:"not null;default:0" json:"level_income_monthly"`

	LastResetDate *time.Time `json:"last_reset_date,omitempty"`
	CreatedAt     time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Wallet) TableName() string { return "wallets" }

// WalletTransaction is an append-only ledger line. Credits carry positive
// amounts, withdrawal debits negative.
type WalletTransaction struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	MemberID       string          `gorm:"type:varchar(16);not null;index" json:"member_id"`
	Amount         float64         `gorm:"not null" json:"amount"`
	Type           TransactionType `gorm:"type:varchar(32);not null;index" json:"type"`
	SourceMemberID string          `gorm:"type:varchar(16)" json:"source_member_id,omitempty"`
	OrderID        string          `gorm:"type:varchar(32)" json:"order_id,omitempty"`
	Note           string          `gorm:"type:varchar(255)" json:"note,omitempty"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (WalletTransaction) TableName() string { return "wallet_transactions" }

// Withdrawal is a request to convert wallet points into a rupee payout.
type Withdrawal struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	MemberID string       `gorm:"type:varchar(16);not null;index" json:"member_id"`
	// Points debited from the wallet when processed.
	Points float64 `gorm:"not null" json:"points"`
	// Amount is the rupee payout after charges.
	Amount      int64            `gorm:"not null" json:"amount"`
	Charge      float64          `gorm:"not null;default:0" json:"charge"`
	Status      WithdrawalStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	RequestedAt time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"requested_at"`
	ProcessedAt *time.Time       `json:"processed_at,omitempty"`
	CreatedAt   time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Withdrawal) TableName() string { return "withdrawals" }
