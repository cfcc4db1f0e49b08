package domain

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// CreditDelta carries the per-bucket increments of one credit.
type CreditDelta struct {
	Balance        float64
	MonthlyBalance float64
	Direct         float64
	DirectMonthly  float64
	Level          float64
	LevelMonthly   float64
}

type Repository interface {
	EnsureWallet(ctx context.Context, db *gorm.DB, wallet *Wallet) error
	FindByMemberID(ctx context.Context, db *gorm.DB, memberID string) (*Wallet, error)
	ApplyCredit(ctx context.Context, db *gorm.DB, memberID string, delta CreditDelta, at time.Time) error
	DebitBalance(ctx context.Context, db *gorm.DB, memberID string, points float64, at time.Time) (int64, error)
	InsertTransaction(ctx context.Context, db *gorm.DB, txn *WalletTransaction) error
	ListTransactions(ctx context.Context, db *gorm.DB, memberID string, limit int) ([]*WalletTransaction, error)
	InsertWithdrawal(ctx context.Context, db *gorm.DB, withdrawal *Withdrawal) error
	FindWithdrawalByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Withdrawal, error)
	ListWithdrawals(ctx context.Context, db *gorm.DB, memberID string) ([]*Withdrawal, error)
	TransitionWithdrawal(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to WithdrawalStatus, processedAt time.Time) (int64, error)
	ResetMonthly(ctx context.Context, db *gorm.DB, cutoff, at time.Time) (int64, error)
}

// CreditRequest identifies one commission credit.
type CreditRequest struct {
	MemberID       string
	Points         float64
	Type           TransactionType
	SourceMemberID string
	OrderID        string
	Note           string
}

type WalletView struct {
	Wallet
	WithdrawableAmount int64 `json:"withdrawable_amount"`
}

type Service interface {
	// Credit applies the full credit bundle in one transaction: balance and
	// income buckets, ledger line, pool accrual, reward check, club tier.
	// Inactive or missing members are skipped without error.
	Credit(ctx context.Context, req CreditRequest) error
	GetByMemberID(ctx context.Context, memberID string) (WalletView, error)
	ListTransactions(ctx context.Context, memberID string, limit int) ([]WalletTransaction, error)
	WithdrawRequest(ctx context.Context, memberID string, amount int64) (Withdrawal, error)
	Withdraw(ctx context.Context, id snowflake.ID, reference string) (Withdrawal, error)
	RejectWithdrawal(ctx context.Context, id snowflake.ID) (Withdrawal, error)
	ListWithdrawals(ctx context.Context, memberID string) ([]Withdrawal, error)
	// ResetMonthly zeroes monthly counters for wallets last reset before the
	// current calendar month. Returns the number of wallets touched.
	ResetMonthly(ctx context.Context) (int64, error)
}

var (
	ErrWalletNotFound       = errors.New("wallet_not_found")
	ErrWithdrawalNotFound   = errors.New("withdrawal_not_found")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrNotEligible          = errors.New("not_eligible")
	ErrExceedsWithdrawable  = errors.New("exceeds_withdrawable")
	ErrExceedsRankLimit     = errors.New("exceeds_rank_limit")
	ErrInvalidStatus        = errors.New("invalid_withdrawal_status")
	ErrInsufficientBalance  = errors.New("insufficient_balance")
	ErrWalletMemberNotFound = errors.New("wallet_member_not_found")
)

// WithdrawableAmount converts a wallet balance into the rupees available for
// payout. Zero below the monthly floor; otherwise the balance at five points
// per rupee, less the ten percent charge.
func WithdrawableAmount(balance, monthlyBalance, monthlyFloor, pointsPerRupee, chargeRate float64) int64 {
	if monthlyBalance < monthlyFloor {
		return 0
	}
	gross := math.Floor(balance / pointsPerRupee)
	net := math.Floor(gross * (1 - chargeRate))
	if net < 0 {
		return 0
	}
	return int64(net)
}

// PointsForWithdrawal is the points debited so the post-charge payout equals
// the requested rupee amount.
func PointsForWithdrawal(amount int64, pointsPerRupee, chargeRate float64) float64 {
	return math.Floor(float64(amount) * pointsPerRupee / (1 - chargeRate))
}
