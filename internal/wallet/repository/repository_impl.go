package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/trinetlabs/trinet/internal/wallet/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) EnsureWallet(ctx context.Context, db *gorm.DB, wallet *domain.Wallet) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO wallets (id, member_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (member_id) DO NOTHING`,
		wallet.ID,
		wallet.MemberID,
		wallet.CreatedAt,
		wallet.UpdatedAt,
	).Error
}

func (r *repo) FindByMemberID(ctx context.Context, db *gorm.DB, memberID string) (*domain.Wallet, error) {
	var wallet domain.Wallet
	err := db.WithContext(ctx).
		Where("member_id = ?", memberID).
		First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *repo) ApplyCredit(ctx context.Context, db *gorm.DB, memberID string, delta domain.CreditDelta, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE wallets SET
			current_balance = current_balance + ?,
			current_monthly_balance = current_monthly_balance + ?,
			direct_income_current = direct_income_current + ?,
			direct_income_monthly = direct_income_monthly + ?,
			level_income_current = level_income_current + ?,
			level_income_monthly = level_income_monthly + ?,
			updated_at = ?
		 WHERE member_id = ?`,
		delta.Balance,
		delta.MonthlyBalance,
		delta.Direct,
		delta.DirectMonthly,
		delta.Level,
		delta.LevelMonthly,
		at,
		memberID,
	).Error
}

// DebitBalance fails quietly (zero rows) when the balance cannot cover the
// debit; callers decide whether that is an error.
func (r *repo) DebitBalance(ctx context.Context, db *gorm.DB, memberID string, points float64, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE wallets SET
			current_balance = current_balance - ?,
			updated_at = ?
		 WHERE member_id = ? AND current_balance >= ?`,
		points,
		at,
		memberID,
		points,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, txn *domain.WalletTransaction) error {
	return db.WithContext(ctx).Create(txn).Error
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, memberID string, limit int) ([]*domain.WalletTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var txns []*domain.WalletTransaction
	err := db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repo) InsertWithdrawal(ctx context.Context, db *gorm.DB, withdrawal *domain.Withdrawal) error {
	return db.WithContext(ctx).Create(withdrawal).Error
}

func (r *repo) FindWithdrawalByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Withdrawal, error) {
	var withdrawal domain.Withdrawal
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&withdrawal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &withdrawal, nil
}

func (r *repo) ListWithdrawals(ctx context.Context, db *gorm.DB, memberID string) ([]*domain.Withdrawal, error) {
	var withdrawals []*domain.Withdrawal
	err := db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("requested_at desc, id desc").
		Find(&withdrawals).Error
	if err != nil {
		return nil, err
	}
	return withdrawals, nil
}

// TransitionWithdrawal moves a withdrawal between statuses. Zero rows means
// the withdrawal was not in the expected source status.
func (r *repo) TransitionWithdrawal(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.WithdrawalStatus, processedAt time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE withdrawals SET
			status = ?,
			processed_at = ?,
			updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(to),
		processedAt,
		processedAt,
		id,
		string(from),
	)
	return result.RowsAffected, result.Error
}

func (r *repo) ResetMonthly(ctx context.Context, db *gorm.DB, cutoff, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE wallets SET
			current_monthly_balance = 0,
			direct_income_monthly = 0,
			level_income_monthly = 0,
			last_reset_date = ?,
			updated_at = ?
		 WHERE last_reset_date IS NULL OR last_reset_date < ?`,
		at,
		at,
		cutoff,
	)
	return result.RowsAffected, result.Error
}
