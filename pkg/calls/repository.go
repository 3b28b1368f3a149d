package calls

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxErrorLen = 500

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert stores a call if its UID has not been seen before. It reports
// whether a row was created; an already-present UID is a duplicate, not
// an error.
func (r *Repository) Insert(ctx context.Context, call *Call) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "call_uid"}},
			DoNothing: true,
		}).
		Create(call)
	if result.Error != nil {
		return false, fmt.Errorf("inserting call %s: %w", call.CallUID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ClaimPending takes ownership of up to limit pending rows. The select
// locks rows with SKIP LOCKED so concurrent claimants never block each
// other or receive the same row, and the transaction only flips status
// to processing before committing. No I/O happens while the lock is held;
// a crash after commit leaves rows in processing for the recovery sweep.
func (r *Repository) ClaimPending(ctx context.Context, limit int) ([]Call, error) {
	var claimed []Call
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND error IS NULL", StatusPending).
			Order("fetched_at ASC").
			Limit(limit).
			Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}

		uids := make([]string, len(claimed))
		for i := range claimed {
			uids[i] = claimed[i].CallUID
		}
		return tx.Model(&Call{}).
			Where("call_uid IN ?", uids).
			Updates(map[string]interface{}{
				"status":    StatusProcessing,
				"picked_at": gorm.Expr("NOW()"),
			}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("claiming pending calls: %w", err)
	}

	for i := range claimed {
		claimed[i].Status = StatusProcessing
	}
	return claimed, nil
}

// RecoverStuck resets rows that have sat in processing longer than
// olderThan back to pending, clearing the claim timestamp. This repairs
// rows orphaned by a worker crash and is safe to run on every cycle.
func (r *Repository) RecoverStuck(ctx context.Context, olderThan float64) (int64, error) {
	result := r.db.WithContext(ctx).Model(&Call{}).
		Where("status = ? AND picked_at < NOW() - make_interval(secs => ?)", StatusProcessing, olderThan).
		Updates(map[string]interface{}{
			"status":    StatusPending,
			"picked_at": nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("recovering stuck calls: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// MarkCompleted records a successful upload. It returns the number of
// rows affected so the caller can verify exactly one row matched; the
// uploaded object is already durable, so a mismatch is reported rather
// than rolled back.
func (r *Repository) MarkCompleted(ctx context.Context, callUID, storageKey string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&Call{}).
		Where("call_uid = ?", callUID).
		Updates(map[string]interface{}{
			"storage_key":  storageKey,
			"processed":    true,
			"status":       StatusCompleted,
			"error":        nil,
			"last_attempt": gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("marking call %s completed: %w", callUID, result.Error)
	}
	return result.RowsAffected, nil
}

// MarkFailed records an exhausted-retries failure. The message is
// truncated so oversized upstream errors cannot blow the column.
func (r *Repository) MarkFailed(ctx context.Context, callUID, message string) error {
	err := r.db.WithContext(ctx).Model(&Call{}).
		Where("call_uid = ?", callUID).
		Updates(map[string]interface{}{
			"error":        truncate(message, maxErrorLen),
			"status":       StatusFailed,
			"last_attempt": gorm.Expr("NOW()"),
		}).Error
	if err != nil {
		return fmt.Errorf("marking call %s failed: %w", callUID, err)
	}
	return nil
}

func (r *Repository) CountAll(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&Call{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting calls: %w", err)
	}
	return n, nil
}

func (r *Repository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Call{}).
		Where("status = ?", status).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("counting %s calls: %w", status, err)
	}
	return n, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
