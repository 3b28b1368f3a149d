package transcription

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Candidate is a completed call whose audio is in object storage but has no
// transcript yet.
type Candidate struct {
	CallUID      string
	StorageKey   string
	StartedAt    time.Time
	DurationMS   int64
	PlaylistUUID string
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// PendingCandidates selects calls needing transcription, newest first. A
// call qualifies when its audio upload finished cleanly, no transcript row
// exists, it started within the age window, and its processing state is
// absent, retryable, or not yet terminal.
func (r *Repository) PendingCandidates(ctx context.Context, limit, maxAgeHours int) ([]Candidate, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(maxAgeHours) * time.Hour)

	var out []Candidate
	err := r.db.WithContext(ctx).
		Table("calls_raw AS c").
		Select("c.call_uid, c.storage_key, c.started_at, c.duration_ms, c.playlist_uuid").
		Joins("LEFT JOIN transcripts t ON c.call_uid = t.call_uid").
		Joins("LEFT JOIN processing_state ps ON c.call_uid = ps.call_uid").
		Where("c.processed = TRUE").
		Where("c.storage_key IS NOT NULL").
		Where("c.error IS NULL").
		Where("t.id IS NULL").
		Where("c.started_at > ?", cutoff).
		Where(`ps.status IS NULL
			OR (ps.status = 'error' AND COALESCE(ps.retry_count, 0) < COALESCE(ps.max_retries, 3))
			OR ps.status NOT IN ('transcribed', 'indexed', 'error')`).
		Order("c.started_at DESC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkQueued upserts the call's processing state to queued. Only the state
// columns are written so retry bookkeeping owned by the workers survives
// re-dispatch.
func (r *Repository) MarkQueued(ctx context.Context, callUID string) error {
	state := ProcessingState{
		CallUID:   callUID,
		Status:    StateQueued,
		UpdatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Select("call_uid", "status", "updated_at").
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "call_uid"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"status":     StateQueued,
				"updated_at": gorm.Expr("NOW()"),
			}),
		}).
		Create(&state).Error
}
