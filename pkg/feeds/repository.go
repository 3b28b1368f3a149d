package feeds

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListSyncEnabled returns all playlists the poller should fetch this cycle.
func (r *Repository) ListSyncEnabled(ctx context.Context) ([]Playlist, error) {
	var playlists []Playlist
	err := r.db.WithContext(ctx).
		Where("sync = ?", true).
		Find(&playlists).Error
	if err != nil {
		return nil, fmt.Errorf("listing sync-enabled playlists: %w", err)
	}
	return playlists, nil
}

// UpdateLastPos advances a playlist's cursor to the position the API
// returned, so the next cycle only fetches newer calls.
func (r *Repository) UpdateLastPos(ctx context.Context, uuid string, lastPos int64) error {
	err := r.db.WithContext(ctx).Model(&Playlist{}).
		Where("uuid = ?", uuid).
		Update("last_pos", lastPos).Error
	if err != nil {
		return fmt.Errorf("updating last_pos for %s: %w", uuid, err)
	}
	return nil
}

// PollStart opens a poll-log row for this cycle.
func (r *Repository) PollStart(ctx context.Context, uuid string) error {
	entry := PollLog{
		UUID:          uuid,
		PollStartedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("recording poll start for %s: %w", uuid, err)
	}
	return nil
}

// PollEnd closes the open poll-log row with the outcome of the cycle.
func (r *Repository) PollEnd(ctx context.Context, uuid string, success bool, notes string) error {
	err := r.db.WithContext(ctx).Model(&PollLog{}).
		Where("uuid = ? AND poll_ended_at IS NULL", uuid).
		Updates(map[string]interface{}{
			"poll_ended_at": gorm.Expr("NOW()"),
			"success":       success,
			"notes":         notes,
		}).Error
	if err != nil {
		return fmt.Errorf("recording poll end for %s: %w", uuid, err)
	}
	return nil
}

// RecordAPICall appends one request metric row. Callers treat failures
// as non-fatal.
func (r *Repository) RecordAPICall(ctx context.Context, metric *APICallMetric) error {
	if err := r.db.WithContext(ctx).Create(metric).Error; err != nil {
		return fmt.Errorf("recording api call metric: %w", err)
	}
	return nil
}

// Upsert inserts a playlist or refreshes its mutable fields when the
// UUID already exists. The sync flag and last_pos cursor are operator
// state and deliberately left untouched on update.
func (r *Repository) Upsert(ctx context.Context, playlist *Playlist) error {
	playlist.FetchedAt = time.Now().UTC()
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "uuid"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "descr", "ts", "last_seen", "listeners", "public",
				"max_groups", "num_groups", "ctids", "groups_json",
				"raw_json", "fetched_at",
			}),
		}).
		Create(playlist).Error
	if err != nil {
		return fmt.Errorf("upserting playlist %s: %w", playlist.UUID, err)
	}
	return nil
}
