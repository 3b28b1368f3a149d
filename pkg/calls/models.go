package calls

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Call lifecycle states. A row moves pending -> processing -> completed
// or failed; processing is always transient and bounded by the stuck-row
// recovery sweep.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Call is one ingested audio transmission. Rows are created by the feed
// poller and mutated only by the audio worker.
type Call struct {
	CallUID      string         `gorm:"column:call_uid;primaryKey" json:"call_uid"`
	GroupID      string         `gorm:"column:group_id" json:"group_id"`
	TS           int64          `gorm:"column:ts" json:"ts"`
	FeedID       *int64         `gorm:"column:feed_id" json:"feed_id,omitempty"`
	TGID         *int64         `gorm:"column:tg_id" json:"tg_id,omitempty"`
	TagID        *int64         `gorm:"column:tag_id" json:"tag_id,omitempty"`
	NodeID       *int64         `gorm:"column:node_id" json:"node_id,omitempty"`
	SID          *int64         `gorm:"column:sid" json:"sid,omitempty"`
	SiteID       *int64         `gorm:"column:site_id" json:"site_id,omitempty"`
	Freq         *float64       `gorm:"column:freq" json:"freq,omitempty"`
	Src          *int64         `gorm:"column:src" json:"src,omitempty"`
	URL          string         `gorm:"column:url" json:"url"`
	StartedAt    *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	EndedAt      *time.Time     `gorm:"column:ended_at" json:"ended_at,omitempty"`
	DurationMS   int64          `gorm:"column:duration_ms" json:"duration_ms"`
	SizeBytes    *int64         `gorm:"column:size_bytes" json:"size_bytes,omitempty"`
	FetchedAt    time.Time      `gorm:"column:fetched_at" json:"fetched_at"`
	RawJSON      datatypes.JSON `gorm:"column:raw_json" json:"raw_json,omitempty"`
	Processed    bool           `gorm:"column:processed" json:"processed"`
	Status       string         `gorm:"column:status" json:"status"`
	StorageKey   *string        `gorm:"column:storage_key" json:"storage_key,omitempty"`
	Error        *string        `gorm:"column:error" json:"error,omitempty"`
	PickedAt     *time.Time     `gorm:"column:picked_at" json:"picked_at,omitempty"`
	LastAttempt  *time.Time     `gorm:"column:last_attempt" json:"last_attempt,omitempty"`
	PlaylistUUID string         `gorm:"column:playlist_uuid" json:"playlist_uuid"`
}

func (Call) TableName() string {
	return "calls_raw"
}

// UID derives the globally unique call identifier from the source group
// and the call timestamp. The same transmission always yields the same
// UID, which is what makes ingestion idempotent.
func UID(groupID string, ts int64) string {
	return fmt.Sprintf("%s-%d", groupID, ts)
}
