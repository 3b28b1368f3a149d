package feeds

import (
	"time"

	"gorm.io/datatypes"
)

// Playlist is one pollable source of calls with its own incremental
// cursor. Rows are created by the playlist sync command; the poller only
// reads them and advances last_pos.
type Playlist struct {
	UUID       string         `gorm:"column:uuid;primaryKey" json:"uuid"`
	Name       string         `gorm:"column:name" json:"name"`
	Descr      *string        `gorm:"column:descr" json:"descr,omitempty"`
	TS         *int64         `gorm:"column:ts" json:"ts,omitempty"`
	LastSeen   *int64         `gorm:"column:last_seen" json:"last_seen,omitempty"`
	Listeners  *int64         `gorm:"column:listeners" json:"listeners,omitempty"`
	Public     bool           `gorm:"column:public" json:"public"`
	MaxGroups  *int64         `gorm:"column:max_groups" json:"max_groups,omitempty"`
	NumGroups  *int64         `gorm:"column:num_groups" json:"num_groups,omitempty"`
	CTIDs      datatypes.JSON `gorm:"column:ctids" json:"ctids,omitempty"`
	GroupsJSON datatypes.JSON `gorm:"column:groups_json" json:"groups_json,omitempty"`
	FetchedAt  time.Time      `gorm:"column:fetched_at" json:"fetched_at"`
	RawJSON    datatypes.JSON `gorm:"column:raw_json" json:"raw_json,omitempty"`
	Sync       bool           `gorm:"column:sync" json:"sync"`
	LastPos    int64          `gorm:"column:last_pos" json:"last_pos"`
}

func (Playlist) TableName() string {
	return "playlists"
}

// PollLog is the append-only record of one poll attempt against one
// playlist. A row is opened at poll start and closed at poll end.
type PollLog struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UUID          string     `gorm:"column:uuid" json:"uuid"`
	PollStartedAt time.Time  `gorm:"column:poll_started_at" json:"poll_started_at"`
	PollEndedAt   *time.Time `gorm:"column:poll_ended_at" json:"poll_ended_at,omitempty"`
	Success       *bool      `gorm:"column:success" json:"success,omitempty"`
	Notes         *string    `gorm:"column:notes" json:"notes,omitempty"`
}

func (PollLog) TableName() string {
	return "playlist_poll_log"
}

// APICallMetric records one outbound request to the feed API, success
// or failure, for rate and latency observability.
type APICallMetric struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Endpoint     string    `gorm:"column:endpoint" json:"endpoint"`
	StatusCode   int       `gorm:"column:status_code" json:"status_code"`
	DurationMS   int64     `gorm:"column:duration_ms" json:"duration_ms"`
	ResponseSize *int64    `gorm:"column:response_size" json:"response_size,omitempty"`
	Error        *string   `gorm:"column:error" json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (APICallMetric) TableName() string {
	return "api_call_metrics"
}
