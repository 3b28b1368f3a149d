package transcription

import "time"

// Processing-state values for the post-audio pipeline. The external
// transcription workers advance a row from queued through indexed; the
// dispatcher only writes queued.
const (
	StateQueued      = "queued"
	StateDownloaded  = "downloaded"
	StateTranscribed = "transcribed"
	StateIndexed     = "indexed"
	StateError       = "error"
)

// ProcessingState tracks a call's hand-off to the transcription workers,
// separate from the ingestion row's completion flags.
type ProcessingState struct {
	CallUID    string    `gorm:"column:call_uid;primaryKey;size:128"`
	Status     string    `gorm:"size:32"`
	RetryCount int       `gorm:"column:retry_count"`
	MaxRetries int       `gorm:"column:max_retries;default:3"`
	LastError  *string   `gorm:"column:last_error"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (ProcessingState) TableName() string {
	return "processing_state"
}

// Transcript rows are written by the transcription workers. The dispatcher
// only checks for their existence.
type Transcript struct {
	ID        uint      `gorm:"primaryKey"`
	CallUID   string    `gorm:"column:call_uid;uniqueIndex;size:128"`
	Text      string    `gorm:"column:text"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (Transcript) TableName() string {
	return "transcripts"
}
