package systemlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry is one row in the system_logs audit table. Every pipeline cycle
// writes entries here so operators can reconstruct activity without
// scraping process logs.
type Entry struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Component  string         `gorm:"size:64;not null" json:"component"`
	EventType  string         `gorm:"size:64;not null" json:"event_type"`
	Message    string         `json:"message"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	DurationMS *int64         `gorm:"column:duration_ms" json:"duration_ms,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (Entry) TableName() string {
	return "system_logs"
}

type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record writes one audit row with optional structured metadata.
func (r *Recorder) Record(ctx context.Context, component, eventType, message string, metadata map[string]interface{}) error {
	return r.write(ctx, component, eventType, message, metadata, nil)
}

// RecordDuration writes an audit row that also carries an elapsed time,
// used by cycle_complete events.
func (r *Recorder) RecordDuration(ctx context.Context, component, eventType, message string, metadata map[string]interface{}, elapsed time.Duration) error {
	ms := elapsed.Milliseconds()
	return r.write(ctx, component, eventType, message, metadata, &ms)
}

func (r *Recorder) write(ctx context.Context, component, eventType, message string, metadata map[string]interface{}, durationMS *int64) error {
	entry := Entry{
		Component:  component,
		EventType:  eventType,
		Message:    message,
		DurationMS: durationMS,
	}

	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshaling system log metadata: %w", err)
		}
		entry.Metadata = datatypes.JSON(raw)
	}

	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("writing system log: %w", err)
	}
	return nil
}
