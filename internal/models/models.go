package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Event types emitted by the parser.
const (
	EventJoined = "joined"
	EventLeft   = "left"
	EventAdded  = "added"
)

// GroupEvent is a single membership event extracted from a chat export.
// Rows are immutable once written; the composite unique index backs the
// insert-and-ignore dedup semantics.
type GroupEvent struct {
	Timestamp     time.Time `gorm:"column:timestamp;not null;uniqueIndex:ux_group_event" json:"timestamp"`
	GroupName     string    `gorm:"column:group_name;not null;uniqueIndex:ux_group_event" json:"group_name"`
	UserPhoneHash string    `gorm:"column:user_phone_hash;not null;uniqueIndex:ux_group_event" json:"user_phone_hash"`
	EventType     string    `gorm:"column:event_type;not null;uniqueIndex:ux_group_event" json:"event_type"`
}

// TableName implements the GORM tabler interface.
func (GroupEvent) TableName() string { return "raw_whatsapp_logs" }

// DedupKey returns the natural key used for duplicate detection. The same
// string keys the Elasticsearch mirror documents so that index stays
// idempotent as well.
func (e GroupEvent) DedupKey() string {
	return e.Timestamp.UTC().Format(time.RFC3339) + "|" + e.GroupName + "|" + e.UserPhoneHash + "|" + e.EventType
}

// IngestRun is an audit record of a single production load.
type IngestRun struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	Source            string    `gorm:"not null" json:"source"`
	Files             int       `gorm:"not null" json:"files"`
	EventsParsed      int       `gorm:"not null" json:"events_parsed"`
	RowsInserted      int       `gorm:"not null" json:"rows_inserted"`
	DuplicatesSkipped int       `gorm:"not null" json:"duplicates_skipped"`
	LinesSkipped      int       `gorm:"not null" json:"lines_skipped"`
	DurationMs        int64     `gorm:"not null" json:"duration_ms"`
}

// TableName implements the GORM tabler interface.
func (IngestRun) TableName() string { return "whatsapp_ingest_runs" }

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&GroupEvent{},
		&IngestRun{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
