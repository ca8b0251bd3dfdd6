package sqlite

import "time"

// ActivityRecord is one encoded event log line. ID order is append order.
type ActivityRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Line      string    `gorm:"type:text;not null" json:"line"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type Checkpoint struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     []byte    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
