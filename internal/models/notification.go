package models

import "time"

// Notification is one entry in a user's notification feed.
type Notification struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	UserID    string `gorm:"size:32;not null;index"`
	Message   string `gorm:"type:text"`
	Kind      string `gorm:"size:16;default:info"`
	TaskID    string `gorm:"size:32"`
	Read      bool   `gorm:"default:false;index"`
	CreatedAt time.Time
}
