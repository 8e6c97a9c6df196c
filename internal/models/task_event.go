package models

import "time"

// TaskEvent records one lifecycle change of a task: creation, a status move,
// archive, soft delete or a quantity report.
type TaskEvent struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	TaskID     string `gorm:"size:32;index"`
	ActorID    string `gorm:"size:32"`
	Action     string `gorm:"size:16;index"`
	FromStatus string `gorm:"size:16"`
	ToStatus   string `gorm:"size:16"`
	Quantity   int
	CreatedAt  time.Time `gorm:"index"`
}
