package models

import (
	"time"

	"gorm.io/gorm"
)

// Task is the storage row for a board task. Column names follow the
// historical document schema (plan_quantity, done_quantity, ...); the store
// package maps them onto task.Task.
type Task struct {
	ID              string  `gorm:"primaryKey;size:32"`
	TaskType        string  `gorm:"size:16;default:simple"`
	Title           string  `gorm:"not null"`
	Description     string  `gorm:"type:text"`
	Status          string  `gorm:"size:16;default:todo;index"`
	Priority        string  `gorm:"size:8;default:medium"`
	CreatedBy       string  `gorm:"size:32"`
	OrderID         *string `gorm:"size:32;index"`
	StageID         *string `gorm:"size:32"`
	PlanQuantity    int     `gorm:"default:0"`
	DoneQuantity    int     `gorm:"default:0"`
	PendingQuantity int     `gorm:"default:0"`
	IsFinalStage    bool    `gorm:"default:false"`
	Deadline        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       gorm.DeletedAt `gorm:"index"`

	AssignedUsers []TaskAssignment `gorm:"foreignKey:TaskID"`
}

// TaskAssignment links a task to one assigned user.
type TaskAssignment struct {
	TaskID string `gorm:"primaryKey;size:32"`
	UserID string `gorm:"primaryKey;size:32;index"`
}

// TableName keeps the legacy collection name.
func (TaskAssignment) TableName() string {
	return "task_assigned_users"
}
