package models

import "time"

// User is a person who signs in to the dashboard.
type User struct {
	ID           string `gorm:"primaryKey;size:32"`
	Name         string `gorm:"size:128;not null"`
	Email        string `gorm:"size:255;uniqueIndex"`
	Role         string `gorm:"size:64;index"`
	PasswordHash string `gorm:"size:128"`
	Active       bool   `gorm:"default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
