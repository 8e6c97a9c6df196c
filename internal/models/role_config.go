package models

import "time"

// RoleConfig stores the permission table of one non-admin role.
type RoleConfig struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:128;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Permissions []RolePermission `gorm:"foreignKey:RoleID"`
}

// RolePermission is one module row of a RoleConfig.
type RolePermission struct {
	RoleID    string `gorm:"primaryKey;size:64"`
	ModuleKey string `gorm:"primaryKey;size:64"`
	CanView   bool   `gorm:"default:false"`
	CanEdit   bool   `gorm:"default:false"`
}
