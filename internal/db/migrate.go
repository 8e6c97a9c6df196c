package db

import (
	"context"
	"fmt"

	"github.com/zulandar/floorboard/internal/access"
	"github.com/zulandar/floorboard/internal/config"
	"github.com/zulandar/floorboard/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.RoleConfig{},
		&models.RolePermission{},
		&models.Task{},
		&models.TaskAssignment{},
		&models.TaskEvent{},
		&models.Product{},
		&models.Drawing{},
		&models.Order{},
		&models.JobCycle{},
		&models.JobStage{},
		&models.SetupMap{},
		&models.SetupBlock{},
		&models.Notification{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// Reset drops every table and migrates again.
func Reset(db *gorm.DB) error {
	if err := db.Migrator().DropTable(AllModels()...); err != nil {
		return fmt.Errorf("db: drop tables: %w", err)
	}
	return AutoMigrate(db)
}

// RoleWriter stores role configurations. *store.Store satisfies it so that
// seeding publishes role changes like any other write.
type RoleWriter interface {
	PutRole(ctx context.Context, rc *access.RoleConfig) error
}

// SeedRoles upserts role configurations from the config file.
func SeedRoles(ctx context.Context, w RoleWriter, roles []config.RoleConfig) error {
	for _, r := range roles {
		rc, err := r.AccessConfig()
		if err != nil {
			return fmt.Errorf("db: seed role %q: %w", r.ID, err)
		}
		if err := w.PutRole(ctx, rc); err != nil {
			return fmt.Errorf("db: seed role %q: %w", r.ID, err)
		}
	}
	return nil
}
