package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/floorboard/internal/access"
	"github.com/zulandar/floorboard/internal/models"
	"github.com/zulandar/floorboard/internal/realtime"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoleConfig returns the stored permissions for roleID, or
// access.ErrRoleNotFound. It satisfies access.Source.
func (s *Store) RoleConfig(ctx context.Context, roleID string) (*access.RoleConfig, error) {
	var m models.RoleConfig
	err := s.db.WithContext(ctx).Preload("Permissions").Where("id = ?", roleID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("store: role %s: %w", roleID, access.ErrRoleNotFound)
		}
		return nil, fmt.Errorf("store: get role %s: %w", roleID, err)
	}
	return fromRoleModel(m), nil
}

// ListRoles returns every stored role ordered by ID.
func (s *Store) ListRoles(ctx context.Context) ([]*access.RoleConfig, error) {
	var rows []models.RoleConfig
	if err := s.db.WithContext(ctx).Preload("Permissions").Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list roles: %w", err)
	}
	out := make([]*access.RoleConfig, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRoleModel(r))
	}
	return out, nil
}

// PutRole validates and upserts rc, replacing its whole permission table.
func (s *Store) PutRole(ctx context.Context, rc *access.RoleConfig) error {
	if err := rc.Validate(); err != nil {
		return err
	}
	m := toRoleModel(rc)
	perms := m.Permissions
	m.Permissions = nil
	now := s.now()
	m.CreatedAt, m.UpdatedAt = now, now

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
		}).Create(&m).Error
		if err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", rc.ID).Delete(&models.RolePermission{}).Error; err != nil {
			return err
		}
		if len(perms) > 0 {
			return tx.Create(&perms).Error
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: put role %s: %w", rc.ID, err)
	}
	s.publish(realtime.Change{Collection: realtime.CollectionRoles, Op: realtime.OpUpdate, ID: rc.ID})
	return nil
}

// DeleteRole removes a role and its permissions. Users keeping the role
// name resolve to no access.
func (s *Store) DeleteRole(ctx context.Context, roleID string) error {
	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", roleID).Delete(&models.RolePermission{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", roleID).Delete(&models.RoleConfig{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return fmt.Errorf("store: delete role %s: %w", roleID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: role %s", ErrNotFound, roleID)
	}
	s.publish(realtime.Change{Collection: realtime.CollectionRoles, Op: realtime.OpDelete, ID: roleID})
	return nil
}

// SetPermission grants or revokes one level of access on one module.
// Revoking view leaves edit as stored.
func (s *Store) SetPermission(ctx context.Context, roleID string, key access.ModuleKey, level access.Level, granted bool) (*access.RoleConfig, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %q", access.ErrUnknownModule, key)
	}
	rc, err := s.RoleConfig(ctx, roleID)
	if err != nil {
		return nil, err
	}
	p := rc.Permissions[key]
	if level == access.Edit {
		p.Edit = granted
	} else {
		p.View = granted
	}
	if !p.View && !p.Edit {
		delete(rc.Permissions, key)
	} else {
		rc.Permissions[key] = p
	}
	if err := s.PutRole(ctx, rc); err != nil {
		return nil, err
	}
	return rc, nil
}
