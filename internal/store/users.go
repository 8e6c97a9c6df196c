package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/floorboard/internal/models"
	"github.com/zulandar/floorboard/internal/realtime"
	"gorm.io/gorm"
)

// User is a dashboard account without its credentials.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewUser holds parameters for creating a user.
type NewUser struct {
	Name         string
	Email        string
	Role         string
	PasswordHash string
}

// CreateUser stores a new active user with a generated ID.
func (s *Store) CreateUser(ctx context.Context, nu NewUser) (User, error) {
	if strings.TrimSpace(nu.Name) == "" {
		return User{}, fmt.Errorf("store: user name is required")
	}
	if strings.TrimSpace(nu.Email) == "" {
		return User{}, fmt.Errorf("store: user email is required")
	}
	if nu.Role == "" {
		return User{}, fmt.Errorf("store: user role is required")
	}
	now := s.now()
	m := models.User{
		ID:           "usr-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		Name:         nu.Name,
		Email:        strings.ToLower(strings.TrimSpace(nu.Email)),
		Role:         nu.Role,
		PasswordHash: nu.PasswordHash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return User{}, fmt.Errorf("store: create user %s: %w", nu.Email, err)
	}
	s.publish(realtime.Change{Collection: realtime.CollectionUsers, Op: realtime.OpCreate, ID: m.ID})
	return fromUserModel(m), nil
}

// GetUser returns a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	var m models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return User{}, notFound("user", id, err)
	}
	return fromUserModel(m), nil
}

// Credentials returns the user with email and their password hash.
func (s *Store) Credentials(ctx context.Context, email string) (User, string, error) {
	var m models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, "", fmt.Errorf("%w: user %s", ErrNotFound, email)
		}
		return User{}, "", fmt.Errorf("store: get user %s: %w", email, err)
	}
	return fromUserModel(m), m.PasswordHash, nil
}

// ListUsers returns all users ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	var rows []models.User
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	out := make([]User, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromUserModel(r))
	}
	return out, nil
}

// SetUserRole changes a user's role. Subscribers use the users change to
// reload the actor's permissions.
func (s *Store) SetUserRole(ctx context.Context, id, role string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"role": role, "updated_at": s.now()})
	if res.Error != nil {
		return fmt.Errorf("store: set role for %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	s.publish(realtime.Change{Collection: realtime.CollectionUsers, Op: realtime.OpUpdate, ID: id, Audience: []string{id}})
	return nil
}
