package users

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role enumerates directory roles.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

var errInvalidRole = errors.New("users: invalid role")

// ParseRole validates a raw role name; an empty value means employee.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case "", RoleEmployee:
		return RoleEmployee, nil
	case RoleManager:
		return RoleManager, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("%w: %q", errInvalidRole, raw)
	}
}

// User is a directory entry. Reviews and ledger rows reference users by ID.
type User struct {
	ID        string    `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	Email     string    `gorm:"column:email;size:320;not null;uniqueIndex" json:"email"`
	FullName  string    `gorm:"column:full_name;size:320;not null" json:"full_name"`
	Role      Role      `gorm:"column:role;size:32;not null;default:employee" json:"role"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true;index" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName exposes the table backing directory users.
func (User) TableName() string {
	return "users"
}

// IsPrivileged reports whether the user may see other employees' reviews and reviewer identities.
func (u User) IsPrivileged() bool {
	return u.Role == RoleAdmin || u.Role == RoleManager
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
