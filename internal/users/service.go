package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/kudos/internal/ids"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound indicates that no active user matches the lookup.
	ErrUserNotFound = errors.New("users: user not found")
	// ErrEmailTaken indicates that another user already owns the email address.
	ErrEmailTaken = errors.New("users: email already registered")
	// ErrInvalidUser indicates that a new user is missing required fields.
	ErrInvalidUser = errors.New("users: invalid user")
)

// ServiceConfig describes the dependencies required for the user directory.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider ids.Provider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service reads and maintains directory users.
type Service struct {
	db         *gorm.DB
	idProvider ids.Provider
	now        func() time.Time
	logger     *zap.Logger
	emailCache sync.Map
}

// NewService constructs the directory service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = ids.NewUUIDProvider()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         cfg.Database,
		idProvider: idProvider,
		now:        clock,
		logger:     logger,
	}, nil
}

// NewUser describes a directory entry to create.
type NewUser struct {
	Email    string
	FullName string
	Role     Role
}

// Create inserts a new active user.
func (s *Service) Create(ctx context.Context, input NewUser) (User, error) {
	email := normalizeEmail(input.Email)
	fullName := normalize(input.FullName)
	if email == "" || fullName == "" {
		return User{}, fmt.Errorf("%w: email and full name are required", ErrInvalidUser)
	}
	role, err := ParseRole(string(input.Role))
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return User{}, err
	}
	if existing > 0 {
		return User{}, ErrEmailTaken
	}

	identifier, err := s.idProvider.NewID()
	if err != nil {
		return User{}, err
	}
	now := s.now().UTC()
	user := User{
		ID:        identifier,
		Email:     email,
		FullName:  fullName,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Get returns the active user with the provided identifier.
func (s *Service) Get(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", normalize(userID), true).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ListActive returns every active user ordered by name.
func (s *Service) ListActive(ctx context.Context) ([]User, error) {
	var users []User
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("full_name ASC, id ASC").
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// FindByEmail resolves a login subject to its directory user, including inactive users.
func (s *Service) FindByEmail(ctx context.Context, email string) (User, error) {
	normalized := normalizeEmail(email)
	if normalized == "" {
		return User{}, ErrUserNotFound
	}

	query := s.db.WithContext(ctx)
	if cachedIdentifier, ok := s.emailCache.Load(normalized); ok {
		if identifier, ok := cachedIdentifier.(string); ok {
			var user User
			err := query.Where("id = ?", identifier).Take(&user).Error
			if err == nil && user.Email == normalized {
				return user, nil
			}
			s.emailCache.Delete(normalized)
		}
	}

	var user User
	err := query.Where("email = ?", normalized).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	s.emailCache.Store(normalized, user.ID)
	return user, nil
}

// Deactivate marks a user inactive; inactive users drop out of listings and like counts.
func (s *Service) Deactivate(ctx context.Context, userID string) error {
	result := s.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", normalize(userID)).
		Updates(map[string]interface{}{"is_active": false, "updated_at": s.now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
