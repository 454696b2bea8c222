package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/franciscosanchezn/gin-recipes-api/internal/models"
	"github.com/franciscosanchezn/gin-recipes-api/internal/validation"
	"gorm.io/gorm"
)

// RegisterInput is the sign up payload
type RegisterInput struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Username  string `json:"username" validate:"required,max=150,username,notreserved"`
	FirstName string `json:"first_name" validate:"required,max=150"`
	LastName  string `json:"last_name" validate:"required,max=150"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
}

// SetPasswordInput changes the password of the current user
type SetPasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

// UserService handles registration, profiles and credentials
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (UserView, error)
	// CreateAdmin registers a user with the admin role
	CreateAdmin(ctx context.Context, in RegisterInput) (*models.User, error)
	Get(ctx context.Context, viewer Viewer, id uint) (UserView, error)
	Me(ctx context.Context, viewer Viewer) (UserView, error)
	List(ctx context.Context, viewer Viewer, page Page) (Paged[UserView], error)
	SetPassword(ctx context.Context, viewer Viewer, in SetPasswordInput) error
	// Authenticate checks an email and password pair
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

type userService struct {
	db        *gorm.DB
	composer  *Composer
	validator *validation.Validator
}

// NewUserService creates a new UserService
func NewUserService(db *gorm.DB, composer *Composer) UserService {
	return &userService{db: db, composer: composer, validator: validation.New()}
}

func (s *userService) Register(ctx context.Context, in RegisterInput) (UserView, error) {
	user, err := s.create(ctx, in, models.RoleUser)
	if err != nil {
		return UserView{}, err
	}
	return s.composer.UserView(ctx, Anonymous, *user)
}

func (s *userService) CreateAdmin(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.create(ctx, in, models.RoleAdmin)
}

func (s *userService) create(ctx context.Context, in RegisterInput, role string) (*models.User, error) {
	in.Email = models.NormalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := s.validator.Validate(in); err != nil {
		return nil, invalid(err)
	}

	db := s.db.WithContext(ctx)
	details := make(map[string]string)
	var n int64
	if err := db.Model(&models.User{}).Where("email = ?", in.Email).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if n > 0 {
		details["email"] = "a user with this email already exists"
	}
	if err := db.Model(&models.User{}).Where("username = ?", in.Username).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if n > 0 {
		details["username"] = "a user with this username already exists"
	}
	if len(details) > 0 {
		return nil, Validation("user already exists", details)
	}

	user := &models.User{
		Email:     in.Email,
		Username:  in.Username,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Password:  in.Password,
		Role:      role,
	}
	if err := user.HashPassword(); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, Validation("user already exists", map[string]string{"email": "a user with this email or username already exists"})
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	log.WithField("user_id", user.ID).Info("User registered")
	return user, nil
}

func (s *userService) Get(ctx context.Context, viewer Viewer, id uint) (UserView, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return UserView{}, lookupError(err, "user")
	}
	return s.composer.UserView(ctx, viewer, user)
}

func (s *userService) Me(ctx context.Context, viewer Viewer) (UserView, error) {
	if !viewer.Authenticated() {
		return UserView{}, Permission(MsgAuthRequired)
	}
	return s.Get(ctx, viewer, viewer.UserID)
}

func (s *userService) List(ctx context.Context, viewer Viewer, page Page) (Paged[UserView], error) {
	q := s.db.WithContext(ctx).Model(&models.User{}).Session(&gorm.Session{})

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return Paged[UserView]{}, fmt.Errorf("count users: %w", err)
	}
	var users []models.User
	if err := q.Scopes(page.Scope).Order("id").Find(&users).Error; err != nil {
		return Paged[UserView]{}, fmt.Errorf("list users: %w", err)
	}
	views, err := s.composer.UserViews(ctx, viewer, users)
	if err != nil {
		return Paged[UserView]{}, err
	}
	return Paged[UserView]{Count: count, Results: views}, nil
}

func (s *userService) SetPassword(ctx context.Context, viewer Viewer, in SetPasswordInput) error {
	if !viewer.Authenticated() {
		return Permission(MsgAuthRequired)
	}
	if err := s.validator.Validate(in); err != nil {
		return invalid(err)
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, viewer.UserID).Error; err != nil {
		return lookupError(err, "user")
	}
	if !user.CheckPassword(in.CurrentPassword) {
		return Validation("current password is incorrect", map[string]string{"current_password": "is incorrect"})
	}

	user.Password = in.NewPassword
	if err := user.HashPassword(); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&user).Update("password", user.Password).Error; err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	log.WithField("user_id", user.ID).Info("Password changed")
	return nil
}

func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}
