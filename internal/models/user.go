package models

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Roles a user can have
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an account that can publish recipes and follow other users.
// Email is the login identity.
type User struct {
	ID        uint   `gorm:"primaryKey"`
	Email     string `gorm:"size:254;uniqueIndex;not null"`
	Username  string `gorm:"size:150;uniqueIndex;not null"`
	FirstName string `gorm:"size:150"`
	LastName  string `gorm:"size:150"`
	Password  string `gorm:"not null"`
	Role      string `gorm:"size:5;default:'user'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAdmin reports whether the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HashPassword replaces the plain text password with its bcrypt hash
func (u *User) HashPassword() error {
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	return nil
}

// CheckPassword compares a plain text password with the stored hash
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

// NormalizeEmail lowercases the domain part of an email address
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + strings.ToLower(email[at:])
}

// Follow records that Follower subscribed to Following.
// A user can not follow themself and a pair can only exist once.
type Follow struct {
	ID          uint `gorm:"primaryKey"`
	FollowerID  uint `gorm:"not null;index;uniqueIndex:idx_follow_pair"`
	FollowingID uint `gorm:"not null;index;uniqueIndex:idx_follow_pair;check:chk_follows_not_self,follower_id <> following_id"`
	CreatedAt   time.Time

	Follower  User `gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE"`
	Following User `gorm:"foreignKey:FollowingID;constraint:OnDelete:CASCADE"`
}

func (Follow) TableName() string {
	return "follows"
}
