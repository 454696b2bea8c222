package models

import (
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// OAuthClient is an application allowed to request tokens.
// The web frontend uses a public client with an empty secret.
type OAuthClient struct {
	ID         string `gorm:"primaryKey"`
	Secret     string // bcrypt hash, empty for public clients
	Name       string
	Domain     string
	UserID     uint
	Scopes     string // Space-separated list of allowed scopes
	GrantTypes string // Space-separated list, e.g. "password"
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (OAuthClient) TableName() string {
	return "oauth_clients"
}

func (c *OAuthClient) GetID() string     { return c.ID }
func (c *OAuthClient) GetSecret() string { return c.Secret }
func (c *OAuthClient) GetDomain() string { return c.Domain }
func (c *OAuthClient) IsPublic() bool    { return c.Secret == "" }

func (c *OAuthClient) GetUserID() string {
	if c.UserID == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(c.UserID), 10)
}

// VerifyPassword checks a client secret against the stored bcrypt hash
func (c *OAuthClient) VerifyPassword(secret string) bool {
	if c.IsPublic() {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(c.Secret), []byte(secret)) == nil
}
