package models

import (
	"time"
)

// YouTubeCredentials holds the stored OAuth token for one client of the
// credential pool. Each client number maps to an independent Google Cloud
// project with its own daily quota allocation. Re-authorizing a client keeps
// the old rows around deactivated, so only an index on client_num, not a
// unique one.
type YouTubeCredentials struct {
	BaseModel
	ClientNum      int       `gorm:"not null;index"`
	AccessToken    string    `gorm:"not null"`
	RefreshToken   string    `gorm:"not null"`
	TokenType      string    `gorm:"type:varchar(20)"`
	TokenExpiresAt time.Time `gorm:"not null"`
	IsActive       bool      `gorm:"not null"`
}
