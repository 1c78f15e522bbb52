package models

// YouTubeChannelDetails records which channel a pool client uploads to,
// captured when the client's token is first verified.
type YouTubeChannelDetails struct {
	BaseModel
	CredentialsID string `gorm:"not null;type:varchar(32)"`
	ChannelID     string `gorm:"not null"`
	ChannelTitle  string `gorm:"not null"`

	// Foreign key to YouTubeCredentials
	YouTubeCredentials YouTubeCredentials `gorm:"foreignKey:CredentialsID;references:ID"`
}
