package model

import "time"

const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"

	ThemeDark  = "dark"
	ThemeLight = "light"
)

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Email     string    `gorm:"size:191;not null;uniqueIndex" json:"email"`
	Password  *string   `gorm:"size:255" json:"-"`
	Provider  string    `gorm:"size:16;not null;default:local" json:"provider"`
	GoogleID  *string   `gorm:"size:64;uniqueIndex" json:"-"`
	Theme     string    `gorm:"size:16;not null;default:dark" json:"theme"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPassword is false for accounts created through an OAuth provider that
// never set a local password.
func (u *User) HasPassword() bool {
	return u.Password != nil && *u.Password != ""
}
