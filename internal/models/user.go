// internal/models/user.go
package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	BaseModel
	Username        string     `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Email           string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash    string     `json:"-" gorm:"size:255;not null"`
	UserType        UserType   `json:"user_type" gorm:"type:varchar(20);not null"`
	Status          UserStatus `json:"status" gorm:"type:varchar(20);default:'active'"`
	ProfileData     JSONB      `json:"profile_data" gorm:"type:jsonb"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	LastLoginAt     *time.Time `json:"last_login_at"`

	// Relationships
	Listings        []Listing  `json:"listings,omitempty" gorm:"foreignKey:ArtistID"`
	ClientProposals []Proposal `json:"client_proposals,omitempty" gorm:"foreignKey:ClientID"`
	ClientContracts []Contract `json:"client_contracts,omitempty" gorm:"foreignKey:ClientID"`
	ArtistContracts []Contract `json:"artist_contracts,omitempty" gorm:"foreignKey:ArtistID"`
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

// Role maps a platform user onto the side of a contract it can occupy.
func (u *User) Role() PartyRole {
	if u.UserType == UserTypeArtist {
		return RoleArtist
	}
	return RoleClient
}
