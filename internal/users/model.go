package users

import (
	"strings"
	"time"
)

// User is a signed-in account. Guests never get a row.
type User struct {
	ID            string    `json:"id"`
	Provider      string    `json:"provider"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"emailVerified"`
	FullName      string    `json:"fullName"`
	GivenName     string    `json:"givenName"`
	FamilyName    string    `json:"familyName"`
	PictureURL    string    `json:"pictureUrl"`
	LastLoginAt   time.Time `json:"lastLoginAt"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// DisplayName prefers the full name and falls back to given and family name.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	return strings.TrimSpace(u.GivenName + " " + u.FamilyName)
}

// providerOf returns the namespace of an id such as "linkedin:abc".
func providerOf(userID string) string {
	provider, _, ok := strings.Cut(userID, ":")
	if !ok {
		return ""
	}
	return provider
}
