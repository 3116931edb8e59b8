// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data. The `json:"..."` tags control
// how each struct is serialized by the HTTP layer.
package model

import "time"

// User represents a registered account.
//
// ID is an opaque xid string generated at registration and never changes.
// PasswordHash is a bcrypt hash; the `json:"-"` tag keeps it out of every
// API response.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Profile holds the optional personal details attached 1:1 to a User.
// It is created lazily the first time it is read.
type Profile struct {
	UserID     string `json:"userId"`
	FullName   string `json:"fullName"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Contact    string `json:"contact"`
	City       string `json:"city"`
	Country    string `json:"country"`
	Occupation string `json:"occupation"`
	Image      []byte `json:"image,omitempty"` // raw bytes; encoding/json emits base64
}

// ProfilePatch is a partial profile update. A nil field is left untouched.
type ProfilePatch struct {
	Contact    *string `json:"contact,omitempty"`
	City       *string `json:"city,omitempty"`
	Country    *string `json:"country,omitempty"`
	Occupation *string `json:"occupation,omitempty"`
	Image      []byte  `json:"image,omitempty"`
}

// Empty reports whether the patch would change nothing.
func (p ProfilePatch) Empty() bool {
	return p.Contact == nil && p.City == nil && p.Country == nil &&
		p.Occupation == nil && p.Image == nil
}
