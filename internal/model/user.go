// Package model defines the data structures used throughout the application.
// Structs here double as the JSON shape of API responses, so json tags are
// the public field names.
package model

import "time"

// User is a registered account. Email is the login key and is stored
// lower-cased; the UNIQUE constraint on users.email guarantees one account
// per address.
//
// PasswordHash never leaves the server: the `json:"-"` tag keeps it out of
// every response.
type User struct {
	ID              string    `json:"id"                db:"id"`
	Email           string    `json:"email"             db:"email"`
	Username        string    `json:"username"          db:"username"`
	FirstName       string    `json:"first_name"        db:"first_name"`
	LastName        string    `json:"last_name"         db:"last_name"`
	PasswordHash    string    `json:"-"                 db:"password_hash"`
	IsActive        bool      `json:"-"                 db:"is_active"`
	IsEmailVerified bool      `json:"is_email_verified" db:"is_email_verified"`
	CreatedAt       time.Time `json:"date_joined"       db:"created_at"`
	UpdatedAt       time.Time `json:"-"                 db:"updated_at"`
}

// Profile holds the optional personal details of a user. One row per user,
// created on first access.
type Profile struct {
	UserID         string     `json:"id"              db:"user_id"`
	Email          string     `json:"user_email"      db:"-"`
	Username       string     `json:"username"        db:"-"`
	ProfilePicture string     `json:"profile_picture" db:"profile_picture"` // path relative to the media root
	FullName       string     `json:"full_name"       db:"full_name"`
	Bio            string     `json:"bio"             db:"bio"`
	DateOfBirth    *time.Time `json:"date_of_birth"   db:"date_of_birth"`
	PhoneNumber    string     `json:"phone_number"    db:"phone_number"`
	Address        string     `json:"address"         db:"address"`
	CreatedAt      time.Time  `json:"created_at"      db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"      db:"updated_at"`
}
