// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserRole is the account-level role. Church-level capabilities live on Role.
type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleMember   UserRole = "member"
	UserRoleSubAdmin UserRole = "sub-admin"
)

// Valid reports whether r is one of the known account roles.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleMember, UserRoleSubAdmin:
		return true
	}
	return false
}

// ProviderIdentity links a user to an external identity provider.
type ProviderIdentity struct {
	Name  string `bson:"name" json:"name"` // google | phone
	ID    string `bson:"id" json:"id"`
	Email string `bson:"email,omitempty" json:"email,omitempty"`
}

// User is the global identity record.
//
// Email and Phone are pointers so that absent values are omitted from the
// document and skipped by the sparse unique indexes.
type User struct {
	ID           primitive.ObjectID `bson:"_id" json:"id"`
	FirstName    string             `bson:"first_name" json:"first_name"`
	LastName     string             `bson:"last_name,omitempty" json:"last_name,omitempty"`
	Email        *string            `bson:"email,omitempty" json:"email,omitempty"`
	Phone        *string            `bson:"phone,omitempty" json:"phone,omitempty"`
	PasswordHash string             `bson:"password_hash,omitempty" json:"-"`
	Role         UserRole           `bson:"role" json:"role"`

	// MainChurch is set only for admins that founded a root church.
	MainChurch *primitive.ObjectID  `bson:"main_church,omitempty" json:"main_church,omitempty"`
	Churches   []primitive.ObjectID `bson:"churches" json:"churches"`

	Provider *ProviderIdentity `bson:"provider,omitempty" json:"provider,omitempty"`

	EmailConfirmed        bool       `bson:"email_confirmed" json:"email_confirmed"`
	EmailConfirmHash      string     `bson:"email_confirm_hash,omitempty" json:"-"`
	EmailConfirmExpiresAt *time.Time `bson:"email_confirm_expires_at,omitempty" json:"-"`
	ResetHash             string     `bson:"reset_hash,omitempty" json:"-"`
	ResetExpiresAt        *time.Time `bson:"reset_expires_at,omitempty" json:"-"`
	CodeAttempts          int        `bson:"code_attempts,omitempty" json:"-"`
	CodeLockedUntil       *time.Time `bson:"code_locked_until,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// EmailAddr returns the user's email or "" when none is set.
func (u User) EmailAddr() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

// PhoneNumber returns the user's phone or "" when none is set.
func (u User) PhoneNumber() string {
	if u.Phone == nil {
		return ""
	}
	return *u.Phone
}

// FullName joins first and last name.
func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// BelongsTo reports whether churchID is in the user's church list.
func (u User) BelongsTo(churchID primitive.ObjectID) bool {
	for _, id := range u.Churches {
		if id == churchID {
			return true
		}
	}
	return false
}
