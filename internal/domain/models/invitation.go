// internal/domain/models/invitation.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Invitation lets a contact without a login claim a user account.
// It is consumed at most once.
type Invitation struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"`
	ContactID  primitive.ObjectID `bson:"contact_id" json:"contact_id"`
	ChurchID   primitive.ObjectID `bson:"church_id" json:"church_id"`
	Token      string             `bson:"token" json:"-"`
	InvitedBy  primitive.ObjectID `bson:"invited_by" json:"invited_by"`
	Accepted   bool               `bson:"accepted" json:"accepted"`
	AcceptedAt *time.Time         `bson:"accepted_at,omitempty" json:"accepted_at,omitempty"`
	ExpiresAt  time.Time          `bson:"expires_at" json:"expires_at"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}

// Expired reports whether the invitation can no longer be accepted at now.
func (i Invitation) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}
