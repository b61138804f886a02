// internal/domain/models/church.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Location is the postal location of a church.
type Location struct {
	Address    string `bson:"address,omitempty" json:"address,omitempty"`
	City       string `bson:"city,omitempty" json:"city,omitempty"`
	State      string `bson:"state,omitempty" json:"state,omitempty"`
	Country    string `bson:"country,omitempty" json:"country,omitempty"`
	PostalCode string `bson:"postal_code,omitempty" json:"postal_code,omitempty"`
}

// ChurchContact holds the church's public contact details.
// Email and phone are each unique across non-deleted churches.
type ChurchContact struct {
	Email string `bson:"email" json:"email"`
	Phone string `bson:"phone" json:"phone"`
}

// ChurchSettings holds branding and social links.
type ChurchSettings struct {
	Logo      string `bson:"logo,omitempty" json:"logo,omitempty"`
	Website   string `bson:"website,omitempty" json:"website,omitempty"`
	Facebook  string `bson:"facebook,omitempty" json:"facebook,omitempty"`
	Instagram string `bson:"instagram,omitempty" json:"instagram,omitempty"`
	Twitter   string `bson:"twitter,omitempty" json:"twitter,omitempty"`
	Youtube   string `bson:"youtube,omitempty" json:"youtube,omitempty"`
}

// Church is a tenant node. An HQ church has no parent and owns the level
// tree of its network.
type Church struct {
	ID           primitive.ObjectID  `bson:"_id" json:"id"`
	Name         string              `bson:"name" json:"name"`
	NameCI       string              `bson:"name_ci" json:"-"`
	IsHQ         bool                `bson:"is_hq" json:"is_hq"`
	Level        primitive.ObjectID  `bson:"level" json:"level"`
	ParentChurch *primitive.ObjectID `bson:"parent_church,omitempty" json:"parent_church,omitempty"`
	Location     Location            `bson:"location" json:"location"`
	Contact      ChurchContact       `bson:"contact" json:"contact"`
	Settings     ChurchSettings      `bson:"settings" json:"settings"`
	IsDeleted    bool                `bson:"is_deleted" json:"is_deleted"`
	CreatedBy    *primitive.ObjectID `bson:"created_by,omitempty" json:"created_by,omitempty"`
	CreatedAt    time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `bson:"updated_at" json:"updated_at"`
}
