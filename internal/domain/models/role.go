// internal/domain/models/role.go
package models

import (
	"time"

	"github.com/dalemusser/shepherd/internal/domain/permissions"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is a named permission bundle scoped to one church.
type Role struct {
	ID          primitive.ObjectID       `bson:"_id" json:"id"`
	Name        string                   `bson:"name" json:"name"`
	NameCI      string                   `bson:"name_ci" json:"-"`
	Description string                   `bson:"description,omitempty" json:"description,omitempty"`
	Permissions []permissions.Permission `bson:"permissions" json:"permissions"`
	Church      primitive.ObjectID       `bson:"church" json:"church"`
	CreatedAt   time.Time                `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time                `bson:"updated_at" json:"updated_at"`
}

// PermissionSet returns the role's permissions as a set.
func (r Role) PermissionSet() permissions.Set {
	return permissions.NewSet(r.Permissions...)
}
