// internal/domain/models/level.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxLevelOrder is the deepest rung a level ladder may have.
const MaxLevelOrder = 10

// RootLevelName is the name given to the level created with an HQ church.
const RootLevelName = "HQ"

// Level is a rung in a church network's hierarchy, e.g. HQ > Region > Branch.
//
// OwnedBy is nil only for the instant between level and church creation
// during onboarding; the unique (owned_by, name) index skips such documents.
type Level struct {
	ID          primitive.ObjectID  `bson:"_id" json:"id"`
	Name        string              `bson:"name" json:"name"`
	Order       int                 `bson:"order" json:"order"`
	ParentLevel *primitive.ObjectID `bson:"parent_level,omitempty" json:"parent_level,omitempty"`
	Path        string              `bson:"path" json:"path"`
	OwnedBy     *primitive.ObjectID `bson:"owned_by,omitempty" json:"owned_by,omitempty"`
	CreatedAt   time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time           `bson:"updated_at" json:"updated_at"`
}

// LevelPath joins a parent path and a level name.
func LevelPath(parentPath, name string) string {
	if parentPath == "" {
		return name
	}
	return parentPath + "/" + name
}
