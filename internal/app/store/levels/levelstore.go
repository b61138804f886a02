// internal/app/store/levels/levelstore.go
package levelstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/shepherd/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrDuplicateLevel = errors.New("a level with this name already exists")
	// ErrInvalidOrder is returned before any write when order is outside 0..models.MaxLevelOrder.
	ErrInvalidOrder = errors.New("level order must be between 0 and 10")
	// ErrParentNotFound is returned when the parent level does not exist.
	ErrParentNotFound = errors.New("parent level not found")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("levels")}
}

// Create validates the order cap, derives the path from the live parent and
// inserts the level.
func (s *Store) Create(ctx context.Context, l models.Level) (models.Level, error) {
	if l.Order < 0 || l.Order > models.MaxLevelOrder {
		return models.Level{}, ErrInvalidOrder
	}
	path, err := s.pathFor(ctx, l.ParentLevel, l.Name)
	if err != nil {
		return models.Level{}, err
	}

	now := time.Now().UTC()
	l.ID = primitive.NewObjectID()
	l.Path = path
	l.CreatedAt = now
	l.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, l); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Level{}, ErrDuplicateLevel
		}
		return models.Level{}, err
	}
	return l, nil
}

func (s *Store) pathFor(ctx context.Context, parentID *primitive.ObjectID, name string) (string, error) {
	if parentID == nil {
		return models.LevelPath("", name), nil
	}
	parent, err := s.GetByID(ctx, *parentID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", ErrParentNotFound
	}
	if err != nil {
		return "", err
	}
	return models.LevelPath(parent.Path, name), nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Level, error) {
	var l models.Level
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&l); err != nil {
		return models.Level{}, err
	}
	return l, nil
}

// SetOwner back-patches owned_by once the owning church exists.
func (s *Store) SetOwner(ctx context.Context, id, churchID primitive.ObjectID) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{"owned_by": churchID, "updated_at": time.Now().UTC()}})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateLevel
		}
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Rename changes the name and recomputes this level's own path from its
// parent. Descendant paths are not touched.
func (s *Store) Rename(ctx context.Context, id primitive.ObjectID, name string) (models.Level, error) {
	l, err := s.GetByID(ctx, id)
	if err != nil {
		return models.Level{}, err
	}
	path, err := s.pathFor(ctx, l.ParentLevel, name)
	if err != nil {
		return models.Level{}, err
	}
	now := time.Now().UTC()
	if _, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{"name": name, "path": path, "updated_at": now}}); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Level{}, ErrDuplicateLevel
		}
		return models.Level{}, err
	}
	l.Name = name
	l.Path = path
	l.UpdatedAt = now
	return l, nil
}

// ListByOwner returns the levels of a church network ordered by rung.
func (s *Store) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Level, error) {
	cur, err := s.c.Find(ctx, bson.M{"owned_by": ownerID},
		options.Find().SetSort(bson.D{{Key: "order", Value: 1}, {Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Level
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountByOwner returns the number of levels owned by ownerID.
func (s *Store) CountByOwner(ctx context.Context, ownerID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"owned_by": ownerID})
}
