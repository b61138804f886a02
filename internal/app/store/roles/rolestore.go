// internal/app/store/roles/rolestore.go
package rolestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/shepherd/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicateRole is returned when the church already has a role with the name.
var ErrDuplicateRole = errors.New("a role with this name already exists in the church")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("roles")}
}

// CreateMany inserts roles in order, assigning IDs and folded names.
func (s *Store) CreateMany(ctx context.Context, roles []models.Role) ([]models.Role, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	docs := make([]interface{}, len(roles))
	out := make([]models.Role, len(roles))
	for i, r := range roles {
		r.ID = primitive.NewObjectID()
		r.NameCI = text.Fold(r.Name)
		r.CreatedAt = now
		r.UpdatedAt = now
		out[i] = r
		docs[i] = r
	}
	if _, err := s.c.InsertMany(ctx, docs); err != nil {
		if wafflemongo.IsDup(err) {
			return nil, ErrDuplicateRole
		}
		return nil, err
	}
	return out, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Role, error) {
	var r models.Role
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		return models.Role{}, err
	}
	return r, nil
}

// GetByName finds a role in churchID by case- and diacritic-insensitive name.
func (s *Store) GetByName(ctx context.Context, churchID primitive.ObjectID, name string) (models.Role, error) {
	var r models.Role
	if err := s.c.FindOne(ctx, bson.M{"church": churchID, "name_ci": text.Fold(strings.TrimSpace(name))}).Decode(&r); err != nil {
		return models.Role{}, err
	}
	return r, nil
}

func (s *Store) ListByChurch(ctx context.Context, churchID primitive.ObjectID) ([]models.Role, error) {
	cur, err := s.c.Find(ctx, bson.M{"church": churchID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Role
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a role. Contacts that reference it are left dangling and
// fail authorization until reassigned.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
