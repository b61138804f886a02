// internal/app/store/churches/churchstore.go
package churchstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/shepherd/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicateChurch is returned when another live church uses the same
// contact email or phone.
var ErrDuplicateChurch = errors.New("a church with this email or phone already exists")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("churches")}
}

// Patch lists church fields to merge. Empty strings are left untouched, so a
// patch can never blank out a stored value.
type Patch struct {
	Name     string
	Location models.Location
	Contact  models.ChurchContact
	Settings models.ChurchSettings
}

// SetFields returns the dotted $set document for p.
func (p Patch) SetFields() bson.M {
	set := bson.M{}
	put := func(key, v string) {
		if v != "" {
			set[key] = v
		}
	}
	if p.Name != "" {
		set["name"] = p.Name
		set["name_ci"] = text.Fold(p.Name)
	}
	put("location.address", p.Location.Address)
	put("location.city", p.Location.City)
	put("location.state", p.Location.State)
	put("location.country", p.Location.Country)
	put("location.postal_code", p.Location.PostalCode)
	put("contact.email", p.Contact.Email)
	put("contact.phone", p.Contact.Phone)
	put("settings.logo", p.Settings.Logo)
	put("settings.website", p.Settings.Website)
	put("settings.facebook", p.Settings.Facebook)
	put("settings.instagram", p.Settings.Instagram)
	put("settings.twitter", p.Settings.Twitter)
	put("settings.youtube", p.Settings.Youtube)
	return set
}

// Create inserts c with a fresh ID.
func (s *Store) Create(ctx context.Context, c models.Church) (models.Church, error) {
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.NameCI = text.Fold(c.Name)
	c.IsDeleted = false
	c.CreatedAt = now
	c.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, c); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Church{}, ErrDuplicateChurch
		}
		return models.Church{}, err
	}
	return c, nil
}

// GetByID returns a live church.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Church, error) {
	var c models.Church
	if err := s.c.FindOne(ctx, bson.M{"_id": id, "is_deleted": false}).Decode(&c); err != nil {
		return models.Church{}, err
	}
	return c, nil
}

// ContactTaken reports whether a live church other than excludeID uses
// email or phone. Pass primitive.NilObjectID to check all churches.
func (s *Store) ContactTaken(ctx context.Context, email, phone string, excludeID primitive.ObjectID) (bool, error) {
	var or []bson.M
	if email != "" {
		or = append(or, bson.M{"contact.email": email})
	}
	if phone != "" {
		or = append(or, bson.M{"contact.phone": phone})
	}
	if len(or) == 0 {
		return false, nil
	}
	filter := bson.M{"$or": or, "is_deleted": false}
	if !excludeID.IsZero() {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	err := s.c.FindOne(ctx, filter).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Update merges p into the church. It returns mongo.ErrNoDocuments when the
// church does not exist.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, p Patch) error {
	set := p.SetFields()
	set["updated_at"] = time.Now().UTC()
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id, "is_deleted": false}, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateChurch
		}
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Delete removes a church by ID and returns the number of documents deleted.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Find returns live churches matching filter.
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Church, error) {
	f := bson.M{"is_deleted": false}
	for k, v := range filter {
		f[k] = v
	}
	cur, err := s.c.Find(ctx, f, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Church
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListHQ returns all live root churches sorted by name.
func (s *Store) ListHQ(ctx context.Context) ([]models.Church, error) {
	return s.Find(ctx, bson.M{"is_hq": true}, options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}}))
}

// ListByLevel returns live churches attached to levelID.
func (s *Store) ListByLevel(ctx context.Context, levelID primitive.ObjectID) ([]models.Church, error) {
	return s.Find(ctx, bson.M{"level": levelID}, options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}}))
}

// ListChildren returns live churches whose parent is parentID.
func (s *Store) ListChildren(ctx context.Context, parentID primitive.ObjectID) ([]models.Church, error) {
	return s.Find(ctx, bson.M{"parent_church": parentID}, options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}}))
}
