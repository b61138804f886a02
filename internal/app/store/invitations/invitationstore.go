// internal/app/store/invitations/invitationstore.go
package invitationstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/dalemusser/shepherd/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// TokenBytes is the number of random bytes in an invitation token.
const TokenBytes = 16

// ErrAlreadyAccepted is returned when an invitation has been consumed.
var ErrAlreadyAccepted = errors.New("invitation already accepted")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("invitations")}
}

// NewToken returns a random hex token.
func NewToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Create stores inv with a fresh ID and token.
func (s *Store) Create(ctx context.Context, inv models.Invitation) (models.Invitation, error) {
	token, err := NewToken()
	if err != nil {
		return models.Invitation{}, err
	}
	now := time.Now().UTC()
	inv.ID = primitive.NewObjectID()
	inv.Token = token
	inv.Accepted = false
	inv.AcceptedAt = nil
	inv.CreatedAt = now
	inv.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, inv); err != nil {
		return models.Invitation{}, err
	}
	return inv, nil
}

// GetByIDAndToken loads an invitation only if the token matches.
func (s *Store) GetByIDAndToken(ctx context.Context, id primitive.ObjectID, token string) (models.Invitation, error) {
	var inv models.Invitation
	if err := s.c.FindOne(ctx, bson.M{"_id": id, "token": token}).Decode(&inv); err != nil {
		return models.Invitation{}, err
	}
	return inv, nil
}

// MarkAccepted consumes the invitation. Only the first call succeeds.
func (s *Store) MarkAccepted(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "accepted": false},
		bson.M{"$set": bson.M{"accepted": true, "accepted_at": now, "updated_at": now}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrAlreadyAccepted
	}
	return nil
}

// PendingForContact returns the open invitations issued for contactID.
func (s *Store) PendingForContact(ctx context.Context, contactID primitive.ObjectID) ([]models.Invitation, error) {
	cur, err := s.c.Find(ctx, bson.M{"contact_id": contactID, "accepted": false})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Invitation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
