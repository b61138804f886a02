// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/shepherd/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrDuplicateUser is returned when the email, phone or provider identity
// is already taken.
var ErrDuplicateUser = errors.New("a user with this email or phone already exists")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// Create inserts u with a fresh ID. Role defaults to member.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	if u.Role == "" {
		u.Role = models.UserRoleMember
	}
	if u.Churches == nil {
		u.Churches = []primitive.ObjectID{}
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateUser
		}
		return models.User{}, err
	}
	return u, nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, filter).Decode(&u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByEmail expects an already-normalized email.
func (s *Store) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

// GetByPhone expects an already-normalized phone.
func (s *Store) GetByPhone(ctx context.Context, phone string) (models.User, error) {
	return s.findOne(ctx, bson.M{"phone": phone})
}

func (s *Store) GetByProvider(ctx context.Context, provider, providerID string) (models.User, error) {
	return s.findOne(ctx, bson.M{"provider.name": provider, "provider.id": providerID})
}

// Exists reports whether any user has the given email or phone.
// Empty values are ignored.
func (s *Store) Exists(ctx context.Context, email, phone string) (bool, error) {
	var or []bson.M
	if email != "" {
		or = append(or, bson.M{"email": email})
	}
	if phone != "" {
		or = append(or, bson.M{"phone": phone})
	}
	if len(or) == 0 {
		return false, nil
	}
	err := s.c.FindOne(ctx, bson.M{"$or": or}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) update(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	if set, ok := update["$set"].(bson.M); ok {
		set["updated_at"] = time.Now().UTC()
	} else {
		update["$set"] = bson.M{"updated_at": time.Now().UTC()}
	}
	res, err := s.c.UpdateByID(ctx, id, update)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateUser
		}
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetMainChurch makes the user the founding admin of churchID.
func (s *Store) SetMainChurch(ctx context.Context, id, churchID primitive.ObjectID) error {
	return s.update(ctx, id, bson.M{
		"$set":      bson.M{"main_church": churchID, "role": models.UserRoleAdmin},
		"$addToSet": bson.M{"churches": churchID},
	})
}

// AddChurch records membership of churchID, optionally raising the account role.
func (s *Store) AddChurch(ctx context.Context, id, churchID primitive.ObjectID, role models.UserRole) error {
	update := bson.M{"$addToSet": bson.M{"churches": churchID}}
	if role != "" {
		update["$set"] = bson.M{"role": role}
	}
	return s.update(ctx, id, update)
}

// DetachChurch removes every reference to churchID from users: main_church
// is unset and the id is pulled from churches. It returns the number of
// users touched by the pull.
func (s *Store) DetachChurch(ctx context.Context, churchID primitive.ObjectID) (int64, error) {
	now := time.Now().UTC()
	if _, err := s.c.UpdateMany(ctx,
		bson.M{"main_church": churchID},
		bson.M{"$unset": bson.M{"main_church": ""}, "$set": bson.M{"updated_at": now}},
	); err != nil {
		return 0, err
	}
	res, err := s.c.UpdateMany(ctx,
		bson.M{"churches": churchID},
		bson.M{"$pull": bson.M{"churches": churchID}, "$set": bson.M{"updated_at": now}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *Store) SetEmailConfirmCode(ctx context.Context, id primitive.ObjectID, hash string, expiresAt time.Time) error {
	return s.update(ctx, id, bson.M{"$set": bson.M{
		"email_confirm_hash":       hash,
		"email_confirm_expires_at": expiresAt,
	}})
}

// ConfirmEmail marks the email confirmed and clears the pending code.
func (s *Store) ConfirmEmail(ctx context.Context, id primitive.ObjectID) error {
	return s.update(ctx, id, bson.M{
		"$set":   bson.M{"email_confirmed": true},
		"$unset": bson.M{"email_confirm_hash": "", "email_confirm_expires_at": "", "code_attempts": "", "code_locked_until": ""},
	})
}

func (s *Store) SetResetCode(ctx context.Context, id primitive.ObjectID, hash string, expiresAt time.Time) error {
	return s.update(ctx, id, bson.M{"$set": bson.M{
		"reset_hash":       hash,
		"reset_expires_at": expiresAt,
	}})
}

// ClearResetCode removes the pending password-reset code. Failed attempts
// are kept.
func (s *Store) ClearResetCode(ctx context.Context, id primitive.ObjectID) error {
	return s.update(ctx, id, bson.M{
		"$unset": bson.M{"reset_hash": "", "reset_expires_at": ""},
	})
}

// IncrementCodeAttempts records a failed code entry and returns the new count.
func (s *Store) IncrementCodeAttempts(ctx context.Context, id primitive.ObjectID) (int, error) {
	if err := s.update(ctx, id, bson.M{"$inc": bson.M{"code_attempts": 1}}); err != nil {
		return 0, err
	}
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return u.CodeAttempts, nil
}

// LockCodes refuses code entry until the given time and starts a fresh
// attempt count for afterwards.
func (s *Store) LockCodes(ctx context.Context, id primitive.ObjectID, until time.Time) error {
	return s.update(ctx, id, bson.M{
		"$set":   bson.M{"code_locked_until": until},
		"$unset": bson.M{"code_attempts": ""},
	})
}

// SetPassword stores a new hash and clears any pending reset.
func (s *Store) SetPassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	return s.update(ctx, id, bson.M{
		"$set":   bson.M{"password_hash": hash},
		"$unset": bson.M{"reset_hash": "", "reset_expires_at": "", "code_attempts": "", "code_locked_until": ""},
	})
}

func (s *Store) LinkProvider(ctx context.Context, id primitive.ObjectID, p models.ProviderIdentity) error {
	return s.update(ctx, id, bson.M{"$set": bson.M{"provider": p}})
}
