package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/shepherd/internal/domain/models"
	"github.com/dalemusser/shepherd/internal/domain/permissions"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
// Repeated calls on the same request add to the existing route context.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, _ := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if rctx == nil {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

func (f *Fixtures) insert(ctx context.Context, coll string, doc any) {
	f.t.Helper()
	if _, err := f.db.Collection(coll).InsertOne(ctx, doc); err != nil {
		f.t.Fatalf("failed to create test %s: %v", coll, err)
	}
}

// CreateUser creates a member account with the given email.
func (f *Fixtures) CreateUser(ctx context.Context, firstName, email string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:        primitive.NewObjectID(),
		FirstName: firstName,
		Email:     &email,
		Role:      models.UserRoleMember,
		Churches:  []primitive.ObjectID{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.insert(ctx, "users", u)
	return u
}

// CreateHQChurch creates a root church together with its owned HQ level.
func (f *Fixtures) CreateHQChurch(ctx context.Context, name, email, phone string) (models.Church, models.Level) {
	f.t.Helper()

	now := time.Now().UTC()
	churchID := primitive.NewObjectID()
	lvl := models.Level{
		ID:        primitive.NewObjectID(),
		Name:      models.RootLevelName,
		Order:     0,
		Path:      models.RootLevelName,
		OwnedBy:   &churchID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.insert(ctx, "levels", lvl)

	c := models.Church{
		ID:        churchID,
		Name:      name,
		NameCI:    text.Fold(name),
		IsHQ:      true,
		Level:     lvl.ID,
		Contact:   models.ChurchContact{Email: email, Phone: phone},
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.insert(ctx, "churches", c)
	return c, lvl
}

// CreateRole creates a role in churchID with the given permissions.
func (f *Fixtures) CreateRole(ctx context.Context, churchID primitive.ObjectID, name string, perms ...permissions.Permission) models.Role {
	f.t.Helper()

	now := time.Now().UTC()
	r := models.Role{
		ID:          primitive.NewObjectID(),
		Name:        name,
		NameCI:      text.Fold(name),
		Permissions: perms,
		Church:      churchID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.insert(ctx, "roles", r)
	return r
}

// CreateDefaultRoles creates the default role set for churchID and returns
// the roles keyed by name.
func (f *Fixtures) CreateDefaultRoles(ctx context.Context, churchID primitive.ObjectID, isRoot bool) map[string]models.Role {
	f.t.Helper()

	out := make(map[string]models.Role)
	for _, tpl := range permissions.DefaultRoles(isRoot) {
		out[tpl.Name] = f.CreateRole(ctx, churchID, tpl.Name, tpl.Permissions...)
	}
	return out
}

// CreateContact creates a live lead in churchID.
func (f *Fixtures) CreateContact(ctx context.Context, churchID primitive.ObjectID, firstName, phone string) models.Contact {
	f.t.Helper()

	now := time.Now().UTC()
	c := models.Contact{
		ID:       primitive.NewObjectID(),
		ChurchID: churchID,
		Profile: models.Profile{
			FirstName: firstName,
			Phone:     models.Phone{MainPhone: phone},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.ApplyDefaults()
	f.insert(ctx, "contacts", c)
	return c
}

// CreateMember creates a member contact linking userID to churchID with roleID.
func (f *Fixtures) CreateMember(ctx context.Context, churchID, userID, roleID primitive.ObjectID, firstName, phone string) models.Contact {
	f.t.Helper()

	now := time.Now().UTC()
	c := models.Contact{
		ID:          primitive.NewObjectID(),
		UserID:      &userID,
		ChurchID:    churchID,
		OrgRole:     &roleID,
		ContactType: models.ContactTypeMember,
		Profile: models.Profile{
			FirstName: firstName,
			Phone:     models.Phone{MainPhone: phone},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.ApplyDefaults()
	f.insert(ctx, "contacts", c)
	return c
}
