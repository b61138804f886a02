package contacts_test

import (
	"errors"
	"testing"

	contactstore "github.com/dalemusser/shepherd/internal/app/store/contacts"
	"github.com/dalemusser/shepherd/internal/app/system/indexes"
	"github.com/dalemusser/shepherd/internal/domain/models"
	"github.com/dalemusser/shepherd/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newContact(churchID primitive.ObjectID, name, phone, email string) models.Contact {
	return models.Contact{
		ChurchID: churchID,
		Profile: models.Profile{
			FirstName: name,
			Phone:     models.Phone{MainPhone: phone},
			Email:     email,
		},
	}
}

func TestInsert_UniqueBackstop(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	store := contactstore.New(db)
	church, other := primitive.NewObjectID(), primitive.NewObjectID()

	first, err := store.Insert(ctx, newContact(church, "Kofi", "233200000001", "kofi@example.com"))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	tests := []struct {
		name    string
		contact models.Contact
		wantDup bool
	}{
		{"same phone same church", newContact(church, "Kwesi", "233200000001", ""), true},
		{"same email same church", newContact(church, "Kwesi", "233200000002", "kofi@example.com"), true},
		{"same phone other church", newContact(other, "Kofi", "233200000001", "kofi@example.com"), false},
		{"no email twice", newContact(church, "Ama", "233200000003", ""), false},
		{"no email again", newContact(church, "Esi", "233200000004", ""), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Insert(ctx, tt.contact)
			if tt.wantDup {
				if !errors.Is(err, contactstore.ErrDuplicateContact) {
					t.Fatalf("err = %v, want ErrDuplicateContact", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Insert failed: %v", err)
			}
		})
	}

	// A soft-deleted contact frees its phone and email.
	if err := store.SoftDelete(ctx, church, first.ID, nil); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	if _, err := store.Insert(ctx, newContact(church, "Kofi", "233200000001", "kofi@example.com")); err != nil {
		t.Fatalf("Insert after soft delete failed: %v", err)
	}
}

func TestPatch_DuplicatePhone(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	store := contactstore.New(db)
	church := primitive.NewObjectID()

	if _, err := store.Insert(ctx, newContact(church, "Yaw", "111", "")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	b, err := store.Insert(ctx, newContact(church, "Afua", "222", ""))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	err = store.Patch(ctx, church, b.ID, bson.M{"profile.phone.main_phone": "111"}, nil)
	if !errors.Is(err, contactstore.ErrDuplicateContact) {
		t.Fatalf("Patch err = %v, want ErrDuplicateContact", err)
	}
}
