package txn_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dalemusser/shepherd/internal/app/system/txn"
	"github.com/dalemusser/shepherd/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func TestRun_Commits(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	err := txn.Run(ctx, db, zap.NewNop(), func(ctx context.Context) error {
		if _, err := db.Collection("a").InsertOne(ctx, bson.M{"x": 1}); err != nil {
			return err
		}
		_, err := db.Collection("b").InsertOne(ctx, bson.M{"y": 2})
		return err
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, name := range []string{"a", "b"} {
		n, err := db.Collection(name).CountDocuments(ctx, bson.M{})
		if err != nil {
			t.Fatalf("count %s: %v", name, err)
		}
		if n != 1 {
			t.Errorf("collection %s has %d docs, want 1", name, n)
		}
	}
}

func TestRun_RollsBackOnError(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// Collections must exist before a transaction can write to them on older servers.
	if _, err := db.Collection("a").InsertOne(ctx, bson.M{"seed": true}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	boom := errors.New("boom")
	err := txn.Run(ctx, db, zap.NewNop(), func(ctx context.Context) error {
		if _, err := db.Collection("a").InsertOne(ctx, bson.M{"x": 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want boom", err)
	}

	n, err := db.Collection("a").CountDocuments(ctx, bson.M{"x": 1})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("found %d rolled-back docs, want 0", n)
	}
}
