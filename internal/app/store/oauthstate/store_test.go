package oauthstate_test

import (
	"testing"
	"time"

	"github.com/dalemusser/shepherd/internal/app/store/oauthstate"
	"github.com/dalemusser/shepherd/internal/testutil"
)

func TestStore_SaveAndConsume(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Save(ctx, "state-1", "/churches", time.Now().Add(10*time.Minute)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	returnURL, ok, err := store.Consume(ctx, "state-1")
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if !ok {
		t.Fatal("expected state to be valid")
	}
	if returnURL != "/churches" {
		t.Errorf("returnURL = %q, want /churches", returnURL)
	}

	// one-time use
	_, ok, err = store.Consume(ctx, "state-1")
	if err != nil {
		t.Fatalf("second Consume failed: %v", err)
	}
	if ok {
		t.Error("state should not be usable twice")
	}
}

func TestStore_Consume_Expired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Save(ctx, "old", "", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	_, ok, err := store.Consume(ctx, "old")
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if ok {
		t.Error("expired state should be rejected")
	}

	n, err := store.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired failed: %v", err)
	}
	if n != 1 {
		t.Errorf("CleanupExpired removed %d, want 1", n)
	}
}

func TestStore_Consume_Unknown(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, ok, err := store.Consume(ctx, "nope")
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if ok {
		t.Error("unknown state should be rejected")
	}
}
