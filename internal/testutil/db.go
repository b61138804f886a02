// Package testutil provides shared helpers for tests that need a database.
package testutil

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnvTestMongoURI points tests at an existing replica set instead of a container.
const EnvTestMongoURI = "SHEPHERD_TEST_MONGO_URI"

var (
	containerOnce sync.Once
	containerURI  string
	containerErr  error
)

// TestContext returns a context with a timeout suitable for a single test step.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// SetupTestDB returns a fresh, uniquely named database that is dropped when
// the test ends. Transactions need a replica set, so the fallback container
// is started as a single-node replica set. Tests are skipped when neither an
// explicit URI nor Docker is available.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	uri := mongoURI(t)

	ctx, cancel := TestContext()
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect to test MongoDB: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		t.Skipf("test MongoDB not reachable: %v", err)
	}

	db := client.Database("shepherd_test_" + primitive.NewObjectID().Hex())
	t.Cleanup(func() {
		ctx, cancel := TestContext()
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}

func mongoURI(t *testing.T) string {
	t.Helper()
	if v := os.Getenv(EnvTestMongoURI); v != "" {
		return v
	}
	containerOnce.Do(func() {
		ctx := context.Background()
		c, err := tcmongo.Run(ctx, "mongo:7", tcmongo.WithReplicaSet("rs0"))
		if err != nil {
			containerErr = err
			return
		}
		containerURI, containerErr = c.ConnectionString(ctx)
	})
	if containerErr != nil {
		t.Skipf("MongoDB container unavailable: %v", containerErr)
	}
	return containerURI
}
