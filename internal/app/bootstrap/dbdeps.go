// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/shepherd/internal/app/system/cache"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds the back-end clients opened in ConnectDB.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database
	Cache         cache.Cache
	Objects       storage.Store
}
