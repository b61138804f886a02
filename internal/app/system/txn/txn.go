// Package txn runs multi-document writes inside a MongoDB transaction.
package txn

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"
)

var (
	mu            sync.RWMutex
	allowFallback bool
)

// Config controls transaction behavior.
type Config struct {
	// AllowStandaloneFallback runs fn without a transaction when the server
	// does not support them (standalone mongod). Writes are then not atomic,
	// so this is for local development only.
	AllowStandaloneFallback bool
}

// Configure sets package-wide transaction options. Call once at startup.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	allowFallback = cfg.AllowStandaloneFallback
}

func fallbackAllowed() bool {
	mu.RLock()
	defer mu.RUnlock()
	return allowFallback
}

// Run executes fn inside a snapshot transaction and commits it. Any error
// from fn aborts the transaction and is returned unchanged. Commit failures
// are classified through apperr. Run never retries; a transient failure is
// returned for the caller to retry, or use RunRetry.
//
// fn must use the ctx it is given so that its operations join the session.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn func(ctx context.Context) error) error {
	sess, err := db.Client().StartSession()
	if err != nil {
		return apperr.FromStorage(err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := sess.StartTransaction(opts); err != nil {
		return apperr.FromStorage(err)
	}

	sc := mongo.NewSessionContext(ctx, sess)
	if err := fn(sc); err != nil {
		if abortErr := sess.AbortTransaction(context.WithoutCancel(ctx)); abortErr != nil && log != nil {
			log.Warn("transaction abort failed", zap.Error(abortErr))
		}
		if IsNotSupported(err) && fallbackAllowed() {
			if log != nil {
				log.Warn("transactions not supported by server, running without transaction", zap.Error(err))
			}
			return fn(ctx)
		}
		return err
	}

	if err := sess.CommitTransaction(sc); err != nil {
		if log != nil {
			log.Error("transaction commit failed", zap.Error(err))
		}
		return apperr.FromStorage(err)
	}
	return nil
}

// RunRetry is Run repeated up to attempts times while the failure is a
// transient transaction error. Two transactions inserting the same unique
// key race this way: the loser sees a write conflict, and its retry reads
// the winner's committed document.
func RunRetry(ctx context.Context, db *mongo.Database, log *zap.Logger, attempts int, fn func(ctx context.Context) error) error {
	var err error
	for i := 1; ; i++ {
		err = Run(ctx, db, log, fn)
		if i >= attempts || !IsTransientTxn(err) {
			return err
		}
		if log != nil {
			log.Debug("retrying transaction", zap.Int("attempt", i+1), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(i) * 20 * time.Millisecond):
		}
	}
}

// IsTransientTxn reports whether err is a write conflict or carries the
// TransientTransactionError label.
func IsTransientTxn(err error) bool {
	if err == nil {
		return false
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorCode(112) || se.HasErrorLabel("TransientTransactionError")
	}
	return false
}

// IsNotSupported reports whether err means the server cannot run
// transactions, e.g. a standalone mongod or a server without sessions.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case 20, 51, 263:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "transaction") && strings.Contains(msg, "replica set"):
		return true
	case strings.Contains(msg, "session") && strings.Contains(msg, "not supported"):
		return true
	case strings.Contains(msg, "transaction") && strings.Contains(msg, "session"):
		return true
	case strings.Contains(msg, "illegal operation"):
		return true
	}
	return false
}
