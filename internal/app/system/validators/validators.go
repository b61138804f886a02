// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/shepherd/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. Collections must exist before the first transaction writes to
// them. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("churches", churchesSchema())
	ensure("levels", levelsSchema())
	ensure("roles", rolesSchema())
	ensure("users", usersSchema())
	ensure("contacts", contactsSchema())
	ensure("invitations", invitationsSchema())

	// TTL-managed or append-only; no validator.
	ensure("audit_events", nil)
	ensure("oauth_states", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		if isNamespaceExistsErr(err) {
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Debug("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

func enum[T ~string](vals ...T) bson.A {
	out := make(bson.A, 0, len(vals))
	for _, v := range vals {
		out = append(out, string(v))
	}
	return out
}

func churchesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci", "is_hq", "level", "is_deleted"},
			"properties": bson.M{
				"name":          nonBlank,
				"name_ci":       nonBlank,
				"is_hq":         bson.M{"bsonType": "bool"},
				"level":         bson.M{"bsonType": "objectId"},
				"parent_church": bson.M{"bsonType": "objectId"},
				"is_deleted":    bson.M{"bsonType": "bool"},
			},
		},
	}
}

func levelsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "order", "path"},
			"properties": bson.M{
				"name":         nonBlank,
				"order":        bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
				"path":         bson.M{"bsonType": "string"},
				"parent_level": bson.M{"bsonType": "objectId"},
				"owned_by":     bson.M{"bsonType": "objectId"},
			},
		},
	}
}

func rolesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci", "church"},
			"properties": bson.M{
				"name":        nonBlank,
				"name_ci":     nonBlank,
				"church":      bson.M{"bsonType": "objectId"},
				"permissions": bson.M{"bsonType": bson.A{"array", "null"}},
			},
		},
	}
}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"first_name", "role"},
			"properties": bson.M{
				"first_name": nonBlank,
				"email":      bson.M{"bsonType": "string"},
				"phone":      bson.M{"bsonType": "string"},
				"role":       bson.M{"enum": enum(models.UserRoleAdmin, models.UserRoleMember, models.UserRoleSubAdmin)},
				"churches":   bson.M{"bsonType": bson.A{"array", "null"}},
			},
		},
	}
}

func contactsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"church_id", "profile", "contact_type", "contact_status", "is_deleted"},
			"properties": bson.M{
				"church_id": bson.M{"bsonType": "objectId"},
				"user_id":   bson.M{"bsonType": "objectId"},
				"profile": bson.M{
					"bsonType": "object",
					"required": bson.A{"first_name"},
					"properties": bson.M{
						"first_name": nonBlank,
					},
				},
				"contact_type": bson.M{"enum": enum(
					models.ContactTypeMember, models.ContactTypeRegular, models.ContactTypeVisitor,
					models.ContactTypeParticipant, models.ContactTypeInProgress, models.ContactTypeUndefined,
				)},
				"verification": bson.M{"enum": enum(
					models.VerificationUnverified, models.VerificationIncomplete, models.VerificationVerified,
				)},
				"contact_status": bson.M{"enum": enum(
					models.ContactStatusNew, models.ContactStatusContacted, models.ContactStatusWon, models.ContactStatusLost,
				)},
				"member_status": bson.M{"enum": enum(
					models.MemberStatusPotential, models.MemberStatusInProgress, models.MemberStatusConfirmed, models.MemberStatusExMember,
				)},
				"is_deleted": bson.M{"bsonType": "bool"},
			},
		},
	}
}

func invitationsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"contact_id", "church_id", "token", "accepted", "expires_at"},
			"properties": bson.M{
				"contact_id": bson.M{"bsonType": "objectId"},
				"church_id":  bson.M{"bsonType": "objectId"},
				"token":      nonBlank,
				"accepted":   bson.M{"bsonType": "bool"},
				"expires_at": bson.M{"bsonType": "date"},
			},
		},
	}
}
