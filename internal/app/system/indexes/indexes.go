// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
Errors are aggregated so every problem is visible and startup fails fast.

The unique indexes here are what keep concurrent writers honest: two
requests that both pass an application-level "is this phone taken" check
still cannot both insert.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	steps := []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
	}{
		{"users", ensureUsers},
		{"churches", ensureChurches},
		{"levels", ensureLevels},
		{"roles", ensureRoles},
		{"contacts", ensureContacts},
		{"invitations", ensureInvitations},
		{"audit_events", ensureAuditEvents},
		{"oauth_states", ensureOAuthStates},
	}
	for _, s := range steps {
		if err := s.fn(ctx, db); err != nil {
			problems = append(problems, s.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Reconciling one collection                                                 */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name    string        `bson:"name"`
	Key     bson.D        `bson:"key"`
	Unique  bool          `bson:"unique"`
	Partial bson.M        `bson:"partialFilterExpression,omitempty"`
	TTL     bson.RawValue `bson:"expireAfterSeconds,omitempty"`
}

// desired is the comparable form of a mongo.IndexModel.
type desired struct {
	name    string
	sig     string
	unique  bool
	partial bson.M
	ttl     *int32
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func describe(m mongo.IndexModel) (desired, error) {
	d := desired{sig: keySig(m.Keys.(bson.D))}
	if m.Options == nil {
		return d, nil
	}
	if m.Options.Name != nil {
		d.name = *m.Options.Name
	}
	if m.Options.Unique != nil {
		d.unique = *m.Options.Unique
	}
	d.ttl = m.Options.ExpireAfterSeconds
	if m.Options.PartialFilterExpression != nil {
		// Round-trip so the filter compares equal to what the server reports.
		raw, err := bson.Marshal(m.Options.PartialFilterExpression)
		if err != nil {
			return d, err
		}
		if err := bson.Unmarshal(raw, &d.partial); err != nil {
			return d, err
		}
	}
	return d, nil
}

func (d desired) matches(ex existingIndex) bool {
	if d.unique != ex.Unique || (d.name != "" && d.name != ex.Name) {
		return false
	}
	if !reflect.DeepEqual(d.partial, ex.Partial) && (len(d.partial) > 0 || len(ex.Partial) > 0) {
		return false
	}
	exTTL, hasTTL := ex.TTL.AsInt64OK()
	if (d.ttl != nil) != hasTTL {
		return false
	}
	return d.ttl == nil || int64(*d.ttl) == exTTL
}

func isDuplicateKeyErr(err error) bool {
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	return strings.Contains(err.Error(), "E11000")
}

func listIndexes(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make(map[string]existingIndex)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()), zap.Error(err))
			continue
		}
		out[idx.Name] = idx
	}
	return out, cur.Err()
}

// ensureIndexSet makes the collection carry every model. An index with the
// same keys or name but different options is dropped and recreated.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	existing, err := listIndexes(ctx, coll)
	if err != nil {
		// A missing collection lists as empty on most servers; others error.
		zap.L().Debug("list indexes failed; creating blindly",
			zap.String("collection", coll.Name()), zap.Error(err))
		existing = map[string]existingIndex{}
	}
	bySig := make(map[string]existingIndex, len(existing))
	for _, ex := range existing {
		bySig[keySig(ex.Key)] = ex
	}

	var errs []string
	for _, m := range models {
		d, err := describe(m)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), d.name, err))
			continue
		}
		log := zap.L().With(
			zap.String("collection", coll.Name()),
			zap.String("name", d.name),
			zap.String("keys", d.sig))

		ex, found := bySig[d.sig]
		if !found {
			ex, found = existing[d.name]
		}
		if found && d.matches(ex) {
			continue
		}
		if found {
			log.Info("replacing index with changed definition", zap.String("old_name", ex.Name))
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), d.name, err))
				continue
			}
		}

		start := time.Now()
		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			log.Warn("index ensure failed", zap.Error(err))
			if d.unique && isDuplicateKeyErr(err) {
				errs = append(errs, dupHint(coll.Name(), d.name, d.sig))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), d.name, err))
			}
			continue
		}
		log.Info("index created", zap.Bool("unique", d.unique), zap.Duration("took", time.Since(start)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func dupHint(coll, name, sig string) string {
	first := strings.SplitN(sig, ":", 2)[0]
	return fmt.Sprintf("%s(%s): cannot create unique index (duplicates present). Example finder:\n"+
		`db.%s.aggregate([{ $group: { _id: "$%s", n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])`,
		coll, name, coll, first)
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Email and phone are optional but globally unique when present.
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email").
				SetPartialFilterExpression(bson.M{"email": bson.M{"$exists": true}}),
		},
		{
			Keys: bson.D{{Key: "phone", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_phone").
				SetPartialFilterExpression(bson.M{"phone": bson.M{"$exists": true}}),
		},
		{
			Keys: bson.D{{Key: "provider.name", Value: 1}, {Key: "provider.id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_provider").
				SetPartialFilterExpression(bson.M{"provider": bson.M{"$exists": true}}),
		},
		// Cascade on church delete
		{
			Keys:    bson.D{{Key: "churches", Value: 1}},
			Options: options.Index().SetName("idx_users_churches"),
		},
	})
}

func ensureChurches(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("churches")
	live := bson.M{"is_deleted": false}
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "contact.email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_churches_email").SetPartialFilterExpression(live),
		},
		{
			Keys:    bson.D{{Key: "contact.phone", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_churches_phone").SetPartialFilterExpression(live),
		},
		{
			Keys:    bson.D{{Key: "level", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetName("idx_churches_level_nameci"),
		},
		{
			Keys:    bson.D{{Key: "is_hq", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetName("idx_churches_hq_nameci"),
		},
		{
			Keys:    bson.D{{Key: "parent_church", Value: 1}},
			Options: options.Index().SetName("idx_churches_parent"),
		},
	})
}

func ensureLevels(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("levels")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// A root level is inserted before its owner exists, so uniqueness
		// only applies once owned_by has been set.
		{
			Keys: bson.D{{Key: "owned_by", Value: 1}, {Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_levels_owner_name").
				SetPartialFilterExpression(bson.M{"owned_by": bson.M{"$exists": true}}),
		},
		{
			Keys:    bson.D{{Key: "parent_level", Value: 1}},
			Options: options.Index().SetName("idx_levels_parent"),
		},
	})
}

func ensureRoles(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("roles")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "church", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_roles_church_nameci"),
		},
	})
}

func ensureContacts(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("contacts")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Phone is required and unique among live contacts of a church.
		{
			Keys: bson.D{{Key: "church_id", Value: 1}, {Key: "profile.phone.main_phone", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_contacts_church_phone").
				SetPartialFilterExpression(bson.M{"is_deleted": false}),
		},
		// Email is optional; unique among live contacts that have one.
		{
			Keys: bson.D{{Key: "church_id", Value: 1}, {Key: "profile.email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_contacts_church_email").
				SetPartialFilterExpression(bson.M{"is_deleted": false, "profile.email": bson.M{"$exists": true}}),
		},
		// Listings: church + type + status, newest first
		{
			Keys: bson.D{
				{Key: "church_id", Value: 1},
				{Key: "is_deleted", Value: 1},
				{Key: "contact_type", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_contacts_church_deleted_type_created"),
		},
		{
			Keys:    bson.D{{Key: "church_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_contacts_church_user"),
		},
		// Purge worker scans soft-deleted rows by age
		{
			Keys:    bson.D{{Key: "is_deleted", Value: 1}, {Key: "deleted_at", Value: 1}},
			Options: options.Index().SetName("idx_contacts_deleted_at"),
		},
	})
}

func ensureInvitations(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("invitations")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_invitations_token"),
		},
		{
			Keys:    bson.D{{Key: "contact_id", Value: 1}, {Key: "accepted", Value: 1}},
			Options: options.Index().SetName("idx_invitations_contact_accepted"),
		},
	})
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("audit_events")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "church_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_church_ts"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_user_ts"),
		},
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_ts"),
		},
	})
}

func ensureOAuthStates(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("oauth_states")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "state", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_oauth_state"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_oauth_ttl"),
		},
	})
}
