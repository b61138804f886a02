// internal/app/store/contacts/contactstore.go
package contactstore

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/dalemusser/shepherd/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrDuplicateContact is returned when the unique (church, phone) or
	// (church, email) index rejects a write.
	ErrDuplicateContact = errors.New("contact already exists")
	ErrAlreadyAssigned  = errors.New("contact already assigned")
	ErrNotAssigned      = errors.New("contact not assigned")
	ErrNoteNotFound     = errors.New("note not found")
	ErrLabelNotFound    = errors.New("label not found")
	ErrActionNotFound   = errors.New("action not found")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("contacts")}
}

// live scopes a filter to one church's non-deleted contacts. Every default
// read and write goes through it.
func live(churchID primitive.ObjectID, filter bson.M) bson.M {
	f := bson.M{"church_id": churchID, "is_deleted": false}
	for k, v := range filter {
		f[k] = v
	}
	return f
}

func mapWriteErr(err error) error {
	if wafflemongo.IsDup(err) {
		return ErrDuplicateContact
	}
	return err
}

// Insert stores c with a fresh ID and defaults applied.
func (s *Store) Insert(ctx context.Context, c models.Contact) (models.Contact, error) {
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.ApplyDefaults()
	c.IsDeleted = false
	c.CreatedAt = now
	c.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, c); err != nil {
		return models.Contact{}, mapWriteErr(err)
	}
	return c, nil
}

// GetByID returns a contact of churchID. Soft-deleted contacts are only
// returned when includeDeleted is true.
func (s *Store) GetByID(ctx context.Context, churchID, id primitive.ObjectID, includeDeleted bool) (models.Contact, error) {
	filter := live(churchID, bson.M{"_id": id})
	if includeDeleted {
		delete(filter, "is_deleted")
	}
	var c models.Contact
	if err := s.c.FindOne(ctx, filter).Decode(&c); err != nil {
		return models.Contact{}, err
	}
	return c, nil
}

// GetByIDs returns live contacts of churchID with the given ids.
func (s *Store) GetByIDs(ctx context.Context, churchID primitive.ObjectID, ids []primitive.ObjectID) ([]models.Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.find(ctx, live(churchID, bson.M{"_id": bson.M{"$in": ids}}))
}

// GetMemberByUser returns the live member record linking userID to churchID.
func (s *Store) GetMemberByUser(ctx context.Context, churchID, userID primitive.ObjectID) (models.Contact, error) {
	var c models.Contact
	err := s.c.FindOne(ctx, live(churchID, bson.M{
		"user_id":      userID,
		"contact_type": models.ContactTypeMember,
	})).Decode(&c)
	if err != nil {
		return models.Contact{}, err
	}
	return c, nil
}

// Taken reports whether a live contact in churchID other than excludeID uses
// email or phone. Empty values are skipped.
func (s *Store) Taken(ctx context.Context, churchID primitive.ObjectID, email, phone string, excludeID primitive.ObjectID) (emailTaken, phoneTaken bool, err error) {
	check := func(field, v string) (bool, error) {
		if v == "" {
			return false, nil
		}
		f := live(churchID, bson.M{field: v})
		if !excludeID.IsZero() {
			f["_id"] = bson.M{"$ne": excludeID}
		}
		err := s.c.FindOne(ctx, f, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return err == nil, err
	}
	if emailTaken, err = check("profile.email", email); err != nil {
		return false, false, err
	}
	if phoneTaken, err = check("profile.phone.main_phone", phone); err != nil {
		return false, false, err
	}
	return emailTaken, phoneTaken, nil
}

// ListFilter narrows a church's contact listing.
type ListFilter struct {
	Types  []models.ContactType
	Status models.ContactStatus
	Search string
	Limit  int64
	Skip   int64
}

func (f ListFilter) query(churchID primitive.ObjectID) bson.M {
	q := live(churchID, nil)
	if len(f.Types) == 1 {
		q["contact_type"] = f.Types[0]
	} else if len(f.Types) > 1 {
		q["contact_type"] = bson.M{"$in": f.Types}
	}
	if f.Status != "" {
		q["contact_status"] = f.Status
	}
	if f.Search != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		q["$or"] = bson.A{
			bson.M{"profile.first_name": rx},
			bson.M{"profile.last_name": rx},
			bson.M{"profile.email": rx},
			bson.M{"profile.phone.main_phone": rx},
		}
	}
	return q
}

// List returns live contacts of churchID, newest first.
func (s *Store) List(ctx context.Context, churchID primitive.ObjectID, f ListFilter) ([]models.Contact, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	if f.Skip > 0 {
		opts.SetSkip(f.Skip)
	}
	return s.find(ctx, f.query(churchID), opts)
}

// Count returns the number of live contacts matching f.
func (s *Store) Count(ctx context.Context, churchID primitive.ObjectID, f ListFilter) (int64, error) {
	return s.c.CountDocuments(ctx, f.query(churchID))
}

// CountOfType counts contacts of churchID among ids whose type is t,
// soft-deleted or not.
func (s *Store) CountOfType(ctx context.Context, churchID primitive.ObjectID, ids []primitive.ObjectID, t models.ContactType) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"church_id": churchID, "_id": bson.M{"$in": ids}, "contact_type": t})
}

func (s *Store) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Contact, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Contact
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// apply runs a single-document update scoped to a live contact. It returns
// mongo.ErrNoDocuments when nothing matched.
func (s *Store) apply(ctx context.Context, churchID, id primitive.ObjectID, extra bson.M, update bson.M) (bool, error) {
	filter := live(churchID, bson.M{"_id": id})
	for k, v := range extra {
		filter[k] = v
	}
	set, _ := update["$set"].(bson.M)
	if set == nil {
		set = bson.M{}
		update["$set"] = set
	}
	set["updated_at"] = time.Now().UTC()

	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, mapWriteErr(err)
	}
	return res.MatchedCount > 0, nil
}

// Patch sets fields and, when note is non-nil, appends it in the same update.
func (s *Store) Patch(ctx context.Context, churchID, id primitive.ObjectID, set bson.M, note *models.Note) error {
	update := bson.M{"$set": cloneM(set)}
	if note != nil {
		update["$push"] = bson.M{"notes": *note}
	}
	ok, err := s.apply(ctx, churchID, id, nil, update)
	if err != nil {
		return err
	}
	if !ok {
		return mongo.ErrNoDocuments
	}
	return nil
}

// AddAssignee pushes assignee unless it is already present. The membership
// test is part of the update filter, so concurrent calls cannot both succeed.
func (s *Store) AddAssignee(ctx context.Context, churchID, id, assignee primitive.ObjectID) error {
	ok, err := s.apply(ctx, churchID, id,
		bson.M{"assigned_to": bson.M{"$ne": assignee}},
		bson.M{"$push": bson.M{"assigned_to": assignee}})
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyAssigned
	}
	return nil
}

// RemoveAssignee pulls assignee if present.
func (s *Store) RemoveAssignee(ctx context.Context, churchID, id, assignee primitive.ObjectID) error {
	ok, err := s.apply(ctx, churchID, id,
		bson.M{"assigned_to": assignee},
		bson.M{"$pull": bson.M{"assigned_to": assignee}})
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAssigned
	}
	return nil
}

// PushNote appends note atomically.
func (s *Store) PushNote(ctx context.Context, churchID, id primitive.ObjectID, note models.Note) error {
	return s.Patch(ctx, churchID, id, nil, &note)
}

// UpdateNote rewrites a note's comment, marks it edited and refreshes its date.
func (s *Store) UpdateNote(ctx context.Context, churchID, id, noteID primitive.ObjectID, comment string, author *primitive.ObjectID) error {
	set := bson.M{
		"notes.$.comment":   comment,
		"notes.$.is_edited": true,
		"notes.$.date":      time.Now().UTC(),
	}
	if author != nil {
		set["notes.$.member"] = *author
	}
	ok, err := s.apply(ctx, churchID, id, bson.M{"notes._id": noteID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoteNotFound
	}
	return nil
}

// DeleteNote removes a note by id.
func (s *Store) DeleteNote(ctx context.Context, churchID, id, noteID primitive.ObjectID) error {
	return s.pullByID(ctx, churchID, id, "notes", noteID, ErrNoteNotFound)
}

func (s *Store) PushLabel(ctx context.Context, churchID, id primitive.ObjectID, label models.Label) error {
	ok, err := s.apply(ctx, churchID, id, nil, bson.M{"$push": bson.M{"labels": label}})
	if err != nil {
		return err
	}
	if !ok {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *Store) DeleteLabel(ctx context.Context, churchID, id, labelID primitive.ObjectID) error {
	return s.pullByID(ctx, churchID, id, "labels", labelID, ErrLabelNotFound)
}

func (s *Store) PushAction(ctx context.Context, churchID, id primitive.ObjectID, action models.Action) error {
	ok, err := s.apply(ctx, churchID, id, nil, bson.M{"$push": bson.M{"actions": action}})
	if err != nil {
		return err
	}
	if !ok {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetActionCompleted flips an action from `from` to `!from`. It matches only
// while the action still holds `from`, so a racing toggle is not lost.
func (s *Store) SetActionCompleted(ctx context.Context, churchID, id, actionID primitive.ObjectID, from bool) error {
	ok, err := s.apply(ctx, churchID, id,
		bson.M{"actions": bson.M{"$elemMatch": bson.M{"_id": actionID, "completed": from}}},
		bson.M{"$set": bson.M{"actions.$.completed": !from}})
	if err != nil {
		return err
	}
	if !ok {
		return ErrActionNotFound
	}
	return nil
}

func (s *Store) DeleteAction(ctx context.Context, churchID, id, actionID primitive.ObjectID) error {
	return s.pullByID(ctx, churchID, id, "actions", actionID, ErrActionNotFound)
}

func (s *Store) pullByID(ctx context.Context, churchID, id primitive.ObjectID, field string, subID primitive.ObjectID, notFound error) error {
	ok, err := s.apply(ctx, churchID, id,
		bson.M{field + "._id": subID},
		bson.M{"$pull": bson.M{field: bson.M{"_id": subID}}})
	if err != nil {
		return err
	}
	if !ok {
		return notFound
	}
	return nil
}

// SoftDelete flags a live contact as deleted.
func (s *Store) SoftDelete(ctx context.Context, churchID, id primitive.ObjectID, by *primitive.ObjectID) error {
	set := bson.M{"is_deleted": true, "deleted_at": time.Now().UTC()}
	if by != nil {
		set["modified_by"] = *by
	}
	return s.Patch(ctx, churchID, id, set, nil)
}

// Purge permanently removes contacts by id. When churchID is non-nil only
// contacts of that church are removed.
func (s *Store) Purge(ctx context.Context, ids []primitive.ObjectID, churchID *primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	filter := bson.M{"_id": bson.M{"$in": ids}}
	if churchID != nil {
		filter["church_id"] = *churchID
	}
	res, err := s.c.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeletedBefore returns up to limit ids of contacts soft-deleted before cutoff.
func (s *Store) DeletedBefore(ctx context.Context, cutoff time.Time, limit int64) ([]primitive.ObjectID, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1}).SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{"is_deleted": true, "deleted_at": bson.M{"$lt": cutoff}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids, nil
}

// MembersJoined returns the live members of churchID created in
// [start, end), projected to the fields join statistics need.
func (s *Store) MembersJoined(ctx context.Context, churchID primitive.ObjectID, start, end time.Time) ([]models.Contact, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetProjection(bson.M{
			"profile.first_name":       1,
			"profile.last_name":        1,
			"profile.email":            1,
			"profile.phone.main_phone": 1,
			"profile.gender":           1,
			"profile.date_of_birth":    1,
			"created_at":               1,
		})
	return s.find(ctx, live(churchID, bson.M{
		"contact_type": models.ContactTypeMember,
		"created_at":   bson.M{"$gte": start, "$lt": end},
	}), opts)
}

func cloneM(m bson.M) bson.M {
	out := make(bson.M, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
